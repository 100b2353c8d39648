package models

import "time"

// Course is a catalog entry. The catalog service owns it; this service reads it
// and may only toggle IsActive.
type Course struct {
	ID             string    `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"`
	Title          string    `db:"title" json:"title"`
	CreditUnits    int       `db:"credit_units" json:"credit_units"`
	SemesterNumber int       `db:"semester_number" json:"semester_number"`
	LevelID        string    `db:"level_id" json:"level_id"`
	DepartmentID   string    `db:"department_id" json:"department_id"`
	IsElective     bool      `db:"is_elective" json:"is_elective"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CourseRef is the short form of a course used in listings.
type CourseRef struct {
	ID          string `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Title       string `db:"title" json:"title"`
	CreditUnits int    `db:"credit_units" json:"credit_units"`
}

// PrerequisiteEdge states that CourseID requires PrerequisiteCourseID.
type PrerequisiteEdge struct {
	ID                   string    `db:"id" json:"id"`
	CourseID             string    `db:"course_id" json:"course_id"`
	PrerequisiteCourseID string    `db:"prerequisite_course_id" json:"prerequisite_course_id"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// PrerequisiteChange reports the outcome of adding a prerequisite edge.
type PrerequisiteChange struct {
	Edge    PrerequisiteEdge `json:"edge"`
	Created bool             `json:"created"`
}
