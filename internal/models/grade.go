package models

import "time"

// GradeStatus is the approval state of a grade record. Transitions only move forward
// except through an explicit reopen.
type GradeStatus string

const (
	GradeDraft     GradeStatus = "draft"
	GradeSubmitted GradeStatus = "submitted"
	GradeApproved  GradeStatus = "approved"
)

// Score bounds.
const (
	MaxCAScore   = 40.0
	MaxExamScore = 60.0
)

// GradeRecord is the result of one registration. Grade and GradePoint are
// derived from Total by the grading scale.
type GradeRecord struct {
	ID             string      `db:"id" json:"id"`
	RegistrationID string      `db:"registration_id" json:"registration_id"`
	CAScore        float64     `db:"ca_score" json:"ca_score"`
	ExamScore      float64     `db:"exam_score" json:"exam_score"`
	Total          float64     `db:"total" json:"total"`
	Grade          string      `db:"grade" json:"grade"`
	GradePoint     float64     `db:"grade_point" json:"grade_point"`
	Status         GradeStatus `db:"status" json:"status"`
	EnteredBy      string      `db:"entered_by" json:"entered_by"`
	SubmittedBy    *string     `db:"submitted_by" json:"submitted_by,omitempty"`
	SubmittedAt    *time.Time  `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedBy     *string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt     *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// GradeSheetRow is a grade record joined with registration and student context.
type GradeSheetRow struct {
	GradeRecord
	StudentID    string `db:"student_id" json:"student_id"`
	MatricNumber string `db:"matric_number" json:"matric_number"`
	StudentName  string `db:"student_name" json:"student_name"`
	CourseID     string `db:"course_id" json:"course_id"`
	CourseCode   string `db:"course_code" json:"course_code"`
	SemesterID   string `db:"semester_id" json:"semester_id"`
}

// GradeFilter scopes grade sheet queries.
type GradeFilter struct {
	CourseID   string
	SemesterID string
	StudentID  string
	Status     GradeStatus
}

// ApprovedResult is one approved grade with the course and calendar context
// needed for GPA and transcript computation.
type ApprovedResult struct {
	GradeID        string    `db:"grade_id" json:"grade_id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	CourseCode     string    `db:"course_code" json:"course_code"`
	CourseTitle    string    `db:"course_title" json:"course_title"`
	CreditUnits    int       `db:"credit_units" json:"credit_units"`
	SemesterID     string    `db:"semester_id" json:"semester_id"`
	SemesterName   string    `db:"semester_name" json:"semester_name"`
	SemesterNumber int       `db:"semester_number" json:"semester_number"`
	SessionID      string    `db:"session_id" json:"session_id"`
	SessionName    string    `db:"session_name" json:"session_name"`
	SemesterStart  time.Time `db:"semester_start" json:"semester_start"`
	Total          float64   `db:"total" json:"total"`
	Grade          string    `db:"grade" json:"grade"`
	GradePoint     float64   `db:"grade_point" json:"grade_point"`
}

// GradeChange identifies a grade record touched by a bulk transition.
type GradeChange struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"student_id"`
}
