package models

import "time"

// AcademicLevel bounds a student's per-semester credit load.
type AcademicLevel struct {
	ID             string `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	MinCreditUnits int    `db:"min_credit_units" json:"min_credit_units"`
	MaxCreditUnits int    `db:"max_credit_units" json:"max_credit_units"`
}

// Session is an academic year.
type Session struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	IsCurrent bool   `db:"is_current" json:"is_current"`
}

// Semester is a teaching period with its registration window.
type Semester struct {
	ID                string    `db:"id" json:"id"`
	SessionID         string    `db:"session_id" json:"session_id"`
	Name              string    `db:"name" json:"name"`
	Number            int       `db:"number" json:"number"`
	StartDate         time.Time `db:"start_date" json:"start_date"`
	EndDate           time.Time `db:"end_date" json:"end_date"`
	RegistrationStart time.Time `db:"registration_start" json:"registration_start"`
	RegistrationEnd   time.Time `db:"registration_end" json:"registration_end"`
	IsCurrent         bool      `db:"is_current" json:"is_current"`
}

// RegistrationOpen reports whether day falls inside the registration window.
// Both ends are inclusive and compared on calendar dates in UTC.
func (s Semester) RegistrationOpen(day time.Time) bool {
	d := truncateDay(day)
	return !d.Before(truncateDay(s.RegistrationStart)) && !d.After(truncateDay(s.RegistrationEnd))
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Student is the directory view of a student used by this service.
type Student struct {
	ID           string `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"user_id"`
	MatricNumber string `db:"matric_number" json:"matric_number"`
	FullName     string `db:"full_name" json:"full_name"`
	LevelID      string `db:"level_id" json:"level_id"`
	DepartmentID string `db:"department_id" json:"department_id"`
	Active       bool   `db:"active" json:"active"`
}

// QuotaStanding reports a student's approved load against the level bounds.
type QuotaStanding struct {
	StudentID      string `json:"student_id"`
	SemesterID     string `json:"semester_id"`
	ApprovedUnits  int    `json:"approved_units"`
	CurrentLoad    int    `json:"current_load"`
	MinCreditUnits int    `json:"min_credit_units"`
	MaxCreditUnits int    `json:"max_credit_units"`
	MeetsMinimum   bool   `json:"meets_minimum"`
}
