package models

import "time"

// RegistrationStatus is the approval state of a course registration.
type RegistrationStatus string

// Registration statuses. Dropped is an orthogonal flag, not a status.
const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Registration records a student's registration for a course in a semester.
type Registration struct {
	ID              string             `db:"id" json:"id"`
	StudentID       string             `db:"student_id" json:"student_id"`
	CourseID        string             `db:"course_id" json:"course_id"`
	SemesterID      string             `db:"semester_id" json:"semester_id"`
	Status          RegistrationStatus `db:"status" json:"status"`
	Dropped         bool               `db:"dropped" json:"dropped"`
	DroppedAt       *time.Time         `db:"dropped_at" json:"dropped_at,omitempty"`
	ApprovedBy      *string            `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time         `db:"approved_at" json:"approved_at,omitempty"`
	RejectedBy      *string            `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt      *time.Time         `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// CanApprove reports whether the registration may move to approved.
func (r Registration) CanApprove() bool {
	return !r.Dropped && r.Status == RegistrationPending
}

// CanReject reports whether the registration may move to rejected.
func (r Registration) CanReject() bool {
	return !r.Dropped && r.Status == RegistrationPending
}

// CanDrop reports whether the registration may be dropped.
func (r Registration) CanDrop() bool {
	return !r.Dropped && r.Status != RegistrationRejected
}

// RegistrationDetail enriches Registration with course info.
type RegistrationDetail struct {
	Registration
	CourseCode  string `db:"course_code" json:"course_code"`
	CourseTitle string `db:"course_title" json:"course_title"`
	CreditUnits int    `db:"credit_units" json:"credit_units"`
}

// RegistrationFilter provides filters for listing registrations.
type RegistrationFilter struct {
	StudentID    string
	CourseID     string
	SemesterID   string
	DepartmentID string
	Status       RegistrationStatus
	IncludeDrops bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
