package models

// Actor identifies who performs an operation. It is built from the verified token
// and passed explicitly to every state-changing call.
type Actor struct {
	UserID       string        `json:"user_id"`
	Role         UserRole      `json:"role"`
	StudentID    string        `json:"student_id,omitempty"`
	DepartmentID string        `json:"department_id,omitempty"`
	Permissions  PermissionSet `json:"permissions"`
}

// NewActor builds an actor carrying the default permissions of role.
func NewActor(userID string, role UserRole, studentID, departmentID string) Actor {
	return Actor{
		UserID:       userID,
		Role:         role,
		StudentID:    studentID,
		DepartmentID: departmentID,
		Permissions:  RolePermissions(role),
	}
}

// Can reports whether the actor holds p.
func (a Actor) Can(p Permission) bool {
	return a.Permissions.Has(p)
}

// IsStudent reports whether the actor acts as a student.
func (a Actor) IsStudent() bool {
	return a.Role == RoleStudent
}

// Owns reports whether studentID belongs to the actor.
func (a Actor) Owns(studentID string) bool {
	return a.StudentID != "" && a.StudentID == studentID
}

// ScopedToDepartment reports whether the actor may only act within one department.
func (a Actor) ScopedToDepartment() bool {
	return a.Role == RoleHOD && a.DepartmentID != ""
}
