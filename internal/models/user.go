package models

import (
	"encoding/json"
	"sort"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleHOD      UserRole = "HOD"
	RoleLecturer UserRole = "LECTURER"
	RoleStudent  UserRole = "STUDENT"
	RoleBursar   UserRole = "BURSAR"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleHOD, RoleLecturer, RoleStudent, RoleBursar:
		return true
	}
	return false
}

// Permission names a single capability checked by handlers and services.
type Permission string

const (
	PermRegisterCourses      Permission = "register_courses"
	PermViewRegistrations    Permission = "view_registrations"
	PermApproveRegistrations Permission = "approve_registrations"
	PermEnterGrades          Permission = "enter_grades"
	PermApproveGrades        Permission = "approve_grades"
	PermReopenGrades         Permission = "reopen_grades"
	PermViewGrades           Permission = "view_grades"
	PermViewResults          Permission = "view_results"
	PermViewCatalog          Permission = "view_catalog"
	PermManageCatalog        Permission = "manage_catalog"
)

// PermissionSet is an unordered set of permissions. It marshals to a sorted JSON array.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set.Add(p)
	}
	return set
}

// Add inserts p into the set.
func (s PermissionSet) Add(p Permission) {
	s[p] = struct{}{}
}

// Has reports whether p is in the set. A nil set has nothing.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Slice returns the permissions in lexical order.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes an array of permission names.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var perms []Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}

var rolePermissions = map[UserRole][]Permission{
	RoleAdmin: {
		PermRegisterCourses, PermViewRegistrations, PermApproveRegistrations,
		PermEnterGrades, PermApproveGrades, PermReopenGrades, PermViewGrades,
		PermViewResults, PermViewCatalog, PermManageCatalog,
	},
	RoleHOD: {
		PermViewRegistrations, PermApproveRegistrations,
		PermEnterGrades, PermApproveGrades, PermReopenGrades, PermViewGrades,
		PermViewResults, PermViewCatalog, PermManageCatalog,
	},
	RoleLecturer: {
		PermViewRegistrations, PermEnterGrades, PermViewGrades, PermViewCatalog,
	},
	RoleStudent: {
		PermRegisterCourses, PermViewRegistrations, PermViewResults, PermViewCatalog,
	},
	RoleBursar: {
		PermViewRegistrations, PermViewCatalog,
	},
}

// RolePermissions returns a fresh permission set granted to role.
func RolePermissions(role UserRole) PermissionSet {
	return NewPermissionSet(rolePermissions[role]...)
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
