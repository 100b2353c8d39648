package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionSetJSONIsSorted(t *testing.T) {
	set := NewPermissionSet(PermViewResults, PermApproveGrades, PermEnterGrades)
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["approve_grades","enter_grades","view_results"]`, string(raw))

	var decoded PermissionSet
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Has(PermEnterGrades))
	assert.False(t, decoded.Has(PermManageCatalog))
}

func TestRolePermissions(t *testing.T) {
	assert.True(t, RolePermissions(RoleHOD).Has(PermApproveRegistrations))
	assert.False(t, RolePermissions(RoleLecturer).Has(PermApproveGrades))
	assert.False(t, RolePermissions(RoleStudent).Has(PermEnterGrades))
	assert.Empty(t, RolePermissions(UserRole("GUEST")))

	// callers may not mutate the shared table
	perms := RolePermissions(RoleBursar)
	perms.Add(PermManageCatalog)
	assert.False(t, RolePermissions(RoleBursar).Has(PermManageCatalog))
}

func TestTransitionResult(t *testing.T) {
	res := NewTransitionResult([]string{"a", "b", "c"}, []string{"b"})
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, []string{"a", "c"}, res.SkippedIDs)
	assert.False(t, res.NothingMatched())
	assert.Equal(t, "1 of 3 records approved", res.Summary("approved"))

	empty := NewTransitionResult([]string{"a"}, nil)
	assert.True(t, empty.NothingMatched())
	assert.Equal(t, []string{}, empty.AffectedIDs)
	assert.Contains(t, empty.Summary("approved"), "no records were approved")
}

func TestSemesterRegistrationOpenIsInclusive(t *testing.T) {
	sem := Semester{
		RegistrationStart: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		RegistrationEnd:   time.Date(2024, 9, 14, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, sem.RegistrationOpen(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, sem.RegistrationOpen(time.Date(2024, 9, 14, 23, 59, 0, 0, time.UTC)))
	assert.False(t, sem.RegistrationOpen(time.Date(2024, 9, 15, 0, 0, 1, 0, time.UTC)))
	assert.False(t, sem.RegistrationOpen(time.Date(2024, 8, 31, 23, 0, 0, 0, time.UTC)))
}

func TestRegistrationGuards(t *testing.T) {
	pending := Registration{Status: RegistrationPending}
	assert.True(t, pending.CanApprove())

	dropped := Registration{Status: RegistrationApproved, Dropped: true}
	assert.False(t, dropped.CanDrop())

	rejected := Registration{Status: RegistrationRejected}
	assert.False(t, rejected.CanDrop())
	assert.False(t, rejected.CanApprove())
}
