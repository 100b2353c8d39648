package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func TestQuotaCurrentLoadIgnoresDroppedAndRejected(t *testing.T) {
	c := newCampus()
	svc := NewQuotaService(fakeRegistrations{c}, fakeStudents{c}, fakeCalendar{c}, nil, nil)
	c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationPending)
	c.seedRegistration("stu-1", "m-101", "sem-2", models.RegistrationApproved)
	c.seedRegistration("stu-1", "c-201", "sem-2", models.RegistrationRejected)
	dropped := c.seedRegistration("stu-1", "c-301", "sem-2", models.RegistrationApproved)
	c.registrations[dropped].Dropped = true
	c.seedRegistration("stu-1", "c-big", "sem-1", models.RegistrationApproved)

	load, err := svc.CurrentLoad(context.Background(), "stu-1", "sem-2")
	require.NoError(t, err)
	assert.Equal(t, 5, load)
}

func TestQuotaCanAdd(t *testing.T) {
	c := newCampus()
	svc := NewQuotaService(fakeRegistrations{c}, fakeStudents{c}, fakeCalendar{c}, nil, nil)
	ctx := context.Background()
	c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationApproved)

	require.NoError(t, svc.CanAdd(ctx, "stu-1", c.courses["m-101"], "sem-2"))

	err := svc.CanAdd(ctx, "stu-1", &models.Course{Code: "CSC499", CreditUnits: 22}, "sem-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrQuotaExceeded))
	assert.Equal(t, "CSC499", appErrors.FromError(err).Details["course"])

	err = svc.CanAdd(ctx, "ghost", c.courses["m-101"], "sem-2")
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))

	c.students["stu-1"].LevelID = "lvl-missing"
	err = svc.CanAdd(ctx, "stu-1", c.courses["m-101"], "sem-2")
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))
}

func TestQuotaMeetsMinimumCountsApprovedOnly(t *testing.T) {
	c := newCampus()
	svc := NewQuotaService(fakeRegistrations{c}, fakeStudents{c}, fakeCalendar{c}, nil, nil)
	c.seedRegistration("stu-1", "c-big", "sem-2", models.RegistrationPending)
	c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationApproved)

	standing, err := svc.MeetsMinimum(context.Background(), "stu-1", "sem-2")
	require.NoError(t, err)
	assert.Equal(t, 3, standing.ApprovedUnits)
	assert.Equal(t, 23, standing.CurrentLoad)
	assert.False(t, standing.MeetsMinimum)
	assert.Equal(t, 24, standing.MaxCreditUnits)
}
