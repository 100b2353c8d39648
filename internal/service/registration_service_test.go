package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newRegistrationService(c *campus) *RegistrationService {
	quota := NewQuotaService(fakeRegistrations{c}, fakeStudents{c}, fakeCalendar{c}, nil, nil)
	svc := NewRegistrationService(RegistrationServiceParams{
		Repo:          fakeRegistrations{c},
		Courses:       fakeCourses{c},
		Students:      fakeStudents{c},
		Semesters:     fakeCalendar{c},
		Prerequisites: fakePrerequisites{c},
		Grades:        fakeGrades{c},
		Quota:         quota,
		Config:        config.RegistrationConfig{EnforceWindow: true},
		Metrics:       NewMetricsService(),
	})
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestRegisterCreatesPendingRegistration(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)

	detail, err := svc.Register(context.Background(), studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-2"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationPending, detail.Status)
	assert.Equal(t, "stu-1", detail.StudentID)
	assert.Equal(t, "CSC101", detail.CourseCode)
	assert.Equal(t, 3, detail.CreditUnits)
}

func TestRegisterDefaultsToCurrentSemester(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)

	detail, err := svc.Register(context.Background(), studentA, RegisterCourseRequest{CourseID: "c-101"})
	require.NoError(t, err)
	assert.Equal(t, "sem-2", detail.SemesterID)
}

func TestRegisterRequiresPassedPrerequisites(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()

	_, err := svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisitesUnmet))
	appErr := appErrors.FromError(err)
	assert.Equal(t, []string{"CSC201"}, appErr.Details["unmet"])

	failed := c.seedRegistration("stu-1", "c-201", "sem-1", models.RegistrationApproved)
	c.seedGrade(failed, 35, "F", 0, models.GradeApproved)
	_, err = svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisitesUnmet))

	passed := c.seedRegistration("stu-1", "c-201", "sem-2", models.RegistrationApproved)
	c.seedGrade(passed, 52, "C", 3, models.GradeApproved)
	detail, err := svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	require.NoError(t, err)
	assert.Equal(t, "CSC301", detail.CourseCode)
}

func TestRegisterIgnoresUnapprovedPassingGrade(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	reg := c.seedRegistration("stu-1", "c-201", "sem-1", models.RegistrationApproved)
	c.seedGrade(reg, 80, "A", 5, models.GradeSubmitted)

	_, err := svc.Register(context.Background(), studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisitesUnmet))
}

func TestRegisterAfterGradeWorkflowApprovesPrerequisite(t *testing.T) {
	c := newCampus()
	registrations := newRegistrationService(c)
	grades, _ := newGradeService(c, config.GradingConfig{})
	ctx := context.Background()

	_, err := registrations.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	require.True(t, errors.Is(err, appErrors.ErrPrerequisitesUnmet))
	assert.Equal(t, []string{"CSC201"}, appErrors.FromError(err).Details["unmet"])

	reg := c.seedRegistration("stu-1", "c-201", "sem-1", models.RegistrationApproved)
	record, err := grades.EnterGrade(ctx, lecturer, EnterGradeRequest{RegistrationID: reg, CAScore: score(30), ExamScore: score(40)})
	require.NoError(t, err)

	_, err = registrations.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisitesUnmet))

	submitted, err := grades.SubmitGrades(ctx, lecturer, SubmitGradesRequest{CourseID: "c-201", SemesterID: "sem-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{record.ID}, submitted.AffectedIDs)

	_, err = registrations.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	assert.True(t, errors.Is(err, appErrors.ErrPrerequisitesUnmet))

	approved, err := grades.ApproveGrades(ctx, hodCSC, GradeIDsRequest{IDs: []string{record.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, approved.Affected)

	detail, err := registrations.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-301", SemesterID: "sem-2"})
	require.NoError(t, err)
	assert.Equal(t, "CSC301", detail.CourseCode)
	assert.Equal(t, models.RegistrationPending, detail.Status)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()

	_, err := svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-2"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateRegistration))
	assert.True(t, appErrors.IsKind(err, appErrors.KindConstraint))
}

func TestRegisterAfterDropIsAllowed(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()

	first, err := svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-2"})
	require.NoError(t, err)
	_, err = svc.Drop(ctx, studentA, first.ID)
	require.NoError(t, err)

	second, err := svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

type uniqueViolationRepo struct{ fakeRegistrations }

func (uniqueViolationRepo) Create(ctx context.Context, registration *models.Registration) error {
	return &pq.Error{Code: "23505"}
}

func TestRegisterMapsUniqueViolationToDuplicate(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	svc.repo = uniqueViolationRepo{fakeRegistrations{c}}

	_, err := svc.Register(context.Background(), studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-2"})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateRegistration))
}

func TestRegisterEnforcesQuota(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationPending)
	c.seedRegistration("stu-1", "m-101", "sem-2", models.RegistrationApproved)
	dropped := c.seedRegistration("stu-1", "c-201", "sem-2", models.RegistrationApproved)
	c.registrations[dropped].Dropped = true

	_, err := svc.Register(context.Background(), studentA, RegisterCourseRequest{CourseID: "c-big", SemesterID: "sem-2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrQuotaExceeded))
	appErr := appErrors.FromError(err)
	assert.Equal(t, 5, appErr.Details["current"])
	assert.Equal(t, 25, appErr.Details["attempted"])
	assert.Equal(t, 24, appErr.Details["maximum"])
	assert.Contains(t, appErr.Message, "current 5, attempted 25, maximum 24")
}

func TestRegisterQuotaAllowsExactMaximum(t *testing.T) {
	c := newCampus()
	c.levels["lvl-100"].MaxCreditUnits = 22
	svc := newRegistrationService(c)
	c.seedRegistration("stu-1", "m-101", "sem-2", models.RegistrationApproved)

	_, err := svc.Register(context.Background(), studentA, RegisterCourseRequest{CourseID: "c-big", SemesterID: "sem-2"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-2"})
	assert.True(t, errors.Is(err, appErrors.ErrQuotaExceeded))
}

func TestRegisterChecksWindowAndCourse(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()

	_, err := svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-1"})
	assert.True(t, errors.Is(err, appErrors.ErrRegistrationClosed))

	_, err = svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-old", SemesterID: "sem-2"})
	assert.True(t, errors.Is(err, appErrors.ErrCourseInactive))

	_, err = svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "missing", SemesterID: "sem-2"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))

	svc.cfg.EnforceWindow = false
	_, err = svc.Register(ctx, studentA, RegisterCourseRequest{CourseID: "c-101", SemesterID: "sem-1"})
	assert.NoError(t, err)
}

func TestRegisterOwnership(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()

	_, err := svc.Register(ctx, studentA, RegisterCourseRequest{StudentID: "stu-2", CourseID: "m-101", SemesterID: "sem-2"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindForbidden))

	detail, err := svc.Register(ctx, adminUser, RegisterCourseRequest{StudentID: "stu-2", CourseID: "m-101", SemesterID: "sem-2"})
	require.NoError(t, err)
	assert.Equal(t, "stu-2", detail.StudentID)

	_, err = svc.Register(ctx, lecturer, RegisterCourseRequest{StudentID: "stu-2", CourseID: "c-101", SemesterID: "sem-2"})
	assert.True(t, appErrors.IsKind(err, appErrors.KindForbidden))
}

func TestApproveAndRejectTransitions(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()
	pending := c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationPending)
	other := c.seedRegistration("stu-1", "c-201", "sem-2", models.RegistrationPending)

	detail, err := svc.Approve(ctx, hodCSC, pending)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationApproved, detail.Status)

	_, err = svc.Approve(ctx, hodCSC, pending)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	assert.True(t, appErrors.IsKind(err, appErrors.KindState))

	_, err = svc.Reject(ctx, hodCSC, pending, RejectRegistrationRequest{Reason: "late"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	detail, err = svc.Reject(ctx, adminUser, other, RejectRegistrationRequest{Reason: "clash"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationRejected, detail.Status)
	require.NotNil(t, detail.RejectionReason)
	assert.Equal(t, "clash", *detail.RejectionReason)

	_, err = svc.Drop(ctx, studentA, other)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.Approve(ctx, studentA, pending)
	assert.True(t, appErrors.IsKind(err, appErrors.KindForbidden))
	_, err = svc.Approve(ctx, hodMTH, other)
	assert.True(t, appErrors.IsKind(err, appErrors.KindForbidden))
}

func TestBulkApproveCountsOnlyChangedRows(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	pending := c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationPending)
	approved := c.seedRegistration("stu-1", "c-201", "sem-2", models.RegistrationApproved)

	result, err := svc.BulkApprove(context.Background(), adminUser, BulkApproveRequest{IDs: []string{pending, approved, "missing", pending}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 1, result.Affected)
	assert.Equal(t, []string{pending}, result.AffectedIDs)
	assert.ElementsMatch(t, []string{approved, "missing"}, result.SkippedIDs)

	result, err = svc.BulkApprove(context.Background(), adminUser, BulkApproveRequest{IDs: []string{pending}})
	require.NoError(t, err)
	assert.True(t, result.NothingMatched())
}

func TestBulkApproveScopesHODToDepartment(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	mine := c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationPending)
	theirs := c.seedRegistration("stu-2", "m-101", "sem-2", models.RegistrationPending)

	result, err := svc.BulkApprove(context.Background(), hodCSC, BulkApproveRequest{IDs: []string{mine, theirs}})
	require.NoError(t, err)
	assert.Equal(t, []string{mine}, result.AffectedIDs)
	assert.Equal(t, models.RegistrationPending, c.registrations[theirs].Status)
}

func TestBulkApproveValidatesPayload(t *testing.T) {
	svc := newRegistrationService(newCampus())
	_, err := svc.BulkApprove(context.Background(), adminUser, BulkApproveRequest{})
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
}

func TestDropOwnership(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()
	theirs := c.seedRegistration("stu-2", "m-101", "sem-2", models.RegistrationApproved)

	_, err := svc.Drop(ctx, studentA, theirs)
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))

	detail, err := svc.Drop(ctx, adminUser, theirs)
	require.NoError(t, err)
	assert.True(t, detail.Dropped)

	_, err = svc.Drop(ctx, adminUser, theirs)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestListScopesToActor(t *testing.T) {
	c := newCampus()
	svc := newRegistrationService(c)
	ctx := context.Background()
	c.seedRegistration("stu-1", "c-101", "sem-2", models.RegistrationPending)
	c.seedRegistration("stu-2", "m-101", "sem-2", models.RegistrationPending)

	items, page, err := svc.List(ctx, studentA, models.RegistrationFilter{StudentID: "stu-2"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "stu-1", items[0].StudentID)
	assert.Equal(t, 1, page.TotalCount)

	items, _, err = svc.List(ctx, hodMTH, models.RegistrationFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "stu-2", items[0].StudentID)

	items, _, err = svc.List(ctx, bursar, models.RegistrationFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
