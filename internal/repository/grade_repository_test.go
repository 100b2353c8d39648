package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func draftRecord(regID string) *models.GradeRecord {
	return &models.GradeRecord{RegistrationID: regID, CAScore: 30, ExamScore: 40, Total: 70, Grade: "A", GradePoint: 5, EnteredBy: "lect-1"}
}

func TestGradeRepositoryUpsertLockedRecord(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE grade_records.status = ANY($12)")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	err := repo.Upsert(context.Background(), draftRecord("reg-1"), []models.GradeStatus{models.GradeDraft})
	assert.ErrorIs(t, err, ErrGradeLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryUpsertKeepsExistingID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO grade_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("grade-1", created))

	record := draftRecord("reg-1")
	require.NoError(t, repo.Upsert(context.Background(), record, []models.GradeStatus{models.GradeDraft}))
	assert.Equal(t, "grade-1", record.ID)
	assert.Equal(t, created, record.CreatedAt)
	assert.Equal(t, models.GradeDraft, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertPartialRollsBackFailedRowOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT grade_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO grade_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("g1", time.Now()))
	mock.ExpectExec("RELEASE SAVEPOINT grade_row_0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT grade_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO grade_records").WillReturnError(errors.New("check constraint"))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT grade_row_1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rowErrs, err := repo.BulkUpsert(context.Background(), []*models.GradeRecord{draftRecord("reg-1"), draftRecord("reg-2")},
		[]models.GradeStatus{models.GradeDraft}, false)
	require.NoError(t, err)
	require.Len(t, rowErrs, 2)
	assert.NoError(t, rowErrs[0])
	assert.Error(t, rowErrs[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertAtomicAborts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO grade_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("g1", time.Now()))
	mock.ExpectQuery("INSERT INTO grade_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectRollback()

	_, err := repo.BulkUpsert(context.Background(), []*models.GradeRecord{draftRecord("reg-1"), draftRecord("reg-2")},
		[]models.GradeStatus{models.GradeDraft}, true)
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Index)
	assert.ErrorIs(t, err, ErrGradeLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryApproveSubmitted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE grade_records g SET status = $1, approved_by = $2")).
		WithArgs(models.GradeApproved, "hod-1", sqlmock.AnyArg(), sqlmock.AnyArg(), models.GradeSubmitted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id"}).AddRow("g1", "stu-1"))

	changed, err := repo.ApproveSubmitted(context.Background(), []string{"g1", "g2"}, "hod-1", "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, []models.GradeChange{{ID: "g1", StudentID: "stu-1"}}, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryApproveSubmittedScopesDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND r.course_id IN (SELECT id FROM courses WHERE department_id = $6) RETURNING g.id, r.student_id")).
		WithArgs(models.GradeApproved, "hod-1", sqlmock.AnyArg(), sqlmock.AnyArg(), models.GradeSubmitted, "dept-csc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id"}))

	changed, err := repo.ApproveSubmitted(context.Background(), []string{"g1"}, "hod-1", "dept-csc", time.Now())
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryReopenScopesDepartment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND g.status IN ($4, $5) AND r.course_id IN (SELECT id FROM courses WHERE department_id = $6)")).
		WithArgs(models.GradeDraft, sqlmock.AnyArg(), sqlmock.AnyArg(), models.GradeSubmitted, models.GradeApproved, "dept-csc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id"}).AddRow("g1", "stu-1"))

	changed, err := repo.Reopen(context.Background(), []string{"g1"}, "dept-csc", time.Now())
	require.NoError(t, err)
	assert.Equal(t, []models.GradeChange{{ID: "g1", StudentID: "stu-1"}}, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositorySubmitDrafts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE grade_records g SET status = $1, submitted_by = $2")).
		WithArgs(models.GradeSubmitted, "lect-1", sqlmock.AnyArg(), "csc301", "sem-1", models.GradeDraft).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id"}).AddRow("g1", "stu-1").AddRow("g2", "stu-2"))

	changed, err := repo.SubmitDrafts(context.Background(), "csc301", "sem-1", "lect-1", time.Now())
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryPassedCourseIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT r.course_id")).
		WithArgs("stu-1", sqlmock.AnyArg(), models.GradeApproved, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("csc201"))

	ids, err := repo.PassedCourseIDs(context.Background(), "stu-1", []string{"csc201", "mth201"}, []string{"A", "B", "C", "D", "E"})
	require.NoError(t, err)
	assert.Equal(t, []string{"csc201"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListApprovedForSemester(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	start := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"grade_id", "registration_id", "student_id", "course_id", "course_code", "course_title",
		"credit_units", "semester_id", "semester_name", "semester_number", "semester_start", "session_id", "session_name",
		"total", "grade", "grade_point"}).
		AddRow("g1", "reg-1", "stu-1", "csc201", "CSC201", "Data Structures", 3, "sem-1", "First", 1, start, "ses-1", "2023/2024", 72.0, "A", 5.0)
	mock.ExpectQuery(regexp.QuoteMeta("AND r.semester_id = $3")).
		WithArgs("stu-1", models.GradeApproved, "sem-1").
		WillReturnRows(rows)

	results, err := repo.ListApproved(context.Background(), "stu-1", "sem-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].CreditUnits)
	assert.NoError(t, mock.ExpectationsWereMet())
}
