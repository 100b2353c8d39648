package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
)

// ErrGradeLocked is returned when an upsert finds the record in a status that
// does not accept score entry.
var ErrGradeLocked = errors.New("grade record is not open for entry")

// RowError identifies the batch row that aborted an all-or-nothing write.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Index, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

const gradeColumns = `g.id, g.registration_id, g.ca_score, g.exam_score, g.total, g.grade, g.grade_point, g.status,
        g.entered_by, g.submitted_by, g.submitted_at, g.approved_by, g.approved_at, g.created_at, g.updated_at`

// GradeRepository handles grade record persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns the grade sheet rows matching the filter.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeSheetRow, error) {
	query := `SELECT ` + gradeColumns + `,
        r.student_id, s.matric_number, s.full_name AS student_name, r.course_id, c.code AS course_code, r.semester_id
        FROM grade_records g
        JOIN registrations r ON r.id = g.registration_id
        JOIN students s ON s.id = r.student_id
        JOIN courses c ON c.id = r.course_id
        WHERE 1=1`
	var args []interface{}
	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND r.course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != "" {
		query += fmt.Sprintf(" AND r.semester_id = $%d", len(args)+1)
		args = append(args, filter.SemesterID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND r.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND g.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY s.matric_number"
	var rows []models.GradeSheetRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return rows, nil
}

// FindByRegistrationID returns the grade record of a registration.
func (r *GradeRepository) FindByRegistrationID(ctx context.Context, registrationID string) (*models.GradeRecord, error) {
	query := `SELECT ` + gradeColumns + ` FROM grade_records g WHERE g.registration_id = $1`
	var record models.GradeRecord
	if err := r.db.GetContext(ctx, &record, query, registrationID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert writes a draft grade keyed by registration. An existing record is only
// overwritten while its status is one of open; otherwise ErrGradeLocked is returned.
func (r *GradeRepository) Upsert(ctx context.Context, record *models.GradeRecord, open []models.GradeStatus) error {
	return upsertGrade(ctx, r.db, record, open)
}

// BulkUpsert writes records in one transaction. With atomic set the first failure
// rolls back the batch and is returned as a *RowError. Otherwise each row runs in
// its own savepoint, failed rows are rolled back alone and reported by index in
// the returned slice, and the rest commit.
func (r *GradeRepository) BulkUpsert(ctx context.Context, records []*models.GradeRecord, open []models.GradeStatus, atomic bool) ([]error, error) {
	rowErrs := make([]error, len(records))
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for i, record := range records {
			if atomic {
				if err := upsertGrade(ctx, tx, record, open); err != nil {
					return &RowError{Index: i, Err: err}
				}
				continue
			}
			name := fmt.Sprintf("grade_row_%d", i)
			if err := database.Savepoint(ctx, tx, name, func() error {
				return upsertGrade(ctx, tx, record, open)
			}); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				rowErrs[i] = err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rowErrs, nil
}

// ListIDsByScope returns ids of all grade records for a course offering.
func (r *GradeRepository) ListIDsByScope(ctx context.Context, courseID, semesterID string) ([]string, error) {
	const query = `SELECT g.id FROM grade_records g
        JOIN registrations r ON r.id = g.registration_id
        WHERE r.course_id = $1 AND r.semester_id = $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseID, semesterID); err != nil {
		return nil, fmt.Errorf("list grade ids: %w", err)
	}
	return ids, nil
}

// SubmitDrafts moves every draft record of a course offering to submitted.
func (r *GradeRepository) SubmitDrafts(ctx context.Context, courseID, semesterID, submittedBy string, at time.Time) ([]models.GradeChange, error) {
	const query = `UPDATE grade_records g SET status = $1, submitted_by = $2, submitted_at = $3, updated_at = $3
        FROM registrations r
        WHERE g.registration_id = r.id AND r.course_id = $4 AND r.semester_id = $5 AND g.status = $6
        RETURNING g.id, r.student_id`
	var changed []models.GradeChange
	if err := r.db.SelectContext(ctx, &changed, query, models.GradeSubmitted, submittedBy, at, courseID, semesterID, models.GradeDraft); err != nil {
		return nil, fmt.Errorf("submit grades: %w", err)
	}
	return changed, nil
}

// ApproveSubmitted moves submitted records among ids to approved. A non-empty
// departmentID limits the update to that department's courses.
func (r *GradeRepository) ApproveSubmitted(ctx context.Context, ids []string, approvedBy, departmentID string, at time.Time) ([]models.GradeChange, error) {
	if len(ids) == 0 {
		return []models.GradeChange{}, nil
	}
	query := `UPDATE grade_records g SET status = $1, approved_by = $2, approved_at = $3, updated_at = $3
        FROM registrations r
        WHERE g.registration_id = r.id AND g.id = ANY($4) AND g.status = $5`
	args := []interface{}{models.GradeApproved, approvedBy, at, pq.Array(ids), models.GradeSubmitted}
	query, args = courseDepartmentFilter(query, args, departmentID)
	query += " RETURNING g.id, r.student_id"
	var changed []models.GradeChange
	if err := r.db.SelectContext(ctx, &changed, query, args...); err != nil {
		return nil, fmt.Errorf("approve grades: %w", err)
	}
	return changed, nil
}

// Reopen returns submitted or approved records among ids to draft and clears
// their stamps. departmentID scopes it like ApproveSubmitted.
func (r *GradeRepository) Reopen(ctx context.Context, ids []string, departmentID string, at time.Time) ([]models.GradeChange, error) {
	if len(ids) == 0 {
		return []models.GradeChange{}, nil
	}
	query := `UPDATE grade_records g SET status = $1, submitted_by = NULL, submitted_at = NULL,
        approved_by = NULL, approved_at = NULL, updated_at = $2
        FROM registrations r
        WHERE g.registration_id = r.id AND g.id = ANY($3) AND g.status IN ($4, $5)`
	args := []interface{}{models.GradeDraft, at, pq.Array(ids), models.GradeSubmitted, models.GradeApproved}
	query, args = courseDepartmentFilter(query, args, departmentID)
	query += " RETURNING g.id, r.student_id"
	var changed []models.GradeChange
	if err := r.db.SelectContext(ctx, &changed, query, args...); err != nil {
		return nil, fmt.Errorf("reopen grades: %w", err)
	}
	return changed, nil
}

func courseDepartmentFilter(query string, args []interface{}, departmentID string) (string, []interface{}) {
	if departmentID == "" {
		return query, args
	}
	args = append(args, departmentID)
	return query + fmt.Sprintf(" AND r.course_id IN (SELECT id FROM courses WHERE department_id = $%d)", len(args)), args
}

// PassedCourseIDs returns the subset of courseIDs for which the student holds an
// approved grade whose letter is in passing, in any semester.
func (r *GradeRepository) PassedCourseIDs(ctx context.Context, studentID string, courseIDs, passing []string) ([]string, error) {
	if len(courseIDs) == 0 {
		return []string{}, nil
	}
	const query = `SELECT DISTINCT r.course_id
        FROM grade_records g
        JOIN registrations r ON r.id = g.registration_id
        WHERE r.student_id = $1 AND r.course_id = ANY($2) AND g.status = $3 AND g.grade = ANY($4)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID, pq.Array(courseIDs), models.GradeApproved, pq.Array(passing)); err != nil {
		return nil, fmt.Errorf("list passed courses: %w", err)
	}
	return ids, nil
}

// ListApproved returns a student's approved results ordered by session then
// semester. An empty semesterID spans every semester.
func (r *GradeRepository) ListApproved(ctx context.Context, studentID, semesterID string) ([]models.ApprovedResult, error) {
	query := `SELECT g.id AS grade_id, g.registration_id, r.student_id, r.course_id,
        c.code AS course_code, c.title AS course_title, c.credit_units,
        r.semester_id, sm.name AS semester_name, sm.number AS semester_number, sm.start_date AS semester_start,
        se.id AS session_id, se.name AS session_name,
        g.total, g.grade, g.grade_point
        FROM grade_records g
        JOIN registrations r ON r.id = g.registration_id
        JOIN courses c ON c.id = r.course_id
        JOIN semesters sm ON sm.id = r.semester_id
        JOIN sessions se ON se.id = sm.session_id
        WHERE r.student_id = $1 AND g.status = $2`
	args := []interface{}{studentID, models.GradeApproved}
	if semesterID != "" {
		query += fmt.Sprintf(" AND r.semester_id = $%d", len(args)+1)
		args = append(args, semesterID)
	}
	query += " ORDER BY sm.start_date, sm.number, c.code"
	var results []models.ApprovedResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("list approved results: %w", err)
	}
	return results, nil
}

func upsertGrade(ctx context.Context, q sqlx.QueryerContext, record *models.GradeRecord, open []models.GradeStatus) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Status = models.GradeDraft
	names := make([]string, len(open))
	for i, s := range open {
		names[i] = string(s)
	}
	const query = `INSERT INTO grade_records (id, registration_id, ca_score, exam_score, total, grade, grade_point, status, entered_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (registration_id) DO UPDATE SET
            ca_score = EXCLUDED.ca_score, exam_score = EXCLUDED.exam_score, total = EXCLUDED.total,
            grade = EXCLUDED.grade, grade_point = EXCLUDED.grade_point, status = EXCLUDED.status,
            entered_by = EXCLUDED.entered_by, submitted_by = NULL, submitted_at = NULL,
            approved_by = NULL, approved_at = NULL, updated_at = EXCLUDED.updated_at
        WHERE grade_records.status = ANY($12)
        RETURNING id, created_at`
	err := q.QueryRowxContext(ctx, query,
		record.ID, record.RegistrationID, record.CAScore, record.ExamScore, record.Total,
		record.Grade, record.GradePoint, record.Status, record.EnteredBy, record.CreatedAt, record.UpdatedAt,
		pq.Array(names),
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGradeLocked
		}
		return fmt.Errorf("upsert grade %s: %w", record.RegistrationID, err)
	}
	return nil
}
