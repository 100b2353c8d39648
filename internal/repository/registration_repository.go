package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const registrationColumns = `r.id, r.student_id, r.course_id, r.semester_id, r.status, r.dropped, r.dropped_at,
        r.approved_by, r.approved_at, r.rejected_by, r.rejected_at, r.rejection_reason, r.created_at, r.updated_at`

// RegistrationRepository handles persistence of course registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// List returns registrations filtered by the provided criteria.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	base := `FROM registrations r
JOIN courses c ON c.id = r.course_id
JOIN students s ON s.id = r.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("r.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("r.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if !filter.IncludeDrops {
		conditions = append(conditions, "r.dropped = FALSE")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":  "r.created_at",
		"course_code": "c.code",
		"status":      "r.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "r.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s,
        c.code AS course_code, c.title AS course_title, c.credit_units
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, registrationColumns, base+clause, orderBy, order, size, offset)

	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// FindByID returns a registration by id.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations r WHERE r.id = $1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindDetailByID returns a registration joined with its course.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	query := `SELECT ` + registrationColumns + `,
        c.code AS course_code, c.title AS course_title, c.credit_units
        FROM registrations r
        JOIN courses c ON c.id = r.course_id
        WHERE r.id = $1`
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether a non-dropped registration exists for the combination.
func (r *RegistrationRepository) ExistsActive(ctx context.Context, studentID, courseID, semesterID string) (bool, error) {
	const query = `SELECT 1 FROM registrations
        WHERE student_id = $1 AND course_id = $2 AND semester_id = $3 AND dropped = FALSE LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, semesterID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active registration: %w", err)
	}
	return true, nil
}

// Create persists a new pending registration.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = now
	}
	registration.UpdatedAt = now
	if registration.Status == "" {
		registration.Status = models.RegistrationPending
	}
	const query = `INSERT INTO registrations (id, student_id, course_id, semester_id, status, dropped, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :semester_id, :status, :dropped, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// Approve moves pending, non-dropped registrations among ids to approved and
// returns the ids it changed. A non-empty departmentID limits the update to
// students of that department.
func (r *RegistrationRepository) Approve(ctx context.Context, ids []string, approverID, departmentID string, at time.Time) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	query := `UPDATE registrations r SET status = $1, approved_by = $2, approved_at = $3, updated_at = $3
        WHERE r.id = ANY($4) AND r.status = $5 AND r.dropped = FALSE`
	args := []interface{}{models.RegistrationApproved, approverID, at, pq.Array(ids), models.RegistrationPending}
	if departmentID != "" {
		query += fmt.Sprintf(" AND r.student_id IN (SELECT id FROM students WHERE department_id = $%d)", len(args)+1)
		args = append(args, departmentID)
	}
	query += " RETURNING r.id"
	var affected []string
	if err := r.db.SelectContext(ctx, &affected, query, args...); err != nil {
		return nil, fmt.Errorf("approve registrations: %w", err)
	}
	return affected, nil
}

// Reject moves a pending registration to rejected. It reports false when the row was not pending.
func (r *RegistrationRepository) Reject(ctx context.Context, id, rejectedBy, reason string, at time.Time) (bool, error) {
	const query = `UPDATE registrations SET status = $2, rejected_by = $3, rejection_reason = $4, rejected_at = $5, updated_at = $5
        WHERE id = $1 AND status = $6 AND dropped = FALSE`
	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}
	res, err := r.db.ExecContext(ctx, query, id, models.RegistrationRejected, rejectedBy, reasonArg, at, models.RegistrationPending)
	if err != nil {
		return false, fmt.Errorf("reject registration: %w", err)
	}
	return rowsChanged(res, "reject registration")
}

// Drop flags a pending or approved registration as dropped.
func (r *RegistrationRepository) Drop(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE registrations SET dropped = TRUE, dropped_at = $2, updated_at = $2
        WHERE id = $1 AND dropped = FALSE AND status IN ($3, $4)`
	res, err := r.db.ExecContext(ctx, query, id, at, models.RegistrationPending, models.RegistrationApproved)
	if err != nil {
		return false, fmt.Errorf("drop registration: %w", err)
	}
	return rowsChanged(res, "drop registration")
}

// CreditLoad sums credit units of a student's non-dropped registrations in the
// semester whose status is one of statuses.
func (r *RegistrationRepository) CreditLoad(ctx context.Context, studentID, semesterID string, statuses []models.RegistrationStatus) (int, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	const query = `SELECT COALESCE(SUM(c.credit_units), 0)
        FROM registrations r
        JOIN courses c ON c.id = r.course_id
        WHERE r.student_id = $1 AND r.semester_id = $2 AND r.dropped = FALSE AND r.status = ANY($3)`
	var load int
	if err := r.db.GetContext(ctx, &load, query, studentID, semesterID, pq.Array(names)); err != nil {
		return 0, fmt.Errorf("sum credit load: %w", err)
	}
	return load, nil
}

func rowsChanged(res sql.Result, op string) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}
