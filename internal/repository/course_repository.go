package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const courseColumns = `c.id, c.code, c.title, c.credit_units, c.semester_number, c.level_id, c.department_id,
        c.is_elective, c.is_active, c.created_at, c.updated_at`

// CourseRepository reads the course catalog and toggles course availability.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// SetActive flips the availability flag. It reports false when the course does not exist.
func (r *CourseRepository) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	const query = `UPDATE courses SET is_active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set course active: %w", err)
	}
	return rowsChanged(res, "set course active")
}
