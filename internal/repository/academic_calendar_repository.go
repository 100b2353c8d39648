package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

const semesterColumns = `id, session_id, name, number, start_date, end_date, registration_start, registration_end, is_current`

// AcademicCalendarRepository reads semesters and academic levels.
type AcademicCalendarRepository struct {
	db *sqlx.DB
}

// NewAcademicCalendarRepository constructs the repository.
func NewAcademicCalendarRepository(db *sqlx.DB) *AcademicCalendarRepository {
	return &AcademicCalendarRepository{db: db}
}

// FindSemester returns a semester by id.
func (r *AcademicCalendarRepository) FindSemester(ctx context.Context, id string) (*models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// CurrentSemester returns the semester flagged as current.
func (r *AcademicCalendarRepository) CurrentSemester(ctx context.Context) (*models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters WHERE is_current = TRUE ORDER BY start_date DESC LIMIT 1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query); err != nil {
		return nil, err
	}
	return &semester, nil
}

// FindLevel returns an academic level by id.
func (r *AcademicCalendarRepository) FindLevel(ctx context.Context, id string) (*models.AcademicLevel, error) {
	const query = `SELECT id, name, min_credit_units, max_credit_units FROM academic_levels WHERE id = $1`
	var level models.AcademicLevel
	if err := r.db.GetContext(ctx, &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}
