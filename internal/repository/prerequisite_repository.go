package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
)

// graphLockKey identifies the advisory lock serialising prerequisite edge writes.
const graphLockKey int64 = 0x70726572657173

// PrerequisiteLookup returns the direct prerequisite ids of a course.
type PrerequisiteLookup func(ctx context.Context, courseID string) ([]string, error)

// EdgeGuard inspects the graph before an edge is inserted. A non-nil error aborts the insert.
type EdgeGuard func(ctx context.Context, lookup PrerequisiteLookup) error

// PrerequisiteRepository persists course prerequisite edges.
type PrerequisiteRepository struct {
	db *sqlx.DB
}

// NewPrerequisiteRepository constructs the repository.
func NewPrerequisiteRepository(db *sqlx.DB) *PrerequisiteRepository {
	return &PrerequisiteRepository{db: db}
}

// ListPrerequisites returns the courses directly required by courseID.
func (r *PrerequisiteRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + `
        FROM course_prerequisites p
        JOIN courses c ON c.id = p.prerequisite_course_id
        WHERE p.course_id = $1
        ORDER BY c.code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return courses, nil
}

// ListDependents returns the courses that directly require courseID.
func (r *PrerequisiteRepository) ListDependents(ctx context.Context, courseID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + `
        FROM course_prerequisites p
        JOIN courses c ON c.id = p.course_id
        WHERE p.prerequisite_course_id = $1
        ORDER BY c.code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, courseID); err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	return courses, nil
}

// AddEdge runs guard and inserts the edge inside one transaction holding the graph
// advisory lock, so concurrent writers observe each other's edges. It reports
// false when the edge already existed, in which case edge is loaded from the stored row.
func (r *PrerequisiteRepository) AddEdge(ctx context.Context, edge *models.PrerequisiteEdge, guard EdgeGuard) (bool, error) {
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	created := false
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, graphLockKey); err != nil {
			return fmt.Errorf("lock prerequisite graph: %w", err)
		}
		if guard != nil {
			lookup := func(ctx context.Context, courseID string) ([]string, error) {
				return prerequisiteIDs(ctx, tx, courseID)
			}
			if err := guard(ctx, lookup); err != nil {
				return err
			}
		}
		const query = `INSERT INTO course_prerequisites (id, course_id, prerequisite_course_id, created_at)
        VALUES (:id, :course_id, :prerequisite_course_id, :created_at)
        ON CONFLICT (course_id, prerequisite_course_id) DO NOTHING`
		res, err := tx.NamedExecContext(ctx, query, edge)
		if err != nil {
			return fmt.Errorf("insert prerequisite: %w", err)
		}
		created, err = rowsChanged(res, "insert prerequisite")
		if err != nil || created {
			return err
		}
		const existing = `SELECT id, course_id, prerequisite_course_id, created_at FROM course_prerequisites
        WHERE course_id = $1 AND prerequisite_course_id = $2`
		if err := tx.GetContext(ctx, edge, existing, edge.CourseID, edge.PrerequisiteCourseID); err != nil {
			return fmt.Errorf("load existing prerequisite: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Delete removes an edge. It reports whether a row was removed.
func (r *PrerequisiteRepository) Delete(ctx context.Context, courseID, prerequisiteID string) (bool, error) {
	const query = `DELETE FROM course_prerequisites WHERE course_id = $1 AND prerequisite_course_id = $2`
	res, err := r.db.ExecContext(ctx, query, courseID, prerequisiteID)
	if err != nil {
		return false, fmt.Errorf("delete prerequisite: %w", err)
	}
	return rowsChanged(res, "delete prerequisite")
}

func prerequisiteIDs(ctx context.Context, q sqlx.QueryerContext, courseID string) ([]string, error) {
	const query = `SELECT prerequisite_course_id FROM course_prerequisites WHERE course_id = $1`
	var ids []string
	if err := sqlx.SelectContext(ctx, q, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisite ids: %w", err)
	}
	return ids, nil
}
