package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	applog "github.com/noah-isme/academic-records-api/pkg/logger"
)

type prerequisiteRepository interface {
	ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error)
	ListDependents(ctx context.Context, courseID string) ([]models.Course, error)
	AddEdge(ctx context.Context, edge *models.PrerequisiteEdge, guard repository.EdgeGuard) (bool, error)
	Delete(ctx context.Context, courseID, prerequisiteID string) (bool, error)
}

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SetActive(ctx context.Context, id string, active bool) (bool, error)
}

// AddPrerequisiteRequest links a course to a course it requires.
type AddPrerequisiteRequest struct {
	CourseID             string `json:"-" validate:"required"`
	PrerequisiteCourseID string `json:"prerequisite_course_id" validate:"required"`
}

// PrerequisiteService keeps the course prerequisite graph acyclic.
type PrerequisiteService struct {
	repo      prerequisiteRepository
	courses   courseRepository
	retrier   *database.Retrier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPrerequisiteService constructs PrerequisiteService.
func NewPrerequisiteService(repo prerequisiteRepository, courses courseRepository, retrier *database.Retrier, validate *validator.Validate, logger *zap.Logger) *PrerequisiteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrerequisiteService{repo: repo, courses: courses, retrier: retrier, validator: validate, logger: logger}
}

// DirectPrerequisites lists the courses a course directly requires.
func (s *PrerequisiteService) DirectPrerequisites(ctx context.Context, courseID string) ([]models.Course, error) {
	if _, err := s.loadCourse(ctx, courseID, "course"); err != nil {
		return nil, err
	}
	var courses []models.Course
	err := s.retrier.Do(ctx, "list_prerequisites", func(ctx context.Context) error {
		var err error
		courses, err = s.repo.ListPrerequisites(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to list prerequisites")
	}
	return courses, nil
}

// DirectDependents lists the courses that directly require a course.
func (s *PrerequisiteService) DirectDependents(ctx context.Context, courseID string) ([]models.Course, error) {
	if _, err := s.loadCourse(ctx, courseID, "course"); err != nil {
		return nil, err
	}
	var courses []models.Course
	err := s.retrier.Do(ctx, "list_dependents", func(ctx context.Context) error {
		var err error
		courses, err = s.repo.ListDependents(ctx, courseID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to list dependents")
	}
	return courses, nil
}

// AddPrerequisite records that req.CourseID requires req.PrerequisiteCourseID.
// Adding an existing edge is a successful no-op. An edge closing a cycle is rejected
// and leaves the graph unchanged.
func (s *PrerequisiteService) AddPrerequisite(ctx context.Context, actor models.Actor, req AddPrerequisiteRequest) (*models.PrerequisiteChange, error) {
	if err := requirePermission(actor, models.PermManageCatalog); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid prerequisite payload")
	}
	if req.CourseID == req.PrerequisiteCourseID {
		return nil, appErrors.Clone(appErrors.ErrSelfPrerequisite, "")
	}
	course, err := s.loadCourse(ctx, req.CourseID, "course")
	if err != nil {
		return nil, err
	}
	prerequisite, err := s.loadCourse(ctx, req.PrerequisiteCourseID, "prerequisite course")
	if err != nil {
		return nil, err
	}
	if err := checkDepartment(actor, course.DepartmentID); err != nil {
		return nil, err
	}

	guard := func(ctx context.Context, lookup repository.PrerequisiteLookup) error {
		cycle, err := Reachable(ctx, lookup, prerequisite.ID, course.ID)
		if err != nil {
			return err
		}
		if cycle {
			return appErrors.WithDetails(appErrors.ErrCycleDetected,
				prerequisite.Code+" already requires "+course.Code,
				map[string]interface{}{"course": course.Code, "prerequisite": prerequisite.Code})
		}
		return nil
	}

	edge := &models.PrerequisiteEdge{CourseID: course.ID, PrerequisiteCourseID: prerequisite.ID}
	var created bool
	err = s.retrier.Do(ctx, "add_prerequisite", func(ctx context.Context) error {
		var err error
		created, err = s.repo.AddEdge(ctx, edge, guard)
		return err
	})
	if err != nil {
		if appErrors.IsKind(err, appErrors.KindConstraint) {
			applog.WithContext(ctx, s.logger).Info("prerequisite rejected", zap.String("course", course.Code), zap.String("prerequisite", prerequisite.Code), zap.Error(err))
		}
		return nil, storeError(err, "failed to add prerequisite")
	}
	applog.WithContext(ctx, s.logger).Info("prerequisite added",
		zap.String("course", course.Code),
		zap.String("prerequisite", prerequisite.Code),
		zap.Bool("created", created),
		zap.String("actor", actor.UserID))
	return &models.PrerequisiteChange{Edge: *edge, Created: created}, nil
}

// RemovePrerequisite deletes an edge. Removing a missing edge matches nothing.
func (s *PrerequisiteService) RemovePrerequisite(ctx context.Context, actor models.Actor, courseID, prerequisiteID string) (*models.TransitionResult, error) {
	if err := requirePermission(actor, models.PermManageCatalog); err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, courseID, "course")
	if err != nil {
		return nil, err
	}
	if err := checkDepartment(actor, course.DepartmentID); err != nil {
		return nil, err
	}
	var removed bool
	err = s.retrier.Do(ctx, "remove_prerequisite", func(ctx context.Context) error {
		var err error
		removed, err = s.repo.Delete(ctx, courseID, prerequisiteID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to remove prerequisite")
	}
	var affected []string
	if removed {
		affected = []string{prerequisiteID}
	}
	return models.NewTransitionResult([]string{prerequisiteID}, affected), nil
}

// SetCourseActive toggles whether a course accepts new registrations.
func (s *PrerequisiteService) SetCourseActive(ctx context.Context, actor models.Actor, courseID string, active bool) (*models.Course, error) {
	if err := requirePermission(actor, models.PermManageCatalog); err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, courseID, "course")
	if err != nil {
		return nil, err
	}
	if err := checkDepartment(actor, course.DepartmentID); err != nil {
		return nil, err
	}
	err = s.retrier.Do(ctx, "set_course_active", func(ctx context.Context) error {
		_, err := s.courses.SetActive(ctx, courseID, active)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to update course")
	}
	course.IsActive = active
	return course, nil
}

func (s *PrerequisiteService) loadCourse(ctx context.Context, id, what string) (*models.Course, error) {
	var course *models.Course
	err := s.retrier.Do(ctx, "find_course", func(ctx context.Context) error {
		var err error
		course, err = s.courses.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, lookupError(err, what)
	}
	return course, nil
}

// Reachable reports whether target can be reached from start by following
// prerequisite edges. The visited set guarantees termination on graphs that
// already contain a cycle.
func Reachable(ctx context.Context, lookup repository.PrerequisiteLookup, start, target string) (bool, error) {
	if start == target {
		return true, nil
	}
	visited := map[string]struct{}{start: {}}
	stack := []string{start}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		next, err := lookup(ctx, node)
		if err != nil {
			return false, err
		}
		for _, id := range next {
			if id == target {
				return true, nil
			}
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			stack = append(stack, id)
		}
	}
	return false, nil
}

// checkDepartment limits department-scoped actors to their own department.
func checkDepartment(actor models.Actor, departmentID string) error {
	if actor.ScopedToDepartment() && departmentID != actor.DepartmentID {
		return appErrors.Clone(appErrors.ErrForbidden, "outside your department")
	}
	return nil
}
