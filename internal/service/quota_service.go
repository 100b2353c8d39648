package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

var inFlightStatuses = []models.RegistrationStatus{models.RegistrationPending, models.RegistrationApproved}

type creditLoadReader interface {
	CreditLoad(ctx context.Context, studentID, semesterID string, statuses []models.RegistrationStatus) (int, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type levelReader interface {
	FindLevel(ctx context.Context, id string) (*models.AcademicLevel, error)
}

// QuotaService enforces per-semester credit unit bounds of a student's academic level.
type QuotaService struct {
	loads    creditLoadReader
	students studentReader
	levels   levelReader
	retrier  *database.Retrier
	logger   *zap.Logger
}

// NewQuotaService constructs QuotaService.
func NewQuotaService(loads creditLoadReader, students studentReader, levels levelReader, retrier *database.Retrier, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{loads: loads, students: students, levels: levels, retrier: retrier, logger: logger}
}

// CurrentLoad sums credit units of the student's non-dropped pending and approved registrations.
func (s *QuotaService) CurrentLoad(ctx context.Context, studentID, semesterID string) (int, error) {
	return s.load(ctx, studentID, semesterID, inFlightStatuses)
}

// CanAdd fails with a constraint error when adding course would push the
// student's load above the level maximum.
func (s *QuotaService) CanAdd(ctx context.Context, studentID string, course *models.Course, semesterID string) error {
	level, err := s.levelFor(ctx, studentID)
	if err != nil {
		return err
	}
	current, err := s.CurrentLoad(ctx, studentID, semesterID)
	if err != nil {
		return err
	}
	attempted := current + course.CreditUnits
	if attempted > level.MaxCreditUnits {
		return appErrors.WithDetails(appErrors.ErrQuotaExceeded,
			fmt.Sprintf("credit unit limit exceeded: current %d, attempted %d, maximum %d", current, attempted, level.MaxCreditUnits),
			map[string]interface{}{
				"current":   current,
				"attempted": attempted,
				"maximum":   level.MaxCreditUnits,
				"course":    course.Code,
			})
	}
	return nil
}

// MeetsMinimum reports whether the student's approved load reaches the level minimum.
func (s *QuotaService) MeetsMinimum(ctx context.Context, studentID, semesterID string) (*models.QuotaStanding, error) {
	level, err := s.levelFor(ctx, studentID)
	if err != nil {
		return nil, err
	}
	approved, err := s.load(ctx, studentID, semesterID, []models.RegistrationStatus{models.RegistrationApproved})
	if err != nil {
		return nil, err
	}
	current, err := s.CurrentLoad(ctx, studentID, semesterID)
	if err != nil {
		return nil, err
	}
	return &models.QuotaStanding{
		StudentID:      studentID,
		SemesterID:     semesterID,
		ApprovedUnits:  approved,
		CurrentLoad:    current,
		MinCreditUnits: level.MinCreditUnits,
		MaxCreditUnits: level.MaxCreditUnits,
		MeetsMinimum:   approved >= level.MinCreditUnits,
	}, nil
}

func (s *QuotaService) load(ctx context.Context, studentID, semesterID string, statuses []models.RegistrationStatus) (int, error) {
	var total int
	err := s.retrier.Do(ctx, "credit_load", func(ctx context.Context) error {
		var err error
		total, err = s.loads.CreditLoad(ctx, studentID, semesterID, statuses)
		return err
	})
	if err != nil {
		return 0, storeError(err, "failed to compute credit load")
	}
	return total, nil
}

func (s *QuotaService) levelFor(ctx context.Context, studentID string) (*models.AcademicLevel, error) {
	var student *models.Student
	err := s.retrier.Do(ctx, "find_student", func(ctx context.Context) error {
		var err error
		student, err = s.students.FindByID(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "student")
	}
	var level *models.AcademicLevel
	err = s.retrier.Do(ctx, "find_level", func(ctx context.Context) error {
		var err error
		level, err = s.levels.FindLevel(ctx, student.LevelID)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "academic level")
	}
	return level, nil
}
