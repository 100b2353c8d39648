package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/grading"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	applog "github.com/noah-isme/academic-records-api/pkg/logger"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeSheetRow, error)
	FindByRegistrationID(ctx context.Context, registrationID string) (*models.GradeRecord, error)
	Upsert(ctx context.Context, record *models.GradeRecord, open []models.GradeStatus) error
	BulkUpsert(ctx context.Context, records []*models.GradeRecord, open []models.GradeStatus, atomic bool) ([]error, error)
	ListIDsByScope(ctx context.Context, courseID, semesterID string) ([]string, error)
	SubmitDrafts(ctx context.Context, courseID, semesterID, submittedBy string, at time.Time) ([]models.GradeChange, error)
	ApproveSubmitted(ctx context.Context, ids []string, approvedBy, departmentID string, at time.Time) ([]models.GradeChange, error)
	Reopen(ctx context.Context, ids []string, departmentID string, at time.Time) ([]models.GradeChange, error)
}

type registrationReader interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
}

type transcriptInvalidator interface {
	InvalidateTranscripts(ctx context.Context, studentIDs ...string)
}

// EnterGradeRequest carries the two score components of one registration.
type EnterGradeRequest struct {
	RegistrationID string   `json:"registration_id" validate:"required"`
	CAScore        *float64 `json:"ca_score" validate:"required,gte=0,lte=40"`
	ExamScore      *float64 `json:"exam_score" validate:"required,gte=0,lte=60"`
}

// BulkEnterGradesRequest enters many grades at once. Mode defaults to the configured bulk mode.
type BulkEnterGradesRequest struct {
	Mode  string              `json:"mode" validate:"omitempty,oneof=partial atomic"`
	Items []EnterGradeRequest `json:"items" validate:"required,min=1,max=1000"`
}

// BulkGradesResult summarises a bulk entry.
type BulkGradesResult struct {
	Mode         string               `json:"mode"`
	SuccessCount int                  `json:"success_count"`
	Failures     []BulkGradeFailure   `json:"failures,omitempty"`
	Records      []models.GradeRecord `json:"records,omitempty"`
}

// BulkGradeFailure captures one rejected row.
type BulkGradeFailure struct {
	Index          int            `json:"index"`
	RegistrationID string         `json:"registration_id"`
	Reason         string         `json:"reason"`
	Kind           appErrors.Kind `json:"kind"`
}

// SubmitGradesRequest scopes a submission to one course offering.
type SubmitGradesRequest struct {
	CourseID   string `json:"course_id" validate:"required"`
	SemesterID string `json:"semester_id" validate:"required"`
}

// GradeIDsRequest lists grade records for approval or reopening.
type GradeIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000,dive,required"`
}

// GradeServiceParams groups constructor dependencies.
type GradeServiceParams struct {
	Repo          gradeRepository
	Registrations registrationReader
	Courses       courseReader
	Scale         *grading.Scale
	Transcripts   transcriptInvalidator
	Config        config.GradingConfig
	Retrier       *database.Retrier
	Metrics       *MetricsService
	Validator     *validator.Validate
	Logger        *zap.Logger
}

// GradeService runs the draft, submitted, approved grade pipeline.
type GradeService struct {
	repo          gradeRepository
	registrations registrationReader
	courses       courseReader
	scale         *grading.Scale
	transcripts   transcriptInvalidator
	cfg           config.GradingConfig
	retrier       *database.Retrier
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewGradeService constructs GradeService.
func NewGradeService(params GradeServiceParams) *GradeService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scale := params.Scale
	if scale == nil {
		scale = grading.DefaultScale()
	}
	cfg := params.Config
	if cfg.BulkMode != config.BulkModeAtomic {
		cfg.BulkMode = config.BulkModePartial
	}
	return &GradeService{
		repo:          params.Repo,
		registrations: params.Registrations,
		courses:       params.Courses,
		scale:         scale,
		transcripts:   params.Transcripts,
		cfg:           cfg,
		retrier:       params.Retrier,
		metrics:       params.Metrics,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// ListGrades returns a grade sheet.
func (s *GradeService) ListGrades(ctx context.Context, actor models.Actor, filter models.GradeFilter) ([]models.GradeSheetRow, error) {
	if err := requirePermission(actor, models.PermViewGrades); err != nil {
		return nil, err
	}
	var rows []models.GradeSheetRow
	err := s.retrier.Do(ctx, "list_grades", func(ctx context.Context) error {
		var err error
		rows, err = s.repo.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to list grades")
	}
	return rows, nil
}

// EnterGrade records scores for an approved registration as a draft.
func (s *GradeService) EnterGrade(ctx context.Context, actor models.Actor, req EnterGradeRequest) (*models.GradeRecord, error) {
	if err := requirePermission(actor, models.PermEnterGrades); err != nil {
		return nil, err
	}
	record, err := s.prepare(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	err = s.retrier.Do(ctx, "upsert_grade", func(ctx context.Context) error {
		return s.repo.Upsert(ctx, record, s.openStatuses())
	})
	if err != nil {
		return nil, s.upsertError(err)
	}
	s.metrics.ObserveGradeTransition("enter", 1)
	applog.WithContext(ctx, s.logger).Info("grade entered",
		zap.String("registration_id", record.RegistrationID),
		zap.Float64("total", record.Total),
		zap.String("grade", record.Grade),
		zap.String("actor", actor.UserID))
	return record, nil
}

// BulkEnterGrades enters many grades in one transaction. In partial mode each
// failing row is rolled back alone and reported while the rest commit. In
// atomic mode any failure aborts the whole batch.
func (s *GradeService) BulkEnterGrades(ctx context.Context, actor models.Actor, req BulkEnterGradesRequest) (*BulkGradesResult, error) {
	if err := requirePermission(actor, models.PermEnterGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk grade payload")
	}
	mode := req.Mode
	if mode == "" {
		mode = s.cfg.BulkMode
	}
	atomic := mode == config.BulkModeAtomic
	result := &BulkGradesResult{Mode: mode}

	records := make([]*models.GradeRecord, 0, len(req.Items))
	positions := make([]int, 0, len(req.Items))
	for i, item := range req.Items {
		record, err := s.prepare(ctx, actor, item)
		if err != nil {
			if atomic {
				return nil, rowFailure(i, item.RegistrationID, err)
			}
			result.Failures = append(result.Failures, newBulkFailure(i, item.RegistrationID, err))
			continue
		}
		records = append(records, record)
		positions = append(positions, i)
	}

	if len(records) > 0 {
		var rowErrs []error
		err := s.retrier.Do(ctx, "bulk_upsert_grades", func(ctx context.Context) error {
			var err error
			rowErrs, err = s.repo.BulkUpsert(ctx, records, s.openStatuses(), atomic)
			return err
		})
		if err != nil {
			var rowErr *repository.RowError
			if errors.As(err, &rowErr) && rowErr.Index < len(records) {
				idx := positions[rowErr.Index]
				return nil, rowFailure(idx, req.Items[idx].RegistrationID, s.upsertError(rowErr.Err))
			}
			return nil, storeError(err, "failed to save grades")
		}
		for i, record := range records {
			if i < len(rowErrs) && rowErrs[i] != nil {
				idx := positions[i]
				result.Failures = append(result.Failures, newBulkFailure(idx, record.RegistrationID, s.upsertError(rowErrs[i])))
				continue
			}
			result.SuccessCount++
			result.Records = append(result.Records, *record)
		}
	}

	s.metrics.ObserveGradeTransition("enter", result.SuccessCount)
	applog.WithContext(ctx, s.logger).Info("grades bulk entered",
		zap.String("mode", mode),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", len(result.Failures)),
		zap.String("actor", actor.UserID))
	return result, nil
}

// SubmitGrades moves every draft grade of a course offering to submitted.
// Records in any other state are left untouched.
func (s *GradeService) SubmitGrades(ctx context.Context, actor models.Actor, req SubmitGradesRequest) (*models.TransitionResult, error) {
	if err := requirePermission(actor, models.PermEnterGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	if err := s.checkCourseDepartment(ctx, actor, req.CourseID); err != nil {
		return nil, err
	}
	var scope []string
	err := s.retrier.Do(ctx, "list_grade_scope", func(ctx context.Context) error {
		var err error
		scope, err = s.repo.ListIDsByScope(ctx, req.CourseID, req.SemesterID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to load grades")
	}
	var changed []models.GradeChange
	err = s.retrier.Do(ctx, "submit_grades", func(ctx context.Context) error {
		var err error
		changed, err = s.repo.SubmitDrafts(ctx, req.CourseID, req.SemesterID, actor.UserID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to submit grades")
	}
	result := models.NewTransitionResult(scope, changeIDs(changed))
	s.metrics.ObserveGradeTransition("submit", result.Affected)
	applog.WithContext(ctx, s.logger).Info("grades submitted",
		zap.String("course_id", req.CourseID),
		zap.String("semester_id", req.SemesterID),
		zap.Int("affected", result.Affected),
		zap.String("actor", actor.UserID))
	return result, nil
}

// ApproveGrades moves the submitted grades among the ids to approved. Other ids are skipped.
func (s *GradeService) ApproveGrades(ctx context.Context, actor models.Actor, req GradeIDsRequest) (*models.TransitionResult, error) {
	if err := requirePermission(actor, models.PermApproveGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid approval payload")
	}
	ids := uniqueIDs(req.IDs)
	var changed []models.GradeChange
	err := s.retrier.Do(ctx, "approve_grades", func(ctx context.Context) error {
		var err error
		changed, err = s.repo.ApproveSubmitted(ctx, ids, actor.UserID, actorDepartment(actor), s.now().UTC())
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to approve grades")
	}
	s.invalidate(ctx, changed)
	result := models.NewTransitionResult(ids, changeIDs(changed))
	s.metrics.ObserveGradeTransition("approve", result.Affected)
	applog.WithContext(ctx, s.logger).Info("grades approved", zap.Int("requested", result.Requested), zap.Int("affected", result.Affected), zap.String("actor", actor.UserID))
	return result, nil
}

// ReopenGrades returns submitted or approved grades to draft so they can be re-entered.
func (s *GradeService) ReopenGrades(ctx context.Context, actor models.Actor, req GradeIDsRequest) (*models.TransitionResult, error) {
	if err := requirePermission(actor, models.PermReopenGrades); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reopen payload")
	}
	ids := uniqueIDs(req.IDs)
	var changed []models.GradeChange
	err := s.retrier.Do(ctx, "reopen_grades", func(ctx context.Context) error {
		var err error
		changed, err = s.repo.Reopen(ctx, ids, actorDepartment(actor), s.now().UTC())
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to reopen grades")
	}
	s.invalidate(ctx, changed)
	result := models.NewTransitionResult(ids, changeIDs(changed))
	s.metrics.ObserveGradeTransition("reopen", result.Affected)
	applog.WithContext(ctx, s.logger).Warn("grades reopened", zap.Strings("ids", result.AffectedIDs), zap.String("actor", actor.UserID))
	return result, nil
}

// prepare validates one entry and derives its grade. It does not write.
func (s *GradeService) prepare(ctx context.Context, actor models.Actor, req EnterGradeRequest) (*models.GradeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "scores out of range: ca must be 0-40 and exam 0-60")
	}
	var registration *models.Registration
	err := s.retrier.Do(ctx, "find_registration", func(ctx context.Context) error {
		var err error
		registration, err = s.registrations.FindByID(ctx, req.RegistrationID)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "registration")
	}
	if registration.Dropped || registration.Status != models.RegistrationApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "grades can only be entered for approved registrations")
	}
	if err := s.checkCourseDepartment(ctx, actor, registration.CourseID); err != nil {
		return nil, err
	}

	var existing *models.GradeRecord
	err = s.retrier.Do(ctx, "find_grade", func(ctx context.Context) error {
		var err error
		existing, err = s.repo.FindByRegistrationID(ctx, req.RegistrationID)
		return err
	})
	if err != nil && !errors.Is(lookupError(err, "grade"), appErrors.ErrNotFound) {
		return nil, storeError(err, "failed to load grade")
	}
	if err == nil && existing != nil {
		switch existing.Status {
		case models.GradeSubmitted:
			if !s.cfg.AllowSubmittedReentry {
				return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "grade is submitted; reopen it before re-entry")
			}
			applog.WithContext(ctx, s.logger).Warn("submitted grade reset to draft by re-entry",
				zap.String("grade_id", existing.ID),
				zap.String("actor", actor.UserID))
		case models.GradeApproved:
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "grade is approved; reopen it before re-entry")
		}
	}

	total := *req.CAScore + *req.ExamScore
	grade := s.scale.Grade(total)
	return &models.GradeRecord{
		RegistrationID: req.RegistrationID,
		CAScore:        *req.CAScore,
		ExamScore:      *req.ExamScore,
		Total:          total,
		Grade:          grade.Letter,
		GradePoint:     grade.Point,
		Status:         models.GradeDraft,
		EnteredBy:      actor.UserID,
	}, nil
}

// checkCourseDepartment keeps department-scoped actors on their own department's courses.
func (s *GradeService) checkCourseDepartment(ctx context.Context, actor models.Actor, courseID string) error {
	if !actor.ScopedToDepartment() {
		return nil
	}
	var course *models.Course
	err := s.retrier.Do(ctx, "find_course", func(ctx context.Context) error {
		var err error
		course, err = s.courses.FindByID(ctx, courseID)
		return err
	})
	if err != nil {
		return lookupError(err, "course")
	}
	return checkDepartment(actor, course.DepartmentID)
}

func actorDepartment(actor models.Actor) string {
	if actor.ScopedToDepartment() {
		return actor.DepartmentID
	}
	return ""
}

func (s *GradeService) openStatuses() []models.GradeStatus {
	if s.cfg.AllowSubmittedReentry {
		return []models.GradeStatus{models.GradeDraft, models.GradeSubmitted}
	}
	return []models.GradeStatus{models.GradeDraft}
}

func (s *GradeService) upsertError(err error) error {
	if errors.Is(err, repository.ErrGradeLocked) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "grade is no longer open for entry")
	}
	return storeError(err, "failed to save grade")
}

func (s *GradeService) invalidate(ctx context.Context, changed []models.GradeChange) {
	if s.transcripts == nil || len(changed) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(changed))
	students := make([]string, 0, len(changed))
	for _, c := range changed {
		if _, ok := seen[c.StudentID]; ok {
			continue
		}
		seen[c.StudentID] = struct{}{}
		students = append(students, c.StudentID)
	}
	s.transcripts.InvalidateTranscripts(ctx, students...)
}

func changeIDs(changed []models.GradeChange) []string {
	ids := make([]string, len(changed))
	for i, c := range changed {
		ids[i] = c.ID
	}
	return ids
}

func newBulkFailure(index int, registrationID string, err error) BulkGradeFailure {
	appErr := appErrors.FromError(err)
	return BulkGradeFailure{Index: index, RegistrationID: registrationID, Reason: appErr.Message, Kind: appErr.Kind}
}

// rowFailure reports the row that aborted an atomic batch, keeping the row's error kind.
func rowFailure(index int, registrationID string, err error) error {
	appErr := appErrors.FromError(err)
	return appErrors.WithDetails(appErr, fmt.Sprintf("row %d (%s): %s; no grades were saved", index, registrationID, appErr.Message),
		map[string]interface{}{"index": index, "registration_id": registrationID})
}
