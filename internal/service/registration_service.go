package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	applog "github.com/noah-isme/academic-records-api/pkg/logger"
)

type registrationRepository interface {
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	ExistsActive(ctx context.Context, studentID, courseID, semesterID string) (bool, error)
	Create(ctx context.Context, registration *models.Registration) error
	Approve(ctx context.Context, ids []string, approverID, departmentID string, at time.Time) ([]string, error)
	Reject(ctx context.Context, id, rejectedBy, reason string, at time.Time) (bool, error)
	Drop(ctx context.Context, id string, at time.Time) (bool, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type semesterReader interface {
	FindSemester(ctx context.Context, id string) (*models.Semester, error)
	CurrentSemester(ctx context.Context) (*models.Semester, error)
}

type prerequisiteLister interface {
	ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error)
}

type passedCourseReader interface {
	PassedCourseIDs(ctx context.Context, studentID string, courseIDs, passing []string) ([]string, error)
}

type quotaChecker interface {
	CanAdd(ctx context.Context, studentID string, course *models.Course, semesterID string) error
}

// RegisterCourseRequest asks for a pending registration. An empty
// SemesterID means the current semester.
type RegisterCourseRequest struct {
	StudentID  string `json:"student_id"`
	CourseID   string `json:"course_id" validate:"required"`
	SemesterID string `json:"semester_id"`
}

// RejectRegistrationRequest carries an optional reason.
type RejectRegistrationRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// BulkApproveRequest lists registrations to approve.
type BulkApproveRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

// RegistrationServiceParams groups constructor dependencies.
type RegistrationServiceParams struct {
	Repo          registrationRepository
	Courses       courseReader
	Students      studentReader
	Semesters     semesterReader
	Prerequisites prerequisiteLister
	Grades        passedCourseReader
	Quota         quotaChecker
	Config        config.RegistrationConfig
	Retrier       *database.Retrier
	Metrics       *MetricsService
	Validator     *validator.Validate
	Logger        *zap.Logger
}

// RegistrationService drives the registration lifecycle.
type RegistrationService struct {
	repo          registrationRepository
	courses       courseReader
	students      studentReader
	semesters     semesterReader
	prerequisites prerequisiteLister
	grades        passedCourseReader
	quota         quotaChecker
	cfg           config.RegistrationConfig
	retrier       *database.Retrier
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewRegistrationService constructs RegistrationService.
func NewRegistrationService(params RegistrationServiceParams) *RegistrationService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if len(cfg.PassingGrades) == 0 {
		cfg.PassingGrades = []string{"A", "B", "C", "D", "E"}
	}
	return &RegistrationService{
		repo:          params.Repo,
		courses:       params.Courses,
		students:      params.Students,
		semesters:     params.Semesters,
		prerequisites: params.Prerequisites,
		grades:        params.Grades,
		quota:         params.Quota,
		cfg:           cfg,
		retrier:       params.Retrier,
		metrics:       params.Metrics,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// List returns registrations visible to the actor with pagination metadata.
func (s *RegistrationService) List(ctx context.Context, actor models.Actor, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error) {
	if err := requirePermission(actor, models.PermViewRegistrations); err != nil {
		return nil, nil, err
	}
	if actor.IsStudent() {
		filter.StudentID = actor.StudentID
	}
	if actor.ScopedToDepartment() {
		filter.DepartmentID = actor.DepartmentID
	}
	var (
		items []models.RegistrationDetail
		total int
	)
	err := s.retrier.Do(ctx, "list_registrations", func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, nil, storeError(err, "failed to list registrations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one registration.
func (s *RegistrationService) Get(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error) {
	if err := requirePermission(actor, models.PermViewRegistrations); err != nil {
		return nil, err
	}
	detail, err := s.detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsStudent() && !actor.Owns(detail.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
	}
	return detail, nil
}

// Register creates a pending registration after the window, duplicate,
// prerequisite and quota checks pass, in that order.
func (s *RegistrationService) Register(ctx context.Context, actor models.Actor, req RegisterCourseRequest) (*models.RegistrationDetail, error) {
	if err := requirePermission(actor, models.PermRegisterCourses); err != nil {
		return nil, err
	}
	if actor.IsStudent() {
		if req.StudentID == "" {
			req.StudentID = actor.StudentID
		}
		if !actor.Owns(req.StudentID) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only register themselves")
		}
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}
	if req.StudentID == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "student_id is required", map[string]interface{}{"field": "student_id"})
	}

	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is inactive")
	}
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, appErrors.Clone(appErrors.ErrCourseInactive, course.Code+" is not open for registration")
	}
	semester, err := s.loadSemester(ctx, req.SemesterID)
	if err != nil {
		return nil, err
	}
	if s.cfg.EnforceWindow && !semester.RegistrationOpen(s.now()) {
		s.reject("register", "window")
		return nil, appErrors.WithDetails(appErrors.ErrRegistrationClosed, "", map[string]interface{}{
			"registration_start": semester.RegistrationStart.Format("2006-01-02"),
			"registration_end":   semester.RegistrationEnd.Format("2006-01-02"),
		})
	}

	var exists bool
	err = s.retrier.Do(ctx, "registration_exists", func(ctx context.Context) error {
		var err error
		exists, err = s.repo.ExistsActive(ctx, student.ID, course.ID, semester.ID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to check existing registration")
	}
	if exists {
		s.reject("register", "duplicate")
		return nil, duplicateRegistration(course)
	}

	if err := s.checkPrerequisites(ctx, student.ID, course); err != nil {
		s.reject("register", "prerequisites")
		return nil, err
	}
	if err := s.quota.CanAdd(ctx, student.ID, course, semester.ID); err != nil {
		if appErrors.IsKind(err, appErrors.KindConstraint) {
			s.reject("register", "quota")
		}
		return nil, err
	}

	registration := &models.Registration{
		StudentID:  student.ID,
		CourseID:   course.ID,
		SemesterID: semester.ID,
		Status:     models.RegistrationPending,
	}
	err = s.retrier.Do(ctx, "create_registration", func(ctx context.Context) error {
		return s.repo.Create(ctx, registration)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			s.reject("register", "duplicate")
			return nil, duplicateRegistration(course)
		}
		return nil, storeError(err, "failed to create registration")
	}
	s.metrics.ObserveRegistrationTransition("register", OutcomeApplied, 1)
	applog.WithContext(ctx, s.logger).Info("registration created",
		zap.String("registration_id", registration.ID),
		zap.String("student_id", student.ID),
		zap.String("course", course.Code),
		zap.String("actor", actor.UserID))
	return s.detail(ctx, registration.ID)
}

// Approve moves one pending registration to approved.
func (s *RegistrationService) Approve(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error) {
	if err := requirePermission(actor, models.PermApproveRegistrations); err != nil {
		return nil, err
	}
	registration, err := s.authorizeReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !registration.CanApprove() {
		s.metrics.ObserveRegistrationTransition("approve", OutcomeNoop, 1)
		return nil, invalidRegistrationTransition("approve", registration)
	}
	var changed []string
	err = s.retrier.Do(ctx, "approve_registration", func(ctx context.Context) error {
		var err error
		changed, err = s.repo.Approve(ctx, []string{id}, actor.UserID, "", s.now().UTC())
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to approve registration")
	}
	if len(changed) == 0 {
		s.metrics.ObserveRegistrationTransition("approve", OutcomeNoop, 1)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "registration is no longer pending")
	}
	s.metrics.ObserveRegistrationTransition("approve", OutcomeApplied, 1)
	applog.WithContext(ctx, s.logger).Info("registration approved", zap.String("registration_id", id), zap.String("actor", actor.UserID))
	return s.detail(ctx, id)
}

// BulkApprove approves the pending registrations among ids. Rows in any other
// state are skipped and reported in the result.
func (s *RegistrationService) BulkApprove(ctx context.Context, actor models.Actor, req BulkApproveRequest) (*models.TransitionResult, error) {
	if err := requirePermission(actor, models.PermApproveRegistrations); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid bulk approval payload")
	}
	ids := uniqueIDs(req.IDs)
	department := actorDepartment(actor)
	var changed []string
	err := s.retrier.Do(ctx, "bulk_approve_registrations", func(ctx context.Context) error {
		var err error
		changed, err = s.repo.Approve(ctx, ids, actor.UserID, department, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to approve registrations")
	}
	result := models.NewTransitionResult(ids, changed)
	s.metrics.ObserveRegistrationTransition("approve", OutcomeApplied, result.Affected)
	s.metrics.ObserveRegistrationTransition("approve", OutcomeNoop, len(result.SkippedIDs))
	applog.WithContext(ctx, s.logger).Info("registrations bulk approved",
		zap.Int("requested", result.Requested),
		zap.Int("affected", result.Affected),
		zap.String("actor", actor.UserID))
	return result, nil
}

// Reject moves one pending registration to rejected.
func (s *RegistrationService) Reject(ctx context.Context, actor models.Actor, id string, req RejectRegistrationRequest) (*models.RegistrationDetail, error) {
	if err := requirePermission(actor, models.PermApproveRegistrations); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid rejection payload")
	}
	registration, err := s.authorizeReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !registration.CanReject() {
		s.metrics.ObserveRegistrationTransition("reject", OutcomeNoop, 1)
		return nil, invalidRegistrationTransition("reject", registration)
	}
	var changed bool
	err = s.retrier.Do(ctx, "reject_registration", func(ctx context.Context) error {
		var err error
		changed, err = s.repo.Reject(ctx, id, actor.UserID, strings.TrimSpace(req.Reason), s.now().UTC())
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to reject registration")
	}
	if !changed {
		s.metrics.ObserveRegistrationTransition("reject", OutcomeNoop, 1)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "registration is no longer pending")
	}
	s.metrics.ObserveRegistrationTransition("reject", OutcomeApplied, 1)
	applog.WithContext(ctx, s.logger).Info("registration rejected", zap.String("registration_id", id), zap.String("actor", actor.UserID))
	return s.detail(ctx, id)
}

// Drop flags a pending or approved registration as dropped. Students may only drop their own.
func (s *RegistrationService) Drop(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error) {
	if err := requirePermission(actor, models.PermRegisterCourses); err != nil {
		return nil, err
	}
	registration, err := s.loadRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsStudent() && !actor.Owns(registration.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
	}
	if !registration.CanDrop() {
		s.metrics.ObserveRegistrationTransition("drop", OutcomeNoop, 1)
		return nil, invalidRegistrationTransition("drop", registration)
	}
	var changed bool
	err = s.retrier.Do(ctx, "drop_registration", func(ctx context.Context) error {
		var err error
		changed, err = s.repo.Drop(ctx, id, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to drop registration")
	}
	if !changed {
		s.metrics.ObserveRegistrationTransition("drop", OutcomeNoop, 1)
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "registration can no longer be dropped")
	}
	s.metrics.ObserveRegistrationTransition("drop", OutcomeApplied, 1)
	applog.WithContext(ctx, s.logger).Info("registration dropped", zap.String("registration_id", id), zap.String("actor", actor.UserID))
	return s.detail(ctx, id)
}

// checkPrerequisites verifies that every direct prerequisite has been passed.
func (s *RegistrationService) checkPrerequisites(ctx context.Context, studentID string, course *models.Course) error {
	var required []models.Course
	err := s.retrier.Do(ctx, "list_prerequisites", func(ctx context.Context) error {
		var err error
		required, err = s.prerequisites.ListPrerequisites(ctx, course.ID)
		return err
	})
	if err != nil {
		return storeError(err, "failed to load prerequisites")
	}
	if len(required) == 0 {
		return nil
	}
	ids := make([]string, len(required))
	for i, c := range required {
		ids[i] = c.ID
	}
	var passed []string
	err = s.retrier.Do(ctx, "passed_courses", func(ctx context.Context) error {
		var err error
		passed, err = s.grades.PassedCourseIDs(ctx, studentID, ids, s.cfg.PassingGrades)
		return err
	})
	if err != nil {
		return storeError(err, "failed to load passed courses")
	}
	done := make(map[string]struct{}, len(passed))
	for _, id := range passed {
		done[id] = struct{}{}
	}
	var unmet []string
	for _, c := range required {
		if _, ok := done[c.ID]; !ok {
			unmet = append(unmet, c.Code)
		}
	}
	if len(unmet) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrPrerequisitesUnmet,
		"prerequisites not satisfied for "+course.Code+": "+strings.Join(unmet, ", "),
		map[string]interface{}{"course": course.Code, "unmet": unmet})
}

// authorizeReview loads a registration and enforces department scoping for reviewers.
func (s *RegistrationService) authorizeReview(ctx context.Context, actor models.Actor, id string) (*models.Registration, error) {
	registration, err := s.loadRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ScopedToDepartment() {
		student, err := s.loadStudent(ctx, registration.StudentID)
		if err != nil {
			return nil, err
		}
		if err := checkDepartment(actor, student.DepartmentID); err != nil {
			return nil, err
		}
	}
	return registration, nil
}

func (s *RegistrationService) reject(transition, reason string) {
	s.metrics.ObserveRegistrationTransition(transition, OutcomeRejected, 1)
	s.logger.Debug("registration check failed", zap.String("transition", transition), zap.String("check", reason))
}

func (s *RegistrationService) detail(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	var detail *models.RegistrationDetail
	err := s.retrier.Do(ctx, "find_registration_detail", func(ctx context.Context) error {
		var err error
		detail, err = s.repo.FindDetailByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "registration")
	}
	return detail, nil
}

func (s *RegistrationService) loadRegistration(ctx context.Context, id string) (*models.Registration, error) {
	var registration *models.Registration
	err := s.retrier.Do(ctx, "find_registration", func(ctx context.Context) error {
		var err error
		registration, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "registration")
	}
	return registration, nil
}

func (s *RegistrationService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	var student *models.Student
	err := s.retrier.Do(ctx, "find_student", func(ctx context.Context) error {
		var err error
		student, err = s.students.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "student")
	}
	return student, nil
}

func (s *RegistrationService) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	var course *models.Course
	err := s.retrier.Do(ctx, "find_course", func(ctx context.Context) error {
		var err error
		course, err = s.courses.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "course")
	}
	return course, nil
}

func (s *RegistrationService) loadSemester(ctx context.Context, id string) (*models.Semester, error) {
	var semester *models.Semester
	err := s.retrier.Do(ctx, "find_semester", func(ctx context.Context) error {
		var err error
		if id == "" {
			semester, err = s.semesters.CurrentSemester(ctx)
		} else {
			semester, err = s.semesters.FindSemester(ctx, id)
		}
		return err
	})
	if err != nil {
		return nil, lookupError(err, "semester")
	}
	return semester, nil
}

func duplicateRegistration(course *models.Course) error {
	return appErrors.WithDetails(appErrors.ErrDuplicateRegistration,
		course.Code+" is already registered for this semester",
		map[string]interface{}{"course": course.Code})
}

func invalidRegistrationTransition(transition string, r *models.Registration) error {
	state := string(r.Status)
	if r.Dropped {
		state = "dropped"
	}
	return appErrors.WithDetails(appErrors.ErrInvalidTransition,
		"cannot "+transition+" a "+state+" registration",
		map[string]interface{}{"transition": transition, "status": string(r.Status), "dropped": r.Dropped})
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
