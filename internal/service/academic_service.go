package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/academic-records-api/internal/grading"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/export"
	applog "github.com/noah-isme/academic-records-api/pkg/logger"
)

// Transcript export formats.
const (
	TranscriptFormatCSV = "csv"
	TranscriptFormatPDF = "pdf"
)

const transcriptCachePrefix = "transcript:"

var filenameSafe = strings.NewReplacer("/", "-", "\\", "-", " ", "_", "\"", "")

type approvedResultReader interface {
	ListApproved(ctx context.Context, studentID, semesterID string) ([]models.ApprovedResult, error)
}

type standingReader interface {
	MeetsMinimum(ctx context.Context, studentID, semesterID string) (*models.QuotaStanding, error)
}

type transcriptCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// ExportedFile is a rendered transcript ready to be streamed.
type ExportedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// AcademicServiceParams groups constructor dependencies.
type AcademicServiceParams struct {
	Results       approvedResultReader
	Students      studentReader
	Quota         standingReader
	Scale         *grading.Scale
	PassingGrades []string
	Cache         transcriptCache
	CacheTTL      time.Duration
	Retrier       *database.Retrier
	Logger        *zap.Logger
}

// AcademicService aggregates approved grades into GPA, CGPA and transcripts.
type AcademicService struct {
	results  approvedResultReader
	students studentReader
	quota    standingReader
	scale    *grading.Scale
	passing  map[string]struct{}
	cache    transcriptCache
	cacheTTL time.Duration
	retrier  *database.Retrier
	logger   *zap.Logger
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	group    singleflight.Group
	now      func() time.Time

	genMu       sync.Mutex
	generations map[string]uint64
}

// NewAcademicService constructs AcademicService.
func NewAcademicService(params AcademicServiceParams) *AcademicService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scale := params.Scale
	if scale == nil {
		scale = grading.DefaultScale()
	}
	grades := params.PassingGrades
	if len(grades) == 0 {
		grades = []string{"A", "B", "C", "D", "E"}
	}
	passing := make(map[string]struct{}, len(grades))
	for _, g := range grades {
		passing[strings.ToUpper(g)] = struct{}{}
	}
	return &AcademicService{
		results:  params.Results,
		students: params.Students,
		quota:    params.Quota,
		scale:    scale,
		passing:  passing,
		cache:    params.Cache,
		cacheTTL: params.CacheTTL,
		retrier:  params.Retrier,
		logger:   logger,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		now:      time.Now,

		generations: make(map[string]uint64),
	}
}

// CalculateGPA averages the student's approved results for one semester.
func (s *AcademicService) CalculateGPA(ctx context.Context, actor models.Actor, studentID, semesterID string) (*models.GPAReport, error) {
	if err := s.authorize(actor, studentID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(semesterID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semesterId is required")
	}
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	results, err := s.approved(ctx, studentID, semesterID)
	if err != nil {
		return nil, err
	}
	avg := grading.WeightedAverage(weights(results))
	return &models.GPAReport{
		StudentID:         studentID,
		SemesterID:        semesterID,
		GPA:               avg.Value,
		TotalCreditUnits:  avg.TotalCreditUnits,
		TotalQualityPoint: avg.TotalQualityPoint,
	}, nil
}

// CalculateCGPA averages every approved result the student holds.
func (s *AcademicService) CalculateCGPA(ctx context.Context, actor models.Actor, studentID string) (*models.GPAReport, error) {
	if err := s.authorize(actor, studentID); err != nil {
		return nil, err
	}
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	results, err := s.approved(ctx, studentID, "")
	if err != nil {
		return nil, err
	}
	avg := grading.WeightedAverage(weights(results))
	return &models.GPAReport{
		StudentID:         studentID,
		GPA:               avg.Value,
		TotalCreditUnits:  avg.TotalCreditUnits,
		TotalQualityPoint: avg.TotalQualityPoint,
		Classification:    s.scale.Classify(avg.Value),
	}, nil
}

// ClassOfDegree maps a CGPA to its classification.
func (s *AcademicService) ClassOfDegree(cgpa float64) (string, error) {
	if cgpa < 0 || cgpa > s.maxPoint() {
		return "", appErrors.WithDetails(appErrors.ErrValidation, "cgpa out of range",
			map[string]interface{}{"minimum": 0, "maximum": s.maxPoint()})
	}
	return s.scale.Classify(cgpa), nil
}

// AcademicStanding reports a semester GPA, the running CGPA and whether the
// semester's approved load reaches the level minimum.
func (s *AcademicService) AcademicStanding(ctx context.Context, actor models.Actor, studentID, semesterID string) (*models.AcademicStanding, error) {
	gpa, err := s.CalculateGPA(ctx, actor, studentID, semesterID)
	if err != nil {
		return nil, err
	}
	cgpa, err := s.CalculateCGPA(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	quota, err := s.quota.MeetsMinimum(ctx, studentID, semesterID)
	if err != nil {
		return nil, err
	}
	return &models.AcademicStanding{
		StudentID:      studentID,
		SemesterID:     semesterID,
		GPA:            gpa.GPA,
		CGPA:           cgpa.GPA,
		Classification: cgpa.Classification,
		Quota:          *quota,
	}, nil
}

// GenerateTranscript builds the student's transcript from approved grades.
// Concurrent builds for one student share a single load.
func (s *AcademicService) GenerateTranscript(ctx context.Context, actor models.Actor, studentID string) (*models.Transcript, error) {
	if err := s.authorize(actor, studentID); err != nil {
		return nil, err
	}
	key := transcriptCachePrefix + studentID
	var cached models.Transcript
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	gen := s.generation(studentID)
	flightKey := key + "@" + strconv.FormatUint(gen, 10)
	v, err, shared := s.group.Do(flightKey, func() (interface{}, error) {
		transcript, err := s.buildTranscript(ctx, studentID)
		if err != nil {
			return nil, err
		}
		// An invalidation during the build means the results may be stale.
		if s.cache != nil && s.generation(studentID) == gen {
			s.cache.Set(ctx, key, transcript, s.cacheTTL)
		}
		return transcript, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		applog.WithContext(ctx, s.logger).Debug("transcript build shared", zap.String("student_id", studentID))
	}
	return cloneTranscript(v.(*models.Transcript)), nil
}

// InvalidateTranscripts drops cached transcripts after grade changes. Builds
// already in flight for these students will not populate the cache.
func (s *AcademicService) InvalidateTranscripts(ctx context.Context, studentIDs ...string) {
	if len(studentIDs) == 0 {
		return
	}
	s.genMu.Lock()
	for _, id := range studentIDs {
		s.generations[id]++
	}
	s.genMu.Unlock()
	if s.cache == nil {
		return
	}
	keys := make([]string, len(studentIDs))
	for i, id := range studentIDs {
		keys[i] = transcriptCachePrefix + id
	}
	s.cache.Invalidate(ctx, keys...)
}

func (s *AcademicService) generation(studentID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[studentID]
}

// cloneTranscript copies t down to the course slices so callers sharing one
// build cannot see each other's edits.
func cloneTranscript(t *models.Transcript) *models.Transcript {
	out := *t
	out.Semesters = make([]models.TranscriptSemester, len(t.Semesters))
	for i, sem := range t.Semesters {
		sem.Courses = append([]models.TranscriptCourse(nil), sem.Courses...)
		out.Semesters[i] = sem
	}
	return &out
}

// ExportTranscript renders the transcript as CSV or PDF.
func (s *AcademicService) ExportTranscript(ctx context.Context, actor models.Actor, studentID, format string) (*ExportedFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = TranscriptFormatPDF
	}
	if format != TranscriptFormatCSV && format != TranscriptFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	transcript, err := s.GenerateTranscript(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}
	doc := transcriptDocument(transcript)
	ref := transcript.Student.MatricNumber
	if ref == "" {
		ref = studentID
	}
	name := "transcript_" + filenameSafe.Replace(ref)

	var (
		content     []byte
		contentType string
	)
	switch format {
	case TranscriptFormatCSV:
		content, err = s.csv.Render(doc)
		contentType = "text/csv"
	default:
		content, err = s.pdf.Render(doc)
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to render transcript")
	}
	applog.WithContext(ctx, s.logger).Info("transcript exported", zap.String("student_id", studentID), zap.String("format", format), zap.String("actor", actor.UserID))
	return &ExportedFile{Filename: name + "." + format, ContentType: contentType, Content: content}, nil
}

func (s *AcademicService) buildTranscript(ctx context.Context, studentID string) (*models.Transcript, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	results, err := s.approved(ctx, studentID, "")
	if err != nil {
		return nil, err
	}

	transcript := &models.Transcript{Student: *student, Semesters: []models.TranscriptSemester{}, GeneratedAt: s.now().UTC()}
	index := make(map[string]int)
	perSemester := make(map[string][]grading.Weighted)
	for _, r := range results {
		i, ok := index[r.SemesterID]
		if !ok {
			i = len(transcript.Semesters)
			index[r.SemesterID] = i
			transcript.Semesters = append(transcript.Semesters, models.TranscriptSemester{
				SemesterID:     r.SemesterID,
				SemesterName:   r.SemesterName,
				SemesterNumber: r.SemesterNumber,
				SessionID:      r.SessionID,
				SessionName:    r.SessionName,
			})
		}
		_, passed := s.passing[strings.ToUpper(r.Grade)]
		sem := &transcript.Semesters[i]
		sem.Courses = append(sem.Courses, models.TranscriptCourse{
			CourseID:    r.CourseID,
			CourseCode:  r.CourseCode,
			CourseTitle: r.CourseTitle,
			CreditUnits: r.CreditUnits,
			Total:       r.Total,
			Grade:       r.Grade,
			GradePoint:  r.GradePoint,
			Passed:      passed,
		})
		sem.UnitsAttempted += r.CreditUnits
		if passed {
			sem.UnitsPassed += r.CreditUnits
		}
		perSemester[r.SemesterID] = append(perSemester[r.SemesterID], grading.Weighted{CreditUnits: r.CreditUnits, GradePoint: r.GradePoint})
	}
	for i := range transcript.Semesters {
		sem := &transcript.Semesters[i]
		sem.GPA = grading.WeightedAverage(perSemester[sem.SemesterID]).Value
		transcript.UnitsPassed += sem.UnitsPassed
	}
	overall := grading.WeightedAverage(weights(results))
	transcript.CGPA = overall.Value
	transcript.TotalUnits = overall.TotalCreditUnits
	transcript.Classification = s.scale.Classify(overall.Value)
	return transcript, nil
}

func (s *AcademicService) authorize(actor models.Actor, studentID string) error {
	if err := requirePermission(actor, models.PermViewResults); err != nil {
		return err
	}
	if strings.TrimSpace(studentID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if actor.IsStudent() && !actor.Owns(studentID) {
		return appErrors.Clone(appErrors.ErrForbidden, "students may only view their own results")
	}
	return nil
}

func (s *AcademicService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	var student *models.Student
	err := s.retrier.Do(ctx, "find_student", func(ctx context.Context) error {
		var err error
		student, err = s.students.FindByID(ctx, studentID)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "student")
	}
	return student, nil
}

func (s *AcademicService) approved(ctx context.Context, studentID, semesterID string) ([]models.ApprovedResult, error) {
	var results []models.ApprovedResult
	err := s.retrier.Do(ctx, "list_approved_results", func(ctx context.Context) error {
		var err error
		results, err = s.results.ListApproved(ctx, studentID, semesterID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "failed to load results")
	}
	return results, nil
}

func (s *AcademicService) maxPoint() float64 {
	max := 0.0
	for _, band := range s.scale.Bands {
		if band.Point > max {
			max = band.Point
		}
	}
	return max
}

func weights(results []models.ApprovedResult) []grading.Weighted {
	items := make([]grading.Weighted, len(results))
	for i, r := range results {
		items[i] = grading.Weighted{CreditUnits: r.CreditUnits, GradePoint: r.GradePoint}
	}
	return items
}

func transcriptDocument(t *models.Transcript) export.Document {
	doc := export.Document{
		Title: "Academic Transcript",
		Subtitle: []string{
			fmt.Sprintf("%s (%s)", t.Student.FullName, t.Student.MatricNumber),
			"Generated " + t.GeneratedAt.Format("2006-01-02 15:04 MST"),
		},
		Columns: []export.Column{
			{Header: "Code", Weight: 1.2},
			{Header: "Title", Weight: 3.6},
			{Header: "Units"},
			{Header: "Total"},
			{Header: "Grade"},
			{Header: "Point"},
		},
		Sections: make([]export.Section, 0, len(t.Semesters)),
	}
	for _, sem := range t.Semesters {
		section := export.Section{
			Heading: strings.TrimSpace(sem.SessionName + " " + sem.SemesterName),
			Rows:    make([][]string, 0, len(sem.Courses)),
			Footer:  fmt.Sprintf("GPA %.2f (%d/%d units passed)", sem.GPA, sem.UnitsPassed, sem.UnitsAttempted),
		}
		for _, c := range sem.Courses {
			section.Rows = append(section.Rows, []string{
				c.CourseCode,
				c.CourseTitle,
				strconv.Itoa(c.CreditUnits),
				strconv.FormatFloat(c.Total, 'f', 2, 64),
				c.Grade,
				strconv.FormatFloat(c.GradePoint, 'f', 2, 64),
			})
		}
		doc.Sections = append(doc.Sections, section)
	}
	doc.Summary = []string{
		fmt.Sprintf("CGPA %.2f over %d units", t.CGPA, t.TotalUnits),
		"Classification: " + t.Classification,
	}
	return doc
}
