package service

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type countingResults struct {
	fakeGrades
	calls int32
}

func (c *countingResults) ListApproved(ctx context.Context, studentID, semesterID string) ([]models.ApprovedResult, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.fakeGrades.ListApproved(ctx, studentID, semesterID)
}

func newAcademicService(c *campus, cache transcriptCache) (*AcademicService, *countingResults) {
	results := &countingResults{fakeGrades: fakeGrades{c}}
	quota := NewQuotaService(fakeRegistrations{c}, fakeStudents{c}, fakeCalendar{c}, nil, nil)
	svc := NewAcademicService(AcademicServiceParams{
		Results:  results,
		Students: fakeStudents{c},
		Quota:    quota,
		Cache:    cache,
		CacheTTL: time.Minute,
	})
	svc.now = func() time.Time { return testNow }
	return svc, results
}

// seedRecord gives stu-1 two semesters of approved results plus one unapproved grade.
func seedRecord(c *campus) {
	for _, r := range []struct {
		course, semester, letter string
		total, point             float64
		status                   models.GradeStatus
	}{
		{"c-101", "sem-1", "A", 75, 5, models.GradeApproved},
		{"m-101", "sem-1", "C", 55, 3, models.GradeApproved},
		{"c-201", "sem-2", "B", 64, 4, models.GradeApproved},
		{"c-301", "sem-2", "F", 20, 0, models.GradeApproved},
		{"c-big", "sem-2", "A", 90, 5, models.GradeSubmitted},
	} {
		reg := c.seedRegistration("stu-1", r.course, r.semester, models.RegistrationApproved)
		c.seedGrade(reg, r.total, r.letter, r.point, r.status)
	}
}

func TestCalculateGPAPerSemester(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	svc, _ := newAcademicService(c, nil)
	ctx := context.Background()

	first, err := svc.CalculateGPA(ctx, studentA, "stu-1", "sem-1")
	require.NoError(t, err)
	assert.Equal(t, 4.2, first.GPA)
	assert.Equal(t, 5, first.TotalCreditUnits)
	assert.Equal(t, 21.0, first.TotalQualityPoint)

	second, err := svc.CalculateGPA(ctx, studentA, "stu-1", "sem-2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, second.GPA)
	assert.Equal(t, 6, second.TotalCreditUnits)

	_, err = svc.CalculateGPA(ctx, studentA, "stu-1", "")
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
}

func TestCalculateGPAWithoutResultsIsZero(t *testing.T) {
	svc, _ := newAcademicService(newCampus(), nil)
	report, err := svc.CalculateGPA(context.Background(), adminUser, "stu-2", "sem-2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.GPA)
	assert.Equal(t, 0, report.TotalCreditUnits)

	cgpa, err := svc.CalculateCGPA(context.Background(), adminUser, "stu-2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cgpa.GPA)
	assert.Equal(t, "Fail", cgpa.Classification)
}

func TestCalculateCGPARoundsHalfUp(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	svc, _ := newAcademicService(c, nil)

	report, err := svc.CalculateCGPA(context.Background(), hodCSC, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, report.GPA)
	assert.Equal(t, 11, report.TotalCreditUnits)
	assert.Equal(t, "Second Class Honours (Lower Division)", report.Classification)

	// 3×5 + 2×3 + 3×4 over 8 units is 4.125.
	reg := c.seedRegistration("stu-2", "c-101", "sem-1", models.RegistrationApproved)
	c.seedGrade(reg, 75, "A", 5, models.GradeApproved)
	reg = c.seedRegistration("stu-2", "m-101", "sem-1", models.RegistrationApproved)
	c.seedGrade(reg, 55, "C", 3, models.GradeApproved)
	reg = c.seedRegistration("stu-2", "c-201", "sem-2", models.RegistrationApproved)
	c.seedGrade(reg, 64, "B", 4, models.GradeApproved)
	report, err = svc.CalculateCGPA(context.Background(), adminUser, "stu-2")
	require.NoError(t, err)
	assert.Equal(t, 4.13, report.GPA)
}

func TestClassOfDegreeBoundaries(t *testing.T) {
	svc, _ := newAcademicService(newCampus(), nil)
	cases := map[float64]string{
		5.00: "First Class Honours",
		4.50: "First Class Honours",
		4.49: "Second Class Honours (Upper Division)",
		3.50: "Second Class Honours (Upper Division)",
		3.49: "Second Class Honours (Lower Division)",
		2.40: "Second Class Honours (Lower Division)",
		2.39: "Third Class Honours",
		1.50: "Third Class Honours",
		1.49: "Pass",
		1.00: "Pass",
		0.99: "Fail",
		0.00: "Fail",
	}
	for cgpa, want := range cases {
		got, err := svc.ClassOfDegree(cgpa)
		require.NoError(t, err)
		assert.Equal(t, want, got, "cgpa %.2f", cgpa)
	}
	for _, bad := range []float64{-0.01, 5.01} {
		_, err := svc.ClassOfDegree(bad)
		assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
	}
}

func TestGenerateTranscriptGroupsBySemester(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	svc, _ := newAcademicService(c, nil)

	transcript, err := svc.GenerateTranscript(context.Background(), studentA, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "CSC/24/001", transcript.Student.MatricNumber)
	require.Len(t, transcript.Semesters, 2)

	first := transcript.Semesters[0]
	assert.Equal(t, "sem-1", first.SemesterID)
	assert.Equal(t, "2024/2025", first.SessionName)
	assert.Equal(t, 4.2, first.GPA)
	require.Len(t, first.Courses, 2)
	assert.Equal(t, "CSC101", first.Courses[0].CourseCode)
	assert.Equal(t, "MTH101", first.Courses[1].CourseCode)

	second := transcript.Semesters[1]
	assert.Equal(t, 6, second.UnitsAttempted)
	assert.Equal(t, 3, second.UnitsPassed)
	assert.False(t, second.Courses[1].Passed)

	assert.Equal(t, 3.0, transcript.CGPA)
	assert.Equal(t, 11, transcript.TotalUnits)
	assert.Equal(t, 8, transcript.UnitsPassed)
	assert.Equal(t, "Second Class Honours (Lower Division)", transcript.Classification)
	assert.Equal(t, testNow, transcript.GeneratedAt)
}

func TestGenerateTranscriptErrors(t *testing.T) {
	c := newCampus()
	svc, _ := newAcademicService(c, nil)
	ctx := context.Background()

	_, err := svc.GenerateTranscript(ctx, adminUser, "ghost")
	assert.True(t, appErrors.IsKind(err, appErrors.KindNotFound))

	_, err = svc.GenerateTranscript(ctx, studentA, "stu-2")
	assert.True(t, appErrors.IsKind(err, appErrors.KindForbidden))

	_, err = svc.GenerateTranscript(ctx, lecturer, "stu-1")
	assert.True(t, appErrors.IsKind(err, appErrors.KindForbidden))

	c.storeErr = &pq.Error{Code: "08006"}
	_, err = svc.GenerateTranscript(ctx, adminUser, "stu-1")
	assert.True(t, appErrors.IsKind(err, appErrors.KindPersistence))
}

func TestGenerateTranscriptUsesCache(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	cache := newMemoryCache()
	svc, results := newAcademicService(c, cache)
	ctx := context.Background()

	first, err := svc.GenerateTranscript(ctx, adminUser, "stu-1")
	require.NoError(t, err)
	second, err := svc.GenerateTranscript(ctx, adminUser, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, first.CGPA, second.CGPA)
	assert.Equal(t, int32(1), atomic.LoadInt32(&results.calls))
	assert.Equal(t, 1, cache.hits)

	svc.InvalidateTranscripts(ctx, "stu-1")
	assert.Equal(t, []string{"transcript:stu-1"}, cache.invalidated)
	_, err = svc.GenerateTranscript(ctx, adminUser, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&results.calls))
}

// gatedResults pauses the first transcript load after it has read its rows.
type gatedResults struct {
	fakeGrades
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedResults) ListApproved(ctx context.Context, studentID, semesterID string) ([]models.ApprovedResult, error) {
	rows, err := g.fakeGrades.ListApproved(ctx, studentID, semesterID)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return rows, err
}

func TestGenerateTranscriptSkipsCacheWhenInvalidatedMidBuild(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	cache := newMemoryCache()
	results := &gatedResults{fakeGrades: fakeGrades{c}, loaded: make(chan struct{}), release: make(chan struct{})}
	svc := NewAcademicService(AcademicServiceParams{
		Results:  results,
		Students: fakeStudents{c},
		Cache:    cache,
		CacheTTL: time.Minute,
	})
	ctx := context.Background()

	done := make(chan *models.Transcript, 1)
	go func() {
		transcript, err := svc.GenerateTranscript(ctx, adminUser, "stu-1")
		assert.NoError(t, err)
		done <- transcript
	}()
	<-results.loaded

	c.mu.Lock()
	for _, g := range c.grades {
		if g.Status == models.GradeSubmitted {
			g.Status = models.GradeApproved
		}
	}
	c.mu.Unlock()
	svc.InvalidateTranscripts(ctx, "stu-1")
	close(results.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.Equal(t, 3.0, stale.CGPA)

	fresh, err := svc.GenerateTranscript(ctx, adminUser, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 4.29, fresh.CGPA)
	assert.Equal(t, 0, cache.hits)
}

func TestGenerateTranscriptReturnsIndependentCopies(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	svc, _ := newAcademicService(c, newMemoryCache())
	ctx := context.Background()

	first, err := svc.GenerateTranscript(ctx, adminUser, "stu-1")
	require.NoError(t, err)
	first.Semesters[0].Courses[0].Grade = "Z"

	second, err := svc.GenerateTranscript(ctx, adminUser, "stu-1")
	require.NoError(t, err)
	assert.NotEqual(t, "Z", second.Semesters[0].Courses[0].Grade)
}

func TestGenerateTranscriptConcurrentCallers(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	svc, _ := newAcademicService(c, newMemoryCache())

	var wg sync.WaitGroup
	cgpas := make([]float64, 8)
	errs := make([]error, 8)
	for i := range cgpas {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			transcript, err := svc.GenerateTranscript(context.Background(), adminUser, "stu-1")
			errs[i] = err
			if err == nil {
				cgpas[i] = transcript.CGPA
			}
		}(i)
	}
	wg.Wait()
	for i := range cgpas {
		require.NoError(t, errs[i])
		assert.Equal(t, 3.0, cgpas[i])
	}
}

func TestAcademicStanding(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	svc, _ := newAcademicService(c, nil)

	standing, err := svc.AcademicStanding(context.Background(), studentA, "stu-1", "sem-2")
	require.NoError(t, err)
	assert.Equal(t, 2.0, standing.GPA)
	assert.Equal(t, 3.0, standing.CGPA)
	assert.Equal(t, 26, standing.Quota.ApprovedUnits)
	assert.True(t, standing.Quota.MeetsMinimum)
	assert.Equal(t, 15, standing.Quota.MinCreditUnits)
}

func TestExportTranscript(t *testing.T) {
	c := newCampus()
	seedRecord(c)
	svc, _ := newAcademicService(c, nil)
	ctx := context.Background()

	file, err := svc.ExportTranscript(ctx, studentA, "stu-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "transcript_CSC-24-001.csv", file.Filename)
	assert.Contains(t, string(file.Content), "Section,Code,Title,Units,Total,Grade,Point")
	assert.Contains(t, string(file.Content), "CSC101")
	assert.Contains(t, string(file.Content), "CGPA 3.00 over 11 units")

	file, err = svc.ExportTranscript(ctx, studentA, "stu-1", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))

	_, err = svc.ExportTranscript(ctx, studentA, "stu-1", "xlsx")
	assert.True(t, appErrors.IsKind(err, appErrors.KindValidation))
}
