package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
)

// campus is an in-memory stand-in for the database shared by the fakes below.
type campus struct {
	mu      sync.Mutex
	graphMu sync.Mutex
	seq     int

	courses       map[string]*models.Course
	students      map[string]*models.Student
	levels        map[string]*models.AcademicLevel
	semesters     map[string]*models.Semester
	sessions      map[string]*models.Session
	edges         map[string][]string
	edgeIDs       map[string]string
	registrations map[string]*models.Registration
	grades        map[string]*models.GradeRecord

	gradeFailures map[string]error
	storeErr      error
}

var (
	testNow   = time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	adminUser = models.NewActor("user-admin", models.RoleAdmin, "", "")
	hodCSC    = models.NewActor("user-hod", models.RoleHOD, "", "dept-csc")
	hodMTH    = models.NewActor("user-hod-mth", models.RoleHOD, "", "dept-mth")
	lecturer  = models.NewActor("user-lecturer", models.RoleLecturer, "", "")
	studentA  = models.NewActor("user-stu-1", models.RoleStudent, "stu-1", "")
	bursar    = models.NewActor("user-bursar", models.RoleBursar, "", "")
)

func newCampus() *campus {
	c := &campus{
		courses:       map[string]*models.Course{},
		students:      map[string]*models.Student{},
		levels:        map[string]*models.AcademicLevel{},
		semesters:     map[string]*models.Semester{},
		sessions:      map[string]*models.Session{},
		edges:         map[string][]string{},
		edgeIDs:       map[string]string{},
		registrations: map[string]*models.Registration{},
		grades:        map[string]*models.GradeRecord{},
		gradeFailures: map[string]error{},
	}
	c.levels["lvl-100"] = &models.AcademicLevel{ID: "lvl-100", Name: "100 Level", MinCreditUnits: 15, MaxCreditUnits: 24}
	c.sessions["ses-2024"] = &models.Session{ID: "ses-2024", Name: "2024/2025"}
	c.sessions["ses-2025"] = &models.Session{ID: "ses-2025", Name: "2025/2026", IsCurrent: true}
	c.semesters["sem-1"] = &models.Semester{
		ID: "sem-1", SessionID: "ses-2024", Name: "First", Number: 1,
		StartDate:         time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		RegistrationStart: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		RegistrationEnd:   time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC),
	}
	c.semesters["sem-2"] = &models.Semester{
		ID: "sem-2", SessionID: "ses-2025", Name: "First", Number: 1, IsCurrent: true,
		StartDate:         time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		RegistrationStart: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		RegistrationEnd:   time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
	}
	for _, course := range []models.Course{
		{ID: "c-101", Code: "CSC101", Title: "Introduction to Computing", CreditUnits: 3, DepartmentID: "dept-csc", IsActive: true},
		{ID: "c-201", Code: "CSC201", Title: "Data Structures", CreditUnits: 3, DepartmentID: "dept-csc", IsActive: true},
		{ID: "c-301", Code: "CSC301", Title: "Algorithms", CreditUnits: 3, DepartmentID: "dept-csc", IsActive: true},
		{ID: "m-101", Code: "MTH101", Title: "Calculus I", CreditUnits: 2, DepartmentID: "dept-mth", IsActive: true},
		{ID: "c-big", Code: "CSC399", Title: "Industrial Training", CreditUnits: 20, DepartmentID: "dept-csc", IsActive: true},
		{ID: "c-old", Code: "CSC100", Title: "Retired", CreditUnits: 2, DepartmentID: "dept-csc", IsActive: false},
	} {
		course := course
		c.courses[course.ID] = &course
	}
	c.students["stu-1"] = &models.Student{ID: "stu-1", UserID: "user-stu-1", MatricNumber: "CSC/24/001", FullName: "Ada Obi", LevelID: "lvl-100", DepartmentID: "dept-csc", Active: true}
	c.students["stu-2"] = &models.Student{ID: "stu-2", UserID: "user-stu-2", MatricNumber: "MTH/24/002", FullName: "Bola Ade", LevelID: "lvl-100", DepartmentID: "dept-mth", Active: true}
	c.edges["c-301"] = []string{"c-201"}
	c.edges["c-201"] = []string{"c-101"}
	return c
}

func (c *campus) nextID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s-%d", prefix, c.seq)
}

// seedRegistration stores a registration directly and returns its id.
func (c *campus) seedRegistration(studentID, courseID, semesterID string, status models.RegistrationStatus) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID("reg")
	c.registrations[id] = &models.Registration{ID: id, StudentID: studentID, CourseID: courseID, SemesterID: semesterID, Status: status}
	return id
}

// seedGrade stores a grade record for a registration directly.
func (c *campus) seedGrade(registrationID string, total float64, letter string, point float64, status models.GradeStatus) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID("grd")
	c.grades[registrationID] = &models.GradeRecord{ID: id, RegistrationID: registrationID, Total: total, Grade: letter, GradePoint: point, Status: status}
	return id
}

func (c *campus) gradeByRegistration(registrationID string) *models.GradeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.grades[registrationID]
	if !ok {
		return nil
	}
	clone := *g
	return &clone
}

type fakeCourses struct{ c *campus }

func (f fakeCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	course, ok := f.c.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *course
	return &clone, nil
}

func (f fakeCourses) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	course, ok := f.c.courses[id]
	if !ok {
		return false, nil
	}
	course.IsActive = active
	return true, nil
}

type fakeStudents struct{ c *campus }

func (f fakeStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	if f.c.storeErr != nil {
		return nil, f.c.storeErr
	}
	student, ok := f.c.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *student
	return &clone, nil
}

func (f fakeStudents) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	for _, student := range f.c.students {
		if student.UserID == userID {
			clone := *student
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

type fakeCalendar struct{ c *campus }

func (f fakeCalendar) FindSemester(ctx context.Context, id string) (*models.Semester, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	semester, ok := f.c.semesters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *semester
	return &clone, nil
}

func (f fakeCalendar) CurrentSemester(ctx context.Context) (*models.Semester, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	for _, semester := range f.c.semesters {
		if semester.IsCurrent {
			clone := *semester
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeCalendar) FindLevel(ctx context.Context, id string) (*models.AcademicLevel, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	level, ok := f.c.levels[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *level
	return &clone, nil
}

type fakePrerequisites struct{ c *campus }

func (f fakePrerequisites) courseList(ids []string) []models.Course {
	out := make([]models.Course, 0, len(ids))
	for _, id := range ids {
		if course, ok := f.c.courses[id]; ok {
			out = append(out, *course)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (f fakePrerequisites) ListPrerequisites(ctx context.Context, courseID string) ([]models.Course, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.courseList(f.c.edges[courseID]), nil
}

func (f fakePrerequisites) ListDependents(ctx context.Context, courseID string) ([]models.Course, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	var ids []string
	for course, prereqs := range f.c.edges {
		for _, p := range prereqs {
			if p == courseID {
				ids = append(ids, course)
			}
		}
	}
	return f.courseList(ids), nil
}

func (f fakePrerequisites) ListPrerequisiteIDs(ctx context.Context, courseID string) ([]string, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return append([]string(nil), f.c.edges[courseID]...), nil
}

func (f fakePrerequisites) AddEdge(ctx context.Context, edge *models.PrerequisiteEdge, guard repository.EdgeGuard) (bool, error) {
	f.c.graphMu.Lock()
	defer f.c.graphMu.Unlock()
	if guard != nil {
		if err := guard(ctx, f.ListPrerequisiteIDs); err != nil {
			return false, err
		}
	}
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	for _, p := range f.c.edges[edge.CourseID] {
		if p == edge.PrerequisiteCourseID {
			edge.ID = f.c.edgeIDs[edge.CourseID+">"+p]
			return false, nil
		}
	}
	edge.ID = f.c.nextID("edge")
	f.c.edgeIDs[edge.CourseID+">"+edge.PrerequisiteCourseID] = edge.ID
	f.c.edges[edge.CourseID] = append(f.c.edges[edge.CourseID], edge.PrerequisiteCourseID)
	return true, nil
}

func (f fakePrerequisites) Delete(ctx context.Context, courseID, prerequisiteID string) (bool, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	prereqs := f.c.edges[courseID]
	for i, p := range prereqs {
		if p == prerequisiteID {
			f.c.edges[courseID] = append(prereqs[:i:i], prereqs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeRegistrations struct{ c *campus }

func (f fakeRegistrations) detail(r *models.Registration) models.RegistrationDetail {
	d := models.RegistrationDetail{Registration: *r}
	if course, ok := f.c.courses[r.CourseID]; ok {
		d.CourseCode = course.Code
		d.CourseTitle = course.Title
		d.CreditUnits = course.CreditUnits
	}
	return d
}

func (f fakeRegistrations) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	var out []models.RegistrationDetail
	for _, r := range f.c.registrations {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.SemesterID != "" && r.SemesterID != filter.SemesterID {
			continue
		}
		if filter.DepartmentID != "" && f.c.students[r.StudentID].DepartmentID != filter.DepartmentID {
			continue
		}
		if r.Dropped && !filter.IncludeDrops {
			continue
		}
		out = append(out, f.detail(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f fakeRegistrations) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	r, ok := f.c.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (f fakeRegistrations) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	r, ok := f.c.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	d := f.detail(r)
	return &d, nil
}

func (f fakeRegistrations) ExistsActive(ctx context.Context, studentID, courseID, semesterID string) (bool, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	for _, r := range f.c.registrations {
		if r.StudentID == studentID && r.CourseID == courseID && r.SemesterID == semesterID && !r.Dropped {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeRegistrations) Create(ctx context.Context, registration *models.Registration) error {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	registration.ID = f.c.nextID("reg")
	registration.CreatedAt = testNow
	registration.UpdatedAt = testNow
	clone := *registration
	f.c.registrations[registration.ID] = &clone
	return nil
}

func (f fakeRegistrations) Approve(ctx context.Context, ids []string, approverID, departmentID string, at time.Time) ([]string, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	var changed []string
	for _, id := range ids {
		r, ok := f.c.registrations[id]
		if !ok || r.Status != models.RegistrationPending || r.Dropped {
			continue
		}
		if departmentID != "" && f.c.students[r.StudentID].DepartmentID != departmentID {
			continue
		}
		r.Status = models.RegistrationApproved
		r.ApprovedBy = &approverID
		r.ApprovedAt = &at
		changed = append(changed, id)
	}
	return changed, nil
}

func (f fakeRegistrations) Reject(ctx context.Context, id, rejectedBy, reason string, at time.Time) (bool, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	r, ok := f.c.registrations[id]
	if !ok || r.Status != models.RegistrationPending || r.Dropped {
		return false, nil
	}
	r.Status = models.RegistrationRejected
	r.RejectedBy = &rejectedBy
	r.RejectedAt = &at
	r.RejectionReason = &reason
	return true, nil
}

func (f fakeRegistrations) Drop(ctx context.Context, id string, at time.Time) (bool, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	r, ok := f.c.registrations[id]
	if !ok || r.Dropped || r.Status == models.RegistrationRejected {
		return false, nil
	}
	r.Dropped = true
	r.DroppedAt = &at
	return true, nil
}

func (f fakeRegistrations) CreditLoad(ctx context.Context, studentID, semesterID string, statuses []models.RegistrationStatus) (int, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	total := 0
	for _, r := range f.c.registrations {
		if r.StudentID != studentID || r.SemesterID != semesterID || r.Dropped {
			continue
		}
		for _, s := range statuses {
			if r.Status == s {
				total += f.c.courses[r.CourseID].CreditUnits
				break
			}
		}
	}
	return total, nil
}

type fakeGrades struct{ c *campus }

func (f fakeGrades) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeSheetRow, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	var out []models.GradeSheetRow
	for regID, g := range f.c.grades {
		r := f.c.registrations[regID]
		if filter.CourseID != "" && r.CourseID != filter.CourseID {
			continue
		}
		if filter.SemesterID != "" && r.SemesterID != filter.SemesterID {
			continue
		}
		if filter.Status != "" && g.Status != filter.Status {
			continue
		}
		out = append(out, models.GradeSheetRow{GradeRecord: *g, StudentID: r.StudentID, CourseID: r.CourseID, SemesterID: r.SemesterID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeGrades) FindByRegistrationID(ctx context.Context, registrationID string) (*models.GradeRecord, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	g, ok := f.c.grades[registrationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *g
	return &clone, nil
}

func (f fakeGrades) upsertLocked(record *models.GradeRecord, open []models.GradeStatus) error {
	if err := f.c.gradeFailures[record.RegistrationID]; err != nil {
		return err
	}
	if existing, ok := f.c.grades[record.RegistrationID]; ok {
		allowed := false
		for _, s := range open {
			if existing.Status == s {
				allowed = true
			}
		}
		if !allowed {
			return repository.ErrGradeLocked
		}
		record.ID = existing.ID
	} else {
		record.ID = f.c.nextID("grd")
	}
	record.Status = models.GradeDraft
	clone := *record
	f.c.grades[record.RegistrationID] = &clone
	return nil
}

func (f fakeGrades) Upsert(ctx context.Context, record *models.GradeRecord, open []models.GradeStatus) error {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.upsertLocked(record, open)
}

func (f fakeGrades) BulkUpsert(ctx context.Context, records []*models.GradeRecord, open []models.GradeStatus, atomic bool) ([]error, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	snapshot := make(map[string]*models.GradeRecord, len(f.c.grades))
	for k, v := range f.c.grades {
		snapshot[k] = v
	}
	rowErrs := make([]error, len(records))
	for i, record := range records {
		if err := f.upsertLocked(record, open); err != nil {
			if atomic {
				f.c.grades = snapshot
				return nil, &repository.RowError{Index: i, Err: err}
			}
			rowErrs[i] = err
		}
	}
	return rowErrs, nil
}

func (f fakeGrades) inScope(regID, courseID, semesterID string) bool {
	r := f.c.registrations[regID]
	return r != nil && r.CourseID == courseID && r.SemesterID == semesterID
}

func (f fakeGrades) ListIDsByScope(ctx context.Context, courseID, semesterID string) ([]string, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	var ids []string
	for regID, g := range f.c.grades {
		if f.inScope(regID, courseID, semesterID) {
			ids = append(ids, g.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f fakeGrades) transition(match func(regID string, g *models.GradeRecord) bool, apply func(g *models.GradeRecord)) []models.GradeChange {
	var changed []models.GradeChange
	for regID, g := range f.c.grades {
		if !match(regID, g) {
			continue
		}
		apply(g)
		changed = append(changed, models.GradeChange{ID: g.ID, StudentID: f.c.registrations[regID].StudentID})
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].ID < changed[j].ID })
	return changed
}

func (f fakeGrades) SubmitDrafts(ctx context.Context, courseID, semesterID, submittedBy string, at time.Time) ([]models.GradeChange, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.transition(func(regID string, g *models.GradeRecord) bool {
		return f.inScope(regID, courseID, semesterID) && g.Status == models.GradeDraft
	}, func(g *models.GradeRecord) {
		g.Status = models.GradeSubmitted
		g.SubmittedBy = &submittedBy
		g.SubmittedAt = &at
	}), nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// inDepartment reports whether the registration's course belongs to departmentID.
// An empty departmentID matches everything.
func (f fakeGrades) inDepartment(regID, departmentID string) bool {
	if departmentID == "" {
		return true
	}
	return f.c.courses[f.c.registrations[regID].CourseID].DepartmentID == departmentID
}

func (f fakeGrades) ApproveSubmitted(ctx context.Context, ids []string, approvedBy, departmentID string, at time.Time) ([]models.GradeChange, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.transition(func(regID string, g *models.GradeRecord) bool {
		return contains(ids, g.ID) && g.Status == models.GradeSubmitted && f.inDepartment(regID, departmentID)
	}, func(g *models.GradeRecord) {
		g.Status = models.GradeApproved
		g.ApprovedBy = &approvedBy
		g.ApprovedAt = &at
	}), nil
}

func (f fakeGrades) Reopen(ctx context.Context, ids []string, departmentID string, at time.Time) ([]models.GradeChange, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	return f.transition(func(regID string, g *models.GradeRecord) bool {
		return contains(ids, g.ID) && g.Status != models.GradeDraft && f.inDepartment(regID, departmentID)
	}, func(g *models.GradeRecord) {
		g.Status = models.GradeDraft
		g.SubmittedBy, g.SubmittedAt, g.ApprovedBy, g.ApprovedAt = nil, nil, nil, nil
	}), nil
}

func (f fakeGrades) PassedCourseIDs(ctx context.Context, studentID string, courseIDs, passing []string) ([]string, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	var out []string
	for regID, g := range f.c.grades {
		r := f.c.registrations[regID]
		if r.StudentID != studentID || g.Status != models.GradeApproved {
			continue
		}
		if contains(courseIDs, r.CourseID) && contains(passing, g.Grade) && !contains(out, r.CourseID) {
			out = append(out, r.CourseID)
		}
	}
	return out, nil
}

func (f fakeGrades) ListApproved(ctx context.Context, studentID, semesterID string) ([]models.ApprovedResult, error) {
	f.c.mu.Lock()
	defer f.c.mu.Unlock()
	if f.c.storeErr != nil {
		return nil, f.c.storeErr
	}
	var out []models.ApprovedResult
	for regID, g := range f.c.grades {
		r := f.c.registrations[regID]
		if r.StudentID != studentID || g.Status != models.GradeApproved {
			continue
		}
		if semesterID != "" && r.SemesterID != semesterID {
			continue
		}
		course := f.c.courses[r.CourseID]
		sem := f.c.semesters[r.SemesterID]
		out = append(out, models.ApprovedResult{
			GradeID: g.ID, RegistrationID: regID, StudentID: r.StudentID, CourseID: r.CourseID,
			CourseCode: course.Code, CourseTitle: course.Title, CreditUnits: course.CreditUnits,
			SemesterID: sem.ID, SemesterName: sem.Name, SemesterNumber: sem.Number, SemesterStart: sem.StartDate,
			SessionID: sem.SessionID, SessionName: f.c.sessions[sem.SessionID].Name,
			Total: g.Total, Grade: g.Grade, GradePoint: g.GradePoint,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SemesterStart.Equal(out[j].SemesterStart) {
			return out[i].SemesterStart.Before(out[j].SemesterStart)
		}
		if out[i].SemesterNumber != out[j].SemesterNumber {
			return out[i].SemesterNumber < out[j].SemesterNumber
		}
		return out[i].CourseCode < out[j].CourseCode
	})
	return out, nil
}

// memoryCache is a transcript cache that keeps values in a map.
type memoryCache struct {
	mu          sync.Mutex
	values      map[string]interface{}
	hits        int
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]interface{}{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return false
	}
	t, ok := dest.(*models.Transcript)
	if !ok {
		return false
	}
	*t = *(v.(*models.Transcript))
	m.hits++
	return true
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *memoryCache) Invalidate(ctx context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		m.invalidated = append(m.invalidated, key)
	}
}
