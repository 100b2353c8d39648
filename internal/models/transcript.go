package models

import "time"

// TranscriptCourse is one approved result on a transcript.
type TranscriptCourse struct {
	CourseID    string  `json:"course_id"`
	CourseCode  string  `json:"course_code"`
	CourseTitle string  `json:"course_title"`
	CreditUnits int     `json:"credit_units"`
	Total       float64 `json:"total"`
	Grade       string  `json:"grade"`
	GradePoint  float64 `json:"grade_point"`
	Passed      bool    `json:"passed"`
}

// TranscriptSemester groups results of one semester.
type TranscriptSemester struct {
	SemesterID     string             `json:"semester_id"`
	SemesterName   string             `json:"semester_name"`
	SemesterNumber int                `json:"semester_number"`
	SessionID      string             `json:"session_id"`
	SessionName    string             `json:"session_name"`
	Courses        []TranscriptCourse `json:"courses"`
	GPA            float64            `json:"gpa"`
	UnitsAttempted int                `json:"units_attempted"`
	UnitsPassed    int                `json:"units_passed"`
}

// Transcript is a student's full academic record built from approved grades.
type Transcript struct {
	Student        Student              `json:"student"`
	Semesters      []TranscriptSemester `json:"semesters"`
	CGPA           float64              `json:"cgpa"`
	TotalUnits     int                  `json:"total_units"`
	UnitsPassed    int                  `json:"units_passed"`
	Classification string               `json:"classification"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

// GPAReport is the grade point average over a set of approved results.
type GPAReport struct {
	StudentID         string  `json:"student_id"`
	SemesterID        string  `json:"semester_id,omitempty"`
	GPA               float64 `json:"gpa"`
	TotalCreditUnits  int     `json:"total_credit_units"`
	TotalQualityPoint float64 `json:"total_quality_point"`
	Classification    string  `json:"classification,omitempty"`
}

// AcademicStanding combines a semester GPA, the running CGPA and the credit load check.
type AcademicStanding struct {
	StudentID      string        `json:"student_id"`
	SemesterID     string        `json:"semester_id"`
	GPA            float64       `json:"gpa"`
	CGPA           float64       `json:"cgpa"`
	Classification string        `json:"classification"`
	Quota          QuotaStanding `json:"quota"`
}
