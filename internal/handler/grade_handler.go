package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type gradeService interface {
	ListGrades(ctx context.Context, actor models.Actor, filter models.GradeFilter) ([]models.GradeSheetRow, error)
	EnterGrade(ctx context.Context, actor models.Actor, req service.EnterGradeRequest) (*models.GradeRecord, error)
	BulkEnterGrades(ctx context.Context, actor models.Actor, req service.BulkEnterGradesRequest) (*service.BulkGradesResult, error)
	SubmitGrades(ctx context.Context, actor models.Actor, req service.SubmitGradesRequest) (*models.TransitionResult, error)
	ApproveGrades(ctx context.Context, actor models.Actor, req service.GradeIDsRequest) (*models.TransitionResult, error)
	ReopenGrades(ctx context.Context, actor models.Actor, req service.GradeIDsRequest) (*models.TransitionResult, error)
}

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List grade sheet
// @Tags Grades
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param semesterId query string false "Filter by semester"
// @Param studentId query string false "Filter by student"
// @Param status query string false "draft, submitted or approved"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		CourseID:   c.Query("courseId"),
		SemesterID: c.Query("semesterId"),
		StudentID:  c.Query("studentId"),
		Status:     models.GradeStatus(c.Query("status")),
	}
	rows, err := h.grades.ListGrades(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Enter godoc
// @Summary Enter grade
// @Description Records CA and exam scores for an approved registration as a draft
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.EnterGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Enter(c *gin.Context) {
	var req service.EnterGradeRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	record, err := h.grades.EnterGrade(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Bulk godoc
// @Summary Bulk enter grades
// @Description partial mode keeps good rows and reports failures; atomic mode saves all or nothing
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.BulkEnterGradesRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /grades/bulk [post]
func (h *GradeHandler) Bulk(c *gin.Context) {
	var req service.BulkEnterGradesRequest
	if !bindJSON(c, &req, "invalid bulk grade payload") {
		return
	}
	result, err := h.grades.BulkEnterGrades(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if len(result.Failures) > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result, nil)
}

// Submit godoc
// @Summary Submit draft grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.SubmitGradesRequest true "Course offering"
// @Success 200 {object} response.Envelope
// @Router /grades/submit [post]
func (h *GradeHandler) Submit(c *gin.Context) {
	var req service.SubmitGradesRequest
	if !bindJSON(c, &req, "invalid submission payload") {
		return
	}
	result, err := h.grades.SubmitGrades(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Transition(c, "submitted", result)
}

// Approve godoc
// @Summary Approve submitted grades
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.GradeIDsRequest true "Grade IDs"
// @Success 200 {object} response.Envelope
// @Router /grades/approve [post]
func (h *GradeHandler) Approve(c *gin.Context) {
	var req service.GradeIDsRequest
	if !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	result, err := h.grades.ApproveGrades(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Transition(c, "approved", result)
}

// Reopen godoc
// @Summary Reopen grades for re-entry
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.GradeIDsRequest true "Grade IDs"
// @Success 200 {object} response.Envelope
// @Router /grades/reopen [post]
func (h *GradeHandler) Reopen(c *gin.Context) {
	var req service.GradeIDsRequest
	if !bindJSON(c, &req, "invalid reopen payload") {
		return
	}
	result, err := h.grades.ReopenGrades(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Transition(c, "reopened", result)
}
