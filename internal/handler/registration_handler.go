package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type registrationService interface {
	List(ctx context.Context, actor models.Actor, filter models.RegistrationFilter) ([]models.RegistrationDetail, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error)
	Register(ctx context.Context, actor models.Actor, req service.RegisterCourseRequest) (*models.RegistrationDetail, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error)
	BulkApprove(ctx context.Context, actor models.Actor, req service.BulkApproveRequest) (*models.TransitionResult, error)
	Reject(ctx context.Context, actor models.Actor, id string, req service.RejectRegistrationRequest) (*models.RegistrationDetail, error)
	Drop(ctx context.Context, actor models.Actor, id string) (*models.RegistrationDetail, error)
}

// RegistrationHandler exposes course registration endpoints.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs handler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param semesterId query string false "Filter by semester"
// @Param status query string false "pending, approved or rejected"
// @Param includeDropped query bool false "Include dropped registrations"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Param sortBy query string false "Sort column"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	filter := models.RegistrationFilter{
		StudentID:    c.Query("studentId"),
		CourseID:     c.Query("courseId"),
		SemesterID:   c.Query("semesterId"),
		Status:       models.RegistrationStatus(c.Query("status")),
		IncludeDrops: c.Query("includeDropped") == "true",
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "pageSize", 20),
		SortBy:       c.Query("sortBy"),
		SortOrder:    c.Query("sortOrder"),
	}
	items, pagination, err := h.registrations.List(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	detail, err := h.registrations.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Register godoc
// @Summary Register for a course
// @Description Creates a pending registration after window, duplicate, prerequisite and credit checks
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.RegisterCourseRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req service.RegisterCourseRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}
	detail, err := h.registrations.Register(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "registration submitted", detail)
}

// Approve godoc
// @Summary Approve registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/approve [post]
func (h *RegistrationHandler) Approve(c *gin.Context) {
	detail, err := h.registrations.Approve(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "registration approved", detail, nil)
}

// BulkApprove godoc
// @Summary Approve many registrations
// @Description Approves the pending registrations among ids. Other ids are reported as skipped.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.BulkApproveRequest true "Registration IDs"
// @Success 200 {object} response.Envelope
// @Router /registrations/bulk-approve [post]
func (h *RegistrationHandler) BulkApprove(c *gin.Context) {
	var req service.BulkApproveRequest
	if !bindJSON(c, &req, "invalid bulk approval payload") {
		return
	}
	result, err := h.registrations.BulkApprove(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Transition(c, "approved", result)
}

// Reject godoc
// @Summary Reject registration
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body service.RejectRegistrationRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/reject [post]
func (h *RegistrationHandler) Reject(c *gin.Context) {
	var req service.RejectRegistrationRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid rejection payload") {
		return
	}
	detail, err := h.registrations.Reject(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "registration rejected", detail, nil)
}

// Drop godoc
// @Summary Drop registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/{id}/drop [post]
func (h *RegistrationHandler) Drop(c *gin.Context) {
	detail, err := h.registrations.Drop(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "registration dropped", detail, nil)
}
