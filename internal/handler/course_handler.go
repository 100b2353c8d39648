package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type prerequisiteService interface {
	DirectPrerequisites(ctx context.Context, courseID string) ([]models.Course, error)
	DirectDependents(ctx context.Context, courseID string) ([]models.Course, error)
	AddPrerequisite(ctx context.Context, actor models.Actor, req service.AddPrerequisiteRequest) (*models.PrerequisiteChange, error)
	RemovePrerequisite(ctx context.Context, actor models.Actor, courseID, prerequisiteID string) (*models.TransitionResult, error)
	SetCourseActive(ctx context.Context, actor models.Actor, courseID string, active bool) (*models.Course, error)
}

// SetActiveRequest toggles course availability.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CourseHandler exposes the prerequisite graph and course availability.
type CourseHandler struct {
	prerequisites prerequisiteService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(prerequisites prerequisiteService) *CourseHandler {
	return &CourseHandler{prerequisites: prerequisites}
}

// Prerequisites godoc
// @Summary List direct prerequisites
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/prerequisites [get]
func (h *CourseHandler) Prerequisites(c *gin.Context) {
	courses, err := h.prerequisites.DirectPrerequisites(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Dependents godoc
// @Summary List courses that directly require a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/dependents [get]
func (h *CourseHandler) Dependents(c *gin.Context) {
	courses, err := h.prerequisites.DirectDependents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// AddPrerequisite godoc
// @Summary Add prerequisite
// @Description Rejects edges that would make the prerequisite graph cyclic
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.AddPrerequisiteRequest true "Prerequisite"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/prerequisites [post]
func (h *CourseHandler) AddPrerequisite(c *gin.Context) {
	var req service.AddPrerequisiteRequest
	if !bindJSON(c, &req, "invalid prerequisite payload") {
		return
	}
	req.CourseID = c.Param("id")
	change, err := h.prerequisites.AddPrerequisite(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !change.Created {
		response.Message(c, http.StatusOK, "prerequisite already present", change, nil)
		return
	}
	response.Created(c, "prerequisite added", change)
}

// RemovePrerequisite godoc
// @Summary Remove prerequisite
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param prereqId path string true "Prerequisite course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/prerequisites/{prereqId} [delete]
func (h *CourseHandler) RemovePrerequisite(c *gin.Context) {
	result, err := h.prerequisites.RemovePrerequisite(c.Request.Context(), actorFrom(c), c.Param("id"), c.Param("prereqId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Transition(c, "removed", result)
}

// SetActive godoc
// @Summary Open or close a course for registration
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body SetActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/active [patch]
func (h *CourseHandler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if !bindJSON(c, &req, "active flag is required") {
		return
	}
	course, err := h.prerequisites.SetCourseActive(c.Request.Context(), actorFrom(c), c.Param("id"), *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
