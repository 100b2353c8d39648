package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type academicService interface {
	CalculateGPA(ctx context.Context, actor models.Actor, studentID, semesterID string) (*models.GPAReport, error)
	CalculateCGPA(ctx context.Context, actor models.Actor, studentID string) (*models.GPAReport, error)
	AcademicStanding(ctx context.Context, actor models.Actor, studentID, semesterID string) (*models.AcademicStanding, error)
	GenerateTranscript(ctx context.Context, actor models.Actor, studentID string) (*models.Transcript, error)
	ExportTranscript(ctx context.Context, actor models.Actor, studentID, format string) (*service.ExportedFile, error)
	ClassOfDegree(cgpa float64) (string, error)
}

// AcademicHandler exposes GPA, CGPA and transcript endpoints.
type AcademicHandler struct {
	academic academicService
}

// NewAcademicHandler constructs handler.
func NewAcademicHandler(academic academicService) *AcademicHandler {
	return &AcademicHandler{academic: academic}
}

// GPA godoc
// @Summary Semester GPA
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Param semesterId query string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/gpa [get]
func (h *AcademicHandler) GPA(c *gin.Context) {
	report, err := h.academic.CalculateGPA(c.Request.Context(), actorFrom(c), c.Param("id"), c.Query("semesterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// CGPA godoc
// @Summary Cumulative GPA
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/cgpa [get]
func (h *AcademicHandler) CGPA(c *gin.Context) {
	report, err := h.academic.CalculateCGPA(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Standing godoc
// @Summary Academic standing for a semester
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Param semesterId query string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/standing [get]
func (h *AcademicHandler) Standing(c *gin.Context) {
	standing, err := h.academic.AcademicStanding(c.Request.Context(), actorFrom(c), c.Param("id"), c.Query("semesterId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standing, nil)
}

// Transcript godoc
// @Summary Student transcript
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/transcript [get]
func (h *AcademicHandler) Transcript(c *gin.Context) {
	transcript, err := h.academic.GenerateTranscript(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript, nil)
}

// ExportTranscript godoc
// @Summary Download transcript
// @Tags Results
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Student ID"
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Router /students/{id}/transcript/export [get]
func (h *AcademicHandler) ExportTranscript(c *gin.Context) {
	file, err := h.academic.ExportTranscript(c.Request.Context(), actorFrom(c), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// Classification godoc
// @Summary Degree classification for a CGPA
// @Tags Results
// @Produce json
// @Param cgpa query number true "CGPA"
// @Success 200 {object} response.Envelope
// @Router /classifications [get]
func (h *AcademicHandler) Classification(c *gin.Context) {
	cgpa, err := strconv.ParseFloat(c.Query("cgpa"), 64)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation, "cgpa must be a number"))
		return
	}
	class, err := h.academic.ClassOfDegree(cgpa)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cgpa": cgpa, "classification": class}, nil)
}
