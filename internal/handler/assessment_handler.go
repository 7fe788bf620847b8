package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-admin-api/internal/service"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
	"github.com/noah-isme/college-admin-api/pkg/response"
)

// AssessmentHandler exposes mark entry, review and reporting endpoints.
type AssessmentHandler struct {
	service *service.AssessmentService
	exports *service.ExportService
}

// NewAssessmentHandler constructs an assessment handler.
func NewAssessmentHandler(svc *service.AssessmentService, exports *service.ExportService) *AssessmentHandler {
	return &AssessmentHandler{service: svc, exports: exports}
}

// EnterMarks godoc
// @Summary Enter marks
// @Description Upsert score records for one section, subject and exam category
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.EnterMarksRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Router /marks [post]
func (h *AssessmentHandler) EnterMarks(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.EnterMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.service.EnterMarks(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Verify godoc
// @Summary Verify marks
// @Description Tutor forwards a section's records to the admin queue
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.ReviewMarksRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /marks/verify [post]
func (h *AssessmentHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReviewMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	n, err := h.service.VerifyMarks(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"verified": n}, nil)
}

// Approve godoc
// @Summary Approve marks
// @Description Admin finalises a section's records
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.ReviewMarksRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /marks/approve [post]
func (h *AssessmentHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReviewMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	n, err := h.service.ApproveMarks(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"approved": n}, nil)
}

// Reject godoc
// @Summary Reject marks
// @Description Send a section's non-approved records back for re-entry
// @Tags Assessments
// @Accept json
// @Produce json
// @Param payload body service.ReviewMarksRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /marks/reject [post]
func (h *AssessmentHandler) Reject(c *gin.Context) {
	var req service.ReviewMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	n, err := h.service.RejectMarks(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"rejected": n}, nil)
}

// List godoc
// @Summary List marks
// @Tags Assessments
// @Produce json
// @Param scheduleId query string true "Exam schedule ID"
// @Param subjectCode query string true "Subject code"
// @Param sectionId query string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /marks [get]
func (h *AssessmentHandler) List(c *gin.Context) {
	details, err := h.service.ListMarks(c.Request.Context(), c.Query("scheduleId"), c.Query("subjectCode"), c.Query("sectionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// ListForTutor godoc
// @Summary List marks within tutor range
// @Description Records restricted to the tutor's roster range
// @Tags Assessments
// @Produce json
// @Param scheduleId query string true "Exam schedule ID"
// @Param subjectCode query string true "Subject code"
// @Param sectionId query string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /marks/tutor [get]
func (h *AssessmentHandler) ListForTutor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	details, err := h.service.ListMarksForTutor(c.Request.Context(), c.Query("scheduleId"), c.Query("subjectCode"), c.Query("sectionId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// StatusReport godoc
// @Summary Mark status report
// @Description Aggregate entry and approval progress into a single label
// @Tags Assessments
// @Produce json
// @Param subjectCode query string true "Subject code"
// @Param sectionId query string true "Section ID"
// @Param examType query string false "Exam category (omit for mixed)"
// @Success 200 {object} response.Envelope
// @Router /marks/status [get]
func (h *AssessmentHandler) StatusReport(c *gin.Context) {
	report, err := h.service.StatusReport(c.Request.Context(), c.Query("subjectCode"), c.Query("sectionId"), c.Query("examType"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// InternalScore godoc
// @Summary Internal composite score
// @Description Unit tests, model exam and assignment components for one student
// @Tags Assessments
// @Produce json
// @Param studentId path string true "Student ID"
// @Param subjectCode query string true "Subject code"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/internal-score [get]
func (h *AssessmentHandler) InternalScore(c *gin.Context) {
	score, err := h.service.InternalScore(c.Request.Context(), c.Param("studentId"), c.Query("subjectCode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// ExportReport godoc
// @Summary Export mark report
// @Description Download the section's mark listing as CSV or PDF
// @Tags Assessments
// @Produce octet-stream
// @Param scheduleId query string true "Exam schedule ID"
// @Param subjectCode query string true "Subject code"
// @Param sectionId query string true "Section ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /marks/export [get]
func (h *AssessmentHandler) ExportReport(c *gin.Context) {
	scheduleID := c.Query("scheduleId")
	subjectCode := c.Query("subjectCode")
	sectionID := c.Query("sectionId")

	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		data, err := h.exports.MarkReportPDF(c.Request.Context(), scheduleID, subjectCode, sectionID)
		if err != nil {
			response.Error(c, err)
			return
		}
		name := fmt.Sprintf("marks_%s.pdf", subjectCode)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "application/pdf", data)
	case "csv":
		data, err := h.exports.MarkReportCSV(c.Request.Context(), scheduleID, subjectCode, sectionID)
		if err != nil {
			response.Error(c, err)
			return
		}
		name := fmt.Sprintf("marks_%s.csv", subjectCode)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "text/csv", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
