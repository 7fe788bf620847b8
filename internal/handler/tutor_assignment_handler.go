package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-admin-api/internal/service"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
	"github.com/noah-isme/college-admin-api/pkg/response"
)

// TutorAssignmentHandler exposes tutor range management endpoints.
type TutorAssignmentHandler struct {
	service *service.TutorAssignmentService
}

// NewTutorAssignmentHandler constructs a tutor assignment handler.
func NewTutorAssignmentHandler(svc *service.TutorAssignmentService) *TutorAssignmentHandler {
	return &TutorAssignmentHandler{service: svc}
}

// Assign godoc
// @Summary Assign tutor range
// @Description Replace a tutor's verification range over a section
// @Tags Tutors
// @Accept json
// @Produce json
// @Param payload body service.AssignTutorRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /tutor-assignments [post]
func (h *TutorAssignmentHandler) Assign(c *gin.Context) {
	var req service.AssignTutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListMine godoc
// @Summary List own tutor ranges
// @Tags Tutors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tutor-assignments/mine [get]
func (h *TutorAssignmentHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignments, err := h.service.ListForFaculty(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Revoke godoc
// @Summary Revoke tutor range
// @Tags Tutors
// @Param facultyId path string true "Faculty ID"
// @Param sectionId path string true "Section ID"
// @Success 204
// @Router /tutor-assignments/{facultyId}/{sectionId} [delete]
func (h *TutorAssignmentHandler) Revoke(c *gin.Context) {
	if err := h.service.Revoke(c.Request.Context(), c.Param("facultyId"), c.Param("sectionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
