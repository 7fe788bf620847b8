package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-admin-api/internal/service"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
	"github.com/noah-isme/college-admin-api/pkg/response"
)

// AllocationHandler exposes subject allocation endpoints.
type AllocationHandler struct {
	service *service.AllocationService
}

// NewAllocationHandler constructs an allocation handler.
func NewAllocationHandler(svc *service.AllocationService) *AllocationHandler {
	return &AllocationHandler{service: svc}
}

// ReplaceGeneral godoc
// @Summary Replace general allocations
// @Description Swap the full set of section-less faculty bindings for a subject
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body service.ReplaceGeneralRequest true "Allocation payload"
// @Success 200 {object} response.Envelope
// @Router /allocations/general [put]
func (h *AllocationHandler) ReplaceGeneral(c *gin.Context) {
	var req service.ReplaceGeneralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.ReplaceGeneralAllocations(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"replaced": true}, nil)
}

// ListForSection godoc
// @Summary List allocations for section
// @Description List scoped and general allocations covering a section
// @Tags Allocations
// @Produce json
// @Param id path string true "Section ID"
// @Param activeOnly query bool false "Only active allocations"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/allocations [get]
func (h *AllocationHandler) ListForSection(c *gin.Context) {
	activeOnly := true
	if raw := c.Query("activeOnly"); raw != "" {
		if val, err := strconv.ParseBool(raw); err == nil {
			activeOnly = val
		}
	}
	allocs, err := h.service.ListForSection(c.Request.Context(), c.Param("id"), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocs, nil)
}
