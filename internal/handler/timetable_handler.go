package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-admin-api/internal/service"
	appErrors "github.com/noah-isme/college-admin-api/pkg/errors"
	"github.com/noah-isme/college-admin-api/pkg/response"
)

// TimetableHandler exposes timetable endpoints.
type TimetableHandler struct {
	service *service.TimetableService
}

// NewTimetableHandler constructs a timetable handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// PlaceSlot godoc
// @Summary Place timetable slot
// @Description Assign or clear one weekly period; replaces any slot at the tuple
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body service.PlaceSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/slots [put]
func (h *TimetableHandler) PlaceSlot(c *gin.Context) {
	var req service.PlaceSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	slot, err := h.service.PlaceSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if slot == nil {
		response.JSON(c, http.StatusOK, gin.H{"cleared": true}, nil)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// SectionGrid godoc
// @Summary Section timetable
// @Tags Timetable
// @Produce json
// @Param id path string true "Section ID"
// @Param semester query int false "Semester (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/timetable [get]
func (h *TimetableHandler) SectionGrid(c *gin.Context) {
	semester := 0
	if raw := c.Query("semester"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil {
			semester = val
		}
	}
	entries, err := h.service.SectionGrid(c.Request.Context(), c.Param("id"), semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// FacultyWeek godoc
// @Summary Faculty weekly timetable
// @Tags Timetable
// @Produce json
// @Param id path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /faculty/{id}/timetable [get]
func (h *TimetableHandler) FacultyWeek(c *gin.Context) {
	entries, err := h.service.FacultyWeek(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
