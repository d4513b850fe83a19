package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/nikolaus/internal/service/timeslots"
)

type TimeSlotHandler struct {
	service timeslots.TimeSlotUseCase
}

func NewTimeSlotHandler(service timeslots.TimeSlotUseCase) *TimeSlotHandler {
	return &TimeSlotHandler{service: service}
}

func (h *TimeSlotHandler) Register(router *gin.RouterGroup) {
	router.GET("/time-slots", h.list)
}

// list accepts ?booking=<documentId> so a booking's own reservations do not
// count against the slots it already holds.
func (h *TimeSlotHandler) list(c *gin.Context) {
	slots, err := h.service.List(c.Request.Context(), c.Query("booking"), c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, slots, nil)
}
