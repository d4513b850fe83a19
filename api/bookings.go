package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
	limiter *RateLimiter
}

// updateRequest carries exactly one wizard step in data.
type updateRequest struct {
	Data struct {
		ContactPerson   *domain.ContactPerson `json:"contact_person"`
		Location        *domain.Location      `json:"location"`
		PresentLocation *string               `json:"present_location"`
		TimeSlots       *[]string             `json:"time_slots"`
		Children        *[]domain.Child       `json:"children"`
		AdditionalNotes *string               `json:"additional_notes"`
	} `json:"data"`
}

type submissionMeta struct {
	Message         string `json:"message,omitempty"`
	NeededToCleanUp bool   `json:"neededToCleanUpFullyBookedTimeSlots"`
}

func NewBookingHandler(service booking.BookingUseCase, limiter *RateLimiter) *BookingHandler {
	return &BookingHandler{service: service, limiter: limiter}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/bookings", h.limiter.Limit(), h.create)
	router.GET("/bookings/:id", h.get)
	router.PUT("/bookings/:id", h.update)
	router.POST("/bookings/:id/verification-email", h.limiter.Limit(), h.requestVerification)
	router.POST("/bookings/:id/confirm", h.confirm)
	router.GET("/verify-email", h.verifyEmail)
}

func (h *BookingHandler) create(c *gin.Context) {
	b, err := h.service.Create(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, b, nil)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, b, nil)
}

func (h *BookingHandler) update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Validation("invalid request body", nil))
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	d := req.Data

	var (
		sub *booking.Submission
		err error
	)
	switch {
	case d.ContactPerson != nil:
		sub, err = h.service.UpdateContact(ctx, id, *d.ContactPerson)
	case d.Location != nil || d.PresentLocation != nil:
		var loc domain.Location
		if d.Location != nil {
			loc = *d.Location
		}
		sub, err = h.service.UpdateAddress(ctx, id, loc, deref(d.PresentLocation))
	case d.TimeSlots != nil:
		sub, err = h.service.UpdateTimeSlots(ctx, id, *d.TimeSlots)
	case d.Children != nil || d.AdditionalNotes != nil:
		var children []domain.Child
		if d.Children != nil {
			children = *d.Children
		}
		sub, err = h.service.UpdateChildren(ctx, id, children, deref(d.AdditionalNotes))
	default:
		err = apperr.Validation("data must contain one booking step", nil)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	respondSubmission(c, sub)
}

func (h *BookingHandler) requestVerification(c *gin.Context) {
	b, err := h.service.RequestVerification(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusAccepted, b, nil)
}

func (h *BookingHandler) confirm(c *gin.Context) {
	sub, err := h.service.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	respondSubmission(c, sub)
}

func (h *BookingHandler) verifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		writeError(c, apperr.Validation("token is required", nil))
		return
	}
	b, err := h.service.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, b, nil)
}

func respondSubmission(c *gin.Context, sub *booking.Submission) {
	respond(c, http.StatusOK, sub.Booking, submissionMeta{
		Message:         sub.Message,
		NeededToCleanUp: sub.NeededToCleanUp,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
