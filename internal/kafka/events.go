package kafka

import (
	"time"

	"github.com/Domenick1991/nikolaus/internal/domain"
)

type EventType string

const (
	EventBookingCreated        EventType = "booking_created"
	EventBookingUpdated        EventType = "booking_updated"
	EventVerificationRequested EventType = "verification_requested"
	EventBookingConfirmed      EventType = "booking_confirmed"
	EventBookingExpired        EventType = "booking_expired"
)

type BookingEvent struct {
	Type       EventType            `json:"type"`
	BookingID  string               `json:"booking_id"`
	Step       string               `json:"step,omitempty"`
	Email      string               `json:"email,omitempty"`
	FirstName  string               `json:"first_name,omitempty"`
	LastName   string               `json:"last_name,omitempty"`
	TimeSlots  []domain.TimeSlotRef `json:"time_slots,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewBookingEvent fills the contact and time-slot fields from b.
func NewBookingEvent(t EventType, b domain.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       t,
		BookingID:  b.DocumentID,
		Email:      b.ContactPerson.Email,
		FirstName:  b.ContactPerson.FirstName,
		LastName:   b.ContactPerson.LastName,
		TimeSlots:  b.TimeSlots,
		OccurredAt: at,
	}
}
