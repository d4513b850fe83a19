package domain

import (
	"fmt"
	"time"
)

type TimeSlot struct {
	ID                    int64     `json:"-"`
	DocumentID            string    `json:"documentId"`
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	MaxBookings           int       `json:"max_bookings"`
	MaxReservations       *int      `json:"max_reservations,omitempty"`
	AvailableReservations *int      `json:"available_reservations,omitempty"`
	Label                 string    `json:"label"`
}

func (t TimeSlot) Ref() TimeSlotRef {
	return TimeSlotRef{DocumentID: t.DocumentID, Start: t.Start, End: t.End, Label: t.Label}
}

// TimeSlotUsage is a time slot together with the number of bookings that
// reference it, not counting the booking being edited.
type TimeSlotUsage struct {
	DocumentID  string
	MaxBookings int
	Committed   int
}

// Capacity is the number of bookings a slot may carry. It scales with the
// global max_time_slots setting, not only with the slot's own max_bookings.
func Capacity(maxBookings, maxTimeSlots int) int {
	return maxBookings * maxTimeSlots
}

// Available reports whether one more booking fits into the slot.
func (u TimeSlotUsage) Available(maxTimeSlots int) bool {
	return u.Committed < Capacity(u.MaxBookings, maxTimeSlots)
}

var weekdays = [...]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"}

// TimeSlotLabel renders a slot as e.g. "Sa., 06.12.2025, 16:00 - 16:30 Uhr".
func TimeSlotLabel(start, end time.Time, loc *time.Location) string {
	if loc != nil {
		start = start.In(loc)
		end = end.In(loc)
	}
	return fmt.Sprintf("%s., %s, %s - %s Uhr",
		weekdays[start.Weekday()],
		start.Format("02.01.2006"),
		start.Format("15:04"),
		end.Format("15:04"),
	)
}
