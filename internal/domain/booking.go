package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Domenick1991/nikolaus/internal/tree"
)

type ContactPerson struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

type Location struct {
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	ZipCode     string `json:"zip_code"`
	Place       string `json:"place"`
}

// Child is identified by its position; ID only serves as a display key.
type Child struct {
	ID                  string `json:"id,omitempty"`
	Name                string `json:"name"`
	IdentificationTrait string `json:"identification_trait"`
	Speech              string `json:"speech"`
}

// TimeSlotRef is the view of a time slot embedded in a booking.
type TimeSlotRef struct {
	DocumentID string    `json:"documentId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Label      string    `json:"label,omitempty"`
}

type Booking struct {
	ID              int64         `json:"-"`
	DocumentID      string        `json:"documentId"`
	ContactPerson   ContactPerson `json:"contact_person"`
	Location        Location      `json:"location"`
	PresentLocation string        `json:"present_location"`
	Children        []Child       `json:"children"`
	TimeSlots       []TimeSlotRef `json:"time_slots"`
	AdditionalNotes string        `json:"additional_notes"`
	EmailVerified   bool          `json:"email_verified"`
	ConfirmedAt     *time.Time    `json:"confirmed_at"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// TimeSlotIDs returns the document ids of the selected time slots in booking order.
func (b Booking) TimeSlotIDs() []string {
	ids := make([]string, 0, len(b.TimeSlots))
	for _, ts := range b.TimeSlots {
		ids = append(ids, ts.DocumentID)
	}
	return ids
}

// Clone returns a deep copy; the slices of the copy can be edited freely.
func (b Booking) Clone() Booking {
	c := b
	if b.Children != nil {
		c.Children = append([]Child{}, b.Children...)
	}
	if b.TimeSlots != nil {
		c.TimeSlots = append([]TimeSlotRef{}, b.TimeSlots...)
	}
	if b.ConfirmedAt != nil {
		at := *b.ConfirmedAt
		c.ConfirmedAt = &at
	}
	return c
}

// BookingShape declares the fields a booking payload may populate.
func BookingShape() *tree.Node {
	return tree.Object(
		tree.F("documentId", tree.String("")),
		tree.F("contact_person", tree.Object(
			tree.F("first_name", tree.String("")),
			tree.F("last_name", tree.String("")),
			tree.F("email", tree.String("")),
			tree.F("phone_number", tree.String("")),
		)),
		tree.F("location", tree.Object(
			tree.F("street", tree.String("")),
			tree.F("house_number", tree.String("")),
			tree.F("zip_code", tree.String("")),
			tree.F("place", tree.String("")),
		)),
		tree.F("present_location", tree.String("")),
		tree.F("children", tree.Array()),
		tree.F("time_slots", tree.Array()),
		tree.F("additional_notes", tree.String("")),
		tree.F("email_verified", tree.Bool(false)),
		tree.F("confirmed_at", tree.Time(time.Time{})),
		tree.F("createdAt", tree.Time(time.Time{})),
		tree.F("updatedAt", tree.Time(time.Time{})),
	)
}

// BookingFromPayload fills a fresh booking shape from an API payload. Fields
// the shape does not declare are dropped.
func BookingFromPayload(payload *tree.Node) (Booking, error) {
	shape := BookingShape()
	tree.Update(shape, payload, false)

	var b Booking
	if err := shape.Decode(&b); err != nil {
		return Booking{}, fmt.Errorf("decode booking payload: %w", err)
	}
	return b, nil
}

// HasChanges compares a working copy against the last persisted snapshot.
// Selected time slots are taken from selectedTimeSlotIDs and compared as a set;
// every other list is order-sensitive.
func HasChanges(current, snapshot Booking, selectedTimeSlotIDs []string) bool {
	cur, err := tree.Encode(current)
	if err != nil {
		return true
	}
	snap, err := tree.Encode(snapshot)
	if err != nil {
		return true
	}
	return tree.Changed(cur, snap, tree.WithKeyTransform("time_slots", func(_, _ *tree.Node) (*tree.Node, *tree.Node) {
		return tree.Strings(sortedCopy(selectedTimeSlotIDs)...), tree.Strings(sortedCopy(snapshot.TimeSlotIDs())...)
	}))
}

func sortedCopy(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

// BookingHistory is an append-only audit row written on every mutation.
type BookingHistory struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	BookingID int64           `json:"booking"`
	State     json.RawMessage `json:"state"`
	Change    json.RawMessage `json:"change"`
}
