// Package validation holds the per-step booking validators. Every validator
// returns a map from dotted field path to a German message; an empty map
// means the step is valid.
package validation

import (
	"fmt"
	"strconv"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/textnorm"
)

const (
	PathContact         = "booking.contact_person."
	PathLocation        = "booking.location."
	PathPresentLocation = "booking.present_location"
	PathTimeSlots       = "booking.time_slots"
	PathChildren        = "booking.children"
	PathBooking         = "booking"
)

const (
	msgFirstName           = "Bitte geben Sie Ihren Vornamen ein."
	msgLastName            = "Bitte geben Sie Ihren Nachnamen ein."
	msgEmail               = "Bitte geben Sie Ihre E-Mail-Adresse ein."
	msgPhoneNumber         = "Bitte geben Sie Ihre Telefonnummer ein."
	msgStreet              = "Bitte geben Sie die Straße ein."
	msgHouseNumber         = "Bitte geben Sie die Hausnummer ein."
	msgZipCode             = "Bitte geben Sie die Postleitzahl ein."
	msgPlace               = "Bitte geben Sie den Ort ein."
	msgPresentLocation     = "Bitte beschreiben Sie, wo die Geschenke für den Nikolaus bereitliegen."
	msgTimeSlots           = "Bitte wählen Sie genau %d Zeitfenster aus."
	msgNoChildren          = "Bitte fügen Sie mindestens ein Kind hinzu."
	msgChildName           = "Bitte geben Sie den Namen des Kindes ein."
	msgIdentificationTrait = "Bitte geben Sie ein Erkennungsmerkmal des Kindes an."
	msgSpeech              = "Bitte geben Sie an, was der Nikolaus dem Kind sagen soll."
)

type Messages map[string]string

func (m Messages) Valid() bool { return len(m) == 0 }

// Merge copies other into m and returns m.
func (m Messages) Merge(other Messages) Messages {
	for k, v := range other {
		m[k] = v
	}
	return m
}

func requireFilled(m Messages, path, value, message string) {
	if !textnorm.IsFilled(value) {
		m[path] = message
	}
}

func Contact(c domain.ContactPerson) Messages {
	m := Messages{}
	requireFilled(m, PathContact+"first_name", c.FirstName, msgFirstName)
	requireFilled(m, PathContact+"last_name", c.LastName, msgLastName)
	requireFilled(m, PathContact+"email", c.Email, msgEmail)
	requireFilled(m, PathContact+"phone_number", c.PhoneNumber, msgPhoneNumber)
	return m
}

// Address requires every location field while route planning is open.
// Afterwards only present_location can be edited and is checked.
func Address(loc domain.Location, presentLocation string, canEditRoutePlanning bool) Messages {
	m := Messages{}
	if canEditRoutePlanning {
		requireFilled(m, PathLocation+"street", loc.Street, msgStreet)
		requireFilled(m, PathLocation+"house_number", loc.HouseNumber, msgHouseNumber)
		requireFilled(m, PathLocation+"zip_code", loc.ZipCode, msgZipCode)
		requireFilled(m, PathLocation+"place", loc.Place, msgPlace)
	}
	requireFilled(m, PathPresentLocation, presentLocation, msgPresentLocation)
	return m
}

// TimeSlots requires exactly maxTimeSlots selected slots.
func TimeSlots(ids []string, maxTimeSlots int) Messages {
	m := Messages{}
	if len(ids) != maxTimeSlots {
		m[PathTimeSlots] = fmt.Sprintf(msgTimeSlots, maxTimeSlots)
	}
	return m
}

func Children(children []domain.Child) Messages {
	m := Messages{}
	if len(children) == 0 {
		m[PathChildren] = msgNoChildren
		return m
	}
	for i, child := range children {
		prefix := PathChildren + "." + strconv.Itoa(i) + "."
		requireFilled(m, prefix+"name", child.Name, msgChildName)
		requireFilled(m, prefix+"identification_trait", child.IdentificationTrait, msgIdentificationTrait)
		requireFilled(m, prefix+"speech", child.Speech, msgSpeech)
	}
	return m
}

// Booking runs every step validator.
func Booking(b domain.Booking, maxTimeSlots int, canEditRoutePlanning bool) Messages {
	m := Contact(b.ContactPerson)
	m.Merge(Address(b.Location, b.PresentLocation, canEditRoutePlanning))
	m.Merge(TimeSlots(b.TimeSlotIDs(), maxTimeSlots))
	m.Merge(Children(b.Children))
	return m
}

func TrimContact(c domain.ContactPerson) domain.ContactPerson {
	return domain.ContactPerson{
		FirstName:   textnorm.Trim(c.FirstName),
		LastName:    textnorm.Trim(c.LastName),
		Email:       textnorm.Trim(c.Email),
		PhoneNumber: textnorm.Trim(c.PhoneNumber),
	}
}

func TrimLocation(loc domain.Location) domain.Location {
	return domain.Location{
		Street:      textnorm.Trim(loc.Street),
		HouseNumber: textnorm.Trim(loc.HouseNumber),
		ZipCode:     textnorm.Trim(loc.ZipCode),
		Place:       textnorm.Trim(loc.Place),
	}
}

func TrimChildren(children []domain.Child) []domain.Child {
	if children == nil {
		return nil
	}
	out := make([]domain.Child, len(children))
	for i, c := range children {
		out[i] = domain.Child{
			ID:                  c.ID,
			Name:                textnorm.Trim(c.Name),
			IdentificationTrait: textnorm.Trim(c.IdentificationTrait),
			Speech:              textnorm.Trim(c.Speech),
		}
	}
	return out
}

// TrimBooking trims every free-text field of b.
func TrimBooking(b domain.Booking) domain.Booking {
	b = b.Clone()
	b.ContactPerson = TrimContact(b.ContactPerson)
	b.Location = TrimLocation(b.Location)
	b.PresentLocation = textnorm.Trim(b.PresentLocation)
	b.Children = TrimChildren(b.Children)
	b.AdditionalNotes = textnorm.Trim(b.AdditionalNotes)
	return b
}
