// Package wizard holds the client-side state of one booking session and
// drives the step submissions against the API.
package wizard

import (
	"time"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/tree"
)

// Store is the working copy of a booking next to the snapshot it was last
// loaded from. Each wizard session owns its own Store.
type Store struct {
	booking  domain.Booking
	snapshot domain.Booking
	selected []string
	settings domain.Settings
}

func NewStore() *Store {
	return &Store{}
}

// Booking returns the working copy for editing.
func (s *Store) Booking() *domain.Booking {
	return &s.booking
}

func (s *Store) Snapshot() domain.Booking {
	return s.snapshot.Clone()
}

func (s *Store) DocumentID() string {
	return s.snapshot.DocumentID
}

// UpdateFromDatabase replaces snapshot, working copy and selection with a
// booking payload fetched from the API.
func (s *Store) UpdateFromDatabase(payload *tree.Node) error {
	b, err := domain.BookingFromPayload(payload)
	if err != nil {
		return err
	}
	s.snapshot = b
	s.RevertToDatabase()
	return nil
}

// RevertToDatabase drops every unsaved edit.
func (s *Store) RevertToDatabase() {
	s.booking = s.snapshot.Clone()
	s.selected = s.snapshot.TimeSlotIDs()
}

func (s *Store) HasChanges() bool {
	return domain.HasChanges(s.booking, s.snapshot, s.selected)
}

func (s *Store) SelectedTimeSlotIDs() []string {
	return append([]string{}, s.selected...)
}

func (s *Store) SetSelectedTimeSlotIDs(ids []string) {
	s.selected = append([]string{}, ids...)
}

// ToggleTimeSlot selects id or removes it from the selection.
func (s *Store) ToggleTimeSlot(id string) {
	for i, sel := range s.selected {
		if sel == id {
			s.selected = append(s.selected[:i:i], s.selected[i+1:]...)
			return
		}
	}
	s.selected = append(s.selected, id)
}

func (s *Store) Settings() domain.Settings {
	return s.settings
}

func (s *Store) SetSettings(settings domain.Settings) {
	s.settings = settings
}

func (s *Store) CanEditRoutePlanning(now time.Time) bool {
	return s.settings.CanEditRoutePlanning(now)
}

func (s *Store) CanEdit(now time.Time) bool {
	return s.settings.CanEdit(now)
}

// IsConfirmed reports whether the persisted booking was confirmed.
func (s *Store) IsConfirmed() bool {
	return s.snapshot.ConfirmedAt != nil && !s.snapshot.ConfirmedAt.IsZero()
}
