package timeslots

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/metrics"
	"github.com/Domenick1991/nikolaus/internal/repository"
)

// CleanupMessage is shown when fully booked slots were dropped from a selection.
const CleanupMessage = "Einige der ausgewählten Zeitfenster sind inzwischen ausgebucht und wurden aus Ihrer Auswahl entfernt. Bitte wählen Sie neue Zeitfenster aus."

type TimeSlotUseCase interface {
	List(ctx context.Context, bookingID, search string) ([]domain.TimeSlot, error)
	FilterOnlyPossibleTimeSlots(ctx context.Context, candidateIDs []string, excludingBookingID string) ([]string, error)
	SanitizeTimeSlots(ctx context.Context, selection []string, bookingID string) (Sanitized, error)
	Upsert(ctx context.Context, slot domain.TimeSlot) (domain.TimeSlot, error)
}

type Cache interface {
	GetTimeSlots(ctx context.Context) ([]domain.TimeSlot, error)
	SetTimeSlots(ctx context.Context, slots []domain.TimeSlot) error
	Invalidate(ctx context.Context) error
}

type SettingsProvider interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// Search narrows a slot list by a free-text query and keeps an index of slots.
type Search interface {
	Filter(query string, slots []domain.TimeSlot) []domain.TimeSlot
	IndexTimeSlots(slots []domain.TimeSlot)
	Reindex(slots []domain.TimeSlot) error
}

// Sanitized is the outcome of re-checking a selection against current capacity.
type Sanitized struct {
	IDs             []string
	NeededToCleanUp bool
	Message         string
}

type TimeSlotService struct {
	repo     repository.TimeSlotRepository
	settings SettingsProvider
	cache    Cache
	search   Search
	loc      *time.Location
	logger   logrus.FieldLogger
}

func NewTimeSlotService(
	repo repository.TimeSlotRepository,
	settings SettingsProvider,
	cache Cache,
	search Search,
	loc *time.Location,
	logger logrus.FieldLogger,
) *TimeSlotService {
	return &TimeSlotService{repo: repo, settings: settings, cache: cache, search: search, loc: loc, logger: logger}
}

// List returns every slot with its capacity as seen by bookingID, which may be
// empty for a booking that does not exist yet.
func (s *TimeSlotService) List(ctx context.Context, bookingID, search string) ([]domain.TimeSlot, error) {
	slots, err := s.definitions(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := s.repo.Usage(ctx, nil, bookingID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	committed := make(map[string]int, len(usage))
	for _, u := range usage {
		committed[u.DocumentID] = u.Committed
	}

	out := make([]domain.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		capacity := domain.Capacity(slot.MaxBookings, settings.MaxTimeSlots)
		available := max(capacity-committed[slot.DocumentID], 0)
		slot.MaxReservations = &capacity
		slot.AvailableReservations = &available
		slot.Label = domain.TimeSlotLabel(slot.Start, slot.End, s.loc)
		out = append(out, slot)
	}

	if strings.TrimSpace(search) != "" && s.search != nil {
		out = s.search.Filter(search, out)
	}
	return out, nil
}

// FilterOnlyPossibleTimeSlots keeps the candidates that still have room for
// one more booking once excludingBookingID's own reservations are ignored.
// Unknown ids and duplicates are dropped; candidate order is kept.
func (s *TimeSlotService) FilterOnlyPossibleTimeSlots(ctx context.Context, candidateIDs []string, excludingBookingID string) ([]string, error) {
	if len(candidateIDs) == 0 {
		return []string{}, nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := s.repo.Usage(ctx, candidateIDs, excludingBookingID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	byID := make(map[string]domain.TimeSlotUsage, len(usage))
	for _, u := range usage {
		byID[u.DocumentID] = u
	}

	possible := make([]string, 0, len(candidateIDs))
	seen := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		u, ok := byID[id]
		if !ok || seen[id] || !u.Available(settings.MaxTimeSlots) {
			continue
		}
		seen[id] = true
		possible = append(possible, id)
	}
	return possible, nil
}

// SanitizeTimeSlots re-runs the capacity filter over a selection at submit time.
func (s *TimeSlotService) SanitizeTimeSlots(ctx context.Context, selection []string, bookingID string) (Sanitized, error) {
	possible, err := s.FilterOnlyPossibleTimeSlots(ctx, selection, bookingID)
	if err != nil {
		return Sanitized{}, err
	}
	if len(possible) == len(unique(selection)) {
		return Sanitized{IDs: possible}, nil
	}

	metrics.TimeSlotCleanups.Inc()
	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"selected":   len(selection),
		"kept":       len(possible),
	}).Info("fully booked time slots removed from selection")
	return Sanitized{IDs: possible, NeededToCleanUp: true, Message: CleanupMessage}, nil
}

// Upsert creates or replaces a slot definition.
func (s *TimeSlotService) Upsert(ctx context.Context, slot domain.TimeSlot) (domain.TimeSlot, error) {
	slot.DocumentID = strings.TrimSpace(slot.DocumentID)
	switch {
	case slot.DocumentID == "":
		return domain.TimeSlot{}, apperr.Validation("documentId is required", nil)
	case !slot.End.After(slot.Start):
		return domain.TimeSlot{}, apperr.Validation("end must be after start", nil)
	case slot.MaxBookings < 0:
		return domain.TimeSlot{}, apperr.Validation("max_bookings must not be negative", nil)
	}

	if err := s.repo.Upsert(ctx, &slot); err != nil {
		return domain.TimeSlot{}, apperr.Internal(err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WithError(err).Warn("cache invalidation failed")
		}
	}
	slot.Label = domain.TimeSlotLabel(slot.Start, slot.End, s.loc)

	if s.search != nil {
		if all, err := s.repo.List(ctx); err == nil {
			s.search.IndexTimeSlots(all)
		} else {
			s.logger.WithError(err).Warn("time slots not reindexed")
		}
	}
	return slot, nil
}

// Reindex loads every slot from the database into the search index.
func (s *TimeSlotService) Reindex(ctx context.Context) error {
	if s.search == nil {
		return nil
	}
	slots, err := s.repo.List(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	return s.search.Reindex(slots)
}

// Refs resolves ids to labelled references, in the order given.
func (s *TimeSlotService) Refs(ctx context.Context, ids []string) ([]domain.TimeSlotRef, error) {
	slots, err := s.definitions(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.TimeSlot, len(slots))
	for _, slot := range slots {
		byID[slot.DocumentID] = slot
	}
	refs := make([]domain.TimeSlotRef, 0, len(ids))
	for _, id := range ids {
		if slot, ok := byID[id]; ok {
			slot.Label = domain.TimeSlotLabel(slot.Start, slot.End, s.loc)
			refs = append(refs, slot.Ref())
		}
	}
	return refs, nil
}

func (s *TimeSlotService) definitions(ctx context.Context) ([]domain.TimeSlot, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetTimeSlots(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	slots, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if s.cache != nil {
		_ = s.cache.SetTimeSlots(ctx, slots)
	}
	return slots, nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var _ TimeSlotUseCase = (*TimeSlotService)(nil)
