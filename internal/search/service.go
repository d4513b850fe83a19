// Package search finds time slots by free text. Meilisearch is used when it
// is configured and healthy; otherwise labels are matched in memory.
package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/textnorm"
)

// Record is the indexed form of a time slot.
type Record struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Start   int64  `json:"start"`
}

type Searcher interface {
	Healthy() bool
	Search(query string) ([]string, error)
	Index(records []Record) error
}

type Service struct {
	searcher Searcher
	loc      *time.Location
	logger   logrus.FieldLogger
}

// NewService creates a search service. searcher may be nil.
func NewService(searcher Searcher, loc *time.Location, logger logrus.FieldLogger) *Service {
	return &Service{searcher: searcher, loc: loc, logger: logger}
}

// NewRecord builds the index record of slot.
func NewRecord(slot domain.TimeSlot, loc *time.Location) Record {
	start := slot.Start
	if loc != nil {
		start = start.In(loc)
	}
	label := slot.Label
	if label == "" {
		label = domain.TimeSlotLabel(slot.Start, slot.End, loc)
	}
	return Record{
		ID:      slot.DocumentID,
		Label:   label,
		Date:    start.Format("02.01.2006"),
		Weekday: weekdayNames[start.Weekday()],
		Start:   start.Unix(),
	}
}

var weekdayNames = [...]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"}

// Filter keeps the slots matching query, in their original order. A blank
// query keeps everything.
func (s *Service) Filter(query string, slots []domain.TimeSlot) []domain.TimeSlot {
	query = textnorm.Trim(query)
	if query == "" {
		return slots
	}

	if s.searcher != nil && s.searcher.Healthy() {
		ids, err := s.searcher.Search(query)
		if err == nil {
			hit := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				hit[id] = struct{}{}
			}
			return keep(slots, func(slot domain.TimeSlot) bool {
				_, ok := hit[slot.DocumentID]
				return ok
			})
		}
		s.logger.WithError(err).Warn("search: meilisearch error, falling back to label match")
	}

	terms := strings.Fields(strings.ToLower(query))
	return keep(slots, func(slot domain.TimeSlot) bool {
		r := NewRecord(slot, s.loc)
		haystack := strings.ToLower(r.Label + " " + r.Weekday)
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				return false
			}
		}
		return true
	})
}

// IndexTimeSlots pushes slots to the search index in the background.
func (s *Service) IndexTimeSlots(slots []domain.TimeSlot) {
	if !s.indexable() || len(slots) == 0 {
		return
	}
	records := s.records(slots)
	go func() {
		if err := s.searcher.Index(records); err != nil {
			s.logger.WithError(err).Warn("search: index time slots")
		}
	}()
}

// Reindex pushes every slot to the search index and waits for the request to
// be accepted. It is a no-op without a healthy searcher.
func (s *Service) Reindex(slots []domain.TimeSlot) error {
	if !s.indexable() || len(slots) == 0 {
		return nil
	}
	if err := s.searcher.Index(s.records(slots)); err != nil {
		return fmt.Errorf("search: reindex %d time slots: %w", len(slots), err)
	}
	s.logger.WithField("count", len(slots)).Info("search: time slots reindexed")
	return nil
}

func (s *Service) indexable() bool {
	return s.searcher != nil && s.searcher.Healthy()
}

func (s *Service) records(slots []domain.TimeSlot) []Record {
	records := make([]Record, 0, len(slots))
	for _, slot := range slots {
		records = append(records, NewRecord(slot, s.loc))
	}
	return records
}

func keep(slots []domain.TimeSlot, pred func(domain.TimeSlot) bool) []domain.TimeSlot {
	out := make([]domain.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if pred(slot) {
			out = append(out, slot)
		}
	}
	return out
}
