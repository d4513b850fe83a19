package repository

import (
	"context"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TimeSlotRepository interface {
	List(ctx context.Context) ([]domain.TimeSlot, error)
	Usage(ctx context.Context, documentIDs []string, excludingBookingID string) ([]domain.TimeSlotUsage, error)
	Upsert(ctx context.Context, slot *domain.TimeSlot) error
}

type PGTimeSlotRepository struct {
	db *pgxpool.Pool
}

func NewTimeSlotRepository(db *pgxpool.Pool) TimeSlotRepository {
	return &PGTimeSlotRepository{db: db}
}

func (r *PGTimeSlotRepository) List(ctx context.Context) ([]domain.TimeSlot, error) {
	rows, err := r.db.Query(ctx, `SELECT id, document_id, start_at, end_at, max_bookings FROM time_slots ORDER BY start_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.TimeSlot
	for rows.Next() {
		var s domain.TimeSlot
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Start, &s.End, &s.MaxBookings); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// Usage counts the bookings referencing each slot, ignoring the booking with
// document id excludingBookingID. A nil documentIDs selects every slot.
func (r *PGTimeSlotRepository) Usage(ctx context.Context, documentIDs []string, excludingBookingID string) ([]domain.TimeSlotUsage, error) {
	rows, err := r.db.Query(ctx, `SELECT ts.document_id, ts.max_bookings,
			COUNT(b.id) FILTER (WHERE b.document_id IS DISTINCT FROM $2)
		FROM time_slots ts
		LEFT JOIN booking_time_slots bts ON bts.time_slot_id = ts.id
		LEFT JOIN bookings b ON b.id = bts.booking_id
		WHERE $1::text[] IS NULL OR ts.document_id = ANY($1)
		GROUP BY ts.id
		ORDER BY ts.start_at, ts.id`, documentIDs, excludingBookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usage []domain.TimeSlotUsage
	for rows.Next() {
		var u domain.TimeSlotUsage
		if err := rows.Scan(&u.DocumentID, &u.MaxBookings, &u.Committed); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

func (r *PGTimeSlotRepository) Upsert(ctx context.Context, slot *domain.TimeSlot) error {
	return r.db.QueryRow(ctx, `INSERT INTO time_slots (document_id, start_at, end_at, max_bookings)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id) DO UPDATE
			SET start_at=EXCLUDED.start_at, end_at=EXCLUDED.end_at, max_bookings=EXCLUDED.max_bookings, updated_at=now()
		RETURNING id`, slot.DocumentID, slot.Start, slot.End, slot.MaxBookings).Scan(&slot.ID)
}

var _ TimeSlotRepository = (*PGTimeSlotRepository)(nil)
