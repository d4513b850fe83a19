package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByDocumentID(ctx context.Context, documentID string) (*domain.Booking, error)
	Save(ctx context.Context, booking *domain.Booking, change json.RawMessage) error
	DeleteUnverifiedBefore(ctx context.Context, deadline time.Time) ([]string, error)
	ListByTimeSlot(ctx context.Context, timeSlotDocumentID string) ([]domain.Booking, error)
	ListHistory(ctx context.Context, documentID string) ([]domain.BookingHistory, error)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `b.id, b.document_id, b.first_name, b.last_name, b.email, b.phone_number,
	b.street, b.house_number, b.zip_code, b.place, b.present_location, b.children,
	b.additional_notes, b.email_verified, b.confirmed_at, b.created_at, b.updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.DocumentID,
		&b.ContactPerson.FirstName, &b.ContactPerson.LastName, &b.ContactPerson.Email, &b.ContactPerson.PhoneNumber,
		&b.Location.Street, &b.Location.HouseNumber, &b.Location.ZipCode, &b.Location.Place,
		&b.PresentLocation, &b.Children, &b.AdditionalNotes, &b.EmailVerified, &b.ConfirmedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `INSERT INTO bookings (document_id) VALUES ($1) RETURNING id, created_at, updated_at`, booking.DocumentID).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}
	booking.Children = []domain.Child{}
	booking.TimeSlots = []domain.TimeSlotRef{}

	if err := insertHistory(ctx, tx, booking, json.RawMessage(`{}`)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.document_id=$1`, documentID))
	if err != nil {
		return nil, err
	}
	if err := loadTimeSlots(ctx, r.db, b); err != nil {
		return nil, err
	}
	return b, nil
}

func loadTimeSlots(ctx context.Context, q querier, b *domain.Booking) error {
	rows, err := q.Query(ctx, `SELECT ts.document_id, ts.start_at, ts.end_at
		FROM booking_time_slots bts
		JOIN time_slots ts ON ts.id = bts.time_slot_id
		WHERE bts.booking_id=$1
		ORDER BY bts.position`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	b.TimeSlots = []domain.TimeSlotRef{}
	for rows.Next() {
		var ref domain.TimeSlotRef
		if err := rows.Scan(&ref.DocumentID, &ref.Start, &ref.End); err != nil {
			return err
		}
		b.TimeSlots = append(b.TimeSlots, ref)
	}
	return rows.Err()
}

// Save writes every field of booking, replaces its time-slot selection and
// appends a history row, all in one transaction.
func (r *PGBookingRepository) Save(ctx context.Context, booking *domain.Booking, change json.RawMessage) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	children := booking.Children
	if children == nil {
		children = []domain.Child{}
	}
	c, l := booking.ContactPerson, booking.Location
	err = tx.QueryRow(ctx, `UPDATE bookings SET
			first_name=$2, last_name=$3, email=$4, phone_number=$5,
			street=$6, house_number=$7, zip_code=$8, place=$9,
			present_location=$10, children=$11, additional_notes=$12,
			email_verified=$13, confirmed_at=$14, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		booking.ID,
		c.FirstName, c.LastName, c.Email, c.PhoneNumber,
		l.Street, l.HouseNumber, l.ZipCode, l.Place,
		booking.PresentLocation, children, booking.AdditionalNotes,
		booking.EmailVerified, booking.ConfirmedAt,
	).Scan(&booking.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM booking_time_slots WHERE booking_id=$1`, booking.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO booking_time_slots (booking_id, time_slot_id, position)
		SELECT $1, ts.id, x.ord
		FROM unnest($2::text[]) WITH ORDINALITY AS x(document_id, ord)
		JOIN time_slots ts ON ts.document_id = x.document_id`, booking.ID, booking.TimeSlotIDs()); err != nil {
		return err
	}
	if err := loadTimeSlots(ctx, tx, booking); err != nil {
		return err
	}

	if err := insertHistory(ctx, tx, booking, change); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertHistory(ctx context.Context, tx pgx.Tx, booking *domain.Booking, change json.RawMessage) error {
	state, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("encode booking state: %w", err)
	}
	if len(change) == 0 {
		change = json.RawMessage(`{}`)
	}
	_, err = tx.Exec(ctx, `INSERT INTO booking_histories (booking_id, state, change) VALUES ($1, $2, $3)`, booking.ID, state, []byte(change))
	return err
}

// DeleteUnverifiedBefore removes bookings that were never verified nor
// confirmed and were created before deadline. Their time slots are released
// by the cascade.
func (r *PGBookingRepository) DeleteUnverifiedBefore(ctx context.Context, deadline time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM bookings
		WHERE email_verified = FALSE AND confirmed_at IS NULL AND created_at <= $1
		RETURNING document_id`, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

// ListByTimeSlot returns the bookings of one slot ordered for route planning.
func (r *PGBookingRepository) ListByTimeSlot(ctx context.Context, timeSlotDocumentID string) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+`
		FROM bookings b
		JOIN booking_time_slots bts ON bts.booking_id = b.id
		JOIN time_slots ts ON ts.id = bts.time_slot_id
		WHERE ts.document_id=$1
		ORDER BY b.zip_code, b.street, b.house_number`, timeSlotDocumentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) ListHistory(ctx context.Context, documentID string) ([]domain.BookingHistory, error) {
	rows, err := r.db.Query(ctx, `SELECT h.id, h.timestamp, h.booking_id, h.state, h.change
		FROM booking_histories h
		JOIN bookings b ON b.id = h.booking_id
		WHERE b.document_id=$1
		ORDER BY h.timestamp, h.id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.BookingHistory
	for rows.Next() {
		var h domain.BookingHistory
		var state, change []byte
		if err := rows.Scan(&h.ID, &h.Timestamp, &h.BookingID, &state, &change); err != nil {
			return nil, err
		}
		h.State, h.Change = state, change
		history = append(history, h)
	}
	return history, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
