package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/pkg/logger"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("NIKOLAUS_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("NIKOLAUS_TEST_DATABASE_URL is not set")
	}

	require.NoError(t, Migrate(dsn, filepath.Join("..", "..", "migrations"), logger.Discard()))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func insertSlot(t *testing.T, ctx context.Context, repo TimeSlotRepository, pool *pgxpool.Pool, start time.Time, maxBookings int) domain.TimeSlot {
	t.Helper()
	slot := domain.TimeSlot{
		DocumentID:  "ts-" + uuid.NewString(),
		Start:       start,
		End:         start.Add(30 * time.Minute),
		MaxBookings: maxBookings,
	}
	require.NoError(t, repo.Upsert(ctx, &slot))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM time_slots WHERE id = $1`, slot.ID)
	})
	return slot
}

func insertBooking(t *testing.T, ctx context.Context, pool *pgxpool.Pool, slots ...domain.TimeSlot) string {
	t.Helper()
	documentID := uuid.NewString()
	var id int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO bookings (document_id) VALUES ($1) RETURNING id`, documentID).Scan(&id))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM bookings WHERE id = $1`, id)
	})
	for i, slot := range slots {
		_, err := pool.Exec(ctx, `INSERT INTO booking_time_slots (booking_id, time_slot_id, position) VALUES ($1, $2, $3)`, id, slot.ID, i)
		require.NoError(t, err)
	}
	return documentID
}

func TestTimeSlotUsageExcludesEditedBookingPostgres(t *testing.T) {
	pool := testPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repo := NewTimeSlotRepository(pool)

	const maxTimeSlots = 1
	start := time.Date(2025, 12, 6, 16, 0, 0, 0, time.UTC)
	full := insertSlot(t, ctx, repo, pool, start, 2)
	shared := insertSlot(t, ctx, repo, pool, start.Add(time.Hour), 2)

	insertBooking(t, ctx, pool, full)
	insertBooking(t, ctx, pool, full)
	insertBooking(t, ctx, pool, shared)
	edited := insertBooking(t, ctx, pool, shared)

	usage, err := repo.Usage(ctx, []string{full.DocumentID, shared.DocumentID}, edited)
	require.NoError(t, err)
	require.Len(t, usage, 2)

	byID := map[string]domain.TimeSlotUsage{}
	for _, u := range usage {
		byID[u.DocumentID] = u
	}

	assert.Equal(t, 2, byID[full.DocumentID].Committed)
	assert.False(t, byID[full.DocumentID].Available(maxTimeSlots))

	assert.Equal(t, 1, byID[shared.DocumentID].Committed)
	assert.True(t, byID[shared.DocumentID].Available(maxTimeSlots))

	usage, err = repo.Usage(ctx, []string{shared.DocumentID}, "")
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 2, usage[0].Committed)
	assert.False(t, usage[0].Available(maxTimeSlots))
}
