package timeslots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/metrics"
	"github.com/Domenick1991/nikolaus/pkg/logger"
)

type MockTimeSlotRepository struct {
	mock.Mock
}

func (m *MockTimeSlotRepository) List(ctx context.Context) ([]domain.TimeSlot, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.TimeSlot), args.Error(1)
}

func (m *MockTimeSlotRepository) Usage(ctx context.Context, documentIDs []string, excludingBookingID string) ([]domain.TimeSlotUsage, error) {
	args := m.Called(ctx, documentIDs, excludingBookingID)
	return args.Get(0).([]domain.TimeSlotUsage), args.Error(1)
}

func (m *MockTimeSlotRepository) Upsert(ctx context.Context, slot *domain.TimeSlot) error {
	args := m.Called(ctx, slot)
	slot.ID = 7
	return args.Error(0)
}

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) Get(ctx context.Context) (domain.Settings, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Settings), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetTimeSlots(ctx context.Context) ([]domain.TimeSlot, error) {
	args := m.Called(ctx)
	slots, _ := args.Get(0).([]domain.TimeSlot)
	return slots, args.Error(1)
}

func (m *MockCache) SetTimeSlots(ctx context.Context, slots []domain.TimeSlot) error {
	args := m.Called(ctx, slots)
	return args.Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockSearch struct {
	mock.Mock
}

func (m *MockSearch) Filter(query string, slots []domain.TimeSlot) []domain.TimeSlot {
	args := m.Called(query, slots)
	return args.Get(0).([]domain.TimeSlot)
}

func (m *MockSearch) IndexTimeSlots(slots []domain.TimeSlot) {
	m.Called(slots)
}

func (m *MockSearch) Reindex(slots []domain.TimeSlot) error {
	args := m.Called(slots)
	return args.Error(0)
}

var start = time.Date(2025, 12, 6, 15, 0, 0, 0, time.UTC)

func definitions() []domain.TimeSlot {
	return []domain.TimeSlot{
		{DocumentID: "ts-a", Start: start, End: start.Add(30 * time.Minute), MaxBookings: 2},
		{DocumentID: "ts-b", Start: start.Add(time.Hour), End: start.Add(90 * time.Minute), MaxBookings: 1},
	}
}

func newService(repo *MockTimeSlotRepository, settings *MockSettings) *TimeSlotService {
	return &TimeSlotService{repo: repo, settings: settings, loc: time.UTC, logger: logger.Discard()}
}

func TestTimeSlotService_List(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	settings := &MockSettings{}
	cache := &MockCache{}
	service := newService(repo, settings)
	service.cache = cache
	ctx := context.Background()

	cache.On("GetTimeSlots", ctx).Return(nil, nil)
	repo.On("List", ctx).Return(definitions(), nil)
	cache.On("SetTimeSlots", ctx, definitions()).Return(nil)
	settings.On("Get", ctx).Return(domain.Settings{MaxTimeSlots: 2}, nil)
	repo.On("Usage", ctx, []string(nil), "doc-1").Return([]domain.TimeSlotUsage{
		{DocumentID: "ts-a", MaxBookings: 2, Committed: 1},
		{DocumentID: "ts-b", MaxBookings: 1, Committed: 3},
	}, nil)

	got, err := service.List(ctx, "doc-1", "")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4, *got[0].MaxReservations)
	assert.Equal(t, 3, *got[0].AvailableReservations)
	assert.Equal(t, 0, *got[1].AvailableReservations)
	assert.Equal(t, "Sa., 06.12.2025, 15:00 - 15:30 Uhr", got[0].Label)
	cache.AssertExpectations(t)
}

func TestTimeSlotService_List_Search(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	settings := &MockSettings{}
	search := &MockSearch{}
	service := newService(repo, settings)
	service.search = search
	ctx := context.Background()

	repo.On("List", ctx).Return(definitions(), nil)
	settings.On("Get", ctx).Return(domain.Settings{MaxTimeSlots: 1}, nil)
	repo.On("Usage", ctx, []string(nil), "").Return([]domain.TimeSlotUsage{}, nil)
	search.On("Filter", "samstag", mock.Anything).Return([]domain.TimeSlot{{DocumentID: "ts-b"}})

	got, err := service.List(ctx, "", "samstag")

	require.NoError(t, err)
	assert.Equal(t, []domain.TimeSlot{{DocumentID: "ts-b"}}, got)
}

func TestTimeSlotService_FilterOnlyPossibleTimeSlots(t *testing.T) {
	tests := []struct {
		name         string
		maxTimeSlots int
		candidates   []string
		usage        []domain.TimeSlotUsage
		want         []string
	}{
		{
			name:         "capacity scales with max time slots",
			maxTimeSlots: 2,
			candidates:   []string{"ts-a", "ts-b"},
			usage: []domain.TimeSlotUsage{
				{DocumentID: "ts-a", MaxBookings: 1, Committed: 1},
				{DocumentID: "ts-b", MaxBookings: 1, Committed: 2},
			},
			want: []string{"ts-a"},
		},
		{
			name:         "unknown and duplicate ids are dropped",
			maxTimeSlots: 1,
			candidates:   []string{"ts-b", "ghost", "ts-b", "ts-a"},
			usage: []domain.TimeSlotUsage{
				{DocumentID: "ts-a", MaxBookings: 3, Committed: 0},
				{DocumentID: "ts-b", MaxBookings: 3, Committed: 2},
			},
			want: []string{"ts-b", "ts-a"},
		},
		{
			name:         "zero max bookings never fits",
			maxTimeSlots: 3,
			candidates:   []string{"ts-a"},
			usage:        []domain.TimeSlotUsage{{DocumentID: "ts-a"}},
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockTimeSlotRepository{}
			settings := &MockSettings{}
			service := newService(repo, settings)
			ctx := context.Background()

			settings.On("Get", ctx).Return(domain.Settings{MaxTimeSlots: tt.maxTimeSlots}, nil)
			repo.On("Usage", ctx, tt.candidates, "doc-1").Return(tt.usage, nil)

			got, err := service.FilterOnlyPossibleTimeSlots(ctx, tt.candidates, "doc-1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeSlotService_FilterOnlyPossibleTimeSlots_Empty(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	settings := &MockSettings{}
	service := newService(repo, settings)

	got, err := service.FilterOnlyPossibleTimeSlots(context.Background(), nil, "")

	require.NoError(t, err)
	assert.Empty(t, got)
	repo.AssertNotCalled(t, "Usage", mock.Anything, mock.Anything, mock.Anything)
}

func TestTimeSlotService_SanitizeTimeSlots(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	settings := &MockSettings{}
	service := newService(repo, settings)
	ctx := context.Background()

	settings.On("Get", ctx).Return(domain.Settings{MaxTimeSlots: 1}, nil)
	repo.On("Usage", ctx, []string{"ts-a", "ts-b"}, "doc-1").Return([]domain.TimeSlotUsage{
		{DocumentID: "ts-a", MaxBookings: 1, Committed: 0},
		{DocumentID: "ts-b", MaxBookings: 1, Committed: 1},
	}, nil).Once()
	repo.On("Usage", ctx, []string{"ts-a"}, "doc-1").Return([]domain.TimeSlotUsage{
		{DocumentID: "ts-a", MaxBookings: 1, Committed: 0},
	}, nil).Once()

	before := testutil.ToFloat64(metrics.TimeSlotCleanups)

	got, err := service.SanitizeTimeSlots(ctx, []string{"ts-a", "ts-b"}, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, Sanitized{IDs: []string{"ts-a"}, NeededToCleanUp: true, Message: CleanupMessage}, got)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TimeSlotCleanups))

	got, err = service.SanitizeTimeSlots(ctx, []string{"ts-a"}, "doc-1")
	require.NoError(t, err)
	assert.False(t, got.NeededToCleanUp)
	assert.Empty(t, got.Message)
}

func TestTimeSlotService_SanitizeTimeSlots_SettingsError(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	settings := &MockSettings{}
	service := newService(repo, settings)
	ctx := context.Background()

	settings.On("Get", ctx).Return(domain.Settings{}, apperr.NotFound("settings not found"))

	_, err := service.SanitizeTimeSlots(ctx, []string{"ts-a"}, "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestTimeSlotService_Upsert(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	cache := &MockCache{}
	search := &MockSearch{}
	service := newService(repo, &MockSettings{})
	service.cache, service.search = cache, search
	ctx := context.Background()

	slot := domain.TimeSlot{DocumentID: " ts-c ", Start: start, End: start.Add(30 * time.Minute), MaxBookings: 2}
	repo.On("Upsert", ctx, mock.AnythingOfType("*domain.TimeSlot")).Return(nil)
	cache.On("Invalidate", ctx).Return(errors.New("redis down"))
	repo.On("List", ctx).Return(definitions(), nil)
	search.On("IndexTimeSlots", definitions()).Return()

	got, err := service.Upsert(ctx, slot)

	require.NoError(t, err)
	assert.Equal(t, "ts-c", got.DocumentID)
	assert.Equal(t, int64(7), got.ID)
	assert.NotEmpty(t, got.Label)
	search.AssertExpectations(t)
}

func TestTimeSlotService_Reindex(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	search := &MockSearch{}
	service := newService(repo, &MockSettings{})
	service.search = search
	ctx := context.Background()

	repo.On("List", ctx).Return(definitions(), nil).Once()
	search.On("Reindex", definitions()).Return(nil).Once()

	require.NoError(t, service.Reindex(ctx))

	repo.On("List", ctx).Return([]domain.TimeSlot(nil), errors.New("db down")).Once()
	err := service.Reindex(ctx)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	search.AssertExpectations(t)
	assert.NoError(t, newService(repo, &MockSettings{}).Reindex(ctx))
}

func TestTimeSlotService_Upsert_Invalid(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	service := newService(repo, &MockSettings{})

	_, err := service.Upsert(context.Background(), domain.TimeSlot{DocumentID: "ts-c", Start: start, End: start})

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestTimeSlotService_Refs(t *testing.T) {
	repo := &MockTimeSlotRepository{}
	service := newService(repo, &MockSettings{})
	ctx := context.Background()

	repo.On("List", ctx).Return(definitions(), nil)

	refs, err := service.Refs(ctx, []string{"ts-b", "ghost", "ts-a"})

	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "ts-b", refs[0].DocumentID)
	assert.Equal(t, "Sa., 06.12.2025, 16:00 - 16:30 Uhr", refs[0].Label)
}
