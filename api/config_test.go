package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/richtext"
	"github.com/Domenick1991/nikolaus/internal/service/timeslots"
)

type MockSettingsUseCase struct {
	mock.Mock
}

func (m *MockSettingsUseCase) Get(ctx context.Context) (domain.Settings, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Settings), args.Error(1)
}

func (m *MockSettingsUseCase) Update(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	args := m.Called(ctx, settings)
	return args.Get(0).(domain.Settings), args.Error(1)
}

type MockTimeSlotUseCase struct {
	mock.Mock
}

func (m *MockTimeSlotUseCase) List(ctx context.Context, bookingID, search string) ([]domain.TimeSlot, error) {
	args := m.Called(ctx, bookingID, search)
	return args.Get(0).([]domain.TimeSlot), args.Error(1)
}

func (m *MockTimeSlotUseCase) FilterOnlyPossibleTimeSlots(ctx context.Context, candidateIDs []string, excludingBookingID string) ([]string, error) {
	args := m.Called(ctx, candidateIDs, excludingBookingID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTimeSlotUseCase) SanitizeTimeSlots(ctx context.Context, selection []string, bookingID string) (timeslots.Sanitized, error) {
	args := m.Called(ctx, selection, bookingID)
	return args.Get(0).(timeslots.Sanitized), args.Error(1)
}

func (m *MockTimeSlotUseCase) Upsert(ctx context.Context, slot domain.TimeSlot) (domain.TimeSlot, error) {
	args := m.Called(ctx, slot)
	return args.Get(0).(domain.TimeSlot), args.Error(1)
}

func TestConfigHandler_get(t *testing.T) {
	mockService := &MockSettingsUseCase{}
	renderer, err := richtext.NewHTMLRenderer(nil)
	require.NoError(t, err)
	handler := NewConfigHandler(mockService, renderer)
	c, w := newTestContext(http.MethodGet, "/api/config", nil)

	mockService.On("Get", c.Request.Context()).Return(domain.Settings{
		MaxTimeSlots:     2,
		FinalDeadline:    time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC),
		IntroductionText: richtext.Blocks{richtext.Heading(2, richtext.Txt("Hi"))},
		VerificationEmail: domain.EmailTemplate{
			Subject: "intern",
		},
	}, nil)

	handler.get(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &got))
	assert.Equal(t, `<h2 class="text-3xl font-bold mb-3">Hi</h2>`, got["introduction_html"])
	assert.Equal(t, float64(2), got["max_time_slots"])
	assert.Nil(t, got["route_planning_deadline"])
	assert.Equal(t, "2025-12-05T00:00:00Z", got["final_deadline"])
	assert.NotContains(t, got, "verification_email")
}

func TestTimeSlotHandler_list(t *testing.T) {
	mockService := &MockTimeSlotUseCase{}
	handler := NewTimeSlotHandler(mockService)
	c, w := newTestContext(http.MethodGet, "/api/time-slots?booking=doc-1&search=samstag", nil)

	available := 1
	mockService.On("List", c.Request.Context(), "doc-1", "samstag").Return([]domain.TimeSlot{
		{DocumentID: "ts-a", AvailableReservations: &available, Label: "Sa., 06.12.2025, 16:00 - 16:30 Uhr"},
	}, nil)

	handler.list(c)

	require.Equal(t, http.StatusOK, w.Code)
	var slots []domain.TimeSlot
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &slots))
	require.Len(t, slots, 1)
	assert.Equal(t, 1, *slots[0].AvailableReservations)
}
