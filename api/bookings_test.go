package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/service/booking"
	"github.com/Domenick1991/nikolaus/internal/service/timeslots"
	"github.com/Domenick1991/nikolaus/internal/validation"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) booking(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) submission(args mock.Arguments) (*booking.Submission, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Submission), args.Error(1)
}

func (m *MockBookingUseCase) Create(ctx context.Context) (*domain.Booking, error) {
	return m.booking(m.Called(ctx))
}

func (m *MockBookingUseCase) Get(ctx context.Context, documentID string) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, documentID))
}

func (m *MockBookingUseCase) UpdateContact(ctx context.Context, documentID string, contact domain.ContactPerson) (*booking.Submission, error) {
	return m.submission(m.Called(ctx, documentID, contact))
}

func (m *MockBookingUseCase) UpdateAddress(ctx context.Context, documentID string, location domain.Location, presentLocation string) (*booking.Submission, error) {
	return m.submission(m.Called(ctx, documentID, location, presentLocation))
}

func (m *MockBookingUseCase) UpdateTimeSlots(ctx context.Context, documentID string, timeSlotIDs []string) (*booking.Submission, error) {
	return m.submission(m.Called(ctx, documentID, timeSlotIDs))
}

func (m *MockBookingUseCase) UpdateChildren(ctx context.Context, documentID string, children []domain.Child, additionalNotes string) (*booking.Submission, error) {
	return m.submission(m.Called(ctx, documentID, children, additionalNotes))
}

func (m *MockBookingUseCase) RequestVerification(ctx context.Context, documentID string) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, documentID))
}

func (m *MockBookingUseCase) VerifyEmail(ctx context.Context, token string) (*domain.Booking, error) {
	return m.booking(m.Called(ctx, token))
}

func (m *MockBookingUseCase) Confirm(ctx context.Context, documentID string) (*booking.Submission, error) {
	return m.submission(m.Called(ctx, documentID))
}

func (m *MockBookingUseCase) ExpireUnverified(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBookingUseCase) ListByTimeSlot(ctx context.Context, timeSlotID string) ([]domain.Booking, error) {
	args := m.Called(ctx, timeSlotID)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) History(ctx context.Context, documentID string) ([]domain.BookingHistory, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).([]domain.BookingHistory), args.Error(1)
}

type testEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *errorBody      `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func newTestContext(method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)
	c, w := newTestContext(http.MethodPost, "/api/bookings", nil)

	mockService.On("Create", c.Request.Context()).Return(&domain.Booking{DocumentID: "doc-1"}, nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var b domain.Booking
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &b))
	assert.Equal(t, "doc-1", b.DocumentID)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_get_NotFound(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)
	c, w := newTestContext(http.MethodGet, "/api/bookings/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	mockService.On("Get", c.Request.Context(), "missing").Return(nil, apperr.NotFound("booking not found"))

	handler.get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	assert.Equal(t, "null", string(env.Data))
	require.NotNil(t, env.Error)
	assert.Equal(t, "NotFoundError", env.Error.Name)
	assert.Equal(t, 404, env.Error.Status)
}

func TestBookingHandler_update(t *testing.T) {
	contact := domain.ContactPerson{FirstName: "Anna", LastName: "Muster", Email: "anna@example.org", PhoneNumber: "0170 1234567"}

	tests := []struct {
		name  string
		body  string
		setup func(m *MockBookingUseCase, ctx context.Context)
	}{
		{
			name: "contact",
			body: `{"data":{"contact_person":{"first_name":"Anna","last_name":"Muster","email":"anna@example.org","phone_number":"0170 1234567"}}}`,
			setup: func(m *MockBookingUseCase, ctx context.Context) {
				m.On("UpdateContact", ctx, "doc-1", contact).Return(&booking.Submission{Booking: &domain.Booking{DocumentID: "doc-1"}}, nil)
			},
		},
		{
			name: "address",
			body: `{"data":{"location":{"street":"Hauptstraße"},"present_location":"Garage"}}`,
			setup: func(m *MockBookingUseCase, ctx context.Context) {
				m.On("UpdateAddress", ctx, "doc-1", domain.Location{Street: "Hauptstraße"}, "Garage").
					Return(&booking.Submission{Booking: &domain.Booking{DocumentID: "doc-1"}}, nil)
			},
		},
		{
			name: "present location only",
			body: `{"data":{"present_location":"Garage"}}`,
			setup: func(m *MockBookingUseCase, ctx context.Context) {
				m.On("UpdateAddress", ctx, "doc-1", domain.Location{}, "Garage").
					Return(&booking.Submission{Booking: &domain.Booking{DocumentID: "doc-1"}}, nil)
			},
		},
		{
			name: "time slots",
			body: `{"data":{"time_slots":["ts-a","ts-b"]}}`,
			setup: func(m *MockBookingUseCase, ctx context.Context) {
				m.On("UpdateTimeSlots", ctx, "doc-1", []string{"ts-a", "ts-b"}).
					Return(&booking.Submission{Booking: &domain.Booking{DocumentID: "doc-1"}}, nil)
			},
		},
		{
			name: "children",
			body: `{"data":{"children":[{"name":"Max","identification_trait":"Mütze","speech":"Lob"}],"additional_notes":"Hund"}}`,
			setup: func(m *MockBookingUseCase, ctx context.Context) {
				m.On("UpdateChildren", ctx, "doc-1", []domain.Child{{Name: "Max", IdentificationTrait: "Mütze", Speech: "Lob"}}, "Hund").
					Return(&booking.Submission{Booking: &domain.Booking{DocumentID: "doc-1"}}, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			handler := NewBookingHandler(mockService, nil)
			c, w := newTestContext(http.MethodPut, "/api/bookings/doc-1", nil)
			c.Request = httptest.NewRequest(http.MethodPut, "/api/bookings/doc-1", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")
			c.Params = gin.Params{{Key: "id", Value: "doc-1"}}

			tt.setup(mockService, c.Request.Context())

			handler.update(c)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, false, decode(t, w).Meta["neededToCleanUpFullyBookedTimeSlots"])
			mockService.AssertExpectations(t)
		})
	}
}

func TestBookingHandler_update_CleanupMeta(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)
	c, w := newTestContext(http.MethodPut, "/api/bookings/doc-1", map[string]any{"data": map[string]any{"time_slots": []string{"ts-a"}}})
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}

	mockService.On("UpdateTimeSlots", c.Request.Context(), "doc-1", []string{"ts-a"}).Return(&booking.Submission{
		Booking:         &domain.Booking{DocumentID: "doc-1"},
		Message:         timeslots.CleanupMessage,
		NeededToCleanUp: true,
	}, nil)

	handler.update(c)

	env := decode(t, w)
	assert.Equal(t, true, env.Meta["neededToCleanUpFullyBookedTimeSlots"])
	assert.Equal(t, timeslots.CleanupMessage, env.Meta["message"])
}

func TestBookingHandler_update_Errors(t *testing.T) {
	t.Run("empty data", func(t *testing.T) {
		handler := NewBookingHandler(&MockBookingUseCase{}, nil)
		c, w := newTestContext(http.MethodPut, "/api/bookings/doc-1", map[string]any{"data": map[string]any{}})
		c.Params = gin.Params{{Key: "id", Value: "doc-1"}}

		handler.update(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "ValidationError", decode(t, w).Error.Name)
	})

	t.Run("validation details", func(t *testing.T) {
		mockService := &MockBookingUseCase{}
		handler := NewBookingHandler(mockService, nil)
		c, w := newTestContext(http.MethodPut, "/api/bookings/doc-1", map[string]any{"data": map[string]any{"time_slots": []string{}}})
		c.Params = gin.Params{{Key: "id", Value: "doc-1"}}

		details := validation.Details{Errors: []validation.FieldError{{Path: []string{"time_slots"}, Message: "zu viele", Name: validation.ErrorName}}}
		mockService.On("UpdateTimeSlots", c.Request.Context(), "doc-1", []string{}).Return(nil, apperr.Validation("zu viele", details))

		handler.update(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body struct {
			Error struct {
				Details validation.Details `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, details, body.Error.Details)
	})

	t.Run("internal error", func(t *testing.T) {
		mockService := &MockBookingUseCase{}
		handler := NewBookingHandler(mockService, nil)
		c, w := newTestContext(http.MethodPost, "/api/bookings/doc-1/confirm", nil)
		c.Params = gin.Params{{Key: "id", Value: "doc-1"}}

		mockService.On("Confirm", c.Request.Context(), "doc-1").Return(nil, errors.New("boom"))

		handler.confirm(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "InternalError", decode(t, w).Error.Name)
		assert.Len(t, c.Errors, 1)
	})
}

func TestBookingHandler_verifyEmail(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService, nil)

	c, w := newTestContext(http.MethodGet, "/api/verify-email", nil)
	handler.verifyEmail(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/api/verify-email?token=tok", nil)
	mockService.On("VerifyEmail", c.Request.Context(), "tok").Return(&domain.Booking{DocumentID: "doc-1", EmailVerified: true}, nil)
	handler.verifyEmail(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBookingHandler_RoutesAreRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockService := &MockBookingUseCase{}
	mockService.On("Create", mock.Anything).Return(&domain.Booking{DocumentID: "doc-1"}, nil)

	router := gin.New()
	NewBookingHandler(mockService, NewRateLimiter(1)).Register(router.Group("/api"))

	codes := make([]int, 0, 2)
	for range 2 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/bookings", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusCreated, http.StatusTooManyRequests}, codes)
	mockService.AssertNumberOfCalls(t, "Create", 1)
}
