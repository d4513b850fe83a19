package admin_service_api

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/service/booking"
	"github.com/Domenick1991/nikolaus/internal/service/settings"
	"github.com/Domenick1991/nikolaus/internal/service/timeslots"
)

const ServiceName = "nikolaus.admin.v1.Admin"

type Empty struct{}

type TimeSlotMessage struct {
	TimeSlot domain.TimeSlot `json:"time_slot"`
}

type TimeSlotList struct {
	TimeSlots []domain.TimeSlot `json:"time_slots"`
}

type SettingsMessage struct {
	Settings domain.Settings `json:"settings"`
}

type TimeSlotBookingsRequest struct {
	TimeSlotID string `json:"time_slot_id"`
}

type BookingList struct {
	Bookings []domain.Booking `json:"bookings"`
}

type BookingHistoryRequest struct {
	BookingID string `json:"booking_id"`
}

type BookingHistory struct {
	History []domain.BookingHistory `json:"history"`
}

// AdminServer is the organisers' surface: slot maintenance, settings and
// the route-planning view.
type AdminServer interface {
	ListTimeSlots(ctx context.Context, in *Empty) (*TimeSlotList, error)
	UpsertTimeSlot(ctx context.Context, in *TimeSlotMessage) (*TimeSlotMessage, error)
	GetSettings(ctx context.Context, in *Empty) (*SettingsMessage, error)
	UpdateSettings(ctx context.Context, in *SettingsMessage) (*SettingsMessage, error)
	ListTimeSlotBookings(ctx context.Context, in *TimeSlotBookingsRequest) (*BookingList, error)
	ListBookingHistory(ctx context.Context, in *BookingHistoryRequest) (*BookingHistory, error)
}

type Server struct {
	timeSlots timeslots.TimeSlotUseCase
	settings  settings.SettingsUseCase
	bookings  booking.BookingUseCase
}

func NewServer(timeSlots timeslots.TimeSlotUseCase, settings settings.SettingsUseCase, bookings booking.BookingUseCase) *Server {
	return &Server{timeSlots: timeSlots, settings: settings, bookings: bookings}
}

// Register adds the admin service to srv.
func Register(srv grpc.ServiceRegistrar, server AdminServer) {
	srv.RegisterService(&ServiceDesc, server)
}

func (s *Server) ListTimeSlots(ctx context.Context, _ *Empty) (*TimeSlotList, error) {
	slots, err := s.timeSlots.List(ctx, "", "")
	if err != nil {
		return nil, toStatus(err)
	}
	return &TimeSlotList{TimeSlots: slots}, nil
}

func (s *Server) UpsertTimeSlot(ctx context.Context, in *TimeSlotMessage) (*TimeSlotMessage, error) {
	slot, err := s.timeSlots.Upsert(ctx, in.TimeSlot)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TimeSlotMessage{TimeSlot: slot}, nil
}

func (s *Server) GetSettings(ctx context.Context, _ *Empty) (*SettingsMessage, error) {
	current, err := s.settings.Get(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SettingsMessage{Settings: current}, nil
}

func (s *Server) UpdateSettings(ctx context.Context, in *SettingsMessage) (*SettingsMessage, error) {
	updated, err := s.settings.Update(ctx, in.Settings)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SettingsMessage{Settings: updated}, nil
}

// ListTimeSlotBookings returns personal data of families and children. The
// admin listener is unauthenticated and must not be reachable publicly.
func (s *Server) ListTimeSlotBookings(ctx context.Context, in *TimeSlotBookingsRequest) (*BookingList, error) {
	if in.TimeSlotID == "" {
		return nil, status.Error(codes.InvalidArgument, "time_slot_id is required")
	}
	bookings, err := s.bookings.ListByTimeSlot(ctx, in.TimeSlotID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BookingList{Bookings: bookings}, nil
}

func (s *Server) ListBookingHistory(ctx context.Context, in *BookingHistoryRequest) (*BookingHistory, error) {
	history, err := s.bookings.History(ctx, in.BookingID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BookingHistory{History: history}, nil
}

func toStatus(err error) error {
	appErr, ok := apperr.As(err)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	code := codes.Internal
	switch appErr.Kind {
	case apperr.KindNotFound:
		code = codes.NotFound
	case apperr.KindValidation:
		code = codes.InvalidArgument
	case apperr.KindConflict:
		code = codes.Aborted
	case apperr.KindNetwork:
		code = codes.Unavailable
	}
	return status.Error(code, appErr.Message)
}

// LoggingInterceptor logs every admin call with its duration and status code.
func LoggingInterceptor(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start),
		})
		if err != nil {
			entry.WithError(err).Warn("admin call failed")
		} else {
			entry.Info("admin call")
		}
		return resp, err
	}
}

var _ AdminServer = (*Server)(nil)
