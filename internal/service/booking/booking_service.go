package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/kafka"
	"github.com/Domenick1991/nikolaus/internal/metrics"
	"github.com/Domenick1991/nikolaus/internal/repository"
	"github.com/Domenick1991/nikolaus/internal/service/timeslots"
	"github.com/Domenick1991/nikolaus/internal/textnorm"
	"github.com/Domenick1991/nikolaus/internal/validation"
	"github.com/Domenick1991/nikolaus/internal/verification"
)

const (
	StepCreate       = "create"
	StepContact      = "contact"
	StepAddress      = "address"
	StepTimeSlots    = "time_slots"
	StepChildren     = "children"
	StepVerification = "verification"
	StepConfirm      = "confirm"
)

const (
	msgDeadlinePassed      = "Die Frist für Änderungen an Ihrer Buchung ist abgelaufen."
	msgRoutePlanningPassed = "Die Routenplanung ist abgeschlossen. Adresse und Zeitfenster können nicht mehr geändert werden."
	msgEmailNotVerified    = "Bitte bestätigen Sie zuerst Ihre E-Mail-Adresse."
	msgTooManyTimeSlots    = "Bitte wählen Sie höchstens %d Zeitfenster aus."
)

type BookingUseCase interface {
	Create(ctx context.Context) (*domain.Booking, error)
	Get(ctx context.Context, documentID string) (*domain.Booking, error)
	UpdateContact(ctx context.Context, documentID string, contact domain.ContactPerson) (*Submission, error)
	UpdateAddress(ctx context.Context, documentID string, location domain.Location, presentLocation string) (*Submission, error)
	UpdateTimeSlots(ctx context.Context, documentID string, timeSlotIDs []string) (*Submission, error)
	UpdateChildren(ctx context.Context, documentID string, children []domain.Child, additionalNotes string) (*Submission, error)
	RequestVerification(ctx context.Context, documentID string) (*domain.Booking, error)
	VerifyEmail(ctx context.Context, token string) (*domain.Booking, error)
	Confirm(ctx context.Context, documentID string) (*Submission, error)
	ExpireUnverified(ctx context.Context) ([]string, error)
	ListByTimeSlot(ctx context.Context, timeSlotID string) ([]domain.Booking, error)
	History(ctx context.Context, documentID string) ([]domain.BookingHistory, error)
}

type Cache interface {
	AcquireBookingLock(ctx context.Context, documentID string, ttl time.Duration) (string, bool, error)
	ReleaseBookingLock(ctx context.Context, documentID, token string) error
}

type Producer interface {
	PublishAll(ctx context.Context, key string, payload any, topics ...string) error
}

type SettingsProvider interface {
	Get(ctx context.Context) (domain.Settings, error)
}

type TimeSlots interface {
	SanitizeTimeSlots(ctx context.Context, selection []string, bookingID string) (timeslots.Sanitized, error)
}

type TokenParser interface {
	Parse(token string) (*verification.Claims, error)
}

// Submission is the result of a step write. Message and NeededToCleanUp are
// set when fully booked time slots were dropped from the selection.
type Submission struct {
	Booking         *domain.Booking
	Message         string
	NeededToCleanUp bool
}

type BookingService struct {
	bookings           repository.BookingRepository
	settings           SettingsProvider
	timeSlots          TimeSlots
	tokens             TokenParser
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	lockTTL            time.Duration
	unverifiedTTL      time.Duration
	loc                *time.Location
	now                func() time.Time
	logger             logrus.FieldLogger
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithUnverifiedTTL sets how long a booking may stay unverified before
// ExpireUnverified removes it. Zero disables the sweep.
func WithUnverifiedTTL(ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.unverifiedTTL = ttl
	}
}

func WithLockTTL(ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.lockTTL = ttl
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	settings SettingsProvider,
	timeSlots TimeSlots,
	tokens TokenParser,
	cache Cache,
	producer Producer,
	bookingTopic string,
	loc *time.Location,
	logger logrus.FieldLogger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		settings:     settings,
		timeSlots:    timeSlots,
		tokens:       tokens,
		cache:        cache,
		producer:     producer,
		bookingTopic: bookingTopic,
		lockTTL:      10 * time.Second,
		loc:          loc,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) Create(ctx context.Context) (booking *domain.Booking, err error) {
	defer observe(StepCreate, &err)

	booking = &domain.Booking{DocumentID: uuid.NewString()}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, apperr.Internal(err)
	}
	s.logger.WithField("booking_id", booking.DocumentID).Info("booking created")
	s.publish(ctx, kafka.EventBookingCreated, StepCreate, booking)
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, documentID string) (*domain.Booking, error) {
	booking, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) UpdateContact(ctx context.Context, documentID string, contact domain.ContactPerson) (sub *Submission, err error) {
	defer observe(StepContact, &err)

	contact = validation.TrimContact(contact)
	if msgs := validation.Contact(contact); !msgs.Valid() {
		return nil, validationError(validation.FieldErrors(msgs))
	}
	if errs := validation.Schema(contact); len(errs) > 0 {
		return nil, validationError(errs)
	}

	return s.write(ctx, documentID, StepContact, func(current *domain.Booking, settings domain.Settings) (*domain.Booking, any, error) {
		if !settings.CanEdit(s.now()) {
			return nil, nil, apperr.Validation(msgDeadlinePassed, nil)
		}
		updated := current.Clone()
		updated.ContactPerson = contact
		if !strings.EqualFold(contact.Email, current.ContactPerson.Email) {
			updated.EmailVerified = false
		}
		return &updated, map[string]any{"contact_person": contact}, nil
	})
}

// UpdateAddress writes the location and present location. Once route planning
// is closed only the present location is taken over.
func (s *BookingService) UpdateAddress(ctx context.Context, documentID string, location domain.Location, presentLocation string) (sub *Submission, err error) {
	defer observe(StepAddress, &err)

	location = validation.TrimLocation(location)
	presentLocation = textnorm.Trim(presentLocation)

	return s.write(ctx, documentID, StepAddress, func(current *domain.Booking, settings domain.Settings) (*domain.Booking, any, error) {
		now := s.now()
		if !settings.CanEdit(now) {
			return nil, nil, apperr.Validation(msgDeadlinePassed, nil)
		}
		canEditRoutePlanning := settings.CanEditRoutePlanning(now)
		if msgs := validation.Address(location, presentLocation, canEditRoutePlanning); !msgs.Valid() {
			return nil, nil, validationError(validation.FieldErrors(msgs))
		}

		updated := current.Clone()
		updated.PresentLocation = presentLocation
		change := map[string]any{"present_location": presentLocation}
		if canEditRoutePlanning {
			updated.Location = location
			change["location"] = location
		}
		return &updated, change, nil
	})
}

func (s *BookingService) UpdateTimeSlots(ctx context.Context, documentID string, timeSlotIDs []string) (sub *Submission, err error) {
	defer observe(StepTimeSlots, &err)

	ids := make([]string, 0, len(timeSlotIDs))
	for _, id := range timeSlotIDs {
		if id = textnorm.Trim(id); id != "" {
			ids = append(ids, id)
		}
	}

	var sanitized timeslots.Sanitized
	sub, err = s.write(ctx, documentID, StepTimeSlots, func(current *domain.Booking, settings domain.Settings) (*domain.Booking, any, error) {
		now := s.now()
		if !settings.CanEdit(now) {
			return nil, nil, apperr.Validation(msgDeadlinePassed, nil)
		}
		if !settings.CanEditRoutePlanning(now) {
			return nil, nil, apperr.Validation(msgRoutePlanningPassed, nil)
		}
		if len(ids) > settings.MaxTimeSlots {
			return nil, nil, validationError([]validation.FieldError{{
				Path:    []string{"time_slots"},
				Message: fmt.Sprintf(msgTooManyTimeSlots, settings.MaxTimeSlots),
				Name:    validation.ErrorName,
			}})
		}

		var err error
		sanitized, err = s.timeSlots.SanitizeTimeSlots(ctx, ids, current.DocumentID)
		if err != nil {
			return nil, nil, err
		}
		updated := current.Clone()
		updated.TimeSlots = make([]domain.TimeSlotRef, 0, len(sanitized.IDs))
		for _, id := range sanitized.IDs {
			updated.TimeSlots = append(updated.TimeSlots, domain.TimeSlotRef{DocumentID: id})
		}
		return &updated, map[string]any{"time_slots": sanitized.IDs}, nil
	})
	if err != nil {
		return nil, err
	}
	sub.Message = sanitized.Message
	sub.NeededToCleanUp = sanitized.NeededToCleanUp
	return sub, nil
}

func (s *BookingService) UpdateChildren(ctx context.Context, documentID string, children []domain.Child, additionalNotes string) (sub *Submission, err error) {
	defer observe(StepChildren, &err)

	children = validation.TrimChildren(children)
	if children == nil {
		children = []domain.Child{}
	}
	additionalNotes = textnorm.Trim(additionalNotes)
	if msgs := validation.Children(children); !msgs.Valid() {
		return nil, validationError(validation.FieldErrors(msgs))
	}

	return s.write(ctx, documentID, StepChildren, func(current *domain.Booking, settings domain.Settings) (*domain.Booking, any, error) {
		if !settings.CanEdit(s.now()) {
			return nil, nil, apperr.Validation(msgDeadlinePassed, nil)
		}
		updated := current.Clone()
		updated.Children = children
		updated.AdditionalNotes = additionalNotes
		return &updated, map[string]any{"children": children, "additional_notes": additionalNotes}, nil
	})
}

// RequestVerification publishes a new verification mail for the booking's
// contact address. Verified bookings are returned unchanged.
func (s *BookingService) RequestVerification(ctx context.Context, documentID string) (booking *domain.Booking, err error) {
	defer observe(StepVerification, &err)

	booking, err = s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if booking.EmailVerified {
		return booking, nil
	}
	if !textnorm.IsFilled(booking.ContactPerson.Email) {
		return nil, validationError(validation.FieldErrors(validation.Contact(booking.ContactPerson)))
	}
	if err := s.publishStrict(ctx, kafka.EventVerificationRequested, StepVerification, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// VerifyEmail marks the booking verified when token was issued for its
// current contact address.
func (s *BookingService) VerifyEmail(ctx context.Context, token string) (*domain.Booking, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Validation("invalid or expired verification link", nil)
	}

	sub, err := s.write(ctx, claims.Subject, StepVerification, func(current *domain.Booking, _ domain.Settings) (*domain.Booking, any, error) {
		if !claims.Matches(current.ContactPerson.Email) {
			return nil, nil, apperr.Conflict("verification link does not match the current email address")
		}
		updated := current.Clone()
		updated.EmailVerified = true
		return &updated, map[string]any{"email_verified": true}, nil
	})
	if err != nil {
		return nil, err
	}
	return sub.Booking, nil
}

// Confirm finalises a verified, complete booking. If fully booked time slots
// had to be removed the booking is saved without confirmation and the
// submission carries the cleanup message.
func (s *BookingService) Confirm(ctx context.Context, documentID string) (sub *Submission, err error) {
	defer observe(StepConfirm, &err)

	var sanitized timeslots.Sanitized
	sub, err = s.write(ctx, documentID, StepConfirm, func(current *domain.Booking, settings domain.Settings) (*domain.Booking, any, error) {
		now := s.now()
		if !settings.CanEdit(now) {
			return nil, nil, apperr.Validation(msgDeadlinePassed, nil)
		}
		if !current.EmailVerified {
			return nil, nil, validationError([]validation.FieldError{{
				Path:    []string{"contact_person", "email"},
				Message: msgEmailNotVerified,
				Name:    validation.ErrorName,
			}})
		}

		var err error
		sanitized, err = s.timeSlots.SanitizeTimeSlots(ctx, current.TimeSlotIDs(), current.DocumentID)
		if err != nil {
			return nil, nil, err
		}
		updated := current.Clone()
		if sanitized.NeededToCleanUp {
			updated.TimeSlots = make([]domain.TimeSlotRef, 0, len(sanitized.IDs))
			for _, id := range sanitized.IDs {
				updated.TimeSlots = append(updated.TimeSlots, domain.TimeSlotRef{DocumentID: id})
			}
			return &updated, map[string]any{"time_slots": sanitized.IDs}, nil
		}

		if msgs := validation.Booking(updated, settings.MaxTimeSlots, settings.CanEditRoutePlanning(now)); !msgs.Valid() {
			return nil, nil, validationError(validation.FieldErrors(msgs))
		}
		confirmedAt := now
		updated.ConfirmedAt = &confirmedAt
		return &updated, map[string]any{"confirmed_at": confirmedAt}, nil
	})
	if err != nil {
		return nil, err
	}
	if sanitized.NeededToCleanUp {
		sub.Message = sanitized.Message
		sub.NeededToCleanUp = true
		return sub, nil
	}
	s.publish(ctx, kafka.EventBookingConfirmed, StepConfirm, sub.Booking)
	return sub, nil
}

// ExpireUnverified deletes bookings that stayed unverified and unconfirmed
// for longer than the configured TTL. Their time slots become free again.
func (s *BookingService) ExpireUnverified(ctx context.Context) ([]string, error) {
	if s.unverifiedTTL <= 0 {
		return nil, nil
	}
	now := s.now()
	expired, err := s.bookings.DeleteUnverifiedBefore(ctx, now.Add(-s.unverifiedTTL))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	metrics.ExpiredBookings.Add(float64(len(expired)))
	for _, id := range expired {
		s.publish(ctx, kafka.EventBookingExpired, "", &domain.Booking{DocumentID: id})
	}
	if len(expired) > 0 {
		s.logger.WithField("count", len(expired)).Info("unverified bookings expired")
	}
	return expired, nil
}

// ListByTimeSlot returns the bookings of one slot for route planning.
func (s *BookingService) ListByTimeSlot(ctx context.Context, timeSlotID string) ([]domain.Booking, error) {
	bookings, err := s.bookings.ListByTimeSlot(ctx, timeSlotID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for i := range bookings {
		s.label(&bookings[i])
	}
	return bookings, nil
}

func (s *BookingService) History(ctx context.Context, documentID string) ([]domain.BookingHistory, error) {
	history, err := s.bookings.ListHistory(ctx, documentID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return history, nil
}

type mutation func(current *domain.Booking, settings domain.Settings) (updated *domain.Booking, change any, err error)

// write runs one locked read-modify-write cycle. Nothing is stored when the
// mutation leaves the booking unchanged.
func (s *BookingService) write(ctx context.Context, documentID, step string, mutate mutation) (*Submission, error) {
	unlock, err := s.lock(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated, change, err := mutate(current, settings)
	if err != nil {
		return nil, err
	}
	if !domain.HasChanges(*updated, *current, updated.TimeSlotIDs()) {
		s.logger.WithFields(logrus.Fields{"booking_id": documentID, "step": step}).Debug("no changes, write skipped")
		return &Submission{Booking: current}, nil
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("encode change: %w", err))
	}
	if err := s.bookings.Save(ctx, updated, payload); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("booking not found")
		}
		return nil, apperr.Internal(err)
	}
	s.label(updated)

	s.publish(ctx, kafka.EventBookingUpdated, step, updated)
	if updated.ContactPerson.Email != "" && !updated.EmailVerified && !strings.EqualFold(updated.ContactPerson.Email, current.ContactPerson.Email) {
		s.publish(ctx, kafka.EventVerificationRequested, step, updated)
	}
	return &Submission{Booking: updated}, nil
}

func (s *BookingService) load(ctx context.Context, documentID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByDocumentID(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("booking not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.label(booking)
	return booking, nil
}

func (s *BookingService) lock(ctx context.Context, documentID string) (func(), error) {
	if s.cache == nil {
		return func() {}, nil
	}
	token, ok, err := s.cache.AcquireBookingLock(ctx, documentID, s.lockTTL)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("acquire booking lock: %w", err))
	}
	if !ok {
		return nil, apperr.Conflict("booking is being updated, please retry")
	}
	return func() {
		if err := s.cache.ReleaseBookingLock(context.WithoutCancel(ctx), documentID, token); err != nil {
			s.logger.WithError(err).WithField("booking_id", documentID).Warn("release booking lock")
		}
	}, nil
}

func (s *BookingService) label(b *domain.Booking) {
	for i, ts := range b.TimeSlots {
		if ts.Label == "" && !ts.Start.IsZero() {
			b.TimeSlots[i].Label = domain.TimeSlotLabel(ts.Start, ts.End, s.loc)
		}
	}
}

// publish logs failures; the write it reports on has already happened.
func (s *BookingService) publish(ctx context.Context, eventType kafka.EventType, step string, booking *domain.Booking) {
	if err := s.publishStrict(ctx, eventType, step, booking); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.DocumentID,
			"event":      eventType,
		}).Warn("failed to publish booking event")
	}
}

func (s *BookingService) publishStrict(ctx context.Context, eventType kafka.EventType, step string, booking *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.NewBookingEvent(eventType, *booking, s.now())
	event.Step = step
	if err := s.producer.PublishAll(ctx, booking.DocumentID, event, s.bookingTopic, s.notificationsTopic); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func validationError(errs []validation.FieldError) *apperr.Error {
	message := fmt.Sprintf("%d errors occurred", len(errs))
	if len(errs) == 1 {
		message = errs[0].Message
	}
	return apperr.Validation(message, validation.Details{Errors: errs})
}

func observe(step string, err *error) {
	metrics.BookingSubmissions.WithLabelValues(step, metrics.Result(*err)).Inc()
}

var _ BookingUseCase = (*BookingService)(nil)
