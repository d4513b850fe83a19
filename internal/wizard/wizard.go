package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/client"
	"github.com/Domenick1991/nikolaus/internal/textnorm"
	"github.com/Domenick1991/nikolaus/internal/tree"
	"github.com/Domenick1991/nikolaus/internal/validation"
)

type Step int

const (
	StepContact Step = iota
	StepAddress
	StepTimeSlots
	StepChildren
	StepSummary
)

func (s Step) String() string {
	switch s {
	case StepContact:
		return "contact"
	case StepAddress:
		return "address"
	case StepTimeSlots:
		return "time_slots"
	case StepChildren:
		return "children"
	case StepSummary:
		return "summary"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

const MsgGenericError = "Beim Speichern ist ein Fehler aufgetreten. Bitte versuchen Sie es erneut."

type API interface {
	Config(ctx context.Context) (client.Config, error)
	CreateBooking(ctx context.Context) (*tree.Node, error)
	Booking(ctx context.Context, id string) (*tree.Node, error)
	UpdateBooking(ctx context.Context, id string, slice any) (client.Submission, error)
	Confirm(ctx context.Context, id string) (client.Submission, error)
}

var _ API = (*client.Client)(nil)

// Result describes a submission that did not fail outright. A non-empty
// Messages means nothing was saved.
type Result struct {
	Messages        validation.Messages
	Notice          string
	NeededToCleanUp bool
}

func (r Result) Saved() bool {
	return r.Messages.Valid()
}

type Wizard struct {
	api    API
	store  *Store
	guard  *Guard
	now    func() time.Time
	logger logrus.FieldLogger
}

type Option func(*Wizard)

func WithClock(now func() time.Time) Option {
	return func(w *Wizard) {
		w.now = now
	}
}

func WithConfirm(confirm ConfirmFunc) Option {
	return func(w *Wizard) {
		w.guard.SetConfirm(confirm)
	}
}

func New(api API, store *Store, logger logrus.FieldLogger, opts ...Option) *Wizard {
	w := &Wizard{
		api:    api,
		store:  store,
		guard:  NewGuard(store.HasChanges, nil),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wizard) Store() *Store { return w.store }

func (w *Wizard) Guard() *Guard { return w.guard }

// Load fetches the settings and the booking with the given id. An empty id
// starts a new booking.
func (w *Wizard) Load(ctx context.Context, bookingID string) error {
	cfg, err := w.api.Config(ctx)
	if err != nil {
		return err
	}
	w.store.SetSettings(cfg.Settings)

	var payload *tree.Node
	if bookingID == "" {
		payload, err = w.api.CreateBooking(ctx)
	} else {
		payload, err = w.api.Booking(ctx, bookingID)
	}
	if err != nil {
		return err
	}
	if err := w.store.UpdateFromDatabase(payload); err != nil {
		return err
	}
	w.guard.Reset()
	return nil
}

// Submit trims and validates the slice of step, sends it and reloads the
// booking. Validation failures, local or from the API, come back in
// Result.Messages; other failures are returned as errors.
func (w *Wizard) Submit(ctx context.Context, step Step) (Result, error) {
	log := w.logger.WithFields(logrus.Fields{"booking_id": w.store.DocumentID(), "step": step.String()})

	slice, messages := w.prepare(step)
	if !messages.Valid() {
		return Result{Messages: messages}, nil
	}

	id := w.store.DocumentID()
	var (
		sub client.Submission
		err error
	)
	if step == StepSummary {
		sub, err = w.api.Confirm(ctx, id)
	} else {
		sub, err = w.api.UpdateBooking(ctx, id, slice)
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return Result{Messages: MapAPIErrors(err)}, nil
		}
		log.WithError(err).Error("submission failed")
		return Result{}, err
	}

	payload, err := w.api.Booking(ctx, id)
	if err != nil {
		log.WithError(err).Error("reload after submission failed")
		return Result{}, err
	}
	if err := w.store.UpdateFromDatabase(payload); err != nil {
		return Result{}, err
	}
	w.guard.Reset()

	return Result{Notice: sub.Message, NeededToCleanUp: sub.NeededToCleanUp}, nil
}

// prepare trims the working copy for step and returns the payload slice
// together with the local validation messages.
func (w *Wizard) prepare(step Step) (map[string]any, validation.Messages) {
	b := w.store.Booking()
	settings := w.store.Settings()
	now := w.now()

	switch step {
	case StepContact:
		b.ContactPerson = validation.TrimContact(b.ContactPerson)
		return map[string]any{"contact_person": b.ContactPerson}, validation.Contact(b.ContactPerson)
	case StepAddress:
		b.Location = validation.TrimLocation(b.Location)
		b.PresentLocation = textnorm.Trim(b.PresentLocation)
		canEdit := settings.CanEditRoutePlanning(now)
		slice := map[string]any{"present_location": b.PresentLocation}
		if canEdit {
			slice["location"] = b.Location
		}
		return slice, validation.Address(b.Location, b.PresentLocation, canEdit)
	case StepTimeSlots:
		ids := w.store.SelectedTimeSlotIDs()
		return map[string]any{"time_slots": ids}, validation.TimeSlots(ids, settings.MaxTimeSlots)
	case StepChildren:
		b.Children = validation.TrimChildren(b.Children)
		b.AdditionalNotes = textnorm.Trim(b.AdditionalNotes)
		return map[string]any{
			"children":         b.Children,
			"additional_notes": b.AdditionalNotes,
		}, validation.Children(b.Children)
	case StepSummary:
		return nil, validation.Booking(validation.TrimBooking(*b), settings.MaxTimeSlots, settings.CanEditRoutePlanning(now))
	}
	return nil, validation.Messages{validation.PathBooking: MsgGenericError}
}

// CanEnter reports whether every step before step is valid on the saved booking.
func (w *Wizard) CanEnter(step Step) bool {
	if step < StepContact || step > StepSummary {
		return false
	}
	saved := w.store.Snapshot()
	settings := w.store.Settings()
	canEditRoutePlanning := settings.CanEditRoutePlanning(w.now())

	for s := StepContact; s < step; s++ {
		var m validation.Messages
		switch s {
		case StepContact:
			m = validation.Contact(saved.ContactPerson)
		case StepAddress:
			m = validation.Address(saved.Location, saved.PresentLocation, canEditRoutePlanning)
		case StepTimeSlots:
			m = validation.TimeSlots(saved.TimeSlotIDs(), settings.MaxTimeSlots)
		case StepChildren:
			m = validation.Children(saved.Children)
		}
		if !m.Valid() {
			return false
		}
	}
	return true
}

// MapAPIErrors turns an API validation error into step messages. A validation
// error without field details keeps its own message; anything else maps to a
// generic message on the booking path.
func MapAPIErrors(err error) validation.Messages {
	appErr, ok := apperr.As(err)
	if ok {
		if details, ok := appErr.Body.(validation.Details); ok && len(details.Errors) > 0 {
			if m := validation.FromFieldErrors(details.Errors); !m.Valid() {
				return m
			}
		}
		if appErr.Kind == apperr.KindValidation && appErr.Message != "" {
			return validation.Messages{validation.PathBooking: appErr.Message}
		}
	}
	return validation.Messages{validation.PathBooking: MsgGenericError}
}
