package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/kafka"
	"github.com/Domenick1991/nikolaus/internal/metrics"
	"github.com/Domenick1991/nikolaus/internal/richtext"
)

type SettingsProvider interface {
	Get(ctx context.Context) (domain.Settings, error)
}

type LinkIssuer interface {
	Link(bookingID, email string) (string, error)
}

type Mailer interface {
	Compose(tmpl domain.EmailTemplate, lookup richtext.Lookup) (Message, error)
	Send(ctx context.Context, to string, msg Message) error
}

// Notifier turns booking events into mails.
type Notifier struct {
	settings SettingsProvider
	links    LinkIssuer
	mailer   Mailer
	loc      *time.Location
	logger   logrus.FieldLogger
}

func NewNotifier(settings SettingsProvider, links LinkIssuer, mailer Mailer, loc *time.Location, logger logrus.FieldLogger) *Notifier {
	return &Notifier{settings: settings, links: links, mailer: mailer, loc: loc, logger: logger}
}

// Handle sends the mail belonging to the event type. Other events are ignored.
func (n *Notifier) Handle(ctx context.Context, event kafka.BookingEvent) error {
	if event.Type != kafka.EventVerificationRequested && event.Type != kafka.EventBookingConfirmed {
		return nil
	}
	log := n.logger.WithFields(logrus.Fields{"booking_id": event.BookingID, "type": event.Type})
	if event.Email == "" {
		log.Warn("event without email address, skipping")
		return nil
	}

	settings, err := n.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	lookup := richtext.Lookup{
		"first_name": richtext.Text(event.FirstName),
		"last_name":  richtext.Text(event.LastName),
		"email":      richtext.Text(event.Email),
		"booking_id": richtext.Text(event.BookingID),
		"time_slots": richtext.Text(n.timeSlotLabels(event.TimeSlots)),
	}

	var tmpl domain.EmailTemplate
	switch event.Type {
	case kafka.EventVerificationRequested:
		tmpl = withDefault(settings.VerificationEmail, defaultVerificationTemplate)
		link, err := n.links.Link(event.BookingID, event.Email)
		if err != nil {
			return fmt.Errorf("issue verification link: %w", err)
		}
		lookup["verification_link"] = richtext.Text(link)
	case kafka.EventBookingConfirmed:
		tmpl = withDefault(settings.ConfirmationEmail, defaultConfirmationTemplate)
	}

	msg, err := n.mailer.Compose(tmpl, lookup)
	if err == nil {
		err = n.mailer.Send(ctx, event.Email, msg)
	}
	metrics.EmailsSent.WithLabelValues(string(event.Type), metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	log.Info("notification mail sent")
	return nil
}

func (n *Notifier) timeSlotLabels(slots []domain.TimeSlotRef) string {
	labels := make([]string, 0, len(slots))
	for _, ts := range slots {
		label := ts.Label
		if label == "" {
			label = domain.TimeSlotLabel(ts.Start, ts.End, n.loc)
		}
		labels = append(labels, label)
	}
	return strings.Join(labels, "; ")
}

func withDefault(tmpl, fallback domain.EmailTemplate) domain.EmailTemplate {
	if tmpl.Subject == "" {
		tmpl.Subject = fallback.Subject
	}
	if len(tmpl.Body) == 0 {
		tmpl.Body = fallback.Body
	}
	return tmpl
}

var defaultVerificationTemplate = domain.EmailTemplate{
	Subject: "Bitte bestätigen Sie Ihre E-Mail-Adresse",
	Body: richtext.Blocks{
		richtext.Paragraph(richtext.Txt("Hallo {{first_name}},")),
		richtext.Paragraph(richtext.Txt("bitte bestätigen Sie Ihre E-Mail-Adresse, damit wir Ihre Nikolaus-Buchung bearbeiten können:")),
		richtext.Paragraph(richtext.Link("{{verification_link}}", richtext.Txt("E-Mail-Adresse bestätigen"))),
	},
}

var defaultConfirmationTemplate = domain.EmailTemplate{
	Subject: "Ihre Nikolaus-Buchung ist bestätigt",
	Body: richtext.Blocks{
		richtext.Paragraph(richtext.Txt("Hallo {{first_name}},")),
		richtext.Paragraph(richtext.Txt("vielen Dank, Ihre Buchung ist bestätigt. Der Nikolaus kommt in einem dieser Zeitfenster: {{time_slots}}")),
	},
}
