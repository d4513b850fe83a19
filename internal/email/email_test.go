package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/nikolaus/config"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/kafka"
	"github.com/Domenick1991/nikolaus/internal/richtext"
	"github.com/Domenick1991/nikolaus/pkg/logger"
)

func newTestSender(t *testing.T, cfg config.SMTPConfig) *Sender {
	t.Helper()
	s, err := NewSender(cfg, logger.Discard())
	require.NoError(t, err)
	return s
}

func TestCompose(t *testing.T) {
	s := newTestSender(t, config.SMTPConfig{})

	msg, err := s.Compose(domain.EmailTemplate{
		Subject: "Hallo {{first_name}}",
		Body: richtext.Blocks{
			richtext.Heading(1, richtext.Txt("Nikolaus")),
			richtext.Paragraph(richtext.Txt("Bitte "), richtext.Link("{{verification_link}}", richtext.Txt("hier")), richtext.Txt(" klicken <jetzt>")),
		},
	}, richtext.Lookup{
		"first_name":        richtext.Text("Anna"),
		"verification_link": richtext.Text("https://x.de/v?token=a&b=c"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hallo Anna", msg.Subject)
	assert.Contains(t, msg.HTML, `<h1 class="title">Nikolaus</h1>`)
	assert.Contains(t, msg.HTML, `<a href="https://x.de/v?token=a&amp;b=c" class="link">hier</a>`)
	assert.Contains(t, msg.HTML, "klicken &lt;jetzt&gt;")
	assert.Contains(t, msg.HTML, "<title>Hallo Anna</title>")
	assert.Equal(t, "# Nikolaus\r\n\r\nBitte [hier](https://x.de/v?token=a&b=c) klicken <jetzt>\r\n", msg.Text)
}

func TestSend(t *testing.T) {
	s := newTestSender(t, config.SMTPConfig{Host: "smtp.example.org", Port: 587, From: "nikolaus@example.org"})

	var gotAddr string
	var gotTo []string
	var gotBody string
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		return nil
	}

	err := s.Send(context.Background(), "anna@example.org", Message{Subject: "Grüße", HTML: "<p>x</p>", Text: "x"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.org:587", gotAddr)
	assert.Equal(t, []string{"anna@example.org"}, gotTo)
	assert.Contains(t, gotBody, "Subject: =?utf-8?q?Gr=C3=BC=C3=9Fe?=\r\n")
	assert.Contains(t, gotBody, "Content-Type: multipart/alternative; boundary=\"nikolaus-")
	assert.Contains(t, gotBody, "Content-Type: text/html; charset=UTF-8\r\nContent-Transfer-Encoding: 8bit\r\n\r\n<p>x</p>\r\n")
}

func TestSendNotConfigured(t *testing.T) {
	s := newTestSender(t, config.SMTPConfig{})
	err := s.Send(context.Background(), "anna@example.org", Message{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type mockSettings struct {
	mock.Mock
}

func (m *mockSettings) Get(ctx context.Context) (domain.Settings, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Settings), args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Compose(tmpl domain.EmailTemplate, lookup richtext.Lookup) (Message, error) {
	args := m.Called(tmpl, lookup)
	return args.Get(0).(Message), args.Error(1)
}

func (m *mockMailer) Send(ctx context.Context, to string, msg Message) error {
	args := m.Called(ctx, to, msg)
	return args.Error(0)
}

type staticLinks struct{ err error }

func (l staticLinks) Link(bookingID, email string) (string, error) {
	return "https://x.de/verify?b=" + bookingID, l.err
}

func TestNotifierVerification(t *testing.T) {
	ctx := context.Background()
	settings := new(mockSettings)
	mailer := new(mockMailer)
	n := NewNotifier(settings, staticLinks{}, mailer, time.UTC, logger.Discard())

	settings.On("Get", ctx).Return(domain.Settings{}, nil).Once()
	mailer.On("Compose", defaultVerificationTemplate, mock.MatchedBy(func(l richtext.Lookup) bool {
		return l["verification_link"]() == "https://x.de/verify?b=doc-1" && l["first_name"]() == "Anna"
	})).Return(Message{Subject: "s"}, nil).Once()
	mailer.On("Send", ctx, "anna@example.org", Message{Subject: "s"}).Return(nil).Once()

	err := n.Handle(ctx, kafka.BookingEvent{
		Type:      kafka.EventVerificationRequested,
		BookingID: "doc-1",
		Email:     "anna@example.org",
		FirstName: "Anna",
	})

	require.NoError(t, err)
	settings.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestNotifierConfirmationUsesLabels(t *testing.T) {
	ctx := context.Background()
	settings := new(mockSettings)
	mailer := new(mockMailer)
	n := NewNotifier(settings, staticLinks{}, mailer, time.UTC, logger.Discard())

	custom := domain.EmailTemplate{Subject: "Bestätigt", Body: richtext.Blocks{richtext.Paragraph(richtext.Txt("{{time_slots}}"))}}
	settings.On("Get", ctx).Return(domain.Settings{ConfirmationEmail: custom}, nil).Once()

	start := time.Date(2025, 12, 6, 16, 0, 0, 0, time.UTC)
	mailer.On("Compose", custom, mock.MatchedBy(func(l richtext.Lookup) bool {
		return l["time_slots"]() == "A; Sa., 06.12.2025, 16:00 - 16:30 Uhr"
	})).Return(Message{}, nil).Once()
	mailer.On("Send", ctx, "anna@example.org", Message{}).Return(errors.New("smtp down")).Once()

	err := n.Handle(ctx, kafka.BookingEvent{
		Type:      kafka.EventBookingConfirmed,
		BookingID: "doc-1",
		Email:     "anna@example.org",
		TimeSlots: []domain.TimeSlotRef{{Label: "A"}, {Start: start, End: start.Add(30 * time.Minute)}},
	})

	assert.EqualError(t, err, "smtp down")
	mailer.AssertExpectations(t)
}

func TestNotifierIgnoresOtherEvents(t *testing.T) {
	settings := new(mockSettings)
	mailer := new(mockMailer)
	n := NewNotifier(settings, staticLinks{}, mailer, time.UTC, logger.Discard())

	require.NoError(t, n.Handle(context.Background(), kafka.BookingEvent{Type: kafka.EventBookingUpdated, Email: "a@b.de"}))
	require.NoError(t, n.Handle(context.Background(), kafka.BookingEvent{Type: kafka.EventBookingConfirmed}))

	settings.AssertNotCalled(t, "Get", mock.Anything)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
