// Package email renders the booking mails from rich-text templates and sends
// them via SMTP.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/config"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/richtext"
	"github.com/Domenick1991/nikolaus/internal/tree"
)

var ErrNotConfigured = errors.New("email not configured")

// Message is a rendered mail with an HTML part and a plain text fallback.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	cfg    config.SMTPConfig
	auth   smtp.Auth
	send   sendFunc
	html   *richtext.HTMLRenderer
	text   *richtext.MarkdownRenderer
	logger logrus.FieldLogger
}

// emailClasses swaps the utility classes of the web frontend, which mail
// clients never load, for the classes styled by the mail layout.
func emailClasses() *tree.Node {
	classes := tree.Object(
		tree.F("paragraph", tree.String("text")),
		tree.F("link", tree.String("link")),
	)
	for level := 1; level <= 6; level++ {
		classes.Set(fmt.Sprintf("heading%d", level), tree.String("title"))
	}
	return classes
}

func NewSender(cfg config.SMTPConfig, logger logrus.FieldLogger) (*Sender, error) {
	html, err := richtext.NewHTMLRenderer(emailClasses())
	if err != nil {
		return nil, fmt.Errorf("build html renderer: %w", err)
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Sender{
		cfg:    cfg,
		auth:   auth,
		send:   smtp.SendMail,
		html:   html,
		text:   richtext.NewMarkdownRenderer(richtext.EscapeLacy),
		logger: logger,
	}, nil
}

func (s *Sender) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Port != 0 && s.cfg.From != ""
}

// Compose substitutes placeholders in tmpl and renders both mail parts.
func (s *Sender) Compose(tmpl domain.EmailTemplate, lookup richtext.Lookup) (Message, error) {
	blocks := richtext.SubstituteBlocks(tmpl.Body, lookup)
	subject := richtext.Substitute(tmpl.Subject, lookup)

	var buf bytes.Buffer
	if err := layout.Execute(&buf, layoutData{Title: subject, Body: template.HTML(s.html.Render(blocks))}); err != nil {
		return Message{}, fmt.Errorf("render email layout: %w", err)
	}
	return Message{
		Subject: subject,
		HTML:    buf.String(),
		Text:    strings.TrimLeft(s.text.Render(blocks), "\r\n"),
	}, nil
}

// Send delivers msg as multipart/alternative. The context only guards the
// start of the transfer; net/smtp has no cancellation.
func (s *Sender) Send(ctx context.Context, to string, msg Message) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	boundary := "nikolaus-" + uuid.NewString()

	var body bytes.Buffer
	fmt.Fprintf(&body, "To: %s\r\n", to)
	fmt.Fprintf(&body, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&body, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&body, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&body, "\r\n")

	fmt.Fprintf(&body, "--%s\r\n", boundary)
	fmt.Fprintf(&body, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&body, "Content-Transfer-Encoding: 8bit\r\n")
	fmt.Fprintf(&body, "\r\n")
	fmt.Fprintf(&body, "%s\r\n", msg.Text)

	fmt.Fprintf(&body, "--%s\r\n", boundary)
	fmt.Fprintf(&body, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&body, "Content-Transfer-Encoding: 8bit\r\n")
	fmt.Fprintf(&body, "\r\n")
	fmt.Fprintf(&body, "%s\r\n", msg.HTML)
	fmt.Fprintf(&body, "--%s--\r\n", boundary)

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	if err := s.send(addr, s.auth, s.cfg.From, []string{to}, body.Bytes()); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	s.logger.WithField("subject", msg.Subject).Info("email sent")
	return nil
}

type layoutData struct {
	Title string
	Body  template.HTML
}

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="de">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .title { color: #a3121b; margin: 0 0 12px; }
        .text { margin: 0 0 16px; }
        .link { word-break: break-all; color: #a3121b; }
    </style>
</head>
<body>
{{.Body}}
</body>
</html>`))
