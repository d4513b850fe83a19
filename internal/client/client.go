// Package client talks to the booking API on behalf of the wizard. Failed
// calls come back as *apperr.Error; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/nikolaus/internal/apperr"
	"github.com/Domenick1991/nikolaus/internal/domain"
	"github.com/Domenick1991/nikolaus/internal/tree"
	"github.com/Domenick1991/nikolaus/internal/validation"
)

// Config is the public settings document served by GET /api/config.
type Config struct {
	domain.Settings
	IntroductionHTML string `json:"introduction_html"`
}

// Submission is the answer to a step submission or a confirmation.
type Submission struct {
	Booking         *tree.Node
	Message         string
	NeededToCleanUp bool
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the API mounted at baseURL, e.g. https://host/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Config(ctx context.Context) (Config, error) {
	var cfg Config
	if _, err := c.do(ctx, http.MethodGet, "/config", nil, nil, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Client) TimeSlots(ctx context.Context, bookingID, search string) ([]domain.TimeSlot, error) {
	q := url.Values{}
	if bookingID != "" {
		q.Set("booking", bookingID)
	}
	if search != "" {
		q.Set("search", search)
	}
	var slots []domain.TimeSlot
	if _, err := c.do(ctx, http.MethodGet, "/time-slots", q, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *Client) CreateBooking(ctx context.Context) (*tree.Node, error) {
	var booking *tree.Node
	if _, err := c.do(ctx, http.MethodPost, "/bookings", nil, nil, &booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (c *Client) Booking(ctx context.Context, id string) (*tree.Node, error) {
	var booking *tree.Node
	if _, err := c.do(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, nil, &booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// UpdateBooking sends one step slice, wrapped as {data: slice}.
func (c *Client) UpdateBooking(ctx context.Context, id string, slice any) (Submission, error) {
	return c.submit(ctx, http.MethodPut, "/bookings/"+url.PathEscape(id), map[string]any{"data": slice})
}

func (c *Client) Confirm(ctx context.Context, id string) (Submission, error) {
	return c.submit(ctx, http.MethodPost, "/bookings/"+url.PathEscape(id)+"/confirm", nil)
}

func (c *Client) RequestVerification(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/bookings/"+url.PathEscape(id)+"/verification-email", nil, nil, nil)
	return err
}

func (c *Client) submit(ctx context.Context, method, path string, body any) (Submission, error) {
	var booking *tree.Node
	meta, err := c.do(ctx, method, path, nil, body, &booking)
	if err != nil {
		return Submission{}, err
	}
	sub := Submission{Booking: booking}
	if len(meta) > 0 {
		var m struct {
			Message         string `json:"message"`
			NeededToCleanUp bool   `json:"neededToCleanUpFullyBookedTimeSlots"`
		}
		if err := json.Unmarshal(meta, &m); err != nil {
			return Submission{}, apperr.Internal(fmt.Errorf("decode meta: %w", err))
		}
		sub.Message = m.Message
		sub.NeededToCleanUp = m.NeededToCleanUp
	}
	return sub, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error *struct {
		Status  int             `json:"status"`
		Name    string          `json:"name"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// plainError is the {message, status, body} shape used by proxies in front of the API.
type plainError struct {
	Message string          `json:"message"`
	Status  *apperr.Status  `json:"status"`
	Body    json.RawMessage `json:"body"`
}

// do performs one request and decodes data into out. It returns the raw meta.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{"method": method, "path": path}).Warn("request failed")
		return nil, apperr.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Network(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, decodeError(resp.StatusCode, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperr.Internal(fmt.Errorf("decode response: %w", err))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, apperr.Internal(fmt.Errorf("decode data: %w", err))
		}
	}
	return env.Meta, nil
}

var knownKinds = map[apperr.Kind]bool{
	apperr.KindNotFound:   true,
	apperr.KindValidation: true,
	apperr.KindNetwork:    true,
	apperr.KindConflict:   true,
	apperr.KindInternal:   true,
}

func decodeError(code int, raw []byte) *apperr.Error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		e := apperr.FromResponse(code, env.Error.Message, details(env.Error.Details))
		if kind := apperr.Kind(env.Error.Name); knownKinds[kind] {
			e.Kind = kind
		}
		return e
	}

	var plain plainError
	if err := json.Unmarshal(raw, &plain); err == nil && plain.Status != nil && plain.Message != "" {
		e := apperr.FromResponse(plain.Status.Code, plain.Message, details(plain.Body))
		if plain.Status.Text != "" {
			e.Status.Text = plain.Status.Text
		}
		return e
	}

	return apperr.FromResponse(code, http.StatusText(code), string(raw))
}

// details keeps validation details typed so callers can map them onto field paths.
func details(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var d validation.Details
	if err := json.Unmarshal(raw, &d); err == nil && len(d.Errors) > 0 {
		return d
	}
	return raw
}
