// Package brevo talks to the Brevo contacts and transactional email APIs.
package brevo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"ipa-leadgate/internal/common/crm"
	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
)

const DefaultBaseURL = "https://api.brevo.com/v3"

var (
	// ErrNotConfigured is returned by every call when no API key is set.
	ErrNotConfigured = fmt.Errorf("Brevo API key %w", crm.ErrNotConfigured)
	// ErrDuplicateContact is returned by CreateContact when the email is
	// already known. UpsertContact handles it by updating instead.
	ErrDuplicateContact = errors.New("brevo: contact already exists")
)

type Config struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

type Client struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
	limiter *rate.Limiter
	obs     *observability.Observability
}

type Option func(*Client)

func WithObservability(o *observability.Observability) Option {
	return func(c *Client) { c.obs = o }
}

func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    httpclient.NewClient(timeout),
		limiter: rate.NewLimiter(limit, burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the error body Brevo returns on 4xx/5xx.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UpsertContact creates the contact and falls back to an update when Brevo
// reports it as a duplicate.
func (c *Client) UpsertContact(ctx context.Context, contact crm.Contact) (err error) {
	ctx, span := c.obs.StartSpan(ctx, "brevo.upsert_contact", attribute.String("crm", "brevo"))
	defer func() {
		if err != nil {
			metrics.CollaboratorFailures.WithLabelValues("brevo", "upsert_contact").Inc()
		}
		observability.EndSpan(span, err)
	}()

	err = c.CreateContact(ctx, contact)
	if errors.Is(err, ErrDuplicateContact) {
		span.SetAttributes(attribute.Bool("brevo.duplicate", true))
		return c.UpdateContact(ctx, contact.Email, contact.Attributes, contact.ListIDs)
	}
	return err
}

func (c *Client) CreateContact(ctx context.Context, contact crm.Contact) error {
	resp, err := c.do(ctx, http.MethodPost, "/contacts", contact)
	if err != nil {
		return err
	}
	if resp.OK() {
		return nil
	}

	apiErr := decodeError(resp)
	if resp.StatusCode == http.StatusBadRequest && apiErr.Code == "duplicate_parameter" {
		return ErrDuplicateContact
	}
	return fmt.Errorf("Brevo API error: %s", apiErr.Message)
}

func (c *Client) UpdateContact(ctx context.Context, email string, attributes map[string]interface{}, listIDs []int64) error {
	payload := struct {
		Attributes map[string]interface{} `json:"attributes"`
		ListIDs    []int64                `json:"listIds,omitempty"`
	}{attributes, listIDs}

	resp, err := c.do(ctx, http.MethodPut, "/contacts/"+url.PathEscape(email), payload)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("Brevo API error: %s", decodeError(resp).Message)
	}
	return nil
}

type emailRequest struct {
	Sender      *mail.Recipient   `json:"sender,omitempty"`
	To          []mail.Recipient  `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []mail.Attachment `json:"attachment,omitempty"`
}

// Send delivers a transactional email through /smtp/email.
func (c *Client) Send(ctx context.Context, msg mail.Message) (err error) {
	ctx, span := c.obs.StartSpan(ctx, "brevo.send_email", attribute.Int("mail.recipients", len(msg.To)))
	defer func() {
		if err != nil {
			metrics.CollaboratorFailures.WithLabelValues("brevo", "send_email").Inc()
		}
		observability.EndSpan(span, err)
	}()

	req := emailRequest{
		To:          msg.To,
		Subject:     msg.Subject,
		HTMLContent: msg.HTMLContent,
		Attachment:  msg.Attachments,
	}
	if msg.From.Email != "" {
		from := msg.From
		req.Sender = &from
	}

	resp, err := c.do(ctx, http.MethodPost, "/smtp/email", req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("Brevo email API error: %s", decodeError(resp).Message)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (*httpclient.Response, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("brevo: rate limiter: %w", err)
	}
	resp, err := c.http.DoJSON(ctx, method, c.baseURL+path, map[string]string{"api-key": c.apiKey}, payload)
	if err != nil {
		return nil, fmt.Errorf("brevo: %w", err)
	}
	return resp, nil
}

func decodeError(resp *httpclient.Response) apiError {
	var e apiError
	if err := resp.Decode(&e); err != nil || e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
