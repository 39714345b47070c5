package leadform

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/pkg/roi"
)

const (
	pathPartialLead  = "/brevo/partial-lead"
	pathCompleteLead = "/brevo/complete-lead"
)

type PartialLeadRequest struct {
	Email             string `json:"email"`
	ConsentRequired   bool   `json:"consentRequired"`
	ConsentNewsletter bool   `json:"consentNewsletter"`
}

type CompleteLeadRequest struct {
	Email          string       `json:"email"`
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Company        string       `json:"company"`
	CalculatorData roi.Snapshot `json:"calculatorData,omitempty"`
	TurnstileToken string       `json:"turnstileToken"`
}

// GatewayResponse is the body every gateway endpoint answers with.
type GatewayResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	PDFURL  string              `json:"pdfUrl,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// GatewayError is a non-2xx answer. Message is the user-facing text the
// gateway sent, if any.
type GatewayError struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway returned %d", e.StatusCode)
}

type GatewayClient interface {
	SubmitPartialLead(ctx context.Context, req PartialLeadRequest) (*GatewayResponse, error)
	SubmitCompleteLead(ctx context.Context, req CompleteLeadRequest) (*GatewayResponse, error)
}

// HTTPGatewayClient posts to a running gateway. BaseURL includes the API base
// path, e.g. https://example.com/api.
type HTTPGatewayClient struct {
	baseURL string
	client  *httpclient.Client
}

func NewHTTPGatewayClient(baseURL string, client *httpclient.Client) *HTTPGatewayClient {
	return &HTTPGatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPGatewayClient) SubmitPartialLead(ctx context.Context, req PartialLeadRequest) (*GatewayResponse, error) {
	return c.post(ctx, pathPartialLead, req)
}

func (c *HTTPGatewayClient) SubmitCompleteLead(ctx context.Context, req CompleteLeadRequest) (*GatewayResponse, error) {
	return c.post(ctx, pathCompleteLead, req)
}

func (c *HTTPGatewayClient) post(ctx context.Context, path string, payload interface{}) (*GatewayResponse, error) {
	resp, err := c.client.DoJSON(ctx, http.MethodPost, c.baseURL+path, nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var body GatewayResponse
	decodeErr := resp.Decode(&body)

	if !resp.OK() {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: body.Message, Fields: body.Errors}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", path, decodeErr)
	}
	return &body, nil
}
