// Package turnstile verifies Cloudflare Turnstile bot-challenge tokens.
package turnstile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
)

const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var ErrNotConfigured = errors.New("turnstile secret key not configured")

type Verifier struct {
	secret    string
	verifyURL string
	http      *httpclient.Client
	obs       *observability.Observability
}

func NewVerifier(secret, verifyURL string, timeout time.Duration, obs *observability.Observability) *Verifier {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Verifier{
		secret:    secret,
		verifyURL: verifyURL,
		http:      httpclient.NewClient(timeout),
		obs:       obs,
	}
}

type verifyRequest struct {
	Secret   string `json:"secret"`
	Response string `json:"response"`
	RemoteIP string `json:"remoteip,omitempty"`
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// Verify asks Cloudflare whether token is valid. A token is only accepted
// when the answer carries success == true. The error is non-nil when the
// question could not be asked at all.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (ok bool, err error) {
	ctx, span := v.obs.StartSpan(ctx, "turnstile.verify")
	defer func() {
		if err != nil {
			metrics.CollaboratorFailures.WithLabelValues("turnstile", "verify").Inc()
		}
		span.SetAttributes(attribute.Bool("turnstile.success", ok))
		observability.EndSpan(span, err)
	}()

	if v.secret == "" {
		return false, ErrNotConfigured
	}
	if remoteIP == "unknown" {
		remoteIP = ""
	}

	resp, err := v.http.DoJSON(ctx, http.MethodPost, v.verifyURL, nil, verifyRequest{
		Secret:   v.secret,
		Response: token,
		RemoteIP: remoteIP,
	})
	if err != nil {
		return false, fmt.Errorf("turnstile: %w", err)
	}

	var out verifyResponse
	if err := resp.Decode(&out); err != nil {
		return false, fmt.Errorf("turnstile: invalid response (status %d): %w", resp.StatusCode, err)
	}
	if len(out.ErrorCodes) > 0 {
		span.SetAttributes(attribute.String("turnstile.error_codes", strings.Join(out.ErrorCodes, ",")))
	}
	return out.Success, nil
}
