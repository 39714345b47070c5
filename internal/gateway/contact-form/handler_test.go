package contactform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ipa-leadgate/internal/common/config"
	"ipa-leadgate/internal/common/errors"
	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/internal/ratelimit"
)

// ==========================
// Mocks
// ==========================

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ratelimit.Decision), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

const testIP = "198.51.100.23"

func init() {
	gin.SetMode(gin.TestMode)
}

func createValidConfig() *Config {
	return &Config{
		Enabled:           true,
		Timeout:           5 * time.Second,
		NotificationEmail: "vertrieb@ipa.example",
		SenderName:        "IPA Website",
		SenderEmail:       "noreply@ipa.example",
	}
}

func newHandler(t *testing.T, cfg *Config, mailer mail.Sender, limiter ratelimit.Limiter) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig:  cfg,
		Mailer:        mailer,
		Limiter:       limiter,
		Observability: observability.NewNoop(),
		Logger:        logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	h.service.now = func() time.Time { return time.Date(2026, 3, 2, 14, 5, 9, 0, time.UTC) }
	return h
}

func openLimiter() ratelimit.Limiter {
	return ratelimit.NewMemorySlidingWindow(ratelimit.Policy{Name: Endpoint, Limit: 100, Window: time.Hour})
}

func perform(h *Handler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(httpclient.KeyClientIP, testIP) })
	r.POST("/api/submit-form", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/api/submit-form", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func formBody(overrides map[string]interface{}) string {
	body := map[string]interface{}{
		"name":          "Erika Mustermann",
		"email":         "erika@kanzlei-muster.de",
		"phone":         "+49 (30) 123-4567",
		"firmName":      "Kanzlei Muster",
		"employeeCount": "10-20",
		"message":       "Wir möchten die Mandantenkommunikation automatisieren.",
		"honeypot":      "",
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	b, _ := json.Marshal(body)
	return string(b)
}

// ==========================
// Handler Tests
// ==========================

func TestHandle_Success(t *testing.T) {
	mailer := new(MockMailer)
	var msg mail.Message
	mailer.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { msg = args.Get(1).(mail.Message) }).Return(nil)

	w, out := perform(newHandler(t, createValidConfig(), mailer, openLimiter()), formBody(nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"success": true, "message": MessageSubmitted}, out)

	assert.Equal(t, []mail.Recipient{{Email: "vertrieb@ipa.example"}}, msg.To)
	assert.Equal(t, mail.Recipient{Email: "noreply@ipa.example", Name: "IPA Website"}, msg.From)
	assert.Equal(t, "Neue Prozessanalyse-Anfrage von Kanzlei Muster", msg.Subject)
	assert.Contains(t, msg.HTMLContent, "erika@kanzlei-muster.de")
	assert.Contains(t, msg.HTMLContent, "Von IP: "+testIP)
	assert.Contains(t, msg.HTMLContent, "02.03.2026, 14:05:09")
	mailer.AssertExpectations(t)
}

func TestHandle_NormalizesEmail(t *testing.T) {
	mailer := new(MockMailer)
	var msg mail.Message
	mailer.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { msg = args.Get(1).(mail.Message) }).Return(nil)

	w, _ := perform(newHandler(t, createValidConfig(), mailer, openLimiter()),
		formBody(map[string]interface{}{"email": "  Erika@Kanzlei-Muster.DE "}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, msg.HTMLContent, ">erika@kanzlei-muster.de</a>")
	assert.NotContains(t, msg.HTMLContent, "Erika@")
}

func TestHandle_EscapesNotificationFields(t *testing.T) {
	mailer := new(MockMailer)
	var msg mail.Message
	mailer.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { msg = args.Get(1).(mail.Message) }).Return(nil)

	w, _ := perform(newHandler(t, createValidConfig(), mailer, openLimiter()),
		formBody(map[string]interface{}{"message": "<script>alert(1)</script>"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, msg.HTMLContent, "<script>")
	assert.Contains(t, msg.HTMLContent, "&lt;script&gt;")
}

func TestHandle_WithoutMessage(t *testing.T) {
	mailer := new(MockMailer)
	var msg mail.Message
	mailer.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { msg = args.Get(1).(mail.Message) }).Return(nil)

	w, _ := perform(newHandler(t, createValidConfig(), mailer, openLimiter()),
		formBody(map[string]interface{}{"message": nil}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, msg.HTMLContent, "Nachricht:")
}

func TestHandle_NoNotificationEmail(t *testing.T) {
	mailer := new(MockMailer)
	cfg := createValidConfig()
	cfg.NotificationEmail = ""

	w, out := perform(newHandler(t, cfg, mailer, openLimiter()), formBody(nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandle_NotificationFailureIsSwallowed(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("smtp down"))

	w, out := perform(newHandler(t, createValidConfig(), mailer, openLimiter()), formBody(nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, MessageSubmitted, out["message"])
}

func TestHandle_HoneypotIsSilent(t *testing.T) {
	mailer := new(MockMailer)

	w, out := perform(newHandler(t, createValidConfig(), mailer, openLimiter()),
		formBody(map[string]interface{}{"honeypot": "http://spam.example", "name": "x"}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"success": true}, out)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandle_MissingHoneypotIsAccepted(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	w, _ := perform(newHandler(t, createValidConfig(), mailer, openLimiter()),
		formBody(map[string]interface{}{"honeypot": nil}))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandle_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		override map[string]interface{}
		field    string
		message  string
	}{
		{"short name", map[string]interface{}{"name": "E"}, "name", "Name muss mindestens 2 Zeichen haben"},
		{"long name", map[string]interface{}{"name": strings.Repeat("a", 101)}, "name", "Name ist zu lang"},
		{"bad email", map[string]interface{}{"email": "erika-at-kanzlei"}, "email", "Ungültige E-Mail-Adresse"},
		{"short phone", map[string]interface{}{"phone": "030 123"}, "phone", "Telefonnummer zu kurz"},
		{"phone letters", map[string]interface{}{"phone": "030 123 abc 45"}, "phone", "Telefonnummer darf nur Zahlen und Zeichen enthalten"},
		{"missing firm", map[string]interface{}{"firmName": nil}, "firmName", "Firmenname erforderlich"},
		{"long firm", map[string]interface{}{"firmName": strings.Repeat("K", 201)}, "firmName", "Firmenname zu lang"},
		{"unknown size", map[string]interface{}{"employeeCount": "100"}, "employeeCount", "Bitte wählen Sie eine Option"},
		{"long message", map[string]interface{}{"message": strings.Repeat("m", 1001)}, "message", "Nachricht ist zu lang (max. 1000 Zeichen)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := new(MockMailer)

			w, out := perform(newHandler(t, createValidConfig(), mailer, openLimiter()), formBody(tt.override))

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, MessageInvalidForm, out["error"])
			fields, ok := out["errors"].(map[string]interface{})
			require.True(t, ok)
			assert.Contains(t, fields[tt.field], tt.message)
			mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_MalformedBody(t *testing.T) {
	w, out := perform(newHandler(t, createValidConfig(), new(MockMailer), openLimiter()), `{"name":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MessageInvalidForm, out["error"])
}

func TestHandle_DisposableEmail(t *testing.T) {
	mailer := new(MockMailer)

	w, out := perform(newHandler(t, createValidConfig(), mailer, openLimiter()),
		formBody(map[string]interface{}{"email": "erika@mailinator.com"}))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.MessageDisposableEmail, out["error"])
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandle_SuspiciousEmail(t *testing.T) {
	for _, email := range []string{"asdf@kanzlei.de", "erika12345@kanzlei.de", "test.test@kanzlei.de"} {
		t.Run(email, func(t *testing.T) {
			mailer := new(MockMailer)

			w, out := perform(newHandler(t, createValidConfig(), mailer, openLimiter()),
				formBody(map[string]interface{}{"email": email}))

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, errors.MessageSuspiciousEmail, out["error"])
		})
	}
}

func TestHandle_RateLimitBlocks(t *testing.T) {
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	h := newHandler(t, createValidConfig(), mailer, ratelimit.NewMemorySlidingWindow(DefaultPolicy()))

	for i := 0; i < 3; i++ {
		w, _ := perform(h, formBody(nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w, out := perform(h, formBody(nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	assert.Equal(t, map[string]interface{}{"success": false, "error": MessageRateLimited}, out)
	mailer.AssertNumberOfCalls(t, "Send", 3)
}

func TestHandle_RateLimitBeforeHoneypot(t *testing.T) {
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "contact-form:"+testIP).
		Return(ratelimit.Decision{RetryAfter: 30 * time.Minute}, nil)

	w, _ := perform(newHandler(t, createValidConfig(), new(MockMailer), limiter),
		formBody(map[string]interface{}{"honeypot": "bot"}))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1800", w.Header().Get("Retry-After"))
}

func TestHandle_LimiterUnavailableFailsOpen(t *testing.T) {
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, mock.Anything).
		Return(ratelimit.Decision{}, fmt.Errorf("%w: redis down", ratelimit.ErrLimiterUnavailable))
	mailer := new(MockMailer)
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	w, _ := perform(newHandler(t, createValidConfig(), mailer, limiter), formBody(nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

// ==========================
// Config Tests
// ==========================

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no notification email", func(c *Config) { c.NotificationEmail = "" }, ""},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout must be positive"},
		{"bad notification email", func(c *Config) { c.NotificationEmail = "vertrieb" }, "notification_email"},
		{"bad sender", func(c *Config) { c.SenderEmail = "noreply@" }, "sender_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())
	assert.Equal(t, 3, p.Limit)
	assert.Equal(t, time.Hour, p.Window)
	assert.Equal(t, time.Hour, p.Block)
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		Endpoints: map[string]config.EndpointConfig{
			Endpoint: {Enabled: false, Timeout: 2500},
		},
		Lead: config.LeadConfig{
			NotificationEmail: "vertrieb@ipa.example",
			SenderEmail:       "noreply@ipa.example",
		},
	}

	cfg := createConfigFromAppConfig(appCfg, nil)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, "vertrieb@ipa.example", cfg.NotificationEmail)
	assert.Equal(t, "IPA Website", cfg.SenderName)
	assert.Equal(t, "noreply@ipa.example", cfg.SenderEmail)
}

func TestNewHandler_Requirements(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: createValidConfig(), Limiter: openLimiter()})
	assert.EqualError(t, err, "contact-form: mailer is required")

	_, err = NewHandler(HandlerOptions{CustomConfig: createValidConfig(), Mailer: new(MockMailer)})
	assert.EqualError(t, err, "contact-form: rate limiter is required")

	bad := createValidConfig()
	bad.Timeout = 0
	_, err = NewHandler(HandlerOptions{CustomConfig: bad, Mailer: new(MockMailer), Limiter: openLimiter()})
	assert.ErrorContains(t, err, "invalid configuration for contact-form")
}
