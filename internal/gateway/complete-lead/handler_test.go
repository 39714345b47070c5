package completelead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ipa-leadgate/internal/common/aws"
	"ipa-leadgate/internal/common/config"
	"ipa-leadgate/internal/common/crm"
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

type MockCRM struct {
	mock.Mock
}

func (m *MockCRM) UpsertContact(ctx context.Context, contact crm.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	args := m.Called(ctx, token, remoteIP)
	return args.Bool(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyLeadCompleted(ctx context.Context, alert aws.LeadAlert) error {
	return m.Called(ctx, alert).Error(0)
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

const testIP = "203.0.113.7"

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	crm      *MockCRM
	mailer   *MockMailer
	verifier *MockVerifier
	notifier *MockNotifier
	limiter  ratelimit.Limiter
}

func newFixture() *fixture {
	return &fixture{
		crm:      new(MockCRM),
		mailer:   new(MockMailer),
		verifier: new(MockVerifier),
		notifier: new(MockNotifier),
		limiter:  ratelimit.NewMemoryFixedWindow(ratelimit.Policy{Name: Endpoint, Limit: 3, Window: time.Hour}),
	}
}

func createValidConfig() *Config {
	return &Config{
		Enabled:     true,
		Timeout:     5 * time.Second,
		Variant:     "monetary",
		BaseURL:     "https://ipa.example",
		PDFPath:     "/roi-rechner.pdf",
		CRMProvider: "brevo",
		SenderName:  "IPA Website",
	}
}

func (f *fixture) handler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig:  createValidConfig(),
		CRM:           f.crm,
		Mailer:        f.mailer,
		Verifier:      f.verifier,
		Notifier:      f.notifier,
		Limiter:       f.limiter,
		Observability: observability.NewNoop(),
		Logger:        logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func perform(h *Handler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(httpclient.KeyClientIP, testIP) })
	r.POST("/api/brevo/complete-lead", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/api/brevo/complete-lead", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

const calculatorJSON = `{"clients":50,"packagesPerYear":2,"minutesSaved":60,"hourlyRate":120,"adoption":0.8,"annualCost":1000,` +
	`"savingsAnnual":9600,"savingsMonthly":800,"breakEvenMonths":1.3,"capacityHoursAnnual":80}`

func leadBody(calculator string) string {
	body := `{"email":"max@example.de","firstName":"Max","lastName":"Mustermann","company":"Kanzlei Muster","turnstileToken":"tok-1"`
	if calculator != "" {
		body += `,"calculatorData":` + calculator
	}
	return body + "}"
}

// ==========================
// Handler Tests
// ==========================

func TestHandle_Success(t *testing.T) {
	f := newFixture()

	var contact crm.Contact
	var msg mail.Message
	var alert aws.LeadAlert
	f.verifier.On("Verify", mock.Anything, "tok-1", testIP).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { contact = args.Get(1).(crm.Contact) }).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { msg = args.Get(1).(mail.Message) }).Return(nil)
	f.notifier.On("NotifyLeadCompleted", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { alert = args.Get(1).(aws.LeadAlert) }).Return(nil)

	w, out := perform(f.handler(t), leadBody(calculatorJSON))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"success": true,
		"message": MessageCompleted,
		"pdfUrl":  "/roi-rechner.pdf",
	}, out)

	assert.Equal(t, "max@example.de", contact.Email)
	assert.True(t, contact.UpdateEnabled)
	assert.Nil(t, contact.ListIDs)
	assert.Equal(t, "Max", contact.Attributes[crm.AttrFirstName])
	assert.Equal(t, "Mustermann", contact.Attributes[crm.AttrLastName])
	assert.Equal(t, "Kanzlei Muster", contact.Attributes[crm.AttrCompany])
	assert.Equal(t, crm.LeadStatusComplete, contact.Attributes[crm.AttrLeadStatus])
	assert.Equal(t, 50.0, contact.Attributes["ROI_CLIENTS"])
	assert.Equal(t, 80.0, contact.Attributes["ROI_ADOPTION"])
	assert.Equal(t, 9600.0, contact.Attributes["ROI_SAVINGS_ANNUAL"])
	assert.Equal(t, 800.0, contact.Attributes["ROI_SAVINGS_MONTHLY"])
	assert.Equal(t, 1.3, contact.Attributes["ROI_BREAK_EVEN_MONTHS"])
	assert.Equal(t, 80.0, contact.Attributes["ROI_CAPACITY_HOURS_ANNUAL"])

	assert.Equal(t, []mail.Recipient{{Email: "max@example.de", Name: "Max Mustermann"}}, msg.To)
	assert.Equal(t, mail.ROISubject, msg.Subject)
	assert.Equal(t, []mail.Attachment{{Name: AttachmentName, URL: "https://ipa.example/roi-rechner.pdf"}}, msg.Attachments)
	assert.Contains(t, msg.HTMLContent, "Hallo Max,")
	assert.Contains(t, msg.HTMLContent, "9.600 €")
	assert.Empty(t, msg.From.Email)

	assert.Equal(t, "Kanzlei Muster", alert.Company)
	assert.Equal(t, "monetary", alert.Variant)
	assert.Equal(t, 9600.0, alert.Calculator["ROI_SAVINGS_ANNUAL"])
}

func TestHandle_WithoutCalculator(t *testing.T) {
	f := newFixture()
	f.verifier.On("Verify", mock.Anything, "tok-1", testIP).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, crm.Contact{
		Email: "max@example.de",
		Attributes: map[string]interface{}{
			crm.AttrFirstName:  "Max",
			crm.AttrLastName:   "Mustermann",
			crm.AttrCompany:    "Kanzlei Muster",
			crm.AttrLeadStatus: crm.LeadStatusComplete,
		},
		UpdateEnabled: true,
	}).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m mail.Message) bool {
		return m.Subject == mail.ROISubject
	})).Return(nil)
	f.notifier.On("NotifyLeadCompleted", mock.Anything, mock.MatchedBy(func(a aws.LeadAlert) bool {
		return a.Calculator == nil
	})).Return(nil)

	w, _ := perform(f.handler(t), leadBody(""))

	assert.Equal(t, http.StatusOK, w.Code)
	f.crm.AssertExpectations(t)
	f.mailer.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestHandle_RateLimitBoundary(t *testing.T) {
	f := newFixture()
	f.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("NotifyLeadCompleted", mock.Anything, mock.Anything).Return(nil)
	h := f.handler(t)

	for i := 0; i < 3; i++ {
		w, _ := perform(h, leadBody(""))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w, out := perform(h, leadBody(""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, MessageRateLimited, out["message"])
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	f.crm.AssertNumberOfCalls(t, "UpsertContact", 3)
}

func TestHandle_RateLimitCheckedBeforeParsing(t *testing.T) {
	f := newFixture()
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, "complete-lead:"+testIP).
		Return(ratelimit.Decision{Allowed: false, RetryAfter: 90 * time.Second}, nil)
	f.limiter = limiter

	w, out := perform(f.handler(t), `not json`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, MessageRateLimited, out["message"])
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
	limiter.AssertExpectations(t)
}

func TestHandle_LimiterFailsOpen(t *testing.T) {
	f := newFixture()
	limiter := new(MockLimiter)
	limiter.On("Allow", mock.Anything, mock.Anything).
		Return(ratelimit.Decision{}, fmt.Errorf("%w: incr: connection refused", ratelimit.ErrLimiterUnavailable))
	f.limiter = limiter
	f.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("NotifyLeadCompleted", mock.Anything, mock.Anything).Return(nil)

	w, _ := perform(f.handler(t), leadBody(""))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandle_ValidationFailed(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErrors map[string]interface{}
	}{
		{
			name: "invalid names and missing token",
			body: `{"email":"max@example.de","firstName":"M4x","lastName":"","company":"Kanzlei"}`,
			wantErrors: map[string]interface{}{
				"firstName":      []interface{}{"Vorname enthält ungültige Zeichen"},
				"lastName":       []interface{}{"Nachname ist erforderlich", "Nachname enthält ungültige Zeichen"},
				"turnstileToken": []interface{}{MessageNoToken},
			},
		},
		{
			name: "calculator input out of range",
			body: leadBody(`{"clients":5,"packagesPerYear":2,"minutesSaved":60,"hourlyRate":120,"adoption":0.8,"annualCost":1000,` +
				`"savingsAnnual":960,"savingsMonthly":80,"breakEvenMonths":12.5,"capacityHoursAnnual":8}`),
			wantErrors: map[string]interface{}{
				"calculatorData.clients": []interface{}{"Mandanten müssen zwischen 10 und 500 liegen"},
			},
		},
		{
			name: "calculator value is not a number",
			body: leadBody(`{"clients":"50","packagesPerYear":2,"minutesSaved":60,"hourlyRate":120,"adoption":0.8,"annualCost":1000,` +
				`"savingsAnnual":9600,"savingsMonthly":800,"breakEvenMonths":1.3,"capacityHoursAnnual":80}`),
			wantErrors: map[string]interface{}{
				"calculatorData.clients": []interface{}{"Wert muss eine Zahl sein"},
			},
		},
		{
			name: "calculator output missing",
			body: leadBody(`{"clients":50,"packagesPerYear":2,"minutesSaved":60,"hourlyRate":120,"adoption":0.8,"annualCost":1000,` +
				`"savingsAnnual":9600,"savingsMonthly":800,"capacityHoursAnnual":80}`),
			wantErrors: map[string]interface{}{
				"calculatorData.breakEvenMonths": []interface{}{"Wert ist erforderlich"},
			},
		},
		{
			name: "calculator is not an object",
			body: leadBody(`[1,2]`),
			wantErrors: map[string]interface{}{
				"calculatorData": []interface{}{"Ungültige Rechnerdaten"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			w, out := perform(f.handler(t), tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, errors.MessageValidationFailed, out["message"])
			assert.Equal(t, tt.wantErrors, out["errors"])
			f.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
			f.crm.AssertNotCalled(t, "UpsertContact", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_NullBreakEvenIsAccepted(t *testing.T) {
	f := newFixture()
	var contact crm.Contact
	f.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { contact = args.Get(1).(crm.Contact) }).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("NotifyLeadCompleted", mock.Anything, mock.Anything).Return(nil)

	w, _ := perform(f.handler(t), leadBody(`{"clients":100,"packagesPerYear":2,"minutesSaved":120,"hourlyRate":80,"adoption":0.8,`+
		`"annualCost":0,"savingsAnnual":25600,"savingsMonthly":2133,"breakEvenMonths":null,"capacityHoursAnnual":160}`))

	require.Equal(t, http.StatusOK, w.Code)
	v, ok := contact.Attributes["ROI_BREAK_EVEN_MONTHS"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestHandle_NormalizesDecomposedUmlauts(t *testing.T) {
	f := newFixture()
	f.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.MatchedBy(func(c crm.Contact) bool {
		return c.Attributes[crm.AttrFirstName] == "Jürgen" && c.Attributes[crm.AttrLastName] == "Müller-Lüdenscheid"
	})).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("NotifyLeadCompleted", mock.Anything, mock.Anything).Return(nil)

	body := `{"email":"j@example.de","firstName":"Ju\u0308rgen","lastName":"Mu\u0308ller-Lu\u0308denscheid",` +
		`"company":"Kanzlei","turnstileToken":"tok"}`
	w, _ := perform(f.handler(t), body)

	assert.Equal(t, http.StatusOK, w.Code)
	f.crm.AssertExpectations(t)
}

func TestHandle_BotChallenge(t *testing.T) {
	tests := []struct {
		name     string
		ok       bool
		err      error
		wantCode errors.ErrorCode
	}{
		{name: "token rejected", ok: false},
		{name: "verifier unreachable", err: fmt.Errorf("turnstile: dial tcp: timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.verifier.On("Verify", mock.Anything, "tok-1", testIP).Return(tt.ok, tt.err)

			w, out := perform(f.handler(t), leadBody(calculatorJSON))

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, errors.MessageBotChallenge, out["message"])
			assert.NotContains(t, w.Body.String(), "turnstile")
			f.crm.AssertNotCalled(t, "UpsertContact", mock.Anything, mock.Anything)
			f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_CRMFailure(t *testing.T) {
	f := newFixture()
	f.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.Anything).Return(fmt.Errorf("Brevo API error: Key not found"))

	w, out := perform(f.handler(t), leadBody(calculatorJSON))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.MessageTechnical, out["message"])
	assert.NotContains(t, w.Body.String(), "Brevo")
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "NotifyLeadCompleted", mock.Anything, mock.Anything)
}

func TestHandle_DownstreamFailuresDoNotFailTheLead(t *testing.T) {
	f := newFixture()
	f.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("Brevo email API error: blocked"))
	f.notifier.On("NotifyLeadCompleted", mock.Anything, mock.Anything).Return(fmt.Errorf("sns: publish: throttled"))

	h := f.handler(t)
	w, out := perform(h, leadBody(calculatorJSON))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["success"])

	output, err := h.Execute(context.Background(), &Input{
		Email: "max@example.de", FirstName: "Max", LastName: "M", Company: "K", TurnstileToken: "tok-1",
	})
	require.NoError(t, err)
	assert.False(t, output.EmailSent)
}

func TestService_SenderAndNoNotifier(t *testing.T) {
	f := newFixture()
	cfg := createValidConfig()
	cfg.SenderEmail = "info@ipa.example"

	f.verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.crm.On("UpsertContact", mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m mail.Message) bool {
		return m.From == mail.Recipient{Email: "info@ipa.example", Name: "IPA Website"}
	})).Return(nil)

	h, err := NewHandler(HandlerOptions{
		CustomConfig: cfg,
		CRM:          f.crm,
		Mailer:       f.mailer,
		Verifier:     f.verifier,
		Limiter:      f.limiter,
		Logger:       logger.NewNoOpLogger(),
	})
	require.NoError(t, err)

	output, err := h.Execute(context.Background(), &Input{
		Email: "max@example.de", FirstName: "Max", LastName: "M", Company: "K", TurnstileToken: "tok-1",
	})
	require.NoError(t, err)
	assert.True(t, output.EmailSent)
	f.mailer.AssertExpectations(t)
}

// ==========================
// Configuration Tests
// ==========================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: "timeout must be positive"},
		{name: "unknown variant", mutate: func(c *Config) { c.Variant = "yearly" }, wantErr: `unknown calculator variant "yearly" (known: monetary, time)`},
		{name: "no base url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: "base_url is required"},
		{name: "relative pdf path", mutate: func(c *Config) { c.PDFPath = "roi.pdf" }, wantErr: "pdf_path must start with /"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := createValidConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestConfig_PDFURL(t *testing.T) {
	cfg := createValidConfig()
	cfg.BaseURL = "https://ipa.example/"
	assert.Equal(t, "https://ipa.example/roi-rechner.pdf", cfg.PDFURL())
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appConfig := &config.Config{
		Lead: config.LeadConfig{
			Variant:     "time",
			BaseURL:     "https://www.ipa.de",
			PDFPath:     "/downloads/roi.pdf",
			CRMProvider: "zoho",
			SenderEmail: "info@ipa.de",
		},
	}

	cfg := createConfigFromAppConfig(appConfig, nil)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, "time", cfg.Variant)
	assert.Equal(t, "https://www.ipa.de/downloads/roi.pdf", cfg.PDFURL())
	assert.Equal(t, "zoho", cfg.CRMProvider)
	assert.Equal(t, "IPA Website", cfg.SenderName)
	assert.Equal(t, "info@ipa.de", cfg.SenderEmail)
}

func TestNewHandler_RequiresCollaborators(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{name: "crm", opts: HandlerOptions{CustomConfig: createValidConfig()}, wantErr: "complete-lead: CRM client is required"},
		{name: "mailer", opts: HandlerOptions{CustomConfig: createValidConfig(), CRM: f.crm}, wantErr: "complete-lead: mailer is required"},
		{name: "verifier", opts: HandlerOptions{CustomConfig: createValidConfig(), CRM: f.crm, Mailer: f.mailer}, wantErr: "complete-lead: verifier is required"},
		{name: "limiter", opts: HandlerOptions{CustomConfig: createValidConfig(), CRM: f.crm, Mailer: f.mailer, Verifier: f.verifier}, wantErr: "complete-lead: rate limiter is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHandler(tt.opts)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}
