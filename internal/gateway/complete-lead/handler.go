package completelead

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ipa-leadgate/internal/common/config"
	"ipa-leadgate/internal/common/crm"
	"ipa-leadgate/internal/common/errors"
	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/internal/common/validation"
	"ipa-leadgate/internal/ratelimit"
	"ipa-leadgate/pkg/roi"
)

const Endpoint = "complete-lead"

type Handler struct {
	config     *Config
	variant    *roi.Variant
	calcSchema *validation.DocumentSchema
	logger     logger.Logger
	service    *Service
	limiter    ratelimit.Limiter
	errors     *errors.ErrorHandler
	obs        *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	CRM           crm.Upserter
	Mailer        mail.Sender
	Verifier      Verifier
	Notifier      SalesNotifier
	Limiter       ratelimit.Limiter
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	endpointConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := endpointConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for complete-lead: %w", err)
	}
	switch {
	case opts.CRM == nil:
		return nil, fmt.Errorf("complete-lead: CRM client is required")
	case opts.Mailer == nil:
		return nil, fmt.Errorf("complete-lead: mailer is required")
	case opts.Verifier == nil:
		return nil, fmt.Errorf("complete-lead: verifier is required")
	case opts.Limiter == nil:
		return nil, fmt.Errorf("complete-lead: rate limiter is required")
	}

	variant, err := roi.Lookup(endpointConfig.Variant)
	if err != nil {
		return nil, err
	}
	calcSchema, err := validation.CompileDocumentSchema(variant.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("complete-lead: calculator schema: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"endpoint": Endpoint})

	handler := &Handler{
		config:     endpointConfig,
		variant:    variant,
		calcSchema: calcSchema,
		logger:     loggerInstance,
		limiter:    opts.Limiter,
		obs:        opts.Observability,
		errors: errors.NewErrorHandler(loggerInstance, Endpoint,
			errors.WithFallbackMessage(errors.MessageTechnical),
			errors.WithRecorder(metrics.Recorder{}),
		),
	}

	handler.service = NewService(ServiceDependencies{
		Logger:        loggerInstance,
		CRM:           opts.CRM,
		Mailer:        opts.Mailer,
		Verifier:      opts.Verifier,
		Notifier:      opts.Notifier,
		Observability: opts.Observability,
	}, handler.config, variant)

	return handler, nil
}

// Handle serves POST /brevo/complete-lead.
func (h *Handler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	ip := clientIP(c)

	if err := h.checkRateLimit(ctx, ip); err != nil {
		h.obs.RecordSubmission(ctx, Endpoint, "rate_limited")
		h.errors.Respond(c, err)
		return
	}

	input, err := h.parseInput(c)
	if err != nil {
		h.obs.RecordSubmission(ctx, Endpoint, "rejected")
		h.errors.Respond(c, err)
		return
	}
	input.ClientIP = ip

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.obs.RecordSubmission(ctx, Endpoint, "failed")
		h.errors.Respond(c, err)
		return
	}

	h.obs.RecordSubmission(ctx, Endpoint, "success")
	c.JSON(http.StatusOK, output)
}

// checkRateLimit fails open: a broken limiter backend must not stop lead
// capture.
func (h *Handler) checkRateLimit(ctx context.Context, ip string) error {
	decision, err := h.limiter.Allow(ctx, Endpoint+":"+ip)
	if err != nil {
		fields := map[string]interface{}{"clientIp": ip, "error": err.Error()}
		if stderrors.Is(err, ratelimit.ErrLimiterUnavailable) {
			h.logger.Warn("Rate limiter unavailable, allowing request", fields)
		} else {
			h.logger.Error("Rate limiter failed, allowing request", fields)
		}
		return nil
	}
	if !decision.Allowed {
		metrics.RateLimitRejections.WithLabelValues(Endpoint).Inc()
		return errors.NewRateLimitExceededError(MessageRateLimited, decision.RetryAfter).
			WithMetadata("clientIp", ip)
	}
	return nil
}

func (h *Handler) parseInput(c *gin.Context) (*Input, error) {
	var variables map[string]interface{}
	if err := c.ShouldBindJSON(&variables); err != nil {
		return nil, errors.NewInputParsingError(errors.MessageValidationFailed, err)
	}
	normalizeNames(variables)

	validationResult := validation.ValidateInput(variables, GetInputSchema())
	fieldErrors := validationResult.FieldErrors()

	var snapshot roi.Snapshot
	if raw, ok := variables["calculatorData"].(map[string]interface{}); ok {
		var calcErrors map[string][]string
		var err error
		snapshot, calcErrors, err = validateCalculator(h.variant, h.calcSchema, raw)
		if err != nil {
			return nil, errors.NewInputParsingError(errors.MessageValidationFailed, err)
		}
		for k, v := range calcErrors {
			fieldErrors[k] = v
		}
	}

	if len(fieldErrors) > 0 {
		return nil, errors.NewValidationError(errors.MessageValidationFailed, fieldErrors)
	}

	return &Input{
		Email:          variables["email"].(string),
		FirstName:      variables["firstName"].(string),
		LastName:       variables["lastName"].(string),
		Company:        variables["company"].(string),
		CalculatorData: snapshot,
		TurnstileToken: variables["turnstileToken"].(string),
	}, nil
}

// Execute runs the endpoint logic after rate limiting and parsing.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString(httpclient.KeyClientIP); ip != "" {
		return ip
	}
	return "unknown"
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		endpointCfg := config.GetEndpointConfig(appConfig, Endpoint)
		cfg.Enabled = endpointCfg.Enabled
		if endpointCfg.Timeout > 0 {
			cfg.Timeout = time.Duration(endpointCfg.Timeout) * time.Millisecond
		}

		lead := appConfig.Lead
		if lead.Variant != "" {
			cfg.Variant = lead.Variant
		}
		if lead.BaseURL != "" {
			cfg.BaseURL = lead.BaseURL
		}
		if lead.PDFPath != "" {
			cfg.PDFPath = lead.PDFPath
		}
		if lead.CRMProvider != "" {
			cfg.CRMProvider = lead.CRMProvider
		}
		if lead.SenderName != "" {
			cfg.SenderName = lead.SenderName
		}
		cfg.SenderEmail = lead.SenderEmail
	}

	return cfg
}
