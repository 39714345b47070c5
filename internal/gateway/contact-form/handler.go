package contactform

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ipa-leadgate/internal/common/config"
	"ipa-leadgate/internal/common/errors"
	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/internal/common/validation"
	"ipa-leadgate/internal/ratelimit"
)

const Endpoint = "contact-form"

// DefaultPolicy allows three requests per hour and blocks the client for an
// hour once it goes over.
func DefaultPolicy() ratelimit.Policy {
	return ratelimit.Policy{Name: Endpoint, Limit: 3, Window: time.Hour, Block: time.Hour}
}

type Handler struct {
	config  *Config
	logger  logger.Logger
	service *Service
	limiter ratelimit.Limiter
	errors  *errors.ErrorHandler
	obs     *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Mailer        mail.Sender
	Limiter       ratelimit.Limiter
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	endpointConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := endpointConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for contact-form: %w", err)
	}
	if opts.Mailer == nil {
		return nil, fmt.Errorf("contact-form: mailer is required")
	}
	if opts.Limiter == nil {
		return nil, fmt.Errorf("contact-form: rate limiter is required")
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"endpoint": Endpoint})

	if endpointConfig.NotificationEmail == "" {
		loggerInstance.Warn("No notification email configured, contact requests will not be forwarded", nil)
	}

	return &Handler{
		config:  endpointConfig,
		logger:  loggerInstance,
		limiter: opts.Limiter,
		obs:     opts.Observability,
		errors: errors.NewErrorHandler(loggerInstance, Endpoint,
			errors.WithMessageKey("error"),
			errors.WithFallbackMessage(errors.MessageGeneric),
			errors.WithRecorder(metrics.Recorder{}),
		),
		service: NewService(ServiceDependencies{
			Logger:        loggerInstance,
			Mailer:        opts.Mailer,
			Observability: opts.Observability,
		}, endpointConfig),
	}, nil
}

// Handle serves POST /submit-form.
func (h *Handler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	ip := clientIP(c)

	if err := h.checkRateLimit(ctx, ip); err != nil {
		h.obs.RecordSubmission(ctx, Endpoint, "rate_limited")
		h.errors.Respond(c, err)
		return
	}

	var variables map[string]interface{}
	if err := c.ShouldBindJSON(&variables); err != nil {
		h.obs.RecordSubmission(ctx, Endpoint, "rejected")
		h.errors.Respond(c, errors.NewInputParsingError(MessageInvalidForm, err))
		return
	}
	normalizeEmail(variables)

	if honeypotFilled(variables) {
		h.logger.Warn("Honeypot field filled, dropping submission", map[string]interface{}{"clientIp": ip})
		h.obs.RecordSubmission(ctx, Endpoint, "honeypot")
		c.JSON(http.StatusOK, Output{Success: true})
		return
	}

	input, err := h.parseInput(variables)
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

func (h *Handler) parseInput(variables map[string]interface{}) (*Input, error) {
	validationResult := validation.ValidateInput(variables, GetInputSchema())
	if !validationResult.Valid {
		return nil, errors.NewValidationError(MessageInvalidForm, validationResult.FieldErrors())
	}

	input := &Input{
		Name:          variables["name"].(string),
		Email:         variables["email"].(string),
		Phone:         variables["phone"].(string),
		FirmName:      variables["firmName"].(string),
		EmployeeCount: variables["employeeCount"].(string),
	}
	if msg, ok := variables["message"].(string); ok {
		input.Message = msg
	}
	return input, nil
}

// Execute runs the endpoint logic after rate limiting and validation.
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
		cfg.NotificationEmail = lead.NotificationEmail
		if lead.SenderName != "" {
			cfg.SenderName = lead.SenderName
		}
		cfg.SenderEmail = lead.SenderEmail
	}

	return cfg
}
