package partiallead

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ipa-leadgate/internal/common/config"
	"ipa-leadgate/internal/common/crm"
	"ipa-leadgate/internal/common/errors"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/internal/common/validation"
)

const Endpoint = "partial-lead"

type Handler struct {
	config  *Config
	logger  logger.Logger
	service *Service
	errors  *errors.ErrorHandler
	obs     *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	CRM           crm.Upserter
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	endpointConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := endpointConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for partial-lead: %w", err)
	}
	if opts.CRM == nil {
		return nil, fmt.Errorf("partial-lead: CRM client is required")
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"endpoint": Endpoint})

	handler := &Handler{
		config: endpointConfig,
		logger: loggerInstance,
		obs:    opts.Observability,
		errors: errors.NewErrorHandler(loggerInstance, Endpoint,
			errors.WithFallbackMessage(errors.MessageGeneric),
			errors.WithRecorder(metrics.Recorder{}),
		),
	}

	handler.service = NewService(ServiceDependencies{
		Logger:        loggerInstance,
		CRM:           opts.CRM,
		Observability: opts.Observability,
	}, handler.config)

	return handler, nil
}

// Handle serves POST /brevo/partial-lead.
func (h *Handler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(c)
	if err != nil {
		h.obs.RecordSubmission(ctx, Endpoint, "rejected")
		h.errors.Respond(c, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.obs.RecordSubmission(ctx, Endpoint, "failed")
		h.errors.Respond(c, err)
		return
	}

	h.obs.RecordSubmission(ctx, Endpoint, "success")
	c.JSON(http.StatusOK, output)
}

func (h *Handler) parseInput(c *gin.Context) (*Input, error) {
	var variables map[string]interface{}
	if err := c.ShouldBindJSON(&variables); err != nil {
		return nil, errors.NewInputParsingError(errors.MessageValidationFailed, err)
	}

	validationResult := validation.ValidateInput(variables, GetInputSchema())
	if !validationResult.Valid {
		return nil, errors.NewValidationError(errors.MessageValidationFailed, validationResult.FieldErrors())
	}

	return &Input{
		Email:             variables["email"].(string),
		ConsentRequired:   variables["consentRequired"].(bool),
		ConsentNewsletter: variables["consentNewsletter"].(bool),
	}, nil
}

// Execute runs the endpoint logic without the HTTP layer.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.service.Execute(ctx, input)
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
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
		if appConfig.Lead.NewsletterListID > 0 {
			cfg.NewsletterListID = appConfig.Lead.NewsletterListID
		}
		if appConfig.Lead.CRMProvider != "" {
			cfg.CRMProvider = appConfig.Lead.CRMProvider
		}
	}

	return cfg
}
