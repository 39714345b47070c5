// Package server assembles the gateway: the gin engine, the form routes and
// the operational endpoints.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ipa-leadgate/internal/common/config"
	"ipa-leadgate/internal/common/errors"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/metrics"
)

const (
	DefaultBasePath = "/api"

	PathPartialLead  = "/brevo/partial-lead"
	PathCompleteLead = "/brevo/complete-lead"
	PathContactForm  = "/submit-form"
)

// Endpoint is a form handler that can be switched off by configuration.
type Endpoint interface {
	Handle(c *gin.Context)
	IsEnabled() bool
}

type Route struct {
	Name     string
	Path     string
	Endpoint Endpoint
}

// Routes lists the form endpoints at their public paths. A nil endpoint is
// skipped when the server is built.
func Routes(partialLead, completeLead, contactForm Endpoint) []Route {
	return []Route{
		{Name: "partial-lead", Path: PathPartialLead, Endpoint: partialLead},
		{Name: "complete-lead", Path: PathCompleteLead, Endpoint: completeLead},
		{Name: "contact-form", Path: PathContactForm, Endpoint: contactForm},
	}
}

// ReadinessCheck reports whether the backends the gateway depends on are
// reachable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Config config.ServerConfig
	Routes []Route
	Ready  ReadinessCheck
	Logger logger.Logger
}

type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     logger.Logger
	registered []string
	shutdown   time.Duration
}

func New(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"component": "server"})

	basePath := strings.TrimRight(opts.Config.BasePath, "/")
	if opts.Config.BasePath == "" {
		basePath = DefaultBasePath
	}

	gatewayErrors := errors.NewErrorHandler(log, "gateway", errors.WithRecorder(metrics.Recorder{}))

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		Recovery(gatewayErrors),
		RequestID(),
		ClientIP(opts.Config.TrustedProxyCount),
		AccessLog(log),
		Metrics(),
		SecurityHeaders(),
		CORS(opts.Config.AllowedOrigins),
	)
	engine.NoMethod(func(c *gin.Context) {
		c.Header("Allow", http.MethodPost)
		gatewayErrors.Respond(c, errors.NewMethodNotAllowedError(c.Request.Method))
	})
	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
	})

	s := &Server{
		engine:   engine,
		logger:   log,
		shutdown: config.GetDuration(opts.Config.ShutdownTimeout),
	}

	api := engine.Group(basePath)
	seen := make(map[string]bool)
	for _, r := range opts.Routes {
		if r.Endpoint == nil {
			continue
		}
		if seen[r.Path] {
			return nil, fmt.Errorf("duplicate route %s", r.Path)
		}
		seen[r.Path] = true
		if !r.Endpoint.IsEnabled() {
			log.Info("Endpoint disabled", map[string]interface{}{"endpoint": r.Name})
			continue
		}
		api.POST(r.Path, r.Endpoint.Handle)
		s.registered = append(s.registered, basePath+r.Path)
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/ready", func(c *gin.Context) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				log.Warn("Readiness check failed", map[string]interface{}{"error": err.Error()})
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.httpServer = &http.Server{
		Addr:         opts.Config.Address,
		Handler:      engine,
		ReadTimeout:  config.GetDuration(opts.Config.ReadTimeout),
		WriteTimeout: config.GetDuration(opts.Config.WriteTimeout),
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Registered returns the full paths of the enabled form routes.
func (s *Server) Registered() []string {
	return s.registered
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Gateway listening", map[string]interface{}{
		"address": s.httpServer.Addr,
		"routes":  s.registered,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, waiting at most the configured
// shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdown > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdown)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
