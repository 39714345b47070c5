// cmd/leadgate/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ipa-leadgate/internal/common/aws"
	"ipa-leadgate/internal/common/brevo"
	"ipa-leadgate/internal/common/config"
	"ipa-leadgate/internal/common/crm"
	"ipa-leadgate/internal/common/database"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/internal/common/turnstile"
	"ipa-leadgate/internal/common/zoho"
	"ipa-leadgate/internal/gateway/server"
	"ipa-leadgate/internal/ratelimit"

	cl "ipa-leadgate/internal/gateway/complete-lead"
	cf "ipa-leadgate/internal/gateway/contact-form"
	pl "ipa-leadgate/internal/gateway/partial-lead"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lead gateway...",
		zap.String("environment", cfg.App.Environment),
		zap.String("variant", cfg.Lead.Variant),
		zap.String("rateLimitBackend", cfg.RateLimit.Backend),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	if cfg.RateLimit.Backend == config.BackendRedis {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
	}

	// --- Init External Service Clients ---
	brevoClient := brevo.NewClient(brevo.Config{
		APIKey:            cfg.Integrations.Brevo.APIKey,
		BaseURL:           cfg.Integrations.Brevo.BaseURL,
		RequestsPerSecond: cfg.Integrations.Brevo.RequestsPerSecond,
		Burst:             cfg.Integrations.Brevo.Burst,
		Timeout:           config.GetDuration(cfg.Integrations.Brevo.Timeout),
	}, brevo.WithObservability(obs))
	if cfg.Integrations.Brevo.APIKey == "" {
		zapLog.Warn("Brevo API key is not set, contact and email calls will fail")
	}

	crmClient := newCRM(cfg, brevoClient, obs)

	mailer, err := newMailer(ctx, cfg, brevoClient, obs)
	if err != nil {
		zapLog.Fatal("mail provider init failed", zap.Error(err))
	}

	notifier, err := newNotifier(ctx, cfg, obs)
	if err != nil {
		zapLog.Fatal("sns init failed", zap.Error(err))
	}

	verifier := turnstile.NewVerifier(
		cfg.Integrations.Turnstile.SecretKey,
		cfg.Integrations.Turnstile.VerifyURL,
		config.GetDuration(cfg.Integrations.Turnstile.Timeout),
		obs,
	)

	zapLog.Info("All external service clients initialized",
		zap.String("crm", cfg.Lead.CRMProvider),
		zap.String("mail", cfg.Lead.MailProvider),
		zap.Bool("sns", notifier != nil),
	)

	// --- Rate limiters ---
	completePolicy := ratelimit.Policy{
		Name:   cl.Endpoint,
		Limit:  cfg.RateLimit.CompleteLead.Limit,
		Window: config.GetDuration(cfg.RateLimit.CompleteLead.Window),
	}
	contactPolicy := ratelimit.Policy{
		Name:   cf.Endpoint,
		Limit:  cfg.RateLimit.ContactForm.Limit,
		Window: config.GetDuration(cfg.RateLimit.ContactForm.Window),
		Block:  config.GetDuration(cfg.RateLimit.ContactForm.Block),
	}
	for _, p := range []ratelimit.Policy{completePolicy, contactPolicy} {
		if err := p.Validate(); err != nil {
			zapLog.Fatal("invalid rate limit policy", zap.Error(err))
		}
	}

	var completeLimiter, contactLimiter ratelimit.Limiter
	if redis != nil {
		completeLimiter = ratelimit.NewRedisFixedWindow(redis.Client, completePolicy)
		contactLimiter = ratelimit.NewRedisSlidingWindow(redis.Client, contactPolicy)
	} else {
		completeLimiter = ratelimit.NewMemoryFixedWindow(completePolicy)
		contactLimiter = ratelimit.NewMemorySlidingWindow(contactPolicy)
	}

	// --- Endpoints ---
	partialHandler, err := pl.NewHandler(pl.HandlerOptions{
		AppConfig:     cfg,
		CRM:           crmClient,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("partial-lead init failed", zap.Error(err))
	}

	completeOpts := cl.HandlerOptions{
		AppConfig:     cfg,
		CRM:           crmClient,
		Mailer:        mailer,
		Verifier:      verifier,
		Limiter:       completeLimiter,
		Observability: obs,
		Logger:        log,
	}
	// a typed nil would make the service call a nil notifier
	if notifier != nil {
		completeOpts.Notifier = notifier
	}
	completeHandler, err := cl.NewHandler(completeOpts)
	if err != nil {
		zapLog.Fatal("complete-lead init failed", zap.Error(err))
	}

	contactHandler, err := cf.NewHandler(cf.HandlerOptions{
		AppConfig:     cfg,
		Mailer:        mailer,
		Limiter:       contactLimiter,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("contact-form init failed", zap.Error(err))
	}

	srv, err := server.New(server.Options{
		Config: cfg.Server,
		Routes: server.Routes(partialHandler, completeHandler, contactHandler),
		Ready:  readiness(redis),
		Logger: log,
	})
	if err != nil {
		zapLog.Fatal("server init failed", zap.Error(err))
	}

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	if err := srv.Shutdown(context.Background()); err != nil {
		zapLog.Error("Error during shutdown", zap.Error(err))
	}

	zapLog.Info("Lead gateway stopped")
}

func newCRM(cfg *config.Config, brevoClient *brevo.Client, obs *observability.Observability) crm.Upserter {
	if cfg.Lead.CRMProvider == config.ProviderZoho {
		return zoho.NewCRMClient(cfg.Integrations.Zoho.AuthToken, cfg.Integrations.Zoho.BaseURL, obs)
	}
	return brevoClient
}

func newMailer(ctx context.Context, cfg *config.Config, brevoClient *brevo.Client, obs *observability.Observability) (mail.Sender, error) {
	if cfg.Lead.MailProvider != config.ProviderSES {
		return brevoClient, nil
	}
	client, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		return nil, err
	}
	from := cfg.Integrations.AWS.SES.FromEmail
	if from == "" {
		from = cfg.Lead.SenderEmail
	}
	return aws.NewSESMailer(client, from, obs), nil
}

func newNotifier(ctx context.Context, cfg *config.Config, obs *observability.Observability) (*aws.SalesNotifier, error) {
	if !cfg.Integrations.AWS.SNS.Enabled {
		return nil, nil
	}
	client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		return nil, err
	}
	return aws.NewSalesNotifier(client, cfg.Integrations.AWS.SNS.TopicARN, obs), nil
}

func readiness(redis *database.RedisClient) server.ReadinessCheck {
	if redis == nil {
		return nil
	}
	return redis.Ping
}
