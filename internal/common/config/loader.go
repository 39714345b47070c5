// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ipa-leadgate/pkg/roi"
)

const (
	ProviderBrevo = "brevo"
	ProviderZoho  = "zoho"
	ProviderSES   = "ses"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	DefaultBaseURL = "https://ipa-website.vercel.app"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// Enable ENV override like SERVER_ADDRESS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory, its parents, or the module root
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("Loaded .env from: %s\n", path)
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets and deployment settings from the
// environment variable names the site has always used.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Integrations.Brevo.APIKey, "BREVO_API_KEY")
	setIfEmpty(&cfg.Integrations.Turnstile.SecretKey, "TURNSTILE_SECRET_KEY")
	setIfEmpty(&cfg.Integrations.Zoho.APIKey, "ZOHO_CRM_API_KEY")
	setIfEmpty(&cfg.Integrations.Zoho.AuthToken, "ZOHO_CRM_OAUTH_TOKEN")
	setIfEmpty(&cfg.Lead.NotificationEmail, "NOTIFICATION_EMAIL")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")

	if val := os.Getenv("NEXT_PUBLIC_BASE_URL"); val != "" && (cfg.Lead.BaseURL == "" || cfg.Lead.BaseURL == DefaultBaseURL) {
		cfg.Lead.BaseURL = strings.TrimRight(val, "/")
	}

	if val := os.Getenv("BREVO_NEWSLETTER_LIST_ID"); val != "" {
		if id, err := strconv.ParseInt(val, 10, 64); err == nil && id > 0 {
			cfg.Lead.NewsletterListID = id
		}
	}
}

func setIfEmpty(target *string, env string) {
	if *target != "" {
		return
	}
	if val := os.Getenv(env); val != "" {
		*target = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ipa-leadgate"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.BasePath == "" {
		cfg.Server.BasePath = "/api"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	// Rate limit defaults
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = BackendMemory
	}
	if cfg.RateLimit.CompleteLead.Limit == 0 {
		cfg.RateLimit.CompleteLead.Limit = 3
	}
	if cfg.RateLimit.CompleteLead.Window == 0 {
		cfg.RateLimit.CompleteLead.Window = 3600000
	}
	if cfg.RateLimit.ContactForm.Limit == 0 {
		cfg.RateLimit.ContactForm.Limit = 3
	}
	if cfg.RateLimit.ContactForm.Window == 0 {
		cfg.RateLimit.ContactForm.Window = 3600000
	}
	if cfg.RateLimit.ContactForm.Block == 0 {
		cfg.RateLimit.ContactForm.Block = 3600000
	}

	// Lead defaults
	if cfg.Lead.Variant == "" {
		cfg.Lead.Variant = roi.Monetary.Name
	}
	if cfg.Lead.BaseURL == "" {
		cfg.Lead.BaseURL = DefaultBaseURL
	}
	if cfg.Lead.PDFPath == "" {
		cfg.Lead.PDFPath = "/roi-rechner.pdf"
	}
	if cfg.Lead.NewsletterListID == 0 {
		cfg.Lead.NewsletterListID = 2
	}
	if cfg.Lead.CRMProvider == "" {
		cfg.Lead.CRMProvider = ProviderBrevo
	}
	if cfg.Lead.MailProvider == "" {
		cfg.Lead.MailProvider = ProviderBrevo
	}
	if cfg.Lead.SenderName == "" {
		cfg.Lead.SenderName = "IPA Website"
	}

	// Integration defaults
	if cfg.Integrations.Brevo.BaseURL == "" {
		cfg.Integrations.Brevo.BaseURL = "https://api.brevo.com/v3"
	}
	if cfg.Integrations.Brevo.RequestsPerSecond == 0 {
		cfg.Integrations.Brevo.RequestsPerSecond = 10
	}
	if cfg.Integrations.Brevo.Burst == 0 {
		cfg.Integrations.Brevo.Burst = 5
	}
	if cfg.Integrations.Brevo.Timeout == 0 {
		cfg.Integrations.Brevo.Timeout = 10000
	}
	if cfg.Integrations.Zoho.BaseURL == "" {
		cfg.Integrations.Zoho.BaseURL = "https://www.zohoapis.com/crm/v3"
	}
	if cfg.Integrations.Turnstile.VerifyURL == "" {
		cfg.Integrations.Turnstile.VerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	}
	if cfg.Integrations.Turnstile.Timeout == 0 {
		cfg.Integrations.Turnstile.Timeout = 5000
	}
	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "eu-central-1"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, endpoint := range cfg.Endpoints {
		if endpoint.Timeout == 0 {
			endpoint.Timeout = 15000
		}
		cfg.Endpoints[key] = endpoint
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if _, err := roi.Lookup(cfg.Lead.Variant); err != nil {
		return fmt.Errorf("lead.variant: %w", err)
	}

	switch cfg.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when rate_limit.backend is redis")
		}
	default:
		return fmt.Errorf("rate_limit.backend must be %q or %q, got %q", BackendMemory, BackendRedis, cfg.RateLimit.Backend)
	}

	if cfg.RateLimit.CompleteLead.Limit < 0 || cfg.RateLimit.ContactForm.Limit < 0 {
		return fmt.Errorf("rate_limit limits must not be negative")
	}

	switch cfg.Lead.CRMProvider {
	case ProviderBrevo, ProviderZoho:
	default:
		return fmt.Errorf("lead.crm_provider must be %q or %q, got %q", ProviderBrevo, ProviderZoho, cfg.Lead.CRMProvider)
	}

	switch cfg.Lead.MailProvider {
	case ProviderBrevo:
	case ProviderSES:
		if cfg.Integrations.AWS.SES.FromEmail == "" && cfg.Lead.SenderEmail == "" {
			return fmt.Errorf("integrations.aws.ses.from_email or lead.sender_email is required for the ses mail provider")
		}
	default:
		return fmt.Errorf("lead.mail_provider must be %q or %q, got %q", ProviderBrevo, ProviderSES, cfg.Lead.MailProvider)
	}

	if cfg.Integrations.AWS.SNS.Enabled && cfg.Integrations.AWS.SNS.TopicARN == "" {
		return fmt.Errorf("integrations.aws.sns.topic_arn is required when sns is enabled")
	}

	if cfg.Server.TrustedProxyCount < 0 {
		return fmt.Errorf("server.trusted_proxy_count must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetEndpointConfig retrieves endpoint-specific configuration with fallback to defaults
func GetEndpointConfig(cfg *Config, name string) EndpointConfig {
	if endpoint, exists := cfg.Endpoints[name]; exists {
		return endpoint
	}

	return EndpointConfig{
		Enabled: true,
		Timeout: 15000,
	}
}

// IsEndpointEnabled checks if a specific endpoint is enabled
func IsEndpointEnabled(cfg *Config, name string) bool {
	if endpoint, exists := cfg.Endpoints[name]; exists {
		return endpoint.Enabled
	}
	return true
}
