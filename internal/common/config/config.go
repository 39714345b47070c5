// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig                 `mapstructure:"app"`
	Server       ServerConfig              `mapstructure:"server"`
	Database     DatabaseConfig            `mapstructure:"database"`
	RateLimit    RateLimitConfig           `mapstructure:"rate_limit"`
	Lead         LeadConfig                `mapstructure:"lead"`
	Endpoints    map[string]EndpointConfig `mapstructure:"endpoints"`
	Integrations IntegrationConfig         `mapstructure:"integrations"`
	Logging      LoggingConfig             `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address           string   `mapstructure:"address"`
	BasePath          string   `mapstructure:"base_path"`
	TrustedProxyCount int      `mapstructure:"trusted_proxy_count"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	ReadTimeout       int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout      int      `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout   int      `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig selects the limiter backend and the per-endpoint policies.
// Backend is "memory" (single instance) or "redis" (shared).
type RateLimitConfig struct {
	Backend      string       `mapstructure:"backend"`
	CompleteLead PolicyConfig `mapstructure:"complete_lead"`
	ContactForm  PolicyConfig `mapstructure:"contact_form"`
}

type PolicyConfig struct {
	Limit  int `mapstructure:"limit"`
	Window int `mapstructure:"window"` // milliseconds
	Block  int `mapstructure:"block"`  // milliseconds, 0 disables blocking
}

// LeadConfig holds the lead pipeline settings shared by all endpoints.
type LeadConfig struct {
	Variant           string `mapstructure:"variant"`
	BaseURL           string `mapstructure:"base_url"`
	PDFPath           string `mapstructure:"pdf_path"`
	NewsletterListID  int64  `mapstructure:"newsletter_list_id"`
	NotificationEmail string `mapstructure:"notification_email"`
	CRMProvider       string `mapstructure:"crm_provider"`
	MailProvider      string `mapstructure:"mail_provider"`
	SenderName        string `mapstructure:"sender_name"`
	SenderEmail       string `mapstructure:"sender_email"`
}

// EndpointConfig holds the core settings applicable to every gateway endpoint.
type EndpointConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Timeout int  `mapstructure:"timeout"` // milliseconds
}

// IntegrationConfig holds settings for CRM, Email, and bot verification.
type IntegrationConfig struct {
	Brevo struct {
		APIKey            string  `mapstructure:"api_key"`
		BaseURL           string  `mapstructure:"base_url"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second"`
		Burst             int     `mapstructure:"burst"`
		Timeout           int     `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"brevo"`

	Zoho struct {
		APIKey    string `mapstructure:"api_key"`
		AuthToken string `mapstructure:"oauth_token"`
		BaseURL   string `mapstructure:"base_url"`
	} `mapstructure:"zoho"`

	Turnstile struct {
		SecretKey string `mapstructure:"secret_key"`
		VerifyURL string `mapstructure:"verify_url"`
		Timeout   int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"turnstile"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
