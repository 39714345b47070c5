package partiallead

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled          bool          `mapstructure:"enabled"`
	Timeout          time.Duration `mapstructure:"timeout"`
	NewsletterListID int64         `mapstructure:"newsletter_list_id"`
	CRMProvider      string        `mapstructure:"crm_provider"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		Timeout:          10 * time.Second,
		NewsletterListID: 2,
		CRMProvider:      "brevo",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.NewsletterListID <= 0 {
		return fmt.Errorf("newsletter_list_id must be positive")
	}
	if c.CRMProvider == "" {
		return fmt.Errorf("crm_provider is required")
	}
	return nil
}
