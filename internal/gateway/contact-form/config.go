package contactform

import (
	"fmt"
	"time"

	"ipa-leadgate/internal/common/validation"
)

type Config struct {
	Enabled           bool          `mapstructure:"enabled"`
	Timeout           time.Duration `mapstructure:"timeout"`
	NotificationEmail string        `mapstructure:"notification_email"`
	SenderName        string        `mapstructure:"sender_name"`
	SenderEmail       string        `mapstructure:"sender_email"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		Timeout:    10 * time.Second,
		SenderName: "IPA Website",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.NotificationEmail != "" && !validation.ValidateEmail(c.NotificationEmail) {
		return fmt.Errorf("notification_email %q is not a valid address", c.NotificationEmail)
	}
	if c.SenderEmail != "" && !validation.ValidateEmail(c.SenderEmail) {
		return fmt.Errorf("sender_email %q is not a valid address", c.SenderEmail)
	}
	return nil
}
