package completelead

import (
	"fmt"
	"strings"
	"time"

	"ipa-leadgate/pkg/roi"
)

type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Variant     string        `mapstructure:"variant"`
	BaseURL     string        `mapstructure:"base_url"`
	PDFPath     string        `mapstructure:"pdf_path"`
	CRMProvider string        `mapstructure:"crm_provider"`
	SenderName  string        `mapstructure:"sender_name"`
	SenderEmail string        `mapstructure:"sender_email"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		Timeout:     15 * time.Second,
		Variant:     roi.Monetary.Name,
		BaseURL:     "https://ipa-website.vercel.app",
		PDFPath:     "/roi-rechner.pdf",
		CRMProvider: "brevo",
		SenderName:  "IPA Website",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if _, err := roi.Lookup(c.Variant); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(c.PDFPath, "/") {
		return fmt.Errorf("pdf_path must start with /")
	}
	return nil
}

// PDFURL is the absolute URL of the hosted PDF sent as attachment.
func (c *Config) PDFURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.PDFPath
}
