package completelead

import (
	"context"

	"ipa-leadgate/internal/common/aws"
	"ipa-leadgate/internal/common/crm"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/pkg/roi"
)

type Input struct {
	Email          string       `json:"email"`
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Company        string       `json:"company"`
	CalculatorData roi.Snapshot `json:"calculatorData,omitempty"`
	TurnstileToken string       `json:"turnstileToken"`
	ClientIP       string       `json:"-"`
}

type Output struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PDFURL    string `json:"pdfUrl"`
	EmailSent bool   `json:"-"`
}

// Verifier checks a bot-challenge token.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// SalesNotifier announces a completed lead to the sales team.
type SalesNotifier interface {
	NotifyLeadCompleted(ctx context.Context, alert aws.LeadAlert) error
}

type ServiceDependencies struct {
	Logger        logger.Logger
	CRM           crm.Upserter
	Mailer        mail.Sender
	Verifier      Verifier
	Notifier      SalesNotifier
	Observability *observability.Observability
}
