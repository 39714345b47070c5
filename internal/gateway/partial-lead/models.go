package partiallead

import (
	"ipa-leadgate/internal/common/crm"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/observability"
)

type Input struct {
	Email             string `json:"email"`
	ConsentRequired   bool   `json:"consentRequired"`
	ConsentNewsletter bool   `json:"consentNewsletter"`
}

type Output struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ServiceDependencies struct {
	Logger        logger.Logger
	CRM           crm.Upserter
	Observability *observability.Observability
}
