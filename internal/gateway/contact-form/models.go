package contactform

import (
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/observability"
)

// Input is a process analysis request. Honeypot is the hidden field bots
// fill in.
type Input struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	FirmName      string `json:"firmName"`
	EmployeeCount string `json:"employeeCount"`
	Message       string `json:"message,omitempty"`
	Honeypot      string `json:"honeypot"`
	ClientIP      string `json:"-"`
}

type Output struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ServiceDependencies struct {
	Logger        logger.Logger
	Mailer        mail.Sender
	Observability *observability.Observability
}
