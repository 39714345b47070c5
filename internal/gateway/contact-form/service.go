package contactform

import (
	"context"
	"fmt"
	"time"

	"ipa-leadgate/internal/common/errors"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/internal/common/validation"
)

const (
	MessageSubmitted   = "Ihre Anfrage wurde erfolgreich übermittelt."
	MessageInvalidForm = "Ungültige Formulardaten. Bitte überprüfen Sie Ihre Eingaben."
	MessageRateLimited = "Zu viele Anfragen. Bitte versuchen Sie es später erneut."

	leadStatusContact = "contact"
)

type Service struct {
	config *Config
	logger logger.Logger
	mailer mail.Sender
	obs    *observability.Observability
	now    func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		mailer: deps.Mailer,
		obs:    deps.Observability,
		now:    time.Now,
	}
}

// Execute screens the address and alerts the sales inbox. A failed alert is
// logged and the visitor still gets a success response.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	if validation.IsDisposableEmail(input.Email) {
		s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "rejected")
		return nil, errors.NewDisposableEmailError(validation.EmailDomain(input.Email)).
			WithMetadata("email", logger.MaskEmail(input.Email))
	}
	if pattern := validation.SuspiciousEmailPattern(input.Email); pattern != "" {
		s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "rejected")
		return nil, errors.NewSuspiciousEmailError("matched " + pattern).
			WithMetadata("email", logger.MaskEmail(input.Email))
	}

	notified := false
	if s.config.NotificationEmail != "" {
		if err := s.notify(ctx, input); err != nil {
			s.logger.Error("Failed to send contact notification", map[string]interface{}{
				"error":   errors.NewEmailSendFailedError(err).Error(),
				"email":   logger.MaskEmail(input.Email),
				"company": input.FirmName,
			})
		} else {
			notified = true
		}
	}

	metrics.LeadsTotal.WithLabelValues(leadStatusContact).Inc()
	s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "success")

	s.logger.Info("Contact request received", map[string]interface{}{
		"email":         logger.MaskEmail(input.Email),
		"company":       input.FirmName,
		"employeeCount": input.EmployeeCount,
		"notified":      notified,
	})

	return &Output{Success: true, Message: MessageSubmitted}, nil
}

func (s *Service) notify(ctx context.Context, input *Input) error {
	html, err := mail.RenderContactNotification(mail.ContactNotification{
		Name:          input.Name,
		Email:         input.Email,
		Phone:         input.Phone,
		FirmName:      input.FirmName,
		EmployeeCount: input.EmployeeCount,
		Message:       input.Message,
		IP:            input.ClientIP,
		SubmittedAt:   s.now(),
	})
	if err != nil {
		return fmt.Errorf("render contact notification: %w", err)
	}

	msg := mail.Message{
		To:          []mail.Recipient{{Email: s.config.NotificationEmail}},
		Subject:     mail.ContactSubject(input.FirmName),
		HTMLContent: html,
	}
	if s.config.SenderEmail != "" {
		msg.From = mail.Recipient{Email: s.config.SenderEmail, Name: s.config.SenderName}
	}
	return s.mailer.Send(ctx, msg)
}
