package completelead

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"ipa-leadgate/internal/common/aws"
	"ipa-leadgate/internal/common/crm"
	"ipa-leadgate/internal/common/errors"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
	"ipa-leadgate/pkg/roi"
)

const (
	MessageCompleted   = "Lead completed and email sent"
	AttachmentName     = "ROI-Rechner.pdf"
	MessageRateLimited = "Zu viele Anfragen. Bitte versuchen Sie es in einer Stunde erneut."
)

type Service struct {
	config   *Config
	variant  *roi.Variant
	logger   logger.Logger
	crm      crm.Upserter
	mailer   mail.Sender
	verifier Verifier
	notifier SalesNotifier
	obs      *observability.Observability
	now      func() time.Time
}

func NewService(deps ServiceDependencies, config *Config, variant *roi.Variant) *Service {
	return &Service{
		config:   config,
		variant:  variant,
		logger:   deps.Logger,
		crm:      deps.CRM,
		mailer:   deps.Mailer,
		verifier: deps.Verifier,
		notifier: deps.Notifier,
		obs:      deps.Observability,
		now:      time.Now,
	}
}

// Execute verifies the bot challenge, enriches the CRM contact and sends
// the ROI email. Once the contact is written the lead counts as captured:
// email and sales alert failures are logged and do not fail the request.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	maskedEmail := logger.MaskEmail(input.Email)

	if err := s.verify(ctx, input); err != nil {
		s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "rejected")
		return nil, err
	}

	if err := s.crm.UpsertContact(ctx, s.buildContact(input)); err != nil {
		s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "failed")
		if stderrors.Is(err, crm.ErrNotConfigured) {
			return nil, errors.NewCRMNotConfiguredError(s.config.CRMProvider)
		}
		return nil, errors.NewCRMAPIError("upsert_contact", err).WithMetadata("email", maskedEmail)
	}
	metrics.LeadsTotal.WithLabelValues(crm.LeadStatusComplete).Inc()

	output := &Output{
		Success: true,
		Message: MessageCompleted,
		PDFURL:  s.config.PDFPath,
	}

	if err := s.sendEmail(ctx, input); err != nil {
		stdErr := errors.NewEmailSendFailedError(err)
		s.logger.Error("ROI email not sent, lead is captured", map[string]interface{}{
			"email":     maskedEmail,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	} else {
		output.EmailSent = true
	}

	s.notifySales(ctx, input)

	s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "success")
	s.logger.Info("Lead completed", map[string]interface{}{
		"email":      maskedEmail,
		"calculator": input.CalculatorData != nil,
		"emailSent":  output.EmailSent,
	})

	return output, nil
}

func (s *Service) verify(ctx context.Context, input *Input) error {
	ok, err := s.verifier.Verify(ctx, input.TurnstileToken, input.ClientIP)
	if err != nil {
		return errors.NewBotVerificationUnavailableError(err)
	}
	if !ok {
		return errors.NewBotChallengeFailedError("token rejected by verifier")
	}
	return nil
}

func (s *Service) buildContact(input *Input) crm.Contact {
	attributes := map[string]interface{}{
		crm.AttrFirstName:  input.FirstName,
		crm.AttrLastName:   input.LastName,
		crm.AttrCompany:    input.Company,
		crm.AttrLeadStatus: crm.LeadStatusComplete,
	}
	if input.CalculatorData != nil {
		for k, v := range s.variant.Attributes(input.CalculatorData) {
			attributes[k] = v
		}
	}

	return crm.Contact{
		Email:         input.Email,
		Attributes:    attributes,
		UpdateEnabled: true,
	}
}

func (s *Service) sendEmail(ctx context.Context, input *Input) error {
	html, err := mail.RenderROIEmail(mail.BuildROIEmail(s.variant, input.FirstName, s.config.BaseURL, input.CalculatorData))
	if err != nil {
		return fmt.Errorf("render ROI email: %w", err)
	}

	msg := mail.Message{
		To:          []mail.Recipient{{Email: input.Email, Name: input.FirstName + " " + input.LastName}},
		Subject:     mail.ROISubject,
		HTMLContent: html,
		Attachments: []mail.Attachment{{Name: AttachmentName, URL: s.config.PDFURL()}},
	}
	if s.config.SenderEmail != "" {
		msg.From = mail.Recipient{Email: s.config.SenderEmail, Name: s.config.SenderName}
	}

	return s.mailer.Send(ctx, msg)
}

func (s *Service) notifySales(ctx context.Context, input *Input) {
	if s.notifier == nil {
		return
	}

	var calculator map[string]interface{}
	if input.CalculatorData != nil {
		calculator = s.variant.Attributes(input.CalculatorData)
	}

	err := s.notifier.NotifyLeadCompleted(ctx, aws.LeadAlert{
		Email:       input.Email,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Company:     input.Company,
		Variant:     s.variant.Name,
		Calculator:  calculator,
		CompletedAt: s.now().UTC(),
	})
	if err != nil {
		stdErr := errors.NewNotificationPublishFailedError(err)
		s.logger.Warn("Sales alert not published", map[string]interface{}{
			"email":     logger.MaskEmail(input.Email),
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
	}
}
