package partiallead

import (
	"context"
	stderrors "errors"
	"time"

	"ipa-leadgate/internal/common/crm"
	"ipa-leadgate/internal/common/errors"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
)

const MessageCreated = "Partial lead created"

type Service struct {
	config *Config
	logger logger.Logger
	crm    crm.Upserter
	obs    *observability.Observability
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		crm:    deps.CRM,
		obs:    deps.Observability,
	}
}

// Execute records the step one contact. The newsletter list is only
// attached when the visitor opted in.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	contact := crm.Contact{
		Email: input.Email,
		Attributes: map[string]interface{}{
			crm.AttrConsentContact:    input.ConsentRequired,
			crm.AttrConsentNewsletter: input.ConsentNewsletter,
			crm.AttrLeadStatus:        crm.LeadStatusPartial,
		},
		UpdateEnabled: true,
	}
	if input.ConsentNewsletter {
		contact.ListIDs = []int64{s.config.NewsletterListID}
	}

	if err := s.crm.UpsertContact(ctx, contact); err != nil {
		s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "failed")
		if stderrors.Is(err, crm.ErrNotConfigured) {
			return nil, errors.NewCRMNotConfiguredError(s.config.CRMProvider)
		}
		return nil, errors.NewCRMAPIError("upsert_contact", err).
			WithMetadata("email", logger.MaskEmail(input.Email))
	}

	metrics.LeadsTotal.WithLabelValues(crm.LeadStatusPartial).Inc()
	s.obs.RecordSubmissionDuration(ctx, Endpoint, time.Since(start), "success")

	s.logger.Info("Partial lead created", map[string]interface{}{
		"email":      logger.MaskEmail(input.Email),
		"newsletter": input.ConsentNewsletter,
		"crm":        s.config.CRMProvider,
	})

	return &Output{Success: true, Message: MessageCreated}, nil
}
