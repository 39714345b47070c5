package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
)

const (
	EventLeadCompleted = "lead.completed"
	alertSubject       = "New completed lead"
)

// SNSAPI is the part of the SNS client the notifier uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

// LeadAlert is published to the sales topic once a lead is complete.
type LeadAlert struct {
	ID          string                 `json:"id"`
	Event       string                 `json:"event"`
	Email       string                 `json:"email"`
	FirstName   string                 `json:"firstName"`
	LastName    string                 `json:"lastName"`
	Company     string                 `json:"company"`
	Variant     string                 `json:"variant,omitempty"`
	Calculator  map[string]interface{} `json:"calculator,omitempty"`
	CompletedAt time.Time              `json:"completedAt"`
}

type SalesNotifier struct {
	client   SNSAPI
	topicARN string
	obs      *observability.Observability
	newID    func() string
}

func NewSalesNotifier(client SNSAPI, topicARN string, obs *observability.Observability) *SalesNotifier {
	return &SalesNotifier{
		client:   client,
		topicARN: topicARN,
		obs:      obs,
		newID:    uuid.NewString,
	}
}

// NotifyLeadCompleted publishes the alert. FIFO topics get the alert id as
// deduplication id and the email as message group.
func (n *SalesNotifier) NotifyLeadCompleted(ctx context.Context, alert LeadAlert) (err error) {
	ctx, span := n.obs.StartSpan(ctx, "sns.publish_lead", attribute.String("sns.topic", n.topicARN))
	defer func() {
		if err != nil {
			metrics.CollaboratorFailures.WithLabelValues("sns", "publish_lead").Inc()
		}
		observability.EndSpan(span, err)
	}()

	if alert.ID == "" {
		alert.ID = n.newID()
	}
	alert.Event = EventLeadCompleted
	if alert.CompletedAt.IsZero() {
		alert.CompletedAt = time.Now().UTC()
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("sns: marshal alert: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: awssdk.String(n.topicARN),
		Subject:  awssdk.String(alertSubject),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: awssdk.String("String"), StringValue: awssdk.String(EventLeadCompleted)},
		},
	}
	if strings.HasSuffix(n.topicARN, ".fifo") {
		input.MessageDeduplicationId = awssdk.String(alert.ID)
		input.MessageGroupId = awssdk.String(alert.Email)
	}

	if _, err = n.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns: publish: %w", err)
	}
	return nil
}
