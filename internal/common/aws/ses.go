// Package aws wires the SES mail provider and the SNS sales alert.
package aws

import (
	"context"
	"fmt"
	"html"
	netmail "net/mail"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel/attribute"

	"ipa-leadgate/internal/common/mail"
	"ipa-leadgate/internal/common/metrics"
	"ipa-leadgate/internal/common/observability"
)

// SESAPI is the part of the SES client the mailer uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ses.NewFromConfig(cfg), nil
}

// SESMailer sends transactional email through SES. SES cannot fetch hosted
// attachments, so attachments are rendered as download links.
type SESMailer struct {
	client SESAPI
	from   string
	obs    *observability.Observability
}

func NewSESMailer(client SESAPI, fromEmail string, obs *observability.Observability) *SESMailer {
	return &SESMailer{client: client, from: fromEmail, obs: obs}
}

func (m *SESMailer) Send(ctx context.Context, msg mail.Message) (err error) {
	ctx, span := m.obs.StartSpan(ctx, "ses.send_email", attribute.Int("mail.recipients", len(msg.To)))
	defer func() {
		if err != nil {
			metrics.CollaboratorFailures.WithLabelValues("ses", "send_email").Inc()
		}
		observability.EndSpan(span, err)
	}()

	if len(msg.To) == 0 {
		return fmt.Errorf("ses: message has no recipients")
	}

	to := make([]string, 0, len(msg.To))
	for _, r := range msg.To {
		to = append(to, address(r))
	}

	source := m.from
	if msg.From.Email != "" {
		source = address(msg.From)
	}

	_, err = m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(source),
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(msg.Subject), Charset: awssdk.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: awssdk.String(withAttachmentLinks(msg)), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses: send email: %w", err)
	}
	return nil
}

func address(r mail.Recipient) string {
	if r.Name == "" {
		return r.Email
	}
	return (&netmail.Address{Name: r.Name, Address: r.Email}).String()
}

func withAttachmentLinks(msg mail.Message) string {
	if len(msg.Attachments) == 0 {
		return msg.HTMLContent
	}
	var b strings.Builder
	b.WriteString(`<ul style="font-family: Arial, sans-serif;">`)
	for _, a := range msg.Attachments {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(a.URL), html.EscapeString(a.Name))
	}
	b.WriteString(`</ul>`)

	links := b.String()
	if i := strings.LastIndex(msg.HTMLContent, "</body>"); i >= 0 {
		return msg.HTMLContent[:i] + links + msg.HTMLContent[i:]
	}
	return msg.HTMLContent + links
}
