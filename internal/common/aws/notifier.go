// internal/common/aws/notifier.go
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
)

var ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")

// SESService is the subset of the SES client used for operator email.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService is the subset of the SNS client used for topic alerts.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type NotifierConfig struct {
	EmailEnabled bool
	FromEmail    string
	To           []string
	SNSEnabled   bool
	TopicARN     string
}

// EscalationNotifier alerts human operators when a ticket is opened.
type EscalationNotifier struct {
	config NotifierConfig
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

// NewEscalationNotifier loads the default AWS credential chain for region.
func NewEscalationNotifier(ctx context.Context, region string, cfg NotifierConfig, log logger.Logger) (*EscalationNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewEscalationNotifierWithClients(cfg, ses.NewFromConfig(awsCfg), sns.NewFromConfig(awsCfg), log), nil
}

func NewEscalationNotifierWithClients(cfg NotifierConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *EscalationNotifier {
	return &EscalationNotifier{
		config: cfg,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.With(map[string]interface{}{"component": "escalation-notifier"}),
	}
}

// NotifyEscalation sends the ticket over every enabled channel. A failure on
// one channel does not stop the other; the first error is returned.
func (n *EscalationNotifier) NotifyEscalation(ctx context.Context, rec *models.EscalationRecord) error {
	subject := fmt.Sprintf("[%s] Escalation for user %s", rec.ID, rec.UserID)
	body := renderEscalation(rec)

	var firstErr error
	if n.config.EmailEnabled && len(n.config.To) > 0 {
		if err := n.sendEmail(ctx, subject, body); err != nil {
			n.logger.Error("escalation email failed", map[string]interface{}{
				"escalationId": rec.ID,
				"error":        err.Error(),
			})
			firstErr = fmt.Errorf("%w: email: %v", ErrNotificationSendFailed, err)
		}
	}
	if n.config.SNSEnabled && n.config.TopicARN != "" {
		if err := n.publish(ctx, subject, body); err != nil {
			n.logger.Error("escalation topic publish failed", map[string]interface{}{
				"escalationId": rec.ID,
				"error":        err.Error(),
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: sns: %v", ErrNotificationSendFailed, err)
			}
		}
	}
	return firstErr
}

func (n *EscalationNotifier) sendEmail(ctx context.Context, subject, body string) error {
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: n.config.To,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(body)},
			},
		},
		Source: awssdk.String(n.config.FromEmail),
	})
	return err
}

func (n *EscalationNotifier) publish(ctx context.Context, subject, body string) error {
	// SNS subjects are capped at 100 characters
	if len(subject) > 100 {
		subject = subject[:100]
	}
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.config.TopicARN),
		Subject:  awssdk.String(subject),
		Message:  awssdk.String(body),
	})
	return err
}

func renderEscalation(rec *models.EscalationRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Escalation: %s\n", rec.ID)
	fmt.Fprintf(&b, "User: %s  Session: %s\n", rec.UserID, rec.SessionID)
	fmt.Fprintf(&b, "Reason: %s\n", rec.Reason)
	fmt.Fprintf(&b, "Estimated wait: %d minutes\n\n", rec.EstimatedWaitMinutes)
	fmt.Fprintf(&b, "Query:\n%s\n\n", rec.Query)
	if rec.ProposedResponse != "" {
		fmt.Fprintf(&b, "Proposed response:\n%s\n", rec.ProposedResponse)
	}
	return b.String()
}
