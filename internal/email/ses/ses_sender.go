package ses

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"signet/internal/domain"
	"signet/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	alertTo     string
}

// NewSESSender creates a new SES-backed AlertSender.
func NewSESSender(region, fromAddress, fromName, alertTo string) (port.AlertSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		alertTo:     alertTo,
	}, nil
}

func (s *sesSender) SendCapacityAlert(ctx context.Context, org string, status *domain.SequenceStatus) error {
	subject := fmt.Sprintf("Sequence capacity alert for %s", org)
	textBody := fmt.Sprintf(
		"Sequence allocation for organization %s is running out.\n\nDay: %s\nCurrent: %d\nCeiling: %d\nRemaining: %d\nUtilization: %.1f%%\n\nBulk submissions larger than the remaining capacity are being rejected.",
		org, status.Day, status.Current, status.Ceiling, status.Remaining, status.Utilization,
	)
	return s.send(ctx, subject, textBody)
}

func (s *sesSender) SendJobCompleted(ctx context.Context, job *domain.BulkJob) error {
	subject := fmt.Sprintf("Bulk issuance job %s completed", job.ID)
	textBody := fmt.Sprintf(
		"Bulk issuance job %s for organization %s finished.\n\nTotal: %d\nSucceeded: %d\nFailed: %d\n\nResults can be exported from /api/v1/bulk/%s/export.",
		job.ID, job.Organization, job.Total, job.Succeeded, job.Failed, job.ID,
	)
	return s.send(ctx, subject, textBody)
}

func (s *sesSender) send(ctx context.Context, subject, textBody string) error {
	if s.alertTo == "" {
		return fmt.Errorf("no alert recipient configured")
	}
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{s.alertTo},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}
