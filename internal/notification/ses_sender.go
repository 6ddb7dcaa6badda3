package notification

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	appconfig "library-api/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends notification mail through AWS SES v2.
type SESSender struct {
	client sesAPI
	sender string
	logger *slog.Logger
}

var _ Sender = (*SESSender)(nil)

func NewSESSender(ctx context.Context, cfg appconfig.MailConfig, logger *slog.Logger) (*SESSender, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		client: sesv2.NewFromConfig(awsCfg),
		sender: cfg.Sender,
		logger: logger.With("component", "SESSender"),
	}, nil
}

func (s *SESSender) Send(ctx context.Context, subject, body string, recipients []string) error {
	if len(recipients) == 0 {
		s.logger.DebugContext(ctx, "No recipients, skipping send")
		return nil
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination:      &types.Destination{ToAddresses: recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to send notification mail", "recipients", len(recipients), "error", err)
		return fmt.Errorf("sending notification mail: %w", err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	s.logger.InfoContext(ctx, "Notification mail sent", "recipients", len(recipients), "message_id", messageID)
	return nil
}
