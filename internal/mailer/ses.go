package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/gift-exchange/internal/config"
)

// SESSender delivers email through AWS SES v2.
type SESSender struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
}

// NewSESSender builds an SES v2 client. Static credentials from config
// take precedence; otherwise the default chain applies.
func NewSESSender(ctx context.Context, cfg appconfig.MailerConfig) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SESRegion),
	}
	if cfg.SESAccessKey != "" && cfg.SESSecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.SESAccessKey, cfg.SESSecretKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSender{
		client:    sesv2.NewFromConfig(awsCfg),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}, nil
}

func (s *SESSender) Send(ctx context.Context, msg *Message) (string, error) {
	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML)},
					Text: &types.Content{Data: aws.String(msg.Text)},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("SES send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
