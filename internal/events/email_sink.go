package events

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"duet/internal/logger"
	"duet/internal/models"
)

// UserLookup resolves the recipient of a notification
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailSink emails the partner when the other member creates something.
// It is disabled when no sender address is configured.
type EmailSink struct {
	log        *logger.Logger
	client     sesAPI
	users      UserLookup
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
}

// EmailSinkConfig holds the SES sender settings
type EmailSinkConfig struct {
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string
}

// NewEmailSink creates an email sink backed by Amazon SES
func NewEmailSink(ctx context.Context, log *logger.Logger, cfg EmailSinkConfig, users UserLookup) (*EmailSink, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("sink", "email")

	if cfg.FromEmail == "" {
		log.Info("email notifications disabled: SES_FROM_EMAIL not configured")
		return &EmailSink{log: log, enabled: false}, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("email notifications enabled", "from", cfg.FromEmail, "region", cfg.AWSRegion)
	return newEmailSink(log, sesv2.NewFromConfig(awsCfg), cfg, users), nil
}

func newEmailSink(log *logger.Logger, client sesAPI, cfg EmailSinkConfig, users UserLookup) *EmailSink {
	return &EmailSink{
		log:        log,
		client:     client,
		users:      users,
		fromEmail:  cfg.FromEmail,
		fromName:   cfg.FromName,
		appBaseURL: cfg.AppBaseURL,
		enabled:    true,
	}
}

func (s *EmailSink) Name() string { return "email" }

// IsEnabled returns whether the sink sends mail
func (s *EmailSink) IsEnabled() bool {
	return s.enabled
}

// Deliver sends a notification for creations that name a recipient. Other
// events are ignored.
func (s *EmailSink) Deliver(ctx context.Context, e Event) error {
	if !s.enabled || e.RecipientID == 0 {
		return nil
	}
	var what string
	switch e.Type {
	case ContentCreated:
		what = "memo"
	case ScheduleCreated:
		what = "schedule"
	default:
		return nil
	}

	recipient, err := s.users.GetUserByID(ctx, e.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to load recipient %d: %w", e.RecipientID, err)
	}
	actorName := "Your partner"
	if actor, err := s.users.GetUserByID(ctx, e.ActorID); err == nil {
		actorName = actor.Name
	}

	title := e.Title
	if title == "" {
		title = "Untitled"
	}
	link := fmt.Sprintf("%s/contents/%d", s.appBaseURL, e.EntityID)
	subject := fmt.Sprintf("%s added a new %s", actorName, what)
	textBody := fmt.Sprintf(`Hi %s,

%s added a new %s: %s

Open it here:
%s

---
This is an automated email from Duet. Please do not reply.
`, recipient.Name, actorName, what, title, link)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<p>Hi %s,</p>
	<p>%s added a new %s: <strong>%s</strong></p>
	<p><a href="%s">Open it in Duet</a></p>
	<p style="font-size: 12px; color: #666;">This is an automated email from Duet. Please do not reply.</p>
</body>
</html>
`, html.EscapeString(recipient.Name), html.EscapeString(actorName), what, html.EscapeString(title), link)

	return s.sendEmail(ctx, recipient.Email, subject, htmlBody, textBody)
}

func (s *EmailSink) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.log.Debug("email sent", "email", toEmail, "subject", subject)
	return nil
}
