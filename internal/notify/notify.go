// Package notify emails operators a digest of autopilot runs that had
// failures or ran out of time.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/osteele/liquid"

	"github.com/eventnexus/autopilot/internal/config"
	"github.com/eventnexus/autopilot/internal/domain"
	"github.com/eventnexus/autopilot/internal/pkg/logger"
)

// ErrNoRecipients is returned when the notifier has nobody to email.
var ErrNoRecipients = errors.New("notify: no recipients configured")

// EmailAPI is the part of the SES v2 client the notifier uses.
type EmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

const digestTemplate = `Autopilot run {{ run_id }} ({{ trigger }}) finished at {{ finished_at }}.

Evaluated: {{ evaluated }}
Paused: {{ paused }}  Scaled: {{ scaled }}  Posted: {{ posted }}
Opportunities: {{ opportunities }}
No data: {{ no_data }}  No action: {{ no_action }}  Skipped: {{ skipped }}
Failed: {{ failed }}
{% if timed_out %}
The run hit its time budget before every campaign was evaluated.
{% endif %}{% if failures.size > 0 %}
Failures:
{% for f in failures %}  - {{ f.campaign_id }} [{{ f.stage }}]: {{ f.error }}
{% endfor %}{% endif %}`

// SESNotifier sends run digests through Amazon SES.
type SESNotifier struct {
	client EmailAPI
	from   string
	to     []string
	tpl    *liquid.Template
	log    *logger.Logger
}

// New creates a notifier over an SES client.
func New(client EmailAPI, from string, to []string) (*SESNotifier, error) {
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	tpl, err := liquid.NewEngine().ParseString(digestTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &SESNotifier{
		client: client,
		from:   from,
		to:     to,
		tpl:    tpl,
		log:    logger.With("component", "notify"),
	}, nil
}

// NewFromConfig loads AWS credentials and creates an SES-backed notifier.
// Static keys are used when both are set, the default chain otherwise.
func NewFromConfig(ctx context.Context, cfg config.NotifyConfig) (*SESNotifier, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return New(sesv2.NewFromConfig(awsCfg), cfg.From, cfg.To)
}

// Subject returns the email subject for a run digest.
func Subject(s domain.RunSummary) string {
	var parts []string
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d campaign(s) failed", s.Failed))
	}
	if s.TimedOut {
		parts = append(parts, "timed out")
	}
	if len(parts) == 0 {
		parts = append(parts, "completed")
	}
	return fmt.Sprintf("[autopilot] run %s: %s", shortID(s.RunID), strings.Join(parts, ", "))
}

// Body renders the plain-text digest.
func (n *SESNotifier) Body(s domain.RunSummary) (string, error) {
	failures := make([]map[string]any, 0, len(s.Failures))
	for _, f := range s.Failures {
		failures = append(failures, map[string]any{
			"campaign_id": f.CampaignID,
			"stage":       f.Stage,
			"error":       f.Error,
		})
	}
	out, err := n.tpl.RenderString(liquid.Bindings{
		"run_id":        s.RunID,
		"trigger":       string(s.Trigger),
		"finished_at":   s.FinishedAt.UTC().Format("2006-01-02 15:04:05 MST"),
		"evaluated":     s.CampaignsEvaluated,
		"paused":        s.CampaignsPaused,
		"scaled":        s.CampaignsScaled,
		"posted":        s.CampaignsPosted,
		"opportunities": s.OpportunitiesDetected,
		"no_data":       s.NoData,
		"no_action":     s.NoAction,
		"skipped":       s.Skipped,
		"failed":        s.Failed,
		"timed_out":     s.TimedOut,
		"failures":      failures,
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return out, nil
}

// NotifyRun emails the digest of s to every recipient.
func (n *SESNotifier) NotifyRun(ctx context.Context, s domain.RunSummary) error {
	body, err := n.Body(s)
	if err != nil {
		return err
	}
	subject := Subject(s)

	out, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: n.to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send run digest: %w", err)
	}

	messageID := ""
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}
	n.log.Info("notify: run digest sent", "run_id", s.RunID, "recipients", len(n.to), "message_id", messageID)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
