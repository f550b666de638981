package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Kind classifies what happened to a candidate.
type Kind string

const (
	KindDeployed Kind = "deployed"
	KindRollback Kind = "rollback"
	KindReview   Kind = "review"
	KindRejected Kind = "rejected"
	KindFailed   Kind = "failed"
)

// Event is one message for the team.
type Event struct {
	Kind        Kind
	VersionID   string
	Accuracy    float64
	Improvement float64
	Score       int
	Reason      string
	Time        time.Time
}

// Message renders the event as a single line of chat text.
func (e Event) Message() string {
	switch e.Kind {
	case KindDeployed:
		return fmt.Sprintf("Nouveau modèle déployé: %s (Accuracy: %.4f, amélioration %+.4f)", e.VersionID, e.Accuracy, e.Improvement)
	case KindRollback:
		return fmt.Sprintf("Rollback effectué: %s", e.Reason)
	case KindReview:
		return fmt.Sprintf("Revue humaine requise pour %s (score %d)", e.VersionID, e.Score)
	case KindFailed:
		return fmt.Sprintf("Échec du pipeline pour %s: %s", e.VersionID, e.Reason)
	default:
		return fmt.Sprintf("Modèle %s refusé (score %d): %s", e.VersionID, e.Score, e.Reason)
	}
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// #region log

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, e Event) error {
	ev := n.Logger.Info()
	if e.Kind == KindRollback || e.Kind == KindFailed {
		ev = n.Logger.Warn()
	}
	ev.Str("kind", string(e.Kind)).
		Str("version", e.VersionID).
		Int("score", e.Score).
		Msg(e.Message())
	return nil
}

// #endregion log

// #region webhook

// WebhookNotifier posts events as Slack-compatible JSON, retrying transient failures.
type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
}

func NewWebhookNotifier(url string, retryMax int, logger *zerolog.Logger) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Debug().Str("url", req.URL.String()).Int("attempt", attempt).Msg("retrying webhook")
		}
	}
	return &WebhookNotifier{url: url, client: client}
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, e Event) error {
	body, err := json.Marshal(webhookPayload{Text: e.Message()})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.url, body)
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post webhook: unexpected status %s", resp.Status)
	}
	return nil
}

// #endregion webhook

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
