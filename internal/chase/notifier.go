package chase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
	"github.com/InfradynAB/infradyn1-sub007/internal/resilience"
)

// Notifier delivers reminder intents to the external notification
// collaborator. The engine never formats or sends messages itself.
type Notifier interface {
	Send(ctx context.Context, intent model.ReminderIntent) error
}

// WebhookNotifier posts reminder intents to a webhook URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  resilience.Policy
}

// NewWebhookNotifier creates a webhook-backed Notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retry:  resilience.DefaultPolicy(),
	}
}

// Send posts the intent as JSON. Transient delivery failures are retried;
// a missing URL drops the intent silently (useful in development).
func (n *WebhookNotifier) Send(ctx context.Context, intent model.ReminderIntent) error {
	if n.url == "" {
		return nil
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return eris.Wrap(err, "notify: marshal intent")
	}

	_, err = resilience.Do(ctx, n.retry, "notify.send",
		func(ctx context.Context) (struct{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
			if err != nil {
				return struct{}{}, eris.Wrap(err, "notify: create request")
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := n.client.Do(req)
			if err != nil {
				return struct{}{}, eris.Wrap(err, "notify: request")
			}
			defer resp.Body.Close() //nolint:errcheck

			if resilience.RetryableStatus(resp.StatusCode) {
				return struct{}{}, resilience.Transient(
					eris.Errorf("notify: webhook returned status %d", resp.StatusCode),
					resp.StatusCode,
				)
			}
			if resp.StatusCode >= 400 {
				return struct{}{}, eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
			}
			return struct{}{}, nil
		})
	return err
}
