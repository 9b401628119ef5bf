package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/repowatch/repowatch/server/internal/alerts"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when the
// channel has a secret.
const SignatureHeader = "X-Repowatch-Signature"

// WebhookSender posts the alert as JSON to an arbitrary URL.
type WebhookSender struct {
	poster
}

// NewWebhookSender returns a sender using client.
func NewWebhookSender(client *http.Client) *WebhookSender {
	return &WebhookSender{poster{client: client}}
}

type webhookPayload struct {
	Event   string       `json:"event"`
	Channel string       `json:"channel"`
	Stage   int          `json:"stage"`
	Alert   alerts.Alert `json:"alert"`
}

func (w *WebhookSender) Send(ctx context.Context, ch Channel, a alerts.Alert, stage int) error {
	url := ch.Config.WebhookURL()
	if url == "" {
		return fmt.Errorf("webhook: %w", errNotConfigured)
	}
	body, err := json.Marshal(webhookPayload{
		Event:   "alert.escalated",
		Channel: ch.Name,
		Stage:   stage,
		Alert:   a,
	})
	if err != nil {
		return fmt.Errorf("webhook: encode: %w", err)
	}

	var header http.Header
	if secret := ch.Config.Secret(); secret != "" {
		header = http.Header{SignatureHeader: []string{"sha256=" + Sign(secret, body)}}
	}
	if err := w.postJSON(ctx, url, body, header); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
