package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/config"
)

// DefaultSMSEndpoint is the Twilio REST API base.
const DefaultSMSEndpoint = "https://api.twilio.com/2010-04-01"

const maxSMSLen = 320

// SMSSender sends text messages through a Twilio-compatible messages API.
type SMSSender struct {
	poster
	cfg config.SMSConfig
}

// NewSMSSender returns a sender for the configured gateway account.
func NewSMSSender(client *http.Client, cfg config.SMSConfig) *SMSSender {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSMSEndpoint
	}
	return &SMSSender{poster: poster{client: client}, cfg: cfg}
}

// Send texts every number on the channel. A failed number does not stop the
// others; all failures are returned joined.
func (s *SMSSender) Send(ctx context.Context, ch Channel, a alerts.Alert, stage int) error {
	if len(ch.Config.Numbers) == 0 || s.cfg.AccountSID == "" || s.cfg.From == "" {
		return fmt.Errorf("sms: %w", errNotConfigured)
	}
	endpoint := strings.TrimRight(s.cfg.Endpoint, "/") +
		"/Accounts/" + url.PathEscape(s.cfg.AccountSID) + "/Messages.json"
	text := smsText(a, stage)

	var errs []error
	for _, to := range ch.Config.Numbers {
		form := url.Values{"To": {to}, "From": {s.cfg.From}, "Body": {text}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("sms: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken())
		if err := s.do(req); err != nil {
			errs = append(errs, fmt.Errorf("sms %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

func smsText(a alerts.Alert, stage int) string {
	text := fmt.Sprintf("%s %s (stage %d)", severityLabel(a.Severity), a.Message, stage+1)
	if len(text) > maxSMSLen {
		text = text[:maxSMSLen-3] + "..."
	}
	return text
}
