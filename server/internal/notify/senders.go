package notify

import (
	"net/http"

	"github.com/repowatch/repowatch/server/internal/config"
)

// NewSenders builds the sender for every channel type from cfg. With DryRun
// set every type maps to LogSender.
func NewSenders(cfg config.NotifyConfig) map[ChannelType]Sender {
	if cfg.DryRun {
		l := LogSender{}
		return map[ChannelType]Sender{
			TypeSlack: l, TypeEmail: l, TypeSMS: l, TypePagerDuty: l, TypeWebhook: l,
		}
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return map[ChannelType]Sender{
		TypeSlack:     NewSlackSender(client),
		TypeEmail:     NewEmailSender(cfg.SMTP, cfg.Timeout),
		TypeSMS:       NewSMSSender(client, cfg.SMS),
		TypePagerDuty: NewPagerDutySender(client, cfg.PagerDuty.Endpoint),
		TypeWebhook:   NewWebhookSender(client),
	}
}
