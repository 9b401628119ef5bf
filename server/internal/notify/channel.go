package notify

import (
	"context"
	"errors"
	"sort"

	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/config"
)

var (
	ErrChannelNotFound    = errors.New("notify: channel not found")
	ErrChannelDisabled    = errors.New("notify: channel disabled")
	ErrRateLimited        = errors.New("notify: rate limit exceeded")
	ErrUnknownChannelType = errors.New("notify: unknown channel type")

	errNotConfigured = errors.New("destination not configured")
)

// ChannelType selects the sender for a channel.
type ChannelType string

const (
	TypeSlack     ChannelType = "slack"
	TypeEmail     ChannelType = "email"
	TypeSMS       ChannelType = "sms"
	TypePagerDuty ChannelType = "pagerduty"
	TypeWebhook   ChannelType = "webhook"
)

// Channel is a named notification destination.
type Channel struct {
	Name               string               `json:"name"`
	Type               ChannelType          `json:"type"`
	Enabled            bool                 `json:"enabled"`
	RateLimitPerMinute int                  `json:"rate_limit_per_minute"`
	Config             config.ChannelConfig `json:"-"`
}

// Sender delivers one notification over a concrete protocol.
type Sender interface {
	Send(ctx context.Context, ch Channel, a alerts.Alert, stage int) error
}

func channelsFromConfig(cfg map[string]config.ChannelConfig) map[string]Channel {
	out := make(map[string]Channel, len(cfg))
	for name, cc := range cfg {
		out[name] = Channel{
			Name:               name,
			Type:               ChannelType(cc.Type),
			Enabled:            cc.IsEnabled(),
			RateLimitPerMinute: cc.RateLimit(),
			Config:             cc,
		}
	}
	return out
}

func sortedChannels(m map[string]Channel) []Channel {
	out := make([]Channel, 0, len(m))
	for _, ch := range m {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
