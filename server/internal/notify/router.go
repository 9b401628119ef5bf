package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/config"
)

// Option configures a Router.
type Option func(*Router)

// WithClock sets the time source used by the rate limiter.
func WithClock(now func() time.Time) Option { return func(r *Router) { r.now = now } }

// WithRateWindow sets the rate limit window (default one minute).
func WithRateWindow(d time.Duration) Option { return func(r *Router) { r.window = d } }

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) Option { return func(r *Router) { r.timeout = d } }

// WithRegisterer registers the router's collectors with reg.
func WithRegisterer(reg prometheus.Registerer) Option { return func(r *Router) { r.reg = reg } }

// Router dispatches notifications to channels. It implements alerts.Notifier.
//
// Router is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	channels map[string]Channel
	senders  map[ChannelType]Sender

	limiter *RateLimiter
	metrics *metrics
	now     func() time.Time
	window  time.Duration
	timeout time.Duration
	reg     prometheus.Registerer
}

// NewRouter builds a router over the configured channels. senders maps each
// channel type to its delivery implementation; a type without a sender is
// logged and skipped at send time.
func NewRouter(channels map[string]config.ChannelConfig, senders map[ChannelType]Sender, opts ...Option) *Router {
	r := &Router{
		channels: channelsFromConfig(channels),
		senders:  senders,
		now:      time.Now,
		window:   config.DefaultRateWindow,
		timeout:  config.DefaultNotifyTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	r.limiter = NewRateLimiter(r.window, r.now)
	r.metrics = newMetrics(r.reg)
	return r
}

// Send delivers a to the named channel for an escalation stage. Missing,
// disabled and rate-limited channels are skipped with a log line and a
// sentinel error; sender failures are logged and returned wrapped.
func (r *Router) Send(ctx context.Context, name string, a alerts.Alert, stage int) error {
	r.mu.RLock()
	ch, ok := r.channels[name]
	sender := r.senders[ch.Type]
	r.mu.RUnlock()

	switch {
	case !ok:
		slog.Warn("notify: channel not available", "channel", name, "alert", a.ID)
		r.metrics.observe(name, "missing")
		return fmt.Errorf("%w: %q", ErrChannelNotFound, name)
	case !ch.Enabled:
		slog.Warn("notify: channel disabled", "channel", name, "alert", a.ID)
		r.metrics.observe(name, "disabled")
		return fmt.Errorf("%w: %q", ErrChannelDisabled, name)
	case sender == nil:
		slog.Error("notify: unknown channel type", "channel", name, "type", ch.Type)
		r.metrics.observe(name, "unknown_type")
		return fmt.Errorf("%w: %q", ErrUnknownChannelType, ch.Type)
	}

	if !r.limiter.Allow(name, ch.RateLimitPerMinute) {
		slog.Warn("notify: rate limit exceeded", "channel", name, "alert", a.ID)
		r.metrics.observe(name, "rate_limited")
		return fmt.Errorf("%w: %q", ErrRateLimited, name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := sender.Send(ctx, ch, a, stage); err != nil {
		slog.Error("notify: delivery failed",
			"channel", name,
			"type", ch.Type,
			"alert", a.ID,
			"err", err,
		)
		r.metrics.observe(name, "failed")
		return fmt.Errorf("notify: %s: %w", name, err)
	}

	slog.Info("notify: notification sent",
		"channel", name,
		"type", ch.Type,
		"alert", a.ID,
		"stage", stage,
	)
	r.metrics.observe(name, "sent")
	return nil
}

// CheckRateLimit consumes one slot of the channel's window if one is free.
// Unknown channels are always rejected.
func (r *Router) CheckRateLimit(name string) bool {
	r.mu.RLock()
	ch, ok := r.channels[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return r.limiter.Allow(name, ch.RateLimitPerMinute)
}

// SetChannels replaces the channel registry. Rate windows of channels that
// survive the swap are kept.
func (r *Router) SetChannels(cfg map[string]config.ChannelConfig) {
	next := channelsFromConfig(cfg)
	r.mu.Lock()
	for name := range r.channels {
		if _, ok := next[name]; !ok {
			r.limiter.Forget(name)
		}
	}
	r.channels = next
	r.mu.Unlock()
	slog.Info("notify: channels loaded", "channels", len(next), "enabled", r.EnabledChannels())
}

// Channels lists the registry in name order.
func (r *Router) Channels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedChannels(r.channels)
}

// EnabledChannels returns the number of enabled channels.
func (r *Router) EnabledChannels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ch := range r.channels {
		if ch.Enabled {
			n++
		}
	}
	return n
}

// Prune trims every rate window. It satisfies alerts.Pruner.
func (r *Router) Prune(now time.Time) int { return r.limiter.Prune(now) }
