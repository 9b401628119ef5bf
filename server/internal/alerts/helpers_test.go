package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/repowatch/repowatch/server/internal/config"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// manualClock fires AfterFunc callbacks only from Advance, in time order, on
// the calling goroutine.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	c       *manualClock
	at      time.Time
	fn      func()
	done    bool
	stopped bool
}

func newManualClock() *manualClock { return &manualClock{now: epoch} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward by d, running every timer due on the way.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.done || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.fn()
	}
}

type delivery struct {
	Channel  string
	AlertID  string
	Stage    int
	Severity Severity
}

type recorder struct {
	mu   sync.Mutex
	sent []delivery
	err  error
}

func (r *recorder) Send(_ context.Context, ch string, a Alert, stage int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, delivery{Channel: ch, AlertID: a.ID, Stage: stage, Severity: a.Severity})
	return r.err
}

func (r *recorder) EnabledChannels() int { return 3 }

func (r *recorder) channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, d := range r.sent {
		out = append(out, d.Channel)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

func newTestEngine(t *testing.T, cfg config.AlertsConfig) (*Engine, *manualClock, *recorder) {
	t.Helper()
	clk := newManualClock()
	rec := &recorder{}
	e, err := New(cfg, rec, WithClock(clk))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, clk, rec
}

func defaultAlerts() config.AlertsConfig { return config.Default().Alerts }
