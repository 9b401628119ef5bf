package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/config"
)

// DefaultSuppression is used when SuppressAlert is given no duration.
const DefaultSuppression = time.Hour

// ChannelCounter is implemented by notifiers that can report how many
// channels are enabled.
type ChannelCounter interface {
	EnabledChannels() int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithMetrics sets the collectors the engine reports to.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// Engine ties the registry, store, suppressions and escalation scheduler
// together and exposes the alerting API.
//
// Engine is safe for concurrent use.
type Engine struct {
	clock        Clock
	registry     *Registry
	policies     *policySet
	evaluator    *Evaluator
	store        *Store
	suppressions *Suppressions
	sched        *Scheduler
	locks        *keyLocker
	notifier     Notifier
	metrics      *Metrics
	bus          eventBus

	mu              sync.Mutex
	historyLimit    int
	lastMaintenance time.Time
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, string, Alert, int) error { return nil }

// New builds an Engine from the alerts configuration. A nil notifier drops
// every notification.
func New(cfg config.AlertsConfig, notifier Notifier, opts ...Option) (*Engine, error) {
	e := &Engine{
		clock:    realClock{},
		registry: &Registry{},
		policies: &policySet{},
		store:    NewStore(),
		locks:    newKeyLocker(),
		notifier: notifier,
	}
	for _, o := range opts {
		o(e)
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	e.sched = NewScheduler(e.clock)
	e.suppressions = NewSuppressions(e.clock.Now)
	e.evaluator = &Evaluator{registry: e.registry, policies: e.policies}

	if err := e.Reload(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload swaps thresholds, policies and the history limit. Alerts already
// active keep the stages that were scheduled when they were created.
func (e *Engine) Reload(cfg config.AlertsConfig) error {
	ts, err := thresholdsFromConfig(cfg.Thresholds)
	if err != nil {
		return err
	}
	policies, bySeverity := policiesFromConfig(cfg)

	e.registry.replace(ts)
	e.policies.replace(policies, bySeverity)

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = config.DefaultHistoryLimit
	}
	e.mu.Lock()
	e.historyLimit = limit
	e.mu.Unlock()

	slog.Info("alerts: configuration loaded",
		"thresholds", len(ts),
		"policies", len(policies),
		"history_limit", limit,
	)
	return nil
}

// EvaluateMetrics runs snap through every enabled threshold for repository
// and returns the alerts created or changed in severity by this call.
// Escalation happens on its own schedule after the call returns.
func (e *Engine) EvaluateMetrics(repository string, snap *types.Snapshot) []Alert {
	cands, errs := e.evaluator.Evaluate(repository, snap, e.clock.Now(), e.store.Has)
	for name := range errs {
		e.metrics.evaluationFailed(name)
	}

	var out []Alert
	for _, c := range cands {
		switch c.Action {
		case ActionResolve:
			e.ResolveAlert(c.Key, c.Reason)
		case ActionBreach:
			if a, outcome := e.process(c.Alert); outcome == OutcomeCreated || outcome == OutcomeUpdated {
				out = append(out, a)
			}
		}
	}
	return out
}

// process applies one breach candidate under its key lock.
func (e *Engine) process(candidate Alert) (Alert, Outcome) {
	key := candidate.Key()
	unlock := e.locks.Lock(key)
	if e.suppressions.IsSuppressed(key) {
		unlock()
		slog.Debug("alerts: candidate suppressed", "key", key.String())
		e.metrics.candidateDropped()
		return Alert{}, OutcomeSuppressed
	}
	a, outcome := e.store.upsert(candidate)
	if outcome == OutcomeCreated {
		if err := e.startEscalation(a); err != nil {
			slog.Error("alerts: escalation not started",
				"key", key.String(),
				"err", err,
			)
		}
	}
	unlock()

	switch outcome {
	case OutcomeCreated:
		slog.Warn("alerts: new alert",
			"key", key.String(),
			"severity", a.Severity,
			"value", a.CurrentValue,
			"policy", a.EscalationPolicy,
		)
		e.metrics.alertCreated(a)
		e.metrics.setActive(e.store.Len())
		e.publish(Event{Type: EventAlertCreated, Alert: a, At: a.CreatedAt})
	case OutcomeUpdated:
		slog.Info("alerts: alert severity changed",
			"key", key.String(),
			"severity", a.Severity,
			"value", a.CurrentValue,
		)
		e.metrics.alertUpdated(a)
	}
	return a, outcome
}

// AcknowledgeAlert marks the active alert with id as acknowledged. Stages
// that require acknowledgement are skipped from then on.
func (e *Engine) AcknowledgeAlert(id, actor string) bool {
	key, ok := e.store.KeyOf(id)
	if !ok {
		return false
	}
	unlock := e.locks.Lock(key)
	now := e.clock.Now()
	a, ok := e.store.update(key, id, func(cur *Alert) {
		cur.Acknowledged = true
		cur.AcknowledgedBy = actor
		cur.AcknowledgedAt = &now
	})
	unlock()
	if !ok {
		return false
	}

	slog.Info("alerts: alert acknowledged", "id", id, "by", actor)
	e.publish(Event{Type: EventAlertAcknowledged, Alert: a, At: now})
	return true
}

// SuppressAlert mutes new processing for the key of the active alert with id
// for d. The alert itself stays active.
func (e *Engine) SuppressAlert(id string, d time.Duration, actor string) bool {
	if d <= 0 {
		d = DefaultSuppression
	}
	if actor == "" {
		actor = "system"
	}
	key, ok := e.store.KeyOf(id)
	if !ok {
		return false
	}
	unlock := e.locks.Lock(key)
	a, ok := e.store.Get(key)
	if !ok || a.ID != id {
		unlock()
		return false
	}
	sup := e.suppressions.Set(key, id, d, actor)
	unlock()

	slog.Info("alerts: alert suppressed",
		"id", id,
		"key", key.String(),
		"duration", d,
		"by", actor,
	)
	e.publish(Event{Type: EventAlertSuppressed, Alert: a, Suppression: &sup, At: sup.SuppressedAt})
	return true
}

// ResolveAlert resolves the active alert for key and cancels its pending
// escalation tasks. It returns false when key has no active alert.
func (e *Engine) ResolveAlert(key Key, reason string) bool {
	if reason == "" {
		reason = ReasonManual
	}
	unlock := e.locks.Lock(key)
	a, ok := e.resolveLocked(key, reason)
	unlock()
	if ok {
		e.publish(Event{Type: EventAlertResolved, Alert: a, Reason: reason, At: *a.ResolvedAt})
	}
	return ok
}

// resolveLocked must be called with the key lock held.
func (e *Engine) resolveLocked(key Key, reason string) (Alert, bool) {
	a, ok := e.store.remove(key, reason, e.clock.Now())
	if !ok {
		return Alert{}, false
	}
	cancelled := e.sched.Cancel(key)

	slog.Info("alerts: alert resolved",
		"key", key.String(),
		"reason", reason,
		"cancelled_tasks", cancelled,
	)
	e.metrics.alertResolved(reason)
	e.metrics.setActive(e.store.Len())
	return a, true
}

// IsSuppressed reports whether new processing for key is muted.
func (e *Engine) IsSuppressed(key Key) bool { return e.suppressions.IsSuppressed(key) }

// Suppressions lists stored suppressions.
func (e *Engine) Suppressions() []Suppression { return e.suppressions.List() }

// Active returns the active alerts, newest first.
func (e *Engine) Active() []Alert { return e.store.Active() }

// Alert returns the active alert with id.
func (e *Engine) Alert(id string) (Alert, bool) {
	key, ok := e.store.KeyOf(id)
	if !ok {
		return Alert{}, false
	}
	a, ok := e.store.Get(key)
	if !ok || a.ID != id {
		return Alert{}, false
	}
	return a, true
}

// History returns up to limit history entries, newest first.
func (e *Engine) History(limit int) []HistoryEntry { return e.store.History(limit) }

// Threshold looks up a configured threshold.
func (e *Engine) Threshold(name string) (Threshold, bool) { return e.registry.Get(name) }

// Thresholds returns the configured thresholds in name order.
func (e *Engine) Thresholds() []Threshold { return e.registry.List() }

// Statistics returns a summary of engine state.
func (e *Engine) Statistics() Statistics {
	st := Statistics{
		ActiveAlerts:       e.store.Len(),
		TotalAlerts:        e.store.HistoryLen(),
		Thresholds:         e.registry.Len(),
		EscalationPolicies: e.policies.len(),
		Suppressions:       e.suppressions.Len(),
		PendingTasks:       e.sched.Pending(),
	}
	if cc, ok := e.notifier.(ChannelCounter); ok {
		st.EnabledChannels = cc.EnabledChannels()
	}
	e.mu.Lock()
	if !e.lastMaintenance.IsZero() {
		t := e.lastMaintenance
		st.LastMaintenance = &t
	}
	e.mu.Unlock()
	return st
}

// Subscribe registers fn for lifecycle events and returns a function that
// removes it. fn runs on the goroutine that made the change and must not
// block.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) { return e.bus.subscribe(fn) }

// Close cancels every pending escalation and auto-resolve task.
func (e *Engine) Close() {
	n := e.sched.CancelAll()
	slog.Info("alerts: engine stopped", "cancelled_tasks", n)
}

func (e *Engine) publish(ev Event) { e.bus.publish(ev) }
