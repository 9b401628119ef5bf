package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/repowatch/repowatch/server/internal/config"
)

// Notifier delivers an alert to a named channel for one escalation stage.
// It is implemented by the notification router.
type Notifier interface {
	Send(ctx context.Context, channel string, a Alert, stage int) error
}

// Stage is one step of an escalation policy.
type Stage struct {
	// Delay is measured from alert creation, not from the previous stage.
	Delay       time.Duration
	Channels    []string
	RequiresAck bool
}

// Policy is an ordered escalation schedule.
type Policy struct {
	Name             string
	DisplayName      string
	Description      string
	Stages           []Stage
	AutoResolve      bool
	AutoResolveAfter time.Duration
	// MaxEscalations is carried for reporting only; it does not cap stages.
	MaxEscalations int
}

// policySet holds the policies and the severity to policy mapping.
type policySet struct {
	mu         sync.RWMutex
	policies   map[string]Policy
	bySeverity map[Severity]string
}

const fallbackPolicy = "standard"

func (p *policySet) replace(policies map[string]Policy, bySeverity map[Severity]string) {
	p.mu.Lock()
	p.policies = policies
	p.bySeverity = bySeverity
	p.mu.Unlock()
}

func (p *policySet) get(name string) (Policy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pol, ok := p.policies[name]
	return pol, ok
}

func (p *policySet) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.policies)
}

// selectFor picks the policy name for a breach of t at sev.
func (p *policySet) selectFor(t Threshold, sev Severity) string {
	if t.EscalationPolicy != "" {
		return t.EscalationPolicy
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if name, ok := p.bySeverity[sev]; ok && name != "" {
		return name
	}
	return fallbackPolicy
}

func policiesFromConfig(cfg config.AlertsConfig) (map[string]Policy, map[Severity]string) {
	policies := make(map[string]Policy, len(cfg.Policies))
	for name, pc := range cfg.Policies {
		stages := make([]Stage, 0, len(pc.Stages))
		for _, sc := range pc.Stages {
			stages = append(stages, Stage{
				Delay:       sc.Delay,
				Channels:    append([]string(nil), sc.Channels...),
				RequiresAck: sc.RequiresAck,
			})
		}
		policies[name] = Policy{
			Name:             name,
			DisplayName:      pc.DisplayName,
			Description:      pc.Description,
			Stages:           stages,
			AutoResolve:      pc.AutoResolve,
			AutoResolveAfter: pc.AutoResolveAfter,
			MaxEscalations:   pc.MaxEscalations,
		}
	}
	bySeverity := make(map[Severity]string, len(cfg.SeverityPolicies))
	for sev, name := range cfg.SeverityPolicies {
		bySeverity[Severity(sev)] = name
	}
	return policies, bySeverity
}

// startEscalation schedules every stage of the alert's policy plus the
// auto-resolve task. The caller holds the key lock.
func (e *Engine) startEscalation(a Alert) error {
	pol, ok := e.policies.get(a.EscalationPolicy)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, a.EscalationPolicy)
	}
	key := a.Key()

	slog.Debug("alerts: starting escalation",
		"key", key.String(),
		"policy", pol.Name,
		"stages", len(pol.Stages),
	)

	for i, st := range pol.Stages {
		e.sched.At(key, a.CreatedAt.Add(st.Delay), func() {
			e.fireStage(key, a.ID, pol.Name, i, st)
		})
	}
	if pol.AutoResolve && pol.AutoResolveAfter > 0 {
		e.sched.At(key, a.CreatedAt.Add(pol.AutoResolveAfter), func() {
			e.autoResolve(key, a.ID)
		})
	}
	return nil
}

// fireStage runs one stage. The key lock is held for the whole stage so a
// concurrent resolve or acknowledge waits for it to finish.
func (e *Engine) fireStage(key Key, id, policy string, idx int, st Stage) {
	unlock := e.locks.Lock(key)
	defer unlock()

	a, ok := e.store.Get(key)
	if !ok || a.ID != id {
		e.metrics.stageSkipped("inactive")
		return
	}
	if st.RequiresAck && a.Acknowledged {
		slog.Debug("alerts: stage skipped, alert acknowledged",
			"key", key.String(),
			"stage", idx,
		)
		e.metrics.stageSkipped("acknowledged")
		return
	}

	slog.Info("alerts: executing escalation stage",
		"key", key.String(),
		"policy", policy,
		"stage", idx+1,
		"channels", len(st.Channels),
	)
	for _, ch := range st.Channels {
		if err := e.notifier.Send(context.Background(), ch, a, idx); err != nil {
			slog.Debug("alerts: notification not delivered",
				"key", key.String(),
				"channel", ch,
				"err", err,
			)
		}
	}

	now := e.clock.Now()
	e.store.update(key, id, func(cur *Alert) {
		cur.EscalationStage = idx
		cur.LastEscalated = &now
	})
	e.metrics.stageFired(policy, strconv.Itoa(idx))
}

func (e *Engine) autoResolve(key Key, id string) {
	unlock := e.locks.Lock(key)
	a, ok := e.store.Get(key)
	if !ok || a.ID != id {
		unlock()
		return
	}
	resolved, ok := e.resolveLocked(key, ReasonAutoResolved)
	unlock()
	if ok {
		e.publish(Event{Type: EventAlertResolved, Alert: resolved, Reason: ReasonAutoResolved, At: e.clock.Now()})
	}
}
