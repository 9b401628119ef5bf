package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner drops state that has aged out at now and reports how many entries
// it removed. The notification router's rate limiter is one.
type Pruner interface {
	Prune(now time.Time) int
}

// SweepResult reports what one maintenance pass removed.
type SweepResult struct {
	At                 time.Time `json:"at"`
	HistoryTrimmed     int       `json:"history_trimmed"`
	SuppressionsPruned int       `json:"suppressions_pruned"`
	Pruned             int       `json:"pruned"`
}

// Sweeper runs periodic housekeeping for an Engine.
type Sweeper struct {
	engine   *Engine
	schedule string
	pruners  []Pruner
}

// NewSweeper returns a sweeper for e on the given cron schedule.
func NewSweeper(e *Engine, schedule string, pruners ...Pruner) *Sweeper {
	return &Sweeper{engine: e, schedule: schedule, pruners: pruners}
}

// Sweep trims history, prunes expired suppressions and runs every pruner.
func (s *Sweeper) Sweep() SweepResult {
	e := s.engine
	now := e.clock.Now()

	e.mu.Lock()
	limit := e.historyLimit
	e.mu.Unlock()

	res := SweepResult{At: now}
	res.HistoryTrimmed = e.store.TrimHistory(limit)
	res.SuppressionsPruned = e.suppressions.Prune(now)
	for _, p := range s.pruners {
		res.Pruned += p.Prune(now)
	}

	e.mu.Lock()
	e.lastMaintenance = now
	e.mu.Unlock()
	e.metrics.swept(e.sched.Pending(), res.HistoryTrimmed)

	slog.Info("alerts: maintenance completed",
		"history_trimmed", res.HistoryTrimmed,
		"suppressions_pruned", res.SuppressionsPruned,
		"pruned", res.Pruned,
	)
	return res
}

// Run sweeps on the schedule until ctx is cancelled. It waits for a running
// sweep to finish before returning.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("alerts: maintenance schedule %q: %w", s.schedule, err)
	}
	c.Start()
	slog.Info("alerts: maintenance scheduled", "schedule", s.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
