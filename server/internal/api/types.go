package api

import (
	"time"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is the worst active severity, or "healthy" when nothing is firing.
	State          string `json:"state"`
	ActiveAlerts   int    `json:"active_alerts"`
	CriticalAlerts int    `json:"critical_alerts"`
	Repositories   int    `json:"repositories"`
	PendingTasks   int    `json:"pending_tasks"`
}

// RepositoryResponse is the payload for GET /api/v1/repositories/{repo}.
type RepositoryResponse struct {
	Repository string          `json:"repository"`
	Snapshot   *types.Snapshot `json:"snapshot"`
	LastSeen   string          `json:"last_seen"` // RFC3339
	Alerts     []alerts.Alert  `json:"alerts"`
}

// EvaluateResponse is the payload for POST /api/v1/repositories/{repo}/metrics.
type EvaluateResponse struct {
	Repository string         `json:"repository"`
	Alerts     []alerts.Alert `json:"alerts"`
}

// ThresholdResponse is one entry of GET /api/v1/thresholds.
type ThresholdResponse struct {
	Name             string  `json:"name"`
	Metric           string  `json:"metric"`
	Direction        string  `json:"direction"`
	Critical         float64 `json:"critical"`
	High             float64 `json:"high"`
	Medium           float64 `json:"medium"`
	Low              float64 `json:"low"`
	Enabled          bool    `json:"enabled"`
	EvaluationPeriod string  `json:"evaluation_period,omitempty"`
	Description      string  `json:"description,omitempty"`
	EscalationPolicy string  `json:"escalation_policy,omitempty"`
}

func toThresholdResponse(t alerts.Threshold) ThresholdResponse {
	r := ThresholdResponse{
		Name:             t.Name,
		Metric:           t.Metric.String(),
		Direction:        t.Direction.String(),
		Critical:         t.Critical,
		High:             t.High,
		Medium:           t.Medium,
		Low:              t.Low,
		Enabled:          t.Enabled,
		Description:      t.Description,
		EscalationPolicy: t.EscalationPolicy,
	}
	if t.EvaluationPeriod > 0 {
		r.EvaluationPeriod = t.EvaluationPeriod.String()
	}
	return r
}

type acknowledgeRequest struct {
	Actor string `json:"actor"`
}

type suppressRequest struct {
	// Duration is a Go duration string such as "30m". Empty means one hour.
	Duration string `json:"duration"`
	Actor    string `json:"actor"`
}

type resolveRequest struct {
	Repository string `json:"repository"`
	Type       string `json:"type"`
	Reason     string `json:"reason"`
}

// actionResponse is returned by the acknowledge, suppress and resolve routes.
type actionResponse struct {
	OK    bool          `json:"ok"`
	Alert *alerts.Alert `json:"alert,omitempty"`
	Until *time.Time    `json:"until,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
