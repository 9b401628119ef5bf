package alerts

import (
	"errors"
	"time"
)

var (
	// ErrAlertNotFound is returned when no active alert matches an id or key.
	ErrAlertNotFound = errors.New("alerts: alert not found")
	// ErrUnknownPolicy is returned when an alert references an escalation
	// policy that is not configured.
	ErrUnknownPolicy = errors.New("alerts: unknown escalation policy")
)

// Severity is one of critical > high > medium > low.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityOrder is the classification order; first match wins.
var severityOrder = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank orders severities for comparison. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Resolution reasons.
const (
	ReasonManual          = "manual"
	ReasonMetricRecovered = "metric_recovered"
	ReasonAutoResolved    = "auto_resolved"
)

// Source is stamped on every alert produced by threshold evaluation.
const Source = "threshold_monitoring"

// Key identifies at most one active alert.
type Key struct {
	Repository string `json:"repository"`
	Type       string `json:"type"`
}

func (k Key) String() string { return k.Repository + "_" + k.Type }

// Alert is a detected threshold breach for one repository/threshold pair.
type Alert struct {
	ID               string        `json:"id"`
	Repository       string        `json:"repository"`
	Type             string        `json:"type"`
	Severity         Severity      `json:"severity"`
	Message          string        `json:"message"`
	CurrentValue     float64       `json:"current_value"`
	ThresholdValue   float64       `json:"threshold_value"`
	CreatedAt        time.Time     `json:"created_at"`
	Source           string        `json:"source"`
	Description      string        `json:"description,omitempty"`
	EvaluationPeriod time.Duration `json:"evaluation_period,omitempty"`
	EscalationPolicy string        `json:"escalation_policy"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	// EscalationStage is the index of the last fired stage, -1 before the first.
	EscalationStage int        `json:"escalation_stage"`
	LastEscalated   *time.Time `json:"last_escalated,omitempty"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
}

// Key returns the alert's (repository, type) key.
func (a Alert) Key() Key { return Key{Repository: a.Repository, Type: a.Type} }

// HistoryEntry records one lifecycle transition.
type HistoryEntry struct {
	Action string    `json:"action"` // "created" | "resolved"
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
	Alert  Alert     `json:"alert"`
}

// Statistics summarises engine state.
type Statistics struct {
	ActiveAlerts       int        `json:"active_alerts"`
	TotalAlerts        int        `json:"total_alerts"`
	Thresholds         int        `json:"thresholds"`
	EscalationPolicies int        `json:"escalation_policies"`
	EnabledChannels    int        `json:"enabled_channels"`
	Suppressions       int        `json:"suppressions"`
	PendingTasks       int        `json:"pending_tasks"`
	LastMaintenance    *time.Time `json:"last_maintenance,omitempty"`
}
