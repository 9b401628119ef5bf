package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/repowatch/repowatch/server/internal/config"
)

// Direction is the comparison a threshold uses to detect a breach.
type Direction int

const (
	// GreaterThan breaches when value > level.
	GreaterThan Direction = iota
	// LessThan breaches when value < level.
	LessThan
)

// ParseDirection maps the config values "gt" and "lt".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "gt":
		return GreaterThan, nil
	case "lt":
		return LessThan, nil
	}
	return 0, fmt.Errorf("alerts: unknown direction %q", s)
}

func (d Direction) String() string {
	if d == LessThan {
		return "lt"
	}
	return "gt"
}

func (d Direction) breached(value, level float64) bool {
	if d == LessThan {
		return value < level
	}
	return value > level
}

// Threshold is a named condition with four severity levels.
type Threshold struct {
	Name             string
	Metric           MetricKind
	Critical         float64
	High             float64
	Medium           float64
	Low              float64
	Direction        Direction
	Enabled          bool
	EvaluationPeriod time.Duration
	Description      string
	// EscalationPolicy overrides the severity mapping when set.
	EscalationPolicy string
}

// Level returns the bound configured for s.
func (t Threshold) Level(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return t.Critical
	case SeverityHigh:
		return t.High
	case SeverityMedium:
		return t.Medium
	default:
		return t.Low
	}
}

// Classify returns the most severe level breached by value.
func (t Threshold) Classify(value float64) (Severity, bool) {
	for _, s := range severityOrder {
		if t.Direction.breached(value, t.Level(s)) {
			return s, true
		}
	}
	return "", false
}

// Registry is the catalogue of thresholds. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	thresholds map[string]Threshold
	names      []string // sorted, for deterministic evaluation order
}

// NewRegistry builds a registry from ts. Later duplicates win.
func NewRegistry(ts ...Threshold) *Registry {
	r := &Registry{}
	r.replace(ts)
	return r
}

func (r *Registry) replace(ts []Threshold) {
	m := make(map[string]Threshold, len(ts))
	for _, t := range ts {
		m[t.Name] = t
	}
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)

	r.mu.Lock()
	r.thresholds = m
	r.names = names
	r.mu.Unlock()
}

// Get looks up a threshold by name.
func (r *Registry) Get(name string) (Threshold, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.thresholds[name]
	return t, ok
}

// Classify resolves the severity of value against the named threshold.
// It returns false for unknown thresholds and for values that breach nothing.
func (r *Registry) Classify(name string, value float64) (Severity, bool) {
	t, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return t.Classify(value)
}

// Enabled returns the enabled thresholds in name order.
func (r *Registry) Enabled() []Threshold {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Threshold, 0, len(r.names))
	for _, n := range r.names {
		if t := r.thresholds[n]; t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// List returns every threshold in name order.
func (r *Registry) List() []Threshold {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Threshold, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.thresholds[n])
	}
	return out
}

// Len returns the number of configured thresholds, enabled or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.thresholds)
}

// thresholdsFromConfig converts the config catalogue.
func thresholdsFromConfig(cfg map[string]config.ThresholdConfig) ([]Threshold, error) {
	out := make([]Threshold, 0, len(cfg))
	for name, tc := range cfg {
		metric := tc.Metric
		if metric == "" {
			metric = name
		}
		kind, err := ParseMetricKind(metric)
		if err != nil {
			return nil, fmt.Errorf("alerts: threshold %q: %w", name, err)
		}
		dir, err := ParseDirection(tc.Direction)
		if err != nil {
			return nil, fmt.Errorf("alerts: threshold %q: %w", name, err)
		}
		out = append(out, Threshold{
			Name:             name,
			Metric:           kind,
			Critical:         tc.Critical,
			High:             tc.High,
			Medium:           tc.Medium,
			Low:              tc.Low,
			Direction:        dir,
			Enabled:          tc.IsEnabled(),
			EvaluationPeriod: tc.EvaluationPeriod,
			Description:      tc.Description,
			EscalationPolicy: tc.EscalationPolicy,
		})
	}
	return out, nil
}
