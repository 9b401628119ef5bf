package alerts

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/repowatch/repowatch/pkg/types"
)

// MetricKind selects how a threshold's input is read from a snapshot.
type MetricKind int

const (
	MetricWorkflowSuccessRate MetricKind = iota + 1
	MetricStaleIssues
	MetricSecurityFindings
	MetricAPIResponseTime
	MetricRateLimitUsage
	MetricPRReviewCoverage
	MetricDeploymentFailureRate
)

var metricNames = map[MetricKind]string{
	MetricWorkflowSuccessRate:   "workflow_success_rate",
	MetricStaleIssues:           "stale_issues",
	MetricSecurityFindings:      "security_vulnerabilities",
	MetricAPIResponseTime:       "api_response_time",
	MetricRateLimitUsage:        "rate_limit_usage",
	MetricPRReviewCoverage:      "pr_review_coverage",
	MetricDeploymentFailureRate: "deployment_failure_rate",
}

// ParseMetricKind maps a config metric name to its kind.
func ParseMetricKind(s string) (MetricKind, error) {
	for k, name := range metricNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("alerts: unknown metric %q", s)
}

func (m MetricKind) String() string {
	if n, ok := metricNames[m]; ok {
		return n
	}
	return "metric(" + strconv.Itoa(int(m)) + ")"
}

var errInvalidMetric = errors.New("invalid metric value")

// Extract reads the value for kind from snap. ok is false when the snapshot
// does not carry the input; that is not an error and implies nothing about
// recovery. A nil pointer is absent; zero is a real reading.
func Extract(kind MetricKind, snap *types.Snapshot) (value float64, ok bool, err error) {
	if snap == nil {
		return 0, false, nil
	}
	switch kind {
	case MetricWorkflowSuccessRate:
		if snap.Workflows == nil {
			return 0, false, nil
		}
		return deref(snap.Workflows.SuccessRate)

	case MetricStaleIssues:
		if snap.Issues == nil {
			return 0, false, nil
		}
		return deref(snap.Issues.Stale)

	case MetricSecurityFindings:
		s := snap.Security
		if s == nil {
			return 0, false, nil
		}
		var sum float64
		present := false
		for _, c := range []*float64{s.VulnerabilityAlerts, s.DependabotAlerts, s.CodeScanning, s.SecretScanning} {
			if c == nil {
				continue
			}
			if !finite(*c) || *c < 0 {
				return 0, false, fmt.Errorf("security counter %v: %w", *c, errInvalidMetric)
			}
			sum += *c
			present = true
		}
		return sum, present, nil

	case MetricAPIResponseTime:
		if snap.Performance == nil {
			return 0, false, nil
		}
		return deref(snap.Performance.AvgResponseTime)

	case MetricRateLimitUsage:
		p := snap.Performance
		if p == nil || p.RateLimitRemaining == nil || p.RateLimitTotal == nil {
			return 0, false, nil
		}
		total, remaining := *p.RateLimitTotal, *p.RateLimitRemaining
		if !finite(total) || !finite(remaining) {
			return 0, false, fmt.Errorf("rate limit: %w", errInvalidMetric)
		}
		if total <= 0 {
			return 0, false, nil
		}
		if remaining < 0 || remaining > total {
			return 0, false, fmt.Errorf("rate limit remaining %v of %v: %w", remaining, total, errInvalidMetric)
		}
		return (total - remaining) / total * 100, true, nil

	case MetricPRReviewCoverage:
		if snap.PullRequests == nil {
			return 0, false, nil
		}
		return deref(snap.PullRequests.ReviewCoverage)

	case MetricDeploymentFailureRate:
		if snap.Deployments == nil || len(snap.Deployments.Recent) == 0 {
			return 0, false, nil
		}
		failed := 0
		for _, d := range snap.Deployments.Recent {
			if d.LatestStatus == types.DeploymentFailure {
				failed++
			}
		}
		return float64(failed) / float64(len(snap.Deployments.Recent)) * 100, true, nil
	}
	return 0, false, fmt.Errorf("alerts: no extractor for %v", kind)
}

func deref(p *float64) (float64, bool, error) {
	if p == nil {
		return 0, false, nil
	}
	if !finite(*p) {
		return 0, false, fmt.Errorf("%v: %w", *p, errInvalidMetric)
	}
	return *p, true, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Message renders the human-readable alert text for a breach.
func Message(kind MetricKind, repository string, current, threshold float64) string {
	th := num(threshold)
	switch kind {
	case MetricWorkflowSuccessRate:
		return fmt.Sprintf("Workflow success rate is %.1f%% (threshold: %s%%) in %s", current, th, repository)
	case MetricStaleIssues:
		return fmt.Sprintf("%s stale issues detected (threshold: %s) in %s", num(current), th, repository)
	case MetricSecurityFindings:
		return fmt.Sprintf("%s security vulnerabilities found (threshold: %s) in %s", num(current), th, repository)
	case MetricAPIResponseTime:
		return fmt.Sprintf("API response time is %sms (threshold: %sms) for %s", num(current), th, repository)
	case MetricRateLimitUsage:
		return fmt.Sprintf("Rate limit usage is %.1f%% (threshold: %s%%) for %s", current, th, repository)
	case MetricPRReviewCoverage:
		return fmt.Sprintf("PR review coverage is %.1f%% (threshold: %s%%) in %s", current, th, repository)
	case MetricDeploymentFailureRate:
		return fmt.Sprintf("Deployment failure rate is %.1f%% (threshold: %s%%) in %s", current, th, repository)
	}
	return fmt.Sprintf("Threshold %v breached in %s", kind, repository)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Action is what an evaluation asks the store to do for a key.
type Action int

const (
	ActionBreach Action = iota + 1
	ActionResolve
)

// Candidate is the outcome of evaluating one threshold.
type Candidate struct {
	Action Action
	Key    Key
	// Alert is the proposed record for ActionBreach.
	Alert Alert
	// Reason is set for ActionResolve.
	Reason string
}

// Evaluator turns snapshots into candidates.
type Evaluator struct {
	registry *Registry
	policies *policySet
}

// Evaluate runs every enabled threshold against snap. isActive reports
// whether a key currently has an active alert; resolves are only emitted for
// those keys. A threshold whose input is malformed is logged and skipped; the
// rest of the batch still runs. The returned errors are those per-threshold
// failures, keyed by threshold name.
func (ev *Evaluator) Evaluate(repository string, snap *types.Snapshot, now time.Time, isActive func(Key) bool) ([]Candidate, map[string]error) {
	var (
		out  []Candidate
		errs map[string]error
	)
	for _, t := range ev.registry.Enabled() {
		key := Key{Repository: repository, Type: t.Name}

		value, ok, err := Extract(t.Metric, snap)
		if err != nil {
			slog.Warn("alerts: threshold evaluation failed",
				"threshold", t.Name,
				"repository", repository,
				"err", err,
			)
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[t.Name] = err
			continue
		}
		if !ok {
			continue
		}

		sev, breached := t.Classify(value)
		if !breached {
			if isActive != nil && isActive(key) {
				out = append(out, Candidate{Action: ActionResolve, Key: key, Reason: ReasonMetricRecovered})
			}
			continue
		}

		level := t.Level(sev)
		out = append(out, Candidate{
			Action: ActionBreach,
			Key:    key,
			Alert: Alert{
				ID:               newAlertID(),
				Repository:       repository,
				Type:             t.Name,
				Severity:         sev,
				Message:          Message(t.Metric, repository, value, level),
				CurrentValue:     value,
				ThresholdValue:   level,
				CreatedAt:        now,
				Source:           Source,
				Description:      t.Description,
				EvaluationPeriod: t.EvaluationPeriod,
				EscalationPolicy: ev.policies.selectFor(t, sev),
				EscalationStage:  -1,
			},
		})
	}
	return out, errs
}

func newAlertID() string { return "alert_" + uuid.NewString() }
