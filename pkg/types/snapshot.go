package types

// Snapshot is one point-in-time metrics sample for a monitored repository.
//
// Every field is optional. A nil section or a nil field means the collector
// did not report it, which is different from reporting zero: the evaluator
// skips thresholds whose input is absent instead of treating it as healthy.
type Snapshot struct {
	Workflows    *Workflows    `json:"workflows,omitempty" yaml:"workflows,omitempty"`
	Issues       *Issues       `json:"issues,omitempty" yaml:"issues,omitempty"`
	Security     *Security     `json:"security,omitempty" yaml:"security,omitempty"`
	Performance  *Performance  `json:"performance,omitempty" yaml:"performance,omitempty"`
	PullRequests *PullRequests `json:"pullrequests,omitempty" yaml:"pullrequests,omitempty"`
	Deployments  *Deployments  `json:"deployments,omitempty" yaml:"deployments,omitempty"`
}

// Workflows holds CI workflow statistics.
type Workflows struct {
	// SuccessRate is the percentage (0-100) of successful workflow runs.
	SuccessRate *float64 `json:"successRate,omitempty" yaml:"successRate,omitempty"`
}

// Issues holds issue tracker statistics.
type Issues struct {
	Stale *float64 `json:"stale,omitempty" yaml:"stale,omitempty"`
}

// Security holds the four security finding counters.
type Security struct {
	VulnerabilityAlerts *float64 `json:"vulnerabilityAlerts,omitempty" yaml:"vulnerabilityAlerts,omitempty"`
	DependabotAlerts    *float64 `json:"dependabotAlerts,omitempty" yaml:"dependabotAlerts,omitempty"`
	CodeScanning        *float64 `json:"codeScanning,omitempty" yaml:"codeScanning,omitempty"`
	SecretScanning      *float64 `json:"secretScanning,omitempty" yaml:"secretScanning,omitempty"`
}

// Performance holds API latency and rate-limit figures.
type Performance struct {
	AvgResponseTime    *float64 `json:"avgResponseTime,omitempty" yaml:"avgResponseTime,omitempty"` // ms
	RateLimitRemaining *float64 `json:"rateLimitRemaining,omitempty" yaml:"rateLimitRemaining,omitempty"`
	RateLimitTotal     *float64 `json:"rateLimitTotal,omitempty" yaml:"rateLimitTotal,omitempty"`
}

// PullRequests holds review statistics.
type PullRequests struct {
	// ReviewCoverage is the percentage (0-100) of PRs that received a review.
	ReviewCoverage *float64 `json:"reviewCoverage,omitempty" yaml:"reviewCoverage,omitempty"`
}

// Deployments holds the most recent deployments.
type Deployments struct {
	Recent []Deployment `json:"recent,omitempty" yaml:"recent,omitempty"`
}

// Deployment is one deployment and its latest reported status.
type Deployment struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	LatestStatus string `json:"latestStatus" yaml:"latestStatus"`
}

// DeploymentFailure is the LatestStatus value counted as a failed deployment.
const DeploymentFailure = "failure"

// Float returns a pointer to v. It keeps snapshot literals in callers and
// tests readable.
func Float(v float64) *float64 { return &v }
