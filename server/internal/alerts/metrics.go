package alerts

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	created      *prometheus.CounterVec
	updated      *prometheus.CounterVec
	resolved     *prometheus.CounterVec
	dropped      prometheus.Counter
	stagesFired  *prometheus.CounterVec
	stagesSkip   *prometheus.CounterVec
	evalErrors   *prometheus.CounterVec
	active       prometheus.Gauge
	pending      prometheus.Gauge
	sweeps       prometheus.Counter
	historyTrims prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "alerts", Name: "created_total",
			Help: "Alerts created, by threshold type and severity.",
		}, []string{"type", "severity"}),
		updated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "alerts", Name: "severity_changes_total",
			Help: "In-place severity changes of active alerts.",
		}, []string{"type"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "alerts", Name: "resolved_total",
			Help: "Alerts resolved, by reason.",
		}, []string{"reason"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "alerts", Name: "suppressed_candidates_total",
			Help: "Breach candidates dropped because their key was suppressed.",
		}),
		stagesFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "escalation", Name: "stages_fired_total",
			Help: "Escalation stages executed.",
		}, []string{"policy", "stage"}),
		stagesSkip: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "escalation", Name: "stages_skipped_total",
			Help: "Escalation stages skipped at fire time.",
		}, []string{"reason"}),
		evalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "alerts", Name: "evaluation_errors_total",
			Help: "Per-threshold evaluation failures.",
		}, []string{"threshold"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "repowatch", Subsystem: "alerts", Name: "active",
			Help: "Currently active alerts.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "repowatch", Subsystem: "escalation", Name: "pending_tasks",
			Help: "Scheduled escalation and auto-resolve tasks, as of the last sweep.",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "maintenance", Name: "sweeps_total",
			Help: "Maintenance sweeps run.",
		}),
		historyTrims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "repowatch", Subsystem: "maintenance", Name: "history_trimmed_total",
			Help: "History entries dropped by maintenance.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.created, m.updated, m.resolved, m.dropped,
			m.stagesFired, m.stagesSkip, m.evalErrors,
			m.active, m.pending, m.sweeps, m.historyTrims,
		)
	}
	return m
}

func (m *Metrics) alertCreated(a Alert) {
	m.created.WithLabelValues(a.Type, string(a.Severity)).Inc()
}

func (m *Metrics) alertUpdated(a Alert) { m.updated.WithLabelValues(a.Type).Inc() }

func (m *Metrics) alertResolved(reason string) { m.resolved.WithLabelValues(reason).Inc() }

func (m *Metrics) candidateDropped() { m.dropped.Inc() }

func (m *Metrics) stageFired(policy, stage string) {
	m.stagesFired.WithLabelValues(policy, stage).Inc()
}

func (m *Metrics) stageSkipped(reason string) { m.stagesSkip.WithLabelValues(reason).Inc() }

func (m *Metrics) evaluationFailed(threshold string) {
	m.evalErrors.WithLabelValues(threshold).Inc()
}

func (m *Metrics) setActive(n int) { m.active.Set(float64(n)) }

func (m *Metrics) swept(pending, trimmed int) {
	m.sweeps.Inc()
	m.pending.Set(float64(pending))
	m.historyTrims.Add(float64(trimmed))
}
