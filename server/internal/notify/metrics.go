package notify

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	notifications *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repowatch",
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Notification attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.notifications)
	}
	return m
}

func (m *metrics) observe(channel, outcome string) {
	m.notifications.WithLabelValues(channel, outcome).Inc()
}
