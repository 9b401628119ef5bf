package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreshold_ClassifyPrecedence(t *testing.T) {
	gt := Threshold{Name: "security_vulnerabilities", Critical: 1, High: 3, Medium: 5, Low: 10, Direction: GreaterThan}
	lt := Threshold{Name: "workflow_success_rate", Critical: 70, High: 80, Medium: 90, Low: 95, Direction: LessThan}

	cases := []struct {
		name  string
		th    Threshold
		value float64
		want  Severity
		ok    bool
	}{
		{"gt breaches every level", gt, 50, SeverityCritical, true},
		{"gt just above critical", gt, 2, SeverityCritical, true},
		{"gt at critical bound", gt, 1, "", false},
		{"gt zero", gt, 0, "", false},
		{"lt far below", lt, 10, SeverityCritical, true},
		{"lt high band", lt, 75, SeverityHigh, true},
		{"lt medium band", lt, 85, SeverityMedium, true},
		{"lt low band", lt, 92, SeverityLow, true},
		{"lt at low bound", lt, 95, "", false},
		{"lt healthy", lt, 99, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.th.Classify(tc.value)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRegistry_FromDefaultCatalogue(t *testing.T) {
	ts, err := thresholdsFromConfig(defaultAlerts().Thresholds)
	require.NoError(t, err)
	r := NewRegistry(ts...)

	assert.Equal(t, 7, r.Len())
	assert.Len(t, r.Enabled(), 7)

	wf, ok := r.Get("workflow_success_rate")
	require.True(t, ok)
	assert.Equal(t, LessThan, wf.Direction)
	assert.Equal(t, MetricWorkflowSuccessRate, wf.Metric)

	sev, ok := r.Classify("api_response_time", 6000)
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, sev)

	_, ok = r.Classify("no_such_threshold", 1)
	assert.False(t, ok)
}

func TestRegistry_EnabledSkipsDisabled(t *testing.T) {
	r := NewRegistry(
		Threshold{Name: "b", Enabled: true},
		Threshold{Name: "a", Enabled: true},
		Threshold{Name: "c", Enabled: false},
	)
	got := r.Enabled()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)

	all := r.List()
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[2].Name)
}

func TestThresholdsFromConfig_UnknownMetric(t *testing.T) {
	cfg := defaultAlerts().Thresholds
	th := cfg["stale_issues"]
	th.Metric = "open_bugs"
	cfg["stale_issues"] = th

	_, err := thresholdsFromConfig(cfg)
	assert.Error(t, err)
}
