package alerts

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repowatch/repowatch/pkg/types"
)

func TestEvaluateMetrics_Scenarios(t *testing.T) {
	cases := []struct {
		name     string
		snap     *types.Snapshot
		want     int
		severity Severity
	}{
		{
			name: "low workflow success rate",
			snap: &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(65)}},
			want: 1, severity: SeverityCritical,
		},
		{
			name: "security findings take critical precedence",
			snap: &types.Snapshot{Security: &types.Security{VulnerabilityAlerts: f(3), DependabotAlerts: f(2)}},
			want: 1, severity: SeverityCritical,
		},
		{
			name: "healthy repository",
			snap: &types.Snapshot{
				Workflows:   &types.Workflows{SuccessRate: f(98)},
				Issues:      &types.Issues{Stale: f(3)},
				Security:    &types.Security{VulnerabilityAlerts: f(0)},
				Performance: &types.Performance{AvgResponseTime: f(200)},
			},
			want: 0,
		},
		{
			name: "stale issues and security together",
			snap: &types.Snapshot{
				Workflows: &types.Workflows{SuccessRate: f(95)},
				Issues:    &types.Issues{Stale: f(12)},
				Security:  &types.Security{VulnerabilityAlerts: f(3), DependabotAlerts: f(2)},
			},
			want: 2,
		},
		{
			name: "low band success rate",
			snap: &types.Snapshot{
				Workflows: &types.Workflows{SuccessRate: f(92)},
				Issues:    &types.Issues{Stale: f(8)},
				Security:  &types.Security{VulnerabilityAlerts: f(0)},
			},
			want: 1, severity: SeverityLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t, defaultAlerts())
			got := e.EvaluateMetrics("org/repo", tc.snap)
			require.Len(t, got, tc.want)
			if tc.severity != "" {
				assert.Equal(t, tc.severity, got[0].Severity)
			}
			assert.Equal(t, tc.want, e.Statistics().ActiveAlerts)
		})
	}
}

func TestEvaluateMetrics_Idempotent(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	snap := &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(65)}}

	first := e.EvaluateMetrics("org/repo", snap)
	require.Len(t, first, 1)
	second := e.EvaluateMetrics("org/repo", snap)

	assert.Empty(t, second, "unchanged breach reports nothing new")
	assert.Len(t, e.Active(), 1)
	assert.Equal(t, first[0].ID, e.Active()[0].ID)
}

func TestEvaluateMetrics_RecoveryResolves(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(65)}})
	require.Len(t, e.Active(), 1)

	e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(99)}})

	assert.Empty(t, e.Active())
	h := e.History(1)
	require.Len(t, h, 1)
	assert.Equal(t, "resolved", h[0].Action)
	assert.Equal(t, ReasonMetricRecovered, h[0].Reason)
	assert.Equal(t, ReasonMetricRecovered, h[0].Alert.ResolvedBy)
	assert.Zero(t, e.Statistics().PendingTasks)
}

func TestEvaluateMetrics_AbsentInputDoesNotResolve(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(65)}})

	e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(1)}})

	assert.Len(t, e.Active(), 1)
}

func TestEvaluateMetrics_SeverityChangeInPlace(t *testing.T) {
	e, clk, _ := newTestEngine(t, defaultAlerts())
	created := e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(65)}})
	require.Len(t, created, 1)
	pending := e.Statistics().PendingTasks

	clk.Advance(time.Minute)
	updated := e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(75)}})

	require.Len(t, updated, 1)
	a := updated[0]
	assert.Equal(t, created[0].ID, a.ID)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Equal(t, float64(80), a.ThresholdValue)
	assert.Equal(t, "immediate", a.EscalationPolicy, "policy is fixed at creation")
	assert.Equal(t, created[0].CreatedAt, a.CreatedAt)
	assert.Equal(t, pending-1, e.Statistics().PendingTasks, "only the first stage has fired; nothing rescheduled")
}

func TestAcknowledgeAlert(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	got := e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(65)}})
	require.Len(t, got, 1)

	assert.False(t, e.AcknowledgeAlert("alert_missing", "dana"))
	require.True(t, e.AcknowledgeAlert(got[0].ID, "dana"))

	a, ok := e.Alert(got[0].ID)
	require.True(t, ok)
	assert.True(t, a.Acknowledged)
	assert.Equal(t, "dana", a.AcknowledgedBy)
	require.NotNil(t, a.AcknowledgedAt)
	assert.Equal(t, epoch, *a.AcknowledgedAt)
	assert.Len(t, e.Active(), 1, "acknowledging does not resolve")
}

func TestSuppressAlert(t *testing.T) {
	e, clk, _ := newTestEngine(t, defaultAlerts())
	got := e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(92)}})
	require.Len(t, got, 1)
	key := got[0].Key()

	assert.False(t, e.SuppressAlert("alert_missing", time.Hour, "dana"))
	require.True(t, e.SuppressAlert(got[0].ID, 30*time.Minute, "dana"))
	assert.True(t, e.IsSuppressed(key))
	assert.Len(t, e.Active(), 1, "suppression does not hide the active alert")

	// Severity changes are not applied while suppressed.
	changed := e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(60)}})
	assert.Empty(t, changed)
	a, _ := e.Alert(got[0].ID)
	assert.Equal(t, SeverityLow, a.Severity)

	clk.Advance(30 * time.Minute)
	assert.False(t, e.IsSuppressed(key))

	changed = e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(60)}})
	require.Len(t, changed, 1)
	assert.Equal(t, SeverityCritical, changed[0].Severity)
}

func TestSuppressAlert_Defaults(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	got := e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(60)}})
	require.Len(t, got, 1)

	require.True(t, e.SuppressAlert(got[0].ID, 0, ""))
	sups := e.Suppressions()
	require.Len(t, sups, 1)
	assert.Equal(t, "system", sups[0].SuppressedBy)
	assert.Equal(t, epoch.Add(DefaultSuppression), sups[0].Until)
}

func TestSuppressedKeyStillRecovers(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	got := e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(60)}})
	require.True(t, e.SuppressAlert(got[0].ID, time.Hour, "dana"))

	e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(2)}})
	assert.Empty(t, e.Active())
}

func TestResolveAlert(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	got := e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(60)}})
	require.Len(t, got, 1)
	key := got[0].Key()

	require.True(t, e.ResolveAlert(key, ""))
	assert.False(t, e.ResolveAlert(key, ReasonManual), "second resolve is a no-op")

	h := e.History(0)
	require.Len(t, h, 2)
	assert.Equal(t, "resolved", h[0].Action)
	assert.Equal(t, ReasonManual, h[0].Reason)
	assert.Equal(t, "created", h[1].Action)

	_, ok := e.Alert(got[0].ID)
	assert.False(t, ok)

	// A new breach after resolution opens a fresh alert.
	again := e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(60)}})
	require.Len(t, again, 1)
	assert.NotEqual(t, got[0].ID, again[0].ID)
}

func TestEvents(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	var (
		mu  sync.Mutex
		got []EventType
	)
	unsubscribe := e.Subscribe(func(ev Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
	})

	alerts := e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(60)}})
	require.Len(t, alerts, 1)
	id := alerts[0].ID
	e.AcknowledgeAlert(id, "dana")
	e.SuppressAlert(id, time.Minute, "dana")
	e.ResolveAlert(alerts[0].Key(), ReasonManual)

	unsubscribe()
	e.EvaluateMetrics("org/repo", &types.Snapshot{Issues: &types.Issues{Stale: f(60)}})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventType{
		EventAlertCreated,
		EventAlertAcknowledged,
		EventAlertSuppressed,
		EventAlertResolved,
	}, got)
}

func TestStatistics(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	got := e.EvaluateMetrics("org/repo", &types.Snapshot{
		Workflows: &types.Workflows{SuccessRate: f(65)},
		Issues:    &types.Issues{Stale: f(60)},
	})
	require.Len(t, got, 2)
	e.SuppressAlert(got[0].ID, time.Hour, "dana")

	st := e.Statistics()
	assert.Equal(t, 2, st.ActiveAlerts)
	assert.Equal(t, 2, st.TotalAlerts)
	assert.Equal(t, 7, st.Thresholds)
	assert.Equal(t, 4, st.EscalationPolicies)
	assert.Equal(t, 3, st.EnabledChannels)
	assert.Equal(t, 1, st.Suppressions)
	assert.Nil(t, st.LastMaintenance)
}

func TestEvaluateMetrics_Concurrent(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())
	snap := &types.Snapshot{
		Workflows: &types.Workflows{SuccessRate: f(65)},
		Issues:    &types.Issues{Stale: f(60)},
	}

	const repos, perRepo = 8, 10
	var wg sync.WaitGroup
	for r := 0; r < repos; r++ {
		for i := 0; i < perRepo; i++ {
			wg.Add(1)
			go func(repo string) {
				defer wg.Done()
				e.EvaluateMetrics(repo, snap)
			}(fmt.Sprintf("org/repo-%d", r))
		}
	}
	wg.Wait()

	assert.Len(t, e.Active(), repos*2)
	assert.Equal(t, repos*2, e.Statistics().TotalAlerts, "exactly one creation per key")
	assert.Zero(t, e.locks.size())
}

func TestReload(t *testing.T) {
	e, _, _ := newTestEngine(t, defaultAlerts())

	cfg := defaultAlerts()
	wf := cfg.Thresholds["workflow_success_rate"]
	off := false
	wf.Enabled = &off
	cfg.Thresholds["workflow_success_rate"] = wf
	require.NoError(t, e.Reload(cfg))

	got := e.EvaluateMetrics("org/repo", &types.Snapshot{Workflows: &types.Workflows{SuccessRate: f(10)}})
	assert.Empty(t, got)

	th, ok := e.Threshold("workflow_success_rate")
	require.True(t, ok)
	assert.False(t, th.Enabled)
}
