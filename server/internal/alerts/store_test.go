package alerts

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAlert(repo, typ string, sev Severity, at time.Time) Alert {
	return Alert{
		ID: "alert_" + repo + "_" + typ, Repository: repo, Type: typ,
		Severity: sev, CreatedAt: at, EscalationStage: -1,
	}
}

func TestStore_UpsertLifecycle(t *testing.T) {
	s := NewStore()
	a := testAlert("org/repo", "stale_issues", SeverityLow, epoch)

	got, outcome := s.upsert(a)
	require.Equal(t, OutcomeCreated, outcome)
	assert.Equal(t, a.ID, got.ID)

	dup := a
	dup.ID = "alert_other"
	_, outcome = s.upsert(dup)
	assert.Equal(t, OutcomeUnchanged, outcome)

	worse := dup
	worse.Severity = SeverityHigh
	worse.Message = "worse"
	got, outcome = s.upsert(worse)
	require.Equal(t, OutcomeUpdated, outcome)
	assert.Equal(t, a.ID, got.ID, "in-place update keeps the id")
	assert.Equal(t, "worse", got.Message)

	k, ok := s.KeyOf(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.Key(), k)
	_, ok = s.KeyOf("alert_other")
	assert.False(t, ok)

	resolved, ok := s.remove(a.Key(), ReasonManual, epoch.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, ReasonManual, resolved.ResolvedBy)
	assert.False(t, s.Has(a.Key()))
	_, ok = s.KeyOf(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 2, s.HistoryLen())
}

func TestStore_ActiveNewestFirst(t *testing.T) {
	s := NewStore()
	s.upsert(testAlert("a", "x", SeverityLow, epoch))
	s.upsert(testAlert("b", "x", SeverityLow, epoch.Add(time.Minute)))
	s.upsert(testAlert("c", "x", SeverityLow, epoch.Add(2*time.Minute)))

	got := s.Active()
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].Repository)
	assert.Equal(t, "a", got[2].Repository)
}

func TestStore_HistoryLimitAndTrim(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.upsert(testAlert(fmt.Sprintf("r%d", i), "x", SeverityLow, epoch.Add(time.Duration(i)*time.Second)))
	}

	h := s.History(2)
	require.Len(t, h, 2)
	assert.Equal(t, "r4", h[0].Alert.Repository)
	assert.Len(t, s.History(0), 5)
	assert.Len(t, s.History(50), 5)

	assert.Equal(t, 2, s.TrimHistory(3))
	assert.Equal(t, 3, s.HistoryLen())
	assert.Equal(t, "r2", s.History(0)[2].Alert.Repository)
	assert.Zero(t, s.TrimHistory(3))
}

func TestSuppressions_ExpireLazily(t *testing.T) {
	now := epoch
	s := NewSuppressions(func() time.Time { return now })
	k := Key{Repository: "org/repo", Type: "stale_issues"}

	s.Set(k, "alert_1", time.Minute, "dana")
	assert.True(t, s.IsSuppressed(k))
	assert.False(t, s.IsSuppressed(Key{Repository: "org/repo", Type: "other"}))

	now = now.Add(time.Minute)
	assert.False(t, s.IsSuppressed(k), "until is exclusive")
	assert.Zero(t, s.Len(), "expired entry removed on read")
}

func TestSuppressions_Prune(t *testing.T) {
	now := epoch
	s := NewSuppressions(func() time.Time { return now })
	s.Set(Key{Repository: "a"}, "1", time.Minute, "x")
	s.Set(Key{Repository: "b"}, "2", time.Hour, "x")

	assert.Equal(t, 1, s.Prune(epoch.Add(2*time.Minute)))
	assert.Equal(t, 1, s.Len())
}

func TestKeyLocker_ReleasesEntries(t *testing.T) {
	l := newKeyLocker()
	k := Key{Repository: "a", Type: "x"}
	unlock := l.Lock(k)
	assert.Equal(t, 1, l.size())

	done := make(chan struct{})
	go func() {
		u := l.Lock(k)
		u()
		close(done)
	}()
	unlock()
	<-done
	assert.Zero(t, l.size())
}

func TestScheduler_Cancel(t *testing.T) {
	clk := newManualClock()
	s := NewScheduler(clk)
	k := Key{Repository: "a", Type: "x"}
	fired := 0
	s.At(k, epoch.Add(time.Minute), func() { fired++ })
	s.At(k, epoch.Add(2*time.Minute), func() { fired++ })
	s.At(Key{Repository: "b"}, epoch.Add(time.Minute), func() { fired++ })

	clk.Advance(time.Minute)
	assert.Equal(t, 2, fired)
	assert.Equal(t, 1, s.Cancel(k))
	clk.Advance(time.Hour)
	assert.Equal(t, 2, fired)
	assert.Zero(t, s.Pending())
}
