package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repowatch/repowatch/pkg/types"
	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/config"
)

func TestEngineThroughRouter_RateLimitsFirstStage(t *testing.T) {
	cfg := config.Default()
	fs := &fakeSender{}
	r := NewRouter(cfg.Alerts.Channels, allTypes(fs))

	e, err := alerts.New(cfg.Alerts, r)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	// Six critical alerts; slack-critical allows five per minute, email-oncall three.
	for _, repo := range []string{"org/a", "org/b", "org/c", "org/d", "org/e", "org/f"} {
		got := e.EvaluateMetrics(repo, &types.Snapshot{Workflows: &types.Workflows{SuccessRate: types.Float(10)}})
		require.Len(t, got, 1)
	}

	require.Eventually(t, func() bool { return fs.count() == 8 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	byChannel := map[string]int{}
	for _, c := range fs.sent {
		byChannel[c.Channel]++
	}
	assert.Equal(t, map[string]int{"slack-critical": 5, "email-oncall": 3}, byChannel)
	assert.Equal(t, 7, e.Statistics().EnabledChannels)
}
