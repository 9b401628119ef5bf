package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `server: {}
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", cfg.Server.GRPCPort, DefaultGRPCPort)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if got := len(cfg.Alerts.Thresholds); got != 7 {
		t.Errorf("thresholds: got %d, want 7", got)
	}
	if got := len(cfg.Alerts.Policies); got != 4 {
		t.Errorf("policies: got %d, want 4", got)
	}
	if got := len(cfg.Alerts.Channels); got != 10 {
		t.Errorf("channels: got %d, want 10", got)
	}
	if cfg.Alerts.HistoryLimit != DefaultHistoryLimit {
		t.Errorf("history_limit: got %d, want %d", cfg.Alerts.HistoryLimit, DefaultHistoryLimit)
	}
	if cfg.Alerts.RateWindow != time.Minute {
		t.Errorf("rate_window: got %v, want 1m", cfg.Alerts.RateWindow)
	}
	if cfg.Alerts.SeverityPolicies["critical"] != "immediate" {
		t.Errorf("severity_policies.critical: got %q, want immediate", cfg.Alerts.SeverityPolicies["critical"])
	}
}

func TestDefault_Catalogue(t *testing.T) {
	cfg := Default()

	wf := cfg.Alerts.Thresholds["workflow_success_rate"]
	if wf.Critical != 70 || wf.Direction != "lt" {
		t.Errorf("workflow_success_rate: got critical=%v direction=%q, want 70 lt", wf.Critical, wf.Direction)
	}
	sec := cfg.Alerts.Thresholds["security_vulnerabilities"]
	if sec.Critical != 1 || sec.Direction != "gt" {
		t.Errorf("security_vulnerabilities: got critical=%v direction=%q, want 1 gt", sec.Critical, sec.Direction)
	}

	imm := cfg.Alerts.Policies["immediate"]
	if len(imm.Stages) != 3 {
		t.Fatalf("immediate stages: got %d, want 3", len(imm.Stages))
	}
	if imm.Stages[2].Delay != 15*time.Minute {
		t.Errorf("immediate stage 3 delay: got %v, want 15m", imm.Stages[2].Delay)
	}
	if !cfg.Alerts.Policies["standard"].AutoResolve {
		t.Error("standard auto_resolve: got false, want true")
	}

	enabled := 0
	for _, c := range cfg.Alerts.Channels {
		if c.IsEnabled() {
			enabled++
		}
	}
	if enabled != 7 {
		t.Errorf("enabled channels: got %d, want 7", enabled)
	}
}

func TestLoad_OverridesCatalogueEntry(t *testing.T) {
	p := writeConfig(t, `alerts:
  thresholds:
    stale_issues:
      critical: 100
      high: 60
      medium: 40
      low: 20
      direction: gt
      enabled: false
  channels:
    ops-webhook:
      type: webhook
      url_env: OPS_HOOK
      rate_limit_per_minute: 4
  policies:
    standard:
      stages:
        - delay: 0s
          channels: [ops-webhook]
        - delay: 45m
          channels: [email-team]
          requires_ack: true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	st := cfg.Alerts.Thresholds["stale_issues"]
	if st.Critical != 100 {
		t.Errorf("stale_issues.critical: got %v, want 100", st.Critical)
	}
	if st.IsEnabled() {
		t.Error("stale_issues.enabled: got true, want false")
	}
	if st.Metric != "stale_issues" {
		t.Errorf("stale_issues.metric: got %q, want stale_issues", st.Metric)
	}
	// Untouched entries survive.
	if _, ok := cfg.Alerts.Thresholds["workflow_success_rate"]; !ok {
		t.Error("workflow_success_rate: missing after partial override")
	}

	hook, ok := cfg.Alerts.Channels["ops-webhook"]
	if !ok {
		t.Fatal("ops-webhook: missing")
	}
	if !hook.IsEnabled() {
		t.Error("ops-webhook.enabled: got false, want true (default)")
	}

	std := cfg.Alerts.Policies["standard"]
	if len(std.Stages) != 2 || std.Stages[1].Delay != 45*time.Minute {
		t.Errorf("standard stages: got %+v", std.Stages)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  log_level: debug
  auth:
    mode: apikey
    key_env: MY_KEY
    header: X-Repo-Key
  snapshot:
    ttl: 10m
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("grpc_port: got %d, want 9090", cfg.Server.GRPCPort)
	}
	if cfg.Server.Auth.EffectiveHeader() != "x-repo-key" {
		t.Errorf("header: got %q, want x-repo-key", cfg.Server.Auth.EffectiveHeader())
	}
	if cfg.Server.Snapshot.TTL != 10*time.Minute {
		t.Errorf("snapshot.ttl: got %v, want 10m", cfg.Server.Snapshot.TTL)
	}
}

func TestLoad_ChannelRateLimit(t *testing.T) {
	p := writeConfig(t, `alerts:
  channels:
    muted:
      type: slack
      rate_limit_per_minute: 0
    plain:
      type: webhook
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	muted := cfg.Alerts.Channels["muted"]
	if muted.RateLimitPerMinute == nil || muted.RateLimit() != 0 {
		t.Errorf("muted.rate_limit_per_minute: got %v, want explicit 0", muted.RateLimitPerMinute)
	}
	if got := cfg.Alerts.Channels["plain"].RateLimit(); got != DefaultRateLimitPerMinute {
		t.Errorf("plain.rate_limit_per_minute: got %d, want %d", got, DefaultRateLimitPerMinute)
	}
	if got := cfg.Alerts.Channels["slack-management"].RateLimit(); got != 2 {
		t.Errorf("slack-management.rate_limit_per_minute: got %d, want 2", got)
	}
}

func TestLoad_EnvResolution(t *testing.T) {
	t.Setenv("TEST_SERVER_KEY", "supersecret")
	t.Setenv("TEST_HOOK_URL", "https://hooks.example.com/x")
	p := writeConfig(t, `server:
  auth:
    mode: apikey
    key_env: TEST_SERVER_KEY
alerts:
  channels:
    hook:
      type: webhook
      url_env: TEST_HOOK_URL
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if k := cfg.Server.Auth.Key(); k != "supersecret" {
		t.Errorf("Key(): got %q, want supersecret", k)
	}
	if u := cfg.Alerts.Channels["hook"].WebhookURL(); u != "https://hooks.example.com/x" {
		t.Errorf("WebhookURL(): got %q", u)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"auth mode": `server:
  auth:
    mode: oauth2
`,
		"direction": `alerts:
  thresholds:
    x:
      direction: sideways
`,
		"channel type": `alerts:
  channels:
    x:
      type: carrier-pigeon
`,
		"negative rate limit": `alerts:
  channels:
    x:
      type: slack
      rate_limit_per_minute: -1
`,
		"severity key": `alerts:
  severity_policies:
    urgent: immediate
`,
		"auto resolve": `alerts:
  policies:
    p:
      auto_resolve: true
`,
		"maintenance schedule": `alerts:
  maintenance_schedule: every now and then
`,
		"unknown override policy": `alerts:
  thresholds:
    x:
      direction: gt
      escalation_policy: nope
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "alerts:\n  history_limit: 10\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	go Watch(ctx, p, func(c *Config) { //nolint:errcheck
		select {
		case got <- c:
		default:
		}
	})

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("alerts:\n  history_limit: 20\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	// A truncating write can surface an intermediate (empty) file first.
	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Alerts.HistoryLimit == 20 {
				return
			}
		case <-deadline:
			t.Fatal("onChange was not called with the rewritten config")
		}
	}
}
