package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultGRPCPort            = 50051
	DefaultHTTPPort            = 8080
	DefaultSnapshotTTL         = time.Hour
	DefaultHistoryLimit        = 1000
	DefaultMaintenanceSchedule = "@every 1h"
	DefaultRateWindow          = time.Minute
	DefaultRateLimitPerMinute  = 10
	DefaultNotifyTimeout       = 10 * time.Second
	DefaultPagerDutyEndpoint   = "https://events.pagerduty.com/v2/enqueue"
)

// Config is the top-level configuration file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Alerts AlertsConfig `yaml:"alerts"`
	Notify NotifyConfig `yaml:"notify"`
}

// ServerConfig holds listener, logging and authentication settings.
type ServerConfig struct {
	// GRPCPort is the port the snapshot receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API, /metrics and the event stream listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error (default info).
	LogLevel string `yaml:"log_level"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Snapshot controls retention of the last snapshot per repository.
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	return fromEnv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return strings.ToLower(a.Header)
	}
	return "x-api-key"
}

// SnapshotConfig controls how long the last snapshot of a repository is kept.
type SnapshotConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AlertsConfig holds the threshold catalogue, escalation policies and channels.
type AlertsConfig struct {
	Thresholds map[string]ThresholdConfig `yaml:"thresholds"`

	// SeverityPolicies maps a severity (critical|high|medium|low) to a policy name.
	SeverityPolicies map[string]string `yaml:"severity_policies"`

	Policies map[string]PolicyConfig  `yaml:"policies"`
	Channels map[string]ChannelConfig `yaml:"channels"`

	// HistoryLimit caps the alert history log kept by the sweeper (default 1000).
	HistoryLimit int `yaml:"history_limit"`

	// MaintenanceSchedule is a cron spec for the housekeeping sweep (default "@every 1h").
	MaintenanceSchedule string `yaml:"maintenance_schedule"`

	// RateWindow is the sliding window of the per-channel rate limiter (default 1m).
	RateWindow time.Duration `yaml:"rate_window"`
}

// ThresholdConfig is one monitored condition.
type ThresholdConfig struct {
	// Metric selects the extraction rule; defaults to the threshold name.
	Metric string `yaml:"metric"`

	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
	Low      float64 `yaml:"low"`

	// Direction is "gt" (breach when value > level) or "lt" (breach when value < level).
	Direction string `yaml:"direction"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`

	EvaluationPeriod time.Duration `yaml:"evaluation_period"`
	Description      string        `yaml:"description"`

	// EscalationPolicy overrides the severity mapping for this threshold when set.
	EscalationPolicy string `yaml:"escalation_policy"`
}

// IsEnabled reports whether the threshold is evaluated.
func (t ThresholdConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// PolicyConfig is an escalation policy.
type PolicyConfig struct {
	DisplayName      string        `yaml:"display_name"`
	Description      string        `yaml:"description"`
	Stages           []StageConfig `yaml:"stages"`
	AutoResolve      bool          `yaml:"auto_resolve"`
	AutoResolveAfter time.Duration `yaml:"auto_resolve_after"`

	// MaxEscalations is carried for reporting only; it does not stop stages.
	MaxEscalations int `yaml:"max_escalations"`
}

// StageConfig is one escalation stage. Delay is measured from alert creation,
// not from the previous stage.
type StageConfig struct {
	Delay       time.Duration `yaml:"delay"`
	Channels    []string      `yaml:"channels"`
	RequiresAck bool          `yaml:"requires_ack"`
}

// ChannelConfig is one notification channel.
type ChannelConfig struct {
	// Type is one of: slack | email | sms | pagerduty | webhook.
	Type string `yaml:"type"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`

	// RateLimitPerMinute caps sends per rate window. Omitted means
	// DefaultRateLimitPerMinute; an explicit 0 mutes the channel.
	RateLimitPerMinute *int `yaml:"rate_limit_per_minute"`

	// slack
	Channel       string `yaml:"channel,omitempty"`
	Mention       string `yaml:"mention,omitempty"`
	WebhookURLEnv string `yaml:"webhook_url_env,omitempty"`

	// email
	Recipients []string `yaml:"recipients,omitempty"`
	Priority   string   `yaml:"priority,omitempty"`

	// sms
	Numbers []string `yaml:"numbers,omitempty"`

	// sms provider name or pagerduty service name
	Service string `yaml:"service,omitempty"`

	// pagerduty
	RoutingKeyEnv string `yaml:"routing_key_env,omitempty"`

	// webhook
	URLEnv    string `yaml:"url_env,omitempty"`
	SecretEnv string `yaml:"secret_env,omitempty"`
}

// IsEnabled reports whether notifications may be sent to the channel.
func (c ChannelConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RateLimit returns the per-window send cap for the channel.
func (c ChannelConfig) RateLimit() int {
	if c.RateLimitPerMinute == nil {
		return DefaultRateLimitPerMinute
	}
	return *c.RateLimitPerMinute
}

// WebhookURL returns the Slack or generic webhook URL resolved from the environment.
func (c ChannelConfig) WebhookURL() string {
	if c.Type == "webhook" {
		return fromEnv(c.URLEnv)
	}
	return fromEnv(c.WebhookURLEnv)
}

// Secret returns the webhook signing secret resolved from the environment.
func (c ChannelConfig) Secret() string { return fromEnv(c.SecretEnv) }

// RoutingKey returns the PagerDuty routing key resolved from the environment.
func (c ChannelConfig) RoutingKey() string { return fromEnv(c.RoutingKeyEnv) }

// NotifyConfig selects and configures the delivery backends.
type NotifyConfig struct {
	// DryRun replaces every sender with one that only logs the notification.
	DryRun bool `yaml:"dry_run"`

	// Timeout bounds a single delivery attempt (default 10s).
	Timeout time.Duration `yaml:"timeout"`

	SMTP      SMTPConfig      `yaml:"smtp"`
	SMS       SMSConfig       `yaml:"sms"`
	PagerDuty PagerDutyConfig `yaml:"pagerduty"`
}

// SMTPConfig configures the email sender.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	From        string `yaml:"from"`
	UseTLS      bool   `yaml:"use_tls"`
}

// Password returns the SMTP password resolved from the environment.
func (s SMTPConfig) Password() string { return fromEnv(s.PasswordEnv) }

// SMSConfig configures the SMS gateway (Twilio-compatible messages API).
type SMSConfig struct {
	Endpoint     string `yaml:"endpoint"`
	AccountSID   string `yaml:"account_sid"`
	AuthTokenEnv string `yaml:"auth_token_env"`
	From         string `yaml:"from"`
}

// AuthToken returns the gateway token resolved from the environment.
func (s SMSConfig) AuthToken() string { return fromEnv(s.AuthTokenEnv) }

// PagerDutyConfig configures the PagerDuty Events API endpoint.
type PagerDutyConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation; catalogue entries
// present in the file replace the built-in entry with the same name.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML bytes the same way Load does.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config holding the built-in catalogue and server defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			LogLevel: "info",
			Snapshot: SnapshotConfig{TTL: DefaultSnapshotTTL},
		},
		Alerts: AlertsConfig{
			Thresholds:          defaultThresholds(),
			SeverityPolicies:    defaultSeverityPolicies(),
			Policies:            defaultPolicies(),
			Channels:            defaultChannels(),
			HistoryLimit:        DefaultHistoryLimit,
			MaintenanceSchedule: DefaultMaintenanceSchedule,
			RateWindow:          DefaultRateWindow,
		},
		Notify: NotifyConfig{
			Timeout:   DefaultNotifyTimeout,
			PagerDuty: PagerDutyConfig{Endpoint: DefaultPagerDutyEndpoint},
		},
	}
}

// applyDefaults fills values a file may have zeroed out.
func applyDefaults(cfg *Config) {
	for name, t := range cfg.Alerts.Thresholds {
		if t.Metric == "" {
			t.Metric = name
			cfg.Alerts.Thresholds[name] = t
		}
	}
	for name, c := range cfg.Alerts.Channels {
		if c.RateLimitPerMinute == nil {
			n := DefaultRateLimitPerMinute
			c.RateLimitPerMinute = &n
			cfg.Alerts.Channels[name] = c
		}
	}
	if cfg.Alerts.HistoryLimit == 0 {
		cfg.Alerts.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Alerts.MaintenanceSchedule == "" {
		cfg.Alerts.MaintenanceSchedule = DefaultMaintenanceSchedule
	}
	if cfg.Alerts.RateWindow == 0 {
		cfg.Alerts.RateWindow = DefaultRateWindow
	}
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = DefaultNotifyTimeout
	}
	if cfg.Notify.PagerDuty.Endpoint == "" {
		cfg.Notify.PagerDuty.Endpoint = DefaultPagerDutyEndpoint
	}
}

var (
	severities   = []string{"critical", "high", "medium", "low"}
	channelTypes = []string{"slack", "email", "sms", "pagerduty", "webhook"}
)

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.GRPCPort <= 0 || cfg.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.LogLevel {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", cfg.Server.LogLevel)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Snapshot.TTL < 0 {
		return fmt.Errorf("server.snapshot.ttl must not be negative")
	}

	a := cfg.Alerts
	for name, t := range a.Thresholds {
		if t.Direction != "gt" && t.Direction != "lt" {
			return fmt.Errorf("alerts.thresholds.%s.direction %q unknown: want gt|lt", name, t.Direction)
		}
		if t.EscalationPolicy != "" {
			if _, ok := a.Policies[t.EscalationPolicy]; !ok {
				return fmt.Errorf("alerts.thresholds.%s.escalation_policy %q is not defined", name, t.EscalationPolicy)
			}
		}
	}
	for sev := range a.SeverityPolicies {
		if !contains(severities, sev) {
			return fmt.Errorf("alerts.severity_policies: unknown severity %q", sev)
		}
	}
	for name, p := range a.Policies {
		for i, st := range p.Stages {
			if st.Delay < 0 {
				return fmt.Errorf("alerts.policies.%s.stages[%d].delay must not be negative", name, i)
			}
		}
		if p.AutoResolve && p.AutoResolveAfter <= 0 {
			return fmt.Errorf("alerts.policies.%s: auto_resolve requires a positive auto_resolve_after", name)
		}
	}
	for name, c := range a.Channels {
		if !contains(channelTypes, c.Type) {
			return fmt.Errorf("alerts.channels.%s.type %q unknown: want %s", name, c.Type, strings.Join(channelTypes, "|"))
		}
		if c.RateLimit() < 0 {
			return fmt.Errorf("alerts.channels.%s.rate_limit_per_minute must not be negative", name)
		}
	}
	if a.HistoryLimit < 0 {
		return fmt.Errorf("alerts.history_limit must not be negative")
	}
	if a.RateWindow < 0 {
		return fmt.Errorf("alerts.rate_window must not be negative")
	}
	if _, err := cron.ParseStandard(a.MaintenanceSchedule); err != nil {
		return fmt.Errorf("alerts.maintenance_schedule %q: %w", a.MaintenanceSchedule, err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func fromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
