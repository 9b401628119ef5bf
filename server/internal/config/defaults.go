package config

import "time"

func defaultThresholds() map[string]ThresholdConfig {
	return map[string]ThresholdConfig{
		"workflow_success_rate": {
			Metric: "workflow_success_rate", Direction: "lt",
			Critical: 70, High: 80, Medium: 90, Low: 95,
			EvaluationPeriod: time.Hour,
			Description:      "GitHub Actions workflow success rate monitoring",
		},
		"stale_issues": {
			Metric: "stale_issues", Direction: "gt",
			Critical: 50, High: 25, Medium: 15, Low: 10,
			EvaluationPeriod: 24 * time.Hour,
			Description:      "Stale issue accumulation monitoring",
		},
		"security_vulnerabilities": {
			Metric: "security_vulnerabilities", Direction: "gt",
			Critical: 1, High: 3, Medium: 5, Low: 10,
			EvaluationPeriod: time.Hour,
			Description:      "Security vulnerability detection",
		},
		"api_response_time": {
			Metric: "api_response_time", Direction: "gt",
			Critical: 5000, High: 3000, Medium: 2000, Low: 1000,
			EvaluationPeriod: 30 * time.Minute,
			Description:      "GitHub API response time monitoring",
		},
		"rate_limit_usage": {
			Metric: "rate_limit_usage", Direction: "gt",
			Critical: 95, High: 85, Medium: 75, Low: 65,
			EvaluationPeriod: 15 * time.Minute,
			Description:      "GitHub API rate limit usage monitoring",
		},
		"pr_review_coverage": {
			Metric: "pr_review_coverage", Direction: "lt",
			Critical: 20, High: 40, Medium: 60, Low: 80,
			EvaluationPeriod: 24 * time.Hour,
			Description:      "Pull request review coverage monitoring",
		},
		"deployment_failure_rate": {
			Metric: "deployment_failure_rate", Direction: "gt",
			Critical: 50, High: 30, Medium: 20, Low: 10,
			EvaluationPeriod: 2 * time.Hour,
			Description:      "Deployment failure rate monitoring",
		},
	}
}

func defaultSeverityPolicies() map[string]string {
	return map[string]string{
		"critical": "immediate",
		"high":     "standard",
		"medium":   "standard",
		"low":      "low_priority",
	}
}

func defaultPolicies() map[string]PolicyConfig {
	return map[string]PolicyConfig{
		"immediate": {
			DisplayName: "Immediate Response",
			Description: "Critical issues requiring immediate attention",
			Stages: []StageConfig{
				{Delay: 0, Channels: []string{"slack-critical", "email-oncall"}},
				{Delay: 5 * time.Minute, Channels: []string{"sms-oncall", "pagerduty"}, RequiresAck: true},
				{Delay: 15 * time.Minute, Channels: []string{"slack-management", "email-management"}, RequiresAck: true},
			},
			MaxEscalations: 3,
		},
		"standard": {
			DisplayName: "Standard Response",
			Description: "High/medium priority issues with standard escalation",
			Stages: []StageConfig{
				{Delay: 0, Channels: []string{"slack-alerts"}},
				{Delay: 30 * time.Minute, Channels: []string{"email-team"}, RequiresAck: true},
				{Delay: 2 * time.Hour, Channels: []string{"slack-management"}, RequiresAck: true},
			},
			AutoResolve:      true,
			AutoResolveAfter: 24 * time.Hour,
			MaxEscalations:   2,
		},
		"low_priority": {
			DisplayName: "Low Priority",
			Description: "Low priority issues with minimal escalation",
			Stages: []StageConfig{
				{Delay: 0, Channels: []string{"slack-alerts"}},
				{Delay: 24 * time.Hour, Channels: []string{"email-daily-summary"}},
			},
			AutoResolve:      true,
			AutoResolveAfter: 7 * 24 * time.Hour,
			MaxEscalations:   1,
		},
		"security": {
			DisplayName: "Security Incident",
			Description: "Security-related issues with specialized routing",
			Stages: []StageConfig{
				{Delay: 0, Channels: []string{"slack-security", "email-security-team"}},
				{Delay: 10 * time.Minute, Channels: []string{"sms-security-lead", "pagerduty-security"}, RequiresAck: true},
				{Delay: 30 * time.Minute, Channels: []string{"email-ciso", "slack-leadership"}, RequiresAck: true},
			},
			MaxEscalations: 3,
		},
	}
}

func perMinute(n int) *int { return &n }

func defaultChannels() map[string]ChannelConfig {
	off := false
	return map[string]ChannelConfig{
		"slack-critical": {
			Type: "slack", Channel: "#critical-alerts", Mention: "@channel",
			WebhookURLEnv: "SLACK_WEBHOOK_URL", RateLimitPerMinute: perMinute(5),
		},
		"slack-alerts": {
			Type: "slack", Channel: "#github-alerts",
			WebhookURLEnv: "SLACK_WEBHOOK_URL", RateLimitPerMinute: perMinute(10),
		},
		"slack-security": {
			Type: "slack", Channel: "#security-alerts", Mention: "@security-team",
			WebhookURLEnv: "SLACK_WEBHOOK_URL", RateLimitPerMinute: perMinute(3),
		},
		"slack-management": {
			Type: "slack", Channel: "#management", Mention: "@managers",
			WebhookURLEnv: "SLACK_WEBHOOK_URL", RateLimitPerMinute: perMinute(2),
		},
		"email-oncall": {
			Type: "email", Recipients: []string{"oncall@company.com"}, Priority: "high",
			RateLimitPerMinute: perMinute(3),
		},
		"email-team": {
			Type: "email", Recipients: []string{"dev-team@company.com"}, Priority: "normal",
			RateLimitPerMinute: perMinute(5),
		},
		"email-security-team": {
			Type: "email", Recipients: []string{"security@company.com"}, Priority: "urgent",
			RateLimitPerMinute: perMinute(2),
		},
		"sms-oncall": {
			Type: "sms", Service: "twilio", Enabled: &off, RateLimitPerMinute: perMinute(1),
		},
		"pagerduty": {
			Type: "pagerduty", RoutingKeyEnv: "PAGERDUTY_ROUTING_KEY", Enabled: &off, RateLimitPerMinute: perMinute(2),
		},
		"webhook": {
			Type: "webhook", URLEnv: "ALERT_WEBHOOK_URL", SecretEnv: "ALERT_WEBHOOK_SECRET",
			Enabled: &off, RateLimitPerMinute: perMinute(10),
		},
	}
}
