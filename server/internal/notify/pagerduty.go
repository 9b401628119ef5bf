package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/config"
)

// PagerDutySender triggers incidents through the Events API v2.
type PagerDutySender struct {
	poster
	endpoint string
}

// NewPagerDutySender returns a sender posting to endpoint.
func NewPagerDutySender(client *http.Client, endpoint string) *PagerDutySender {
	if endpoint == "" {
		endpoint = config.DefaultPagerDutyEndpoint
	}
	return &PagerDutySender{poster: poster{client: client}, endpoint: endpoint}
}

type pdEvent struct {
	RoutingKey  string    `json:"routing_key"`
	EventAction string    `json:"event_action"`
	DedupKey    string    `json:"dedup_key"`
	Payload     pdPayload `json:"payload"`
}

type pdPayload struct {
	Summary       string         `json:"summary"`
	Source        string         `json:"source"`
	Severity      string         `json:"severity"`
	Component     string         `json:"component,omitempty"`
	Group         string         `json:"group,omitempty"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

func (p *PagerDutySender) Send(ctx context.Context, ch Channel, a alerts.Alert, stage int) error {
	key := ch.Config.RoutingKey()
	if key == "" {
		return fmt.Errorf("pagerduty: %w", errNotConfigured)
	}
	body, err := json.Marshal(pdEvent{
		RoutingKey:  key,
		EventAction: "trigger",
		// One incident per alert key; later stages update it.
		DedupKey: a.Key().String(),
		Payload: pdPayload{
			Summary:   a.Message,
			Source:    a.Repository,
			Severity:  pdSeverity(a.Severity),
			Component: a.Type,
			Group:     ch.Config.Service,
			CustomDetails: map[string]any{
				"alert_id":        a.ID,
				"current_value":   a.CurrentValue,
				"threshold_value": a.ThresholdValue,
				"stage":           stage + 1,
				"policy":          a.EscalationPolicy,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("pagerduty: encode: %w", err)
	}
	if err := p.postJSON(ctx, p.endpoint, body, nil); err != nil {
		return fmt.Errorf("pagerduty: %w", err)
	}
	return nil
}

func pdSeverity(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "critical"
	case alerts.SeverityHigh:
		return "error"
	case alerts.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}
