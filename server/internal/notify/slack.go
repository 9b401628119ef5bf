package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/repowatch/repowatch/server/internal/alerts"
)

// SlackSender posts to a Slack incoming webhook.
type SlackSender struct {
	poster
}

// NewSlackSender returns a sender using client.
func NewSlackSender(client *http.Client) *SlackSender {
	return &SlackSender{poster{client: client}}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

func (s *SlackSender) Send(ctx context.Context, ch Channel, a alerts.Alert, stage int) error {
	url := ch.Config.WebhookURL()
	if url == "" {
		return fmt.Errorf("slack: %w", errNotConfigured)
	}
	body, err := json.Marshal(slackPayload(ch, a, stage))
	if err != nil {
		return fmt.Errorf("slack: encode: %w", err)
	}
	if err := s.postJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

func slackPayload(ch Channel, a alerts.Alert, stage int) slackMessage {
	var b strings.Builder
	if ch.Config.Mention != "" {
		b.WriteString(ch.Config.Mention + " ")
	}
	fmt.Fprintf(&b, "%s *%s ALERT*", severityEmoji(a.Severity), strings.ToUpper(string(a.Severity)))
	if stage > 0 {
		fmt.Fprintf(&b, " (escalation stage %d)", stage+1)
	}
	b.WriteString("\n" + a.Message)

	return slackMessage{
		Channel: ch.Config.Channel,
		Text:    b.String(),
		Attachments: []slackAttachment{{
			Color: severityColor(a.Severity),
			Fields: []slackField{
				{Title: "Repository", Value: a.Repository, Short: true},
				{Title: "Check", Value: a.Type, Short: true},
				{Title: "Value", Value: strconv.FormatFloat(a.CurrentValue, 'f', -1, 64), Short: true},
				{Title: "Threshold", Value: strconv.FormatFloat(a.ThresholdValue, 'f', -1, 64), Short: true},
			},
		}},
	}
}
