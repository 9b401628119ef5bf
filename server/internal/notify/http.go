package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/repowatch/repowatch/server/internal/alerts"
)

type poster struct {
	client *http.Client
}

func (p poster) do(req *http.Request) error {
	client := p.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (p poster) postJSON(ctx context.Context, url string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req)
}

func severityLabel(s alerts.Severity) string {
	return "[" + strings.ToUpper(string(s)) + "]"
}

func severityEmoji(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return ":rotating_light:"
	case alerts.SeverityHigh:
		return ":warning:"
	case alerts.SeverityMedium:
		return ":zap:"
	default:
		return ":information_source:"
	}
}

func severityColor(s alerts.Severity) string {
	switch s {
	case alerts.SeverityCritical:
		return "#FF4F6A"
	case alerts.SeverityHigh:
		return "#FFAB40"
	case alerts.SeverityMedium:
		return "#FFD740"
	default:
		return "#00D4FF"
	}
}
