package notify

import (
	"context"
	"log/slog"

	"github.com/repowatch/repowatch/server/internal/alerts"
)

// LogSender logs the notification instead of delivering it.
type LogSender struct{}

func (LogSender) Send(_ context.Context, ch Channel, a alerts.Alert, stage int) error {
	slog.Info("notify: dry run",
		"channel", ch.Name,
		"type", ch.Type,
		"alert", a.ID,
		"severity", a.Severity,
		"stage", stage,
		"message", a.Message,
	)
	return nil
}
