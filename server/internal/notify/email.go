package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/repowatch/repowatch/server/internal/alerts"
	"github.com/repowatch/repowatch/server/internal/config"
)

// EmailSender delivers plain-text mail over SMTP.
type EmailSender struct {
	cfg     config.SMTPConfig
	timeout time.Duration
	now     func() time.Time
}

// NewEmailSender returns a sender for the configured relay.
func NewEmailSender(cfg config.SMTPConfig, timeout time.Duration) *EmailSender {
	if timeout <= 0 {
		timeout = config.DefaultNotifyTimeout
	}
	return &EmailSender{cfg: cfg, timeout: timeout, now: time.Now}
}

func (s *EmailSender) Send(ctx context.Context, ch Channel, a alerts.Alert, stage int) error {
	to := cleanRecipients(ch.Config.Recipients)
	if s.cfg.Host == "" || s.cfg.Port <= 0 || s.cfg.From == "" || len(to) == 0 {
		return fmt.Errorf("email: %w", errNotConfigured)
	}
	msg := buildEmail(s.cfg.From, to, ch.Config.Priority, a, stage, s.now())
	if err := s.deliver(ctx, to, msg); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func (s *EmailSender) deliver(ctx context.Context, to []string, msg string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Port 465 speaks TLS from the first byte; others upgrade with STARTTLS.
	implicitTLS := s.cfg.UseTLS && s.cfg.Port == 465
	var client *smtp.Client
	if implicitTLS {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: s.cfg.Host})
		if err := tlsConn.Handshake(); err != nil {
			_ = conn.Close()
			return fmt.Errorf("smtp tls handshake: %w", err)
		}
		client, err = smtp.NewClient(tlsConn, s.cfg.Host)
	} else {
		client, err = smtp.NewClient(conn, s.cfg.Host)
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if s.cfg.UseTLS && !implicitTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server does not support STARTTLS")
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if s.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return fmt.Errorf("smtp server does not support AUTH")
		}
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password(), s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	// The message is accepted once DATA closes; a failed QUIT is not an error.
	_ = client.Quit()
	return nil
}

func buildEmail(from string, to []string, priority string, a alerts.Alert, stage int, now time.Time) string {
	subject := fmt.Sprintf("%s %s in %s", severityLabel(a.Severity), a.Type, a.Repository)
	if stage > 0 {
		subject += fmt.Sprintf(" (escalation stage %d)", stage+1)
	}
	subject = strings.NewReplacer("\r", "", "\n", "").Replace(subject)

	headers := []string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"Date: " + now.Format(time.RFC1123Z),
		"X-Priority: " + xPriority(priority),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
	}

	lines := []string{
		a.Message,
		"",
		"Repository: " + a.Repository,
		"Check:      " + a.Type,
		"Severity:   " + string(a.Severity),
		"Value:      " + strconv.FormatFloat(a.CurrentValue, 'f', -1, 64),
		"Threshold:  " + strconv.FormatFloat(a.ThresholdValue, 'f', -1, 64),
		"Policy:     " + a.EscalationPolicy,
		"Alert ID:   " + a.ID,
		"Created:    " + a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.Description != "" {
		lines = append(lines, "", a.Description)
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + strings.Join(lines, "\r\n") + "\r\n"
}

func xPriority(p string) string {
	switch p {
	case "urgent", "high":
		return "1"
	case "low":
		return "5"
	default:
		return "3"
	}
}

func cleanRecipients(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
