// Package mailer delivers transactional email such as password reset links.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// New returns an SMTP sender when a host is configured and a LogSender otherwise.
func New(cfg SMTPConfig) Sender {
	if cfg.Host == "" {
		slog.Warn("smtp not configured, emails will only be logged")
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender sends mail through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, compose(s.cfg.From, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	slog.Debug("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// compose renders the RFC 5322 message. Header values are stripped of line
// breaks to prevent header injection.
func compose(from string, msg Message) []byte {
	clean := strings.NewReplacer("\r", "", "\n", "")
	var b strings.Builder
	b.WriteString("From: " + clean.Replace(from) + "\r\n")
	b.WriteString("To: " + clean.Replace(msg.To) + "\r\n")
	b.WriteString("Subject: " + clean.Replace(msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	slog.Info("email not sent (smtp disabled)", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
