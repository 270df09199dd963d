// Package smtp delivers notifications as plain-text e-mail.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ImplicitTLS dials TLS directly (port 465) instead of upgrading with STARTTLS.
	ImplicitTLS bool
	Timeout     time.Duration
}

type Sender struct {
	cfg Config
}

func NewSender(cfg Config) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(ctx context.Context, recipient, subject, body string) error {
	msg, err := buildMessage(s.cfg.From, recipient, subject, body, time.Now())
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "build message", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if !s.cfg.ImplicitTLS {
		if err := smtp.SendMail(addr, auth, s.cfg.From, []string{recipient}, msg); err != nil {
			return domain.WrapError(domain.ErrTemporary, "smtp send", err)
		}
		return nil
	}
	if err := s.sendImplicitTLS(ctx, addr, auth, recipient, msg); err != nil {
		return domain.WrapError(domain.ErrTemporary, "smtp send", err)
	}
	return nil
}

func (s *Sender) sendImplicitTLS(ctx context.Context, addr string, auth smtp.Auth, recipient string, msg []byte) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.cfg.Timeout},
		Config:    &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string, now time.Time) ([]byte, error) {
	for _, v := range []string{from, to, subject} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, errors.New("header values must not contain line breaks")
		}
	}
	if to == "" {
		return nil, errors.New("recipient is required")
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String()), nil
}

// LogSender records notifications in the log instead of delivering them.
// It is used when no SMTP host is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, recipient, subject, body string) error {
	slog.Info("notification_logged", "recipient", recipient, "subject", subject, "body_bytes", len(body))
	return nil
}
