package mail

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
)

// Mailer sends HTML mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string
}

// SMTPConfigFromEnv reads SMTP_* settings.
func SMTPConfigFromEnv() SMTPConfig {
	cfg := SMTPConfig{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     env.GetEnv("SMTP_PORT", "587"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   env.GetEnv("SMTP_SENDER", ""),
	}
	if cfg.Sender == "" {
		cfg.Sender = fmt.Sprintf("no-reply@%s", env.BaseDomain())
		logger.L().Warn("SMTP_SENDER not set, using default sender", zap.String("sender", cfg.Sender))
	}
	return cfg
}

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	msg := BuildMessage(m.cfg.Sender, to, subject, htmlBody)

	err := smtp.SendMail(addr, auth, m.cfg.Sender, []string{to}, msg)
	if err != nil {
		logger.L().Error("smtp send failed", zap.String("to", to), zap.String("addr", addr), zap.Error(err))
		return fmt.Errorf("send mail: %w", err)
	}
	logger.L().Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// BuildMessage renders the RFC 5322 message sent over SMTP. Header values are
// folded onto one line and the subject is Q-encoded.
func BuildMessage(from, to, subject, htmlBody string) []byte {
	subject = mime.QEncoding.Encode("utf-8", headerValue(subject))
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", headerValue(from), headerValue(to), subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody,
	)
}

// headerValue replaces control characters so a value cannot start a new header.
func headerValue(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// LogMailer logs mail instead of sending it. Used in development when no
// SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger.L().Info("mail not sent, no SMTP host configured",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", htmlBody))
	return nil
}

// NewFromEnv returns an SMTP mailer, or a LogMailer when SMTP_HOST is empty.
func NewFromEnv() Mailer {
	cfg := SMTPConfigFromEnv()
	if cfg.Host == "" {
		return LogMailer{}
	}
	return NewSMTPMailer(cfg)
}
