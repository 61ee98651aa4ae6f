// Package mail sends account lifecycle email. The default implementation
// logs instead of sending, which keeps development and tests free of SMTP.
package mail

import (
	"fmt"
	"net/smtp"

	"github.com/nodevault/custody-service/pkg/logger"
)

// Sender delivers account email. Implementations must be safe for
// concurrent use.
type Sender interface {
	SendVerification(to, name, token string) error
	SendPasswordReset(to, name, token string) error
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host    string `env:"SMTP_HOST"`
	Port    int    `env:"SMTP_PORT,default=587"`
	User    string `env:"SMTP_USER"`
	Pass    string `env:"SMTP_PASS"`
	From    string `env:"SMTP_FROM,default=no-reply@nodevault.io"`
	BaseURL string `env:"APP_BASE_URL,default=http://localhost:8080"`
}

// SMTPSender sends mail through a plain-auth SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTP creates a sender for the given relay.
func NewSMTP(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) SendVerification(to, name, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.BaseURL, token)
	body := fmt.Sprintf("Hi %s,\r\n\r\nPlease verify your email address:\r\n%s\r\n", name, link)
	return s.send(to, "Verify your email", body)
}

func (s *SMTPSender) SendPasswordReset(to, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.BaseURL, token)
	body := fmt.Sprintf("Hi %s,\r\n\r\nReset your password using the link below:\r\n%s\r\n", name, link)
	return s.send(to, "Reset your password", body)
}

func (s *SMTPSender) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.cfg.From, to, subject, body)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender writes the would-be mail to the log. Used when no SMTP relay is
// configured.
type LogSender struct {
	log *logger.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender creates a sender that only logs.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendVerification(to, name, token string) error {
	s.log.WithFields(map[string]interface{}{"to": to, "token": token}).
		Info("verification mail (logging sender)")
	return nil
}

func (s *LogSender) SendPasswordReset(to, name, token string) error {
	s.log.WithFields(map[string]interface{}{"to": to, "token": token}).
		Info("password reset mail (logging sender)")
	return nil
}
