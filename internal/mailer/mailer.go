// Package mailer sends account verification emails over SMTP.
package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers outbound mail for Sonara. Implementations must be
// safe for concurrent use.
type Mailer interface {
	// SendVerification emails a verification link containing token to
	// the given address.
	SendVerification(to, token string) error
}

// SMTPConfig configures an [SMTPMailer].
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the sender address, e.g. "Sonara <no-reply@sonara.example>".
	From string

	// BaseURL is the public URL of the web app; the verification link
	// is BaseURL + "/verify?token=...".
	BaseURL string
}

// SMTPMailer sends mail through a plain-auth SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig

	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer returns a mailer using cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// SendVerification implements [Mailer].
func (m *SMTPMailer) SendVerification(to, token string) error {
	link := strings.TrimRight(m.cfg.BaseURL, "/") + "/verify?token=" + token

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Verify your Sonara account\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString("Welcome to Sonara.\r\n\r\n")
	b.WriteString("Open the link below to verify your email address:\r\n\r\n")
	b.WriteString(link + "\r\n\r\n")
	b.WriteString("If you did not create this account you can ignore this email.\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("mailer: send verification: %w", err)
	}
	slog.Info("verification email sent", "to", to)
	return nil
}
