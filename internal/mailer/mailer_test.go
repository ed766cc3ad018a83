package mailer

import (
	"net/smtp"
	"strings"
	"testing"
)

func TestSendVerificationMessage(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	m := NewSMTPMailer(SMTPConfig{
		Host:    "smtp.example.com",
		Port:    587,
		From:    "Sonara <no-reply@sonara.example>",
		BaseURL: "https://app.sonara.example/",
	})
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	if err := m.SendVerification("pat@example.com", "tok-123"); err != nil {
		t.Fatalf("SendVerification: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "Sonara <no-reply@sonara.example>" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "pat@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	// Trailing slash on the base URL must not double up in the link.
	if !strings.Contains(gotMsg, "https://app.sonara.example/verify?token=tok-123") {
		t.Errorf("message missing verification link:\n%s", gotMsg)
	}
	if !strings.Contains(gotMsg, "Subject: Verify your Sonara account") {
		t.Errorf("message missing subject:\n%s", gotMsg)
	}
}
