// Package mock provides an in-memory [mailer.Mailer] for tests.
package mock

import (
	"sync"

	"github.com/sonara-health/sonara/internal/mailer"
)

var _ mailer.Mailer = (*Mailer)(nil)

// Sent is one recorded verification email.
type Sent struct {
	To    string
	Token string
}

// Mailer records every send instead of delivering anything.
type Mailer struct {
	mu sync.Mutex

	// Err, when set, is returned by SendVerification.
	Err error

	sent []Sent
}

func (m *Mailer) SendVerification(to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, Sent{To: to, Token: token})
	return nil
}

// Sent returns a copy of all recorded emails.
func (m *Mailer) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.sent...)
}
