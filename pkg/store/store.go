// Package store defines the persistence interfaces for Sonara: saved
// therapy sessions (with optional semantic search over transcript
// embeddings) and clinician/patient user accounts.
//
// Implementations live in subpackages; [github.com/sonara-health/sonara/pkg/store/postgres]
// is the production PostgreSQL implementation and
// [github.com/sonara-health/sonara/pkg/store/mock] backs tests.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookup methods when no record matches.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a unique constraint would be violated,
// e.g. registering an email that already has an account.
var ErrDuplicate = errors.New("store: duplicate")

// SessionRecord is one saved therapy session. Records are written once
// and never updated; the insight fields mirror what the review screen
// showed when the clinician committed the session.
type SessionRecord struct {
	ID          string
	PatientID   string
	TherapyType string
	Date        time.Time
	Transcript  string
	Summary     string

	Sentiment    string
	WordCloud    []string
	SpeakingTime map[string]int
	Degraded     []string
}

// SessionMatch is one semantic search hit: a saved session plus the
// cosine distance between its transcript embedding and the query.
type SessionMatch struct {
	Session  SessionRecord
	Distance float64
}

// SessionStore persists committed sessions and answers patient-scoped
// and semantic queries over them.
type SessionStore interface {
	// SaveSession inserts rec. The record is immutable once written;
	// saving an ID that already exists returns ErrDuplicate.
	SaveSession(ctx context.Context, rec SessionRecord) error

	// GetSession returns the session with the given ID, or ErrNotFound.
	GetSession(ctx context.Context, id string) (SessionRecord, error)

	// ListSessionsByPatient returns all sessions for patientID,
	// most recent first.
	ListSessionsByPatient(ctx context.Context, patientID string) ([]SessionRecord, error)

	// IndexSessionEmbedding attaches a transcript embedding to an
	// already-saved session so it becomes semantically searchable.
	IndexSessionEmbedding(ctx context.Context, id string, embedding []float32) error

	// SearchSessions returns up to limit indexed sessions ordered by
	// ascending cosine distance to the query embedding.
	SearchSessions(ctx context.Context, embedding []float32, limit int) ([]SessionMatch, error)
}

// Role is an account role as enforced by the HTTP layer.
type Role string

const (
	RoleTherapist Role = "therapist"
	RolePatient   Role = "patient"
)

// User is one account. The password is stored only as a bcrypt hash.
type User struct {
	Email        string
	PasswordHash string
	DisplayName  string
	Role         Role
	Verified     bool
	CreatedAt    time.Time
}

// UserStore persists accounts and their email verification tokens.
type UserStore interface {
	// CreateUser inserts u; ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, u User) error

	// GetUserByEmail returns the account for email, or ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// CreateVerificationToken records token for email, replacing any
	// previous token, valid until expiry.
	CreateVerificationToken(ctx context.Context, email, token string, expiry time.Time) error

	// ConsumeVerificationToken marks the account behind token as
	// verified and invalidates the token. Unknown or expired tokens
	// return ErrNotFound.
	ConsumeVerificationToken(ctx context.Context, token string) (email string, err error)
}

// Store bundles both persistence concerns behind one value so the
// application can be wired against a single dependency.
type Store interface {
	SessionStore
	UserStore
}
