// Package mock provides an in-memory [store.Store] for tests.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sonara-health/sonara/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Store is a thread-safe in-memory implementation of [store.Store].
// The zero value is not usable; construct with [New].
type Store struct {
	mu         sync.Mutex
	sessions   map[string]store.SessionRecord
	embeddings map[string][]float32
	users      map[string]store.User
	tokens     map[string]verification

	// SaveErr, when set, is returned by SaveSession. Other error hooks
	// follow the same pattern.
	SaveErr   error
	SearchErr error
}

type verification struct {
	email  string
	expiry time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions:   make(map[string]store.SessionRecord),
		embeddings: make(map[string][]float32),
		users:      make(map[string]store.User),
		tokens:     make(map[string]verification),
	}
}

func (s *Store) SaveSession(_ context.Context, rec store.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if _, ok := s.sessions[rec.ID]; ok {
		return store.ErrDuplicate
	}
	s.sessions[rec.ID] = rec
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (store.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return store.SessionRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *Store) ListSessionsByPatient(_ context.Context, patientID string) ([]store.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.SessionRecord
	for _, rec := range s.sessions {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *Store) IndexSessionEmbedding(_ context.Context, id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return store.ErrNotFound
	}
	s.embeddings[id] = append([]float32(nil), embedding...)
	return nil
}

// SearchSessions ranks indexed sessions by cosine distance to the query
// embedding, matching the ordering of the PostgreSQL implementation.
func (s *Store) SearchSessions(_ context.Context, embedding []float32, limit int) ([]store.SessionMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	var out []store.SessionMatch
	for id, vec := range s.embeddings {
		out = append(out, store.SessionMatch{
			Session:  s.sessions[id],
			Distance: cosineDistance(embedding, vec),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (s *Store) CreateUser(_ context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return store.ErrDuplicate
	}
	s.users[u.Email] = u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) CreateVerificationToken(_ context.Context, email, token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, v := range s.tokens {
		if v.email == email {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = verification{email: email, expiry: expiry}
	return nil
}

func (s *Store) ConsumeVerificationToken(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tokens[token]
	if !ok || time.Now().After(v.expiry) {
		return "", store.ErrNotFound
	}
	delete(s.tokens, token)
	u, ok := s.users[v.email]
	if !ok {
		return "", store.ErrNotFound
	}
	u.Verified = true
	s.users[v.email] = u
	return v.email, nil
}

// SessionCount reports how many sessions have been saved.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
