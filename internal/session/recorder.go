package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sonara-health/sonara/internal/insights"
	"github.com/sonara-health/sonara/pkg/store"
)

// ErrSaveFailed is returned by [Recorder.Commit] and [Recorder.Retry]
// when the store rejects the record. The record is retained in memory
// so the save can be retried without redoing transcription or analysis.
var ErrSaveFailed = errors.New("session: save failed")

// Draft is everything the clinician reviewed before committing.
type Draft struct {
	PatientID   string
	TherapyType string
	Transcript  string
	Summary     string
	Insights    insights.Insights
}

// Recorder commits reviewed sessions to the store. Each commit produces
// an immutable record with a fresh UUID; the record is persisted exactly
// once. All methods are safe for concurrent use.
type Recorder struct {
	store store.SessionStore
	now   func() time.Time

	mu      sync.Mutex
	pending map[string]store.SessionRecord
}

// RecorderOption customizes a [Recorder].
type RecorderOption func(*Recorder)

// WithClock overrides the timestamp source. Intended for tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder returns a Recorder persisting through st.
func NewRecorder(st store.SessionStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   st,
		now:     time.Now,
		pending: make(map[string]store.SessionRecord),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Commit builds an immutable record from draft and persists it. The
// returned record carries the generated ID and timestamp even when the
// save fails, so callers can surface it for a manual retry.
func (r *Recorder) Commit(ctx context.Context, draft Draft) (store.SessionRecord, error) {
	rec := store.SessionRecord{
		ID:           uuid.NewString(),
		PatientID:    draft.PatientID,
		TherapyType:  draft.TherapyType,
		Date:         r.now().UTC(),
		Transcript:   draft.Transcript,
		Summary:      draft.Summary,
		Sentiment:    draft.Insights.Sentiment,
		WordCloud:    draft.Insights.WordCloud,
		SpeakingTime: draft.Insights.SpeakingTime,
		Degraded:     draft.Insights.Degraded,
	}

	if err := r.store.SaveSession(ctx, rec); err != nil {
		r.mu.Lock()
		r.pending[rec.ID] = rec
		r.mu.Unlock()
		slog.Error("session save failed, retained for retry",
			"session_id", rec.ID, "patient_id", rec.PatientID, "error", err)
		return rec, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	slog.Info("session saved", "session_id", rec.ID, "patient_id", rec.PatientID)
	return rec, nil
}

// Retry re-attempts a save that previously failed. A store duplicate
// means an earlier attempt actually landed; that counts as success so
// the record is never written twice.
func (r *Recorder) Retry(ctx context.Context, id string) error {
	r.mu.Lock()
	rec, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no pending record %q", id)
	}

	err := r.store.SaveSession(ctx, rec)
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
	slog.Info("session save retried", "session_id", id)
	return nil
}

// Pending returns the IDs of records whose saves have failed and are
// awaiting a retry.
func (r *Recorder) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	return ids
}
