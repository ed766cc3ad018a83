package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sonara-health/sonara/internal/insights"
	storemock "github.com/sonara-health/sonara/pkg/store/mock"
)

func TestStateMachineHappyPath(t *testing.T) {
	s := NewSession("s-1")
	if s.State() != StateRecording {
		t.Fatalf("initial state = %s, want %s", s.State(), StateRecording)
	}
	for _, to := range []State{StateProcessing, StateReview, StateSaved} {
		if err := s.Transition(to); err != nil {
			t.Fatalf("Transition(%s): %v", to, err)
		}
	}
	if s.State() != StateSaved {
		t.Errorf("final state = %s", s.State())
	}
}

func TestStateMachineRejectsSkips(t *testing.T) {
	tests := []struct {
		name string
		from []State // transitions applied before the attempt
		to   State
	}{
		{"recording to review", nil, StateReview},
		{"recording to saved", nil, StateSaved},
		{"processing to saved", []State{StateProcessing}, StateSaved},
		{"saved is terminal", []State{StateProcessing, StateReview, StateSaved}, StateErrored},
		{"saved cannot re-record", []State{StateProcessing, StateReview, StateSaved}, StateRecording},
		{"processing cannot re-record", []State{StateProcessing}, StateRecording},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s-1")
			for _, to := range tt.from {
				if err := s.Transition(to); err != nil {
					t.Fatalf("setup Transition(%s): %v", to, err)
				}
			}
			if err := s.Transition(tt.to); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition(%s) err = %v, want ErrInvalidTransition", tt.to, err)
			}
		})
	}
}

func TestErroredSessionCanStillSave(t *testing.T) {
	s := NewSession("s-1")
	mustTransition(t, s, StateProcessing, StateReview, StateErrored)
	if err := s.Transition(StateSaved); err != nil {
		t.Fatalf("Transition(saved) after errored: %v", err)
	}
}

func TestDiscardReturnsToRecording(t *testing.T) {
	tests := []struct {
		name string
		from []State
	}{
		{"from review", []State{StateProcessing, StateReview}},
		{"from errored", []State{StateProcessing, StateErrored}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s-1")
			mustTransition(t, s, tt.from...)
			if err := s.Transition(StateRecording); err != nil {
				t.Fatalf("Transition(recording): %v", err)
			}
			// A fresh take goes through the whole pipeline again.
			mustTransition(t, s, StateProcessing, StateReview, StateSaved)
		})
	}
}

func mustTransition(t *testing.T, s *Session, states ...State) {
	t.Helper()
	for _, to := range states {
		if err := s.Transition(to); err != nil {
			t.Fatalf("Transition(%s): %v", to, err)
		}
	}
}

func sampleDraft() Draft {
	return Draft{
		PatientID:   "patient-1",
		TherapyType: "CBT",
		Transcript:  "how are you feeling today",
		Summary:     "Patient discussed recent progress.",
		Insights: insights.Insights{
			Sentiment:    "Hopeful",
			WordCloud:    []string{"feeling", "today"},
			SpeakingTime: map[string]int{"Therapist": 30, "Patient": 70},
		},
	}
}

func TestCommitPersistsOnce(t *testing.T) {
	st := storemock.New()
	fixed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rec := NewRecorder(st, WithClock(func() time.Time { return fixed }))

	got, err := rec.Commit(context.Background(), sampleDraft())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got.ID == "" {
		t.Fatal("record has no ID")
	}
	if !got.Date.Equal(fixed) {
		t.Errorf("date = %v, want %v", got.Date, fixed)
	}
	if st.SessionCount() != 1 {
		t.Errorf("session count = %d, want 1", st.SessionCount())
	}

	stored, err := st.GetSession(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored.Sentiment != "Hopeful" || stored.SpeakingTime["Patient"] != 70 {
		t.Errorf("stored record = %+v", stored)
	}
	if len(rec.Pending()) != 0 {
		t.Errorf("pending = %v, want none", rec.Pending())
	}
}

func TestCommitGeneratesFreshIDs(t *testing.T) {
	st := storemock.New()
	rec := NewRecorder(st)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		got, err := rec.Commit(context.Background(), sampleDraft())
		if err != nil {
			t.Fatalf("Commit %d: %v", i, err)
		}
		if seen[got.ID] {
			t.Fatalf("duplicate ID %q", got.ID)
		}
		seen[got.ID] = true
	}
}

func TestCommitFailureRetainsRecord(t *testing.T) {
	st := storemock.New()
	st.SaveErr = errors.New("connection refused")
	rec := NewRecorder(st)

	got, err := rec.Commit(context.Background(), sampleDraft())
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("err = %v, want ErrSaveFailed", err)
	}
	if got.ID == "" {
		t.Fatal("failed commit should still return the built record")
	}
	if pending := rec.Pending(); len(pending) != 1 || pending[0] != got.ID {
		t.Errorf("pending = %v, want [%s]", pending, got.ID)
	}

	// Store recovers; manual retry lands the record.
	st.SaveErr = nil
	if err := rec.Retry(context.Background(), got.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if st.SessionCount() != 1 {
		t.Errorf("session count = %d, want 1", st.SessionCount())
	}
	if len(rec.Pending()) != 0 {
		t.Errorf("pending after retry = %v", rec.Pending())
	}
}

func TestRetryTreatsDuplicateAsSuccess(t *testing.T) {
	st := storemock.New()
	rec := NewRecorder(st)

	got, err := rec.Commit(context.Background(), sampleDraft())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	// Simulate the ack being lost: the record is in the store but the
	// recorder believes it failed.
	rec.mu.Lock()
	rec.pending[got.ID] = got
	rec.mu.Unlock()

	if err := rec.Retry(context.Background(), got.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if st.SessionCount() != 1 {
		t.Errorf("session count = %d, want exactly 1", st.SessionCount())
	}
}

func TestRetryUnknownID(t *testing.T) {
	rec := NewRecorder(storemock.New())
	if err := rec.Retry(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown pending ID")
	}
}
