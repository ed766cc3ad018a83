package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sonara-health/sonara/internal/insights"
	"github.com/sonara-health/sonara/internal/session"
	"github.com/sonara-health/sonara/pkg/store"
)

// defaultSearchLimit bounds semantic search results when the client
// does not ask for a specific count.
const defaultSearchLimit = 10

type commitSessionRequest struct {
	PatientID   string            `json:"patientId"`
	TherapyType string            `json:"therapyType"`
	Transcript  string            `json:"transcript"`
	Summary     string            `json:"summary"`
	Insights    insights.Insights `json:"insights"`
}

// handleCommitSession persists a reviewed session. On success the new
// record is also indexed for semantic search; indexing is best effort
// and never fails the commit. A failed save keeps the record retained
// for a later retry and reports its ID in the error details.
func (s *Server) handleCommitSession(w http.ResponseWriter, r *http.Request) {
	var req commitSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PatientID == "" || req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "patientId and transcript must not be empty", "")
		return
	}

	ctx := r.Context()
	rec, err := s.recorder.Commit(ctx, session.Draft{
		PatientID:   req.PatientID,
		TherapyType: req.TherapyType,
		Transcript:  req.Transcript,
		Summary:     req.Summary,
		Insights:    req.Insights,
	})
	if err != nil {
		s.metrics.RecordSessionSaved(ctx, "error")
		slog.Error("session save failed", "session", rec.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "session save failed", rec.ID)
		return
	}
	s.metrics.RecordSessionSaved(ctx, "ok")

	s.indexSession(ctx, rec)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   rec.ID,
		"date": rec.Date,
	})
}

// indexSession embeds the transcript and stores the vector. Failures
// only cost search coverage, so they are logged and swallowed.
func (s *Server) indexSession(ctx context.Context, rec store.SessionRecord) {
	if s.embedder == nil {
		return
	}

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, rec.Transcript)
	s.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Warn("session embedding failed", "session", rec.ID, "error", err)
		return
	}
	if err := s.store.IndexSessionEmbedding(ctx, rec.ID, vec); err != nil {
		slog.Warn("session embedding index failed", "session", rec.ID, "error", err)
	}
}

// handleRetrySave re-attempts a previously failed session save.
func (s *Server) handleRetrySave(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ctx := r.Context()
	if err := s.recorder.Retry(ctx, id); err != nil {
		if errors.Is(err, session.ErrSaveFailed) {
			s.metrics.RecordSessionSaved(ctx, "error")
			slog.Error("session save retry failed", "session", id, "error", err)
			writeError(w, http.StatusInternalServerError, "session save failed", id)
			return
		}
		writeError(w, http.StatusNotFound, "no pending save with that id", "")
		return
	}
	s.metrics.RecordSessionSaved(ctx, "ok")

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "saved"})
}

// handleListSessions returns a patient's saved sessions, most recent
// first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	patient := r.URL.Query().Get("patient")
	if patient == "" {
		writeError(w, http.StatusBadRequest, "patient query parameter required", "")
		return
	}

	sessions, err := s.store.ListSessionsByPatient(r.Context(), patient)
	if err != nil {
		slog.Error("session list failed", "patient", patient, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list sessions", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleGetSession returns a single saved session. Therapists may read
// any session; patients only their own.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found", "")
			return
		}
		slog.Error("session read failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not read session", "")
		return
	}

	claims, _ := claimsFrom(r.Context())
	if claims.Role == store.RolePatient && rec.PatientID != claims.Subject {
		writeError(w, http.StatusForbidden, "insufficient role", "")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleSearchSessions performs semantic search over indexed session
// transcripts. Requires an embeddings provider.
func (s *Server) handleSearchSessions(w http.ResponseWriter, r *http.Request) {
	if s.embedder == nil {
		writeError(w, http.StatusServiceUnavailable, "semantic search is not configured", "")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q query parameter required", "")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "")
			return
		}
		limit = n
	}

	ctx := r.Context()
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, query)
	s.metrics.EmbeddingDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Error("query embedding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed", "")
		return
	}

	matches, err := s.store.SearchSessions(ctx, vec, limit)
	if err != nil {
		slog.Error("session search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
