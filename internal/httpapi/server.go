// Package httpapi exposes the Sonara pipeline over HTTP: recording
// upload and transcription, insight extraction, session commit and
// retrieval, semantic search, live capture over WebSocket, and account
// endpoints. All request and response bodies are JSON except the
// multipart recording upload.
//
// Errors are returned as {"error": "...", "details": "..."} with the
// details field omitted when there is nothing useful to add.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sonara-health/sonara/internal/auth"
	"github.com/sonara-health/sonara/internal/health"
	"github.com/sonara-health/sonara/internal/insights"
	"github.com/sonara-health/sonara/internal/mailer"
	"github.com/sonara-health/sonara/internal/observe"
	"github.com/sonara-health/sonara/internal/session"
	"github.com/sonara-health/sonara/internal/transcribe"
	"github.com/sonara-health/sonara/pkg/audio"
	"github.com/sonara-health/sonara/pkg/provider/analysis"
	"github.com/sonara-health/sonara/pkg/provider/embeddings"
	"github.com/sonara-health/sonara/pkg/store"
)

// DefaultMaxUploadBytes caps recording uploads at 25 MiB, matching the
// largest request the STT providers accept.
const DefaultMaxUploadBytes = 25 << 20

// Server holds the wired pipeline and serves the HTTP API.
type Server struct {
	normalizer  *audio.Normalizer
	transcriber *transcribe.Client
	extractor   *insights.Extractor
	embedder    embeddings.Provider
	recorder    *session.Recorder
	store       store.Store
	signer      *auth.TokenSigner
	mailer      mailer.Mailer
	metrics     *observe.Metrics
	health      *health.Handler

	maxUploadBytes int64
}

// Deps carries the collaborators a [Server] needs. Normalizer,
// Transcriber, Extractor, Recorder, Store and Signer are required;
// the rest degrade gracefully when nil.
type Deps struct {
	Normalizer  *audio.Normalizer
	Transcriber *transcribe.Client
	Extractor   *insights.Extractor
	Embedder    embeddings.Provider
	Recorder    *session.Recorder
	Store       store.Store
	Signer      *auth.TokenSigner
	Mailer      mailer.Mailer
	Metrics     *observe.Metrics
	Health      *health.Handler

	// MaxUploadBytes overrides [DefaultMaxUploadBytes] when positive.
	MaxUploadBytes int64
}

// NewServer builds a Server from deps.
func NewServer(deps Deps) *Server {
	s := &Server{
		normalizer:     deps.Normalizer,
		transcriber:    deps.Transcriber,
		extractor:      deps.Extractor,
		embedder:       deps.Embedder,
		recorder:       deps.Recorder,
		store:          deps.Store,
		signer:         deps.Signer,
		mailer:         deps.Mailer,
		metrics:        deps.Metrics,
		health:         deps.Health,
		maxUploadBytes: deps.MaxUploadBytes,
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = DefaultMaxUploadBytes
	}
	return s
}

// Routes returns the full handler tree with observability middleware
// applied to the API surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Account endpoints. Register and login are unauthenticated by
	// nature; verify carries its proof in the token query parameter.
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/auth/verify", s.handleVerify)

	// Pipeline endpoints, therapist only.
	therapist := func(h http.HandlerFunc) http.Handler {
		return s.requireRole(store.RoleTherapist, h)
	}
	mux.Handle("POST /api/transcribe", therapist(s.handleTranscribe))
	mux.Handle("POST /api/insights", therapist(s.handleInsights))
	mux.Handle("POST /api/summarize", therapist(s.handleSummarize))
	mux.Handle("POST /api/translate", therapist(s.handleTranslate))
	mux.Handle("POST /api/sessions", therapist(s.handleCommitSession))
	mux.Handle("POST /api/sessions/{id}/retry", therapist(s.handleRetrySave))
	mux.Handle("GET /api/sessions", therapist(s.handleListSessions))
	mux.Handle("GET /api/sessions/search", therapist(s.handleSearchSessions))
	mux.Handle("GET /api/capture", therapist(s.handleCapture))

	// Session detail is visible to both roles; patients only see their
	// own sessions, enforced in the handler.
	mux.Handle("GET /api/sessions/{id}", s.requireAuth(s.handleGetSession))

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// decodeJSON reads a JSON body into v, returning false after writing a
// 400 when the body is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return false
	}
	return true
}

// providerStatus maps an analysis provider error to an HTTP status.
// Upstream credential rejections surface as 401 so a misconfigured API
// key is not mistaken for a transient failure.
func providerStatus(err error) int {
	if errors.Is(err, analysis.ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
