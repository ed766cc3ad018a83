package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/sonara-health/sonara/internal/observe"
)

type textRequest struct {
	Text string `json:"text"`
}

// handleInsights extracts sentiment, word frequencies and the speaking
// time split from a transcript. Extraction never fails outright:
// degraded fields carry fallback values and are listed under
// "degraded" in the response.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty", "")
		return
	}

	ctx := r.Context()
	start := time.Now()
	result := s.extractor.Extract(ctx, req.Text)
	s.metrics.InsightDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("insight", "all")))

	for _, name := range result.Degraded {
		s.metrics.RecordInsightFallback(ctx, name)
		slog.Warn("insight degraded to fallback", "insight", name)
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSummarize produces the session summary. Unlike the other
// insights there is no fallback: a provider failure fails the request.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty", "")
		return
	}

	ctx := r.Context()
	start := time.Now()
	summary, err := s.extractor.Summarize(ctx, req.Text)
	s.metrics.InsightDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("insight", "summary")))
	if err != nil {
		slog.Error("summarization failed", "error", err)
		writeError(w, providerStatus(err), "summarization failed", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// handleTranslate translates arbitrary text (typically a transcript or
// summary) to English.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty", "")
		return
	}

	translation, err := s.extractor.Translate(r.Context(), req.Text)
	if err != nil {
		slog.Error("translation failed", "error", err)
		writeError(w, providerStatus(err), "translation failed", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"translatedText": translation})
}
