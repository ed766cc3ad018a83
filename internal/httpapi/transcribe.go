package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sonara-health/sonara/pkg/audio"
)

// handleTranscribe accepts a multipart recording upload under the
// "audio" field, normalizes it to canonical PCM and returns the full
// transcript. Unsupported formats and oversized uploads are client
// errors; everything past normalization is a server error.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("audio")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "recording too large", "")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"audio\" required", err.Error())
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !audio.SupportedMIMEType(mimeType) {
		writeError(w, http.StatusBadRequest, "unsupported audio format", mimeType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, "recording too large", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not read upload", "")
		return
	}

	text, err := s.transcribeRecording(r, audio.Recording{Data: data, MIMEType: mimeType})
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, "unsupported audio format", mimeType)
			return
		}
		slog.Error("transcription failed", "error", err)
		writeError(w, http.StatusInternalServerError, "transcription failed", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// transcribeRecording runs normalize → transcribe and records pipeline
// metrics.
func (s *Server) transcribeRecording(r *http.Request, rec audio.Recording) (string, error) {
	ctx := r.Context()
	start := time.Now()

	pcm, err := s.normalizer.Normalize(ctx, rec)
	if err != nil {
		return "", err
	}

	text, err := s.transcriber.Transcribe(ctx, pcm)
	s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return text, nil
}
