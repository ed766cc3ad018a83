package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sonara-health/sonara/pkg/audio"
)

// captureResult is pushed back to the client after each transcribed
// chunk.
type captureResult struct {
	Text string `json:"text"`
}

// handleCapture streams live transcription over a WebSocket. The client
// sends binary frames of canonical PCM (16 kHz mono s16le); each frame
// is transcribed independently and answered with a JSON text frame.
// Text frames from the client are ignored. The connection stays open
// until the client closes it or a chunk fails to transcribe.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("capture accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.metrics.ActiveCaptures.Add(ctx, 1)
	defer s.metrics.ActiveCaptures.Add(ctx, -1)

	slog.Info("live capture started", "remote", r.RemoteAddr)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("live capture closed", "remote", r.RemoteAddr)
			} else if !errors.Is(err, context.Canceled) {
				slog.Warn("live capture read failed", "error", err)
			}
			return
		}
		if typ != websocket.MessageBinary || len(data) == 0 {
			continue
		}

		pcm := audio.PCM{
			Data:       data,
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
		}
		text, err := s.transcriber.Transcribe(ctx, pcm)
		if err != nil {
			slog.Error("live chunk transcription failed", "error", err)
			conn.Close(websocket.StatusInternalError, "transcription failed")
			return
		}

		if err := wsjson.Write(ctx, conn, captureResult{Text: text}); err != nil {
			slog.Warn("live capture write failed", "error", err)
			return
		}
	}
}
