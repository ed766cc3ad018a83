// Package stt defines the speech-to-text provider interface used by the
// transcription pipeline. Implementations live in subpackages (openai,
// whispercpp) plus a mock for tests.
package stt

import (
	"context"

	"github.com/sonara-health/sonara/pkg/audio"
)

// Request is one batch transcription request: a single normalised audio
// segment plus optional hints forwarded to the backend.
type Request struct {
	// PCM is the canonical 16 kHz mono audio to transcribe.
	PCM audio.PCM

	// Language is a BCP-47 language hint (e.g. "en"). Empty means backend default.
	Language string

	// Prompt is an optional context hint improving recognition of domain
	// vocabulary (e.g. "This is a therapy session transcription.").
	Prompt string
}

// Provider transcribes one audio segment per call. Implementations must be
// safe for concurrent use; retry and segmentation policy live in the caller.
type Provider interface {
	// Transcribe returns the recognised text for the request's audio.
	// An empty string with a nil error is a valid result (silence).
	Transcribe(ctx context.Context, req Request) (string, error)
}
