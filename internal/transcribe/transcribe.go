// Package transcribe implements the segmenting transcription client: long
// recordings are split into bounded-duration segments, each segment is
// submitted to the speech-to-text provider with bounded retry and exponential
// backoff, and the per-segment texts are joined in chronological order.
//
// The client is all-or-nothing: a segment that exhausts its retries fails the
// whole transcription. Partial transcripts are never returned — a session
// with a hole in the middle is worse than a session that visibly failed.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sonara-health/sonara/internal/resilience"
	"github.com/sonara-health/sonara/pkg/audio"
	"github.com/sonara-health/sonara/pkg/provider/stt"
)

// DefaultSegmentDuration is the maximum duration of one transcription
// segment. Recordings at or below this length are sent as a single request.
const DefaultSegmentDuration = 600 * time.Second

// DefaultPrompt is the recognition hint sent with every segment.
const DefaultPrompt = "This is a therapy session transcription."

// ErrTranscriptionFailed is returned when a segment exhausts its retry
// budget. It always wraps the last underlying provider error.
var ErrTranscriptionFailed = errors.New("transcribe: transcription failed")

// Client orchestrates segmentation, per-segment retry, and concatenation.
type Client struct {
	provider stt.Provider
	policy   resilience.RetryPolicy

	segmentDuration time.Duration
	language        string
	prompt          string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default per-segment retry policy
// (3 attempts, doubling backoff from 1s).
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithSegmentDuration overrides the segment length threshold.
func WithSegmentDuration(d time.Duration) Option {
	return func(c *Client) {
		c.segmentDuration = d
	}
}

// WithLanguage sets the BCP-47 language hint forwarded to the provider.
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// WithPrompt overrides the recognition hint sent with every segment.
func WithPrompt(prompt string) Option {
	return func(c *Client) {
		c.prompt = prompt
	}
}

// New creates a Client using the given STT provider.
func New(provider stt.Provider, opts ...Option) *Client {
	c := &Client{
		provider:        provider,
		policy:          resilience.DefaultRetryPolicy(),
		segmentDuration: DefaultSegmentDuration,
		language:        "en",
		prompt:          DefaultPrompt,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Transcribe converts normalised audio into a single transcript string.
//
// Segments are processed strictly one at a time, in order — sequential
// processing bounds memory and keeps error attribution simple. Each segment
// gets the full retry budget; after exhaustion the whole call fails with
// [ErrTranscriptionFailed] wrapping the last provider error, and any texts
// already collected are discarded.
//
// Segment texts are joined with single spaces and the result is trimmed, so
// segments [A, B, C] yield "A B C". Empty segment texts (silence) are dropped
// before the join so they leave no doubled separator behind.
func (c *Client) Transcribe(ctx context.Context, pcm audio.PCM) (string, error) {
	segments := audio.Split(pcm, c.segmentDuration)

	start := time.Now()
	texts := make([]string, 0, len(segments))

	for i, seg := range segments {
		var text string
		name := fmt.Sprintf("transcribe segment %d/%d", i+1, len(segments))

		err := resilience.Retry(ctx, name, c.policy, func(ctx context.Context) error {
			var err error
			text, err = c.provider.Transcribe(ctx, stt.Request{
				PCM:      seg,
				Language: c.language,
				Prompt:   c.prompt,
			})
			return err
		})
		if err != nil {
			return "", fmt.Errorf("%w: segment %d of %d: %w", ErrTranscriptionFailed, i+1, len(segments), err)
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}

	transcript := strings.Join(texts, " ")

	slog.Info("transcription complete",
		"segments", len(segments),
		"audio_duration", pcm.Duration(),
		"transcript_chars", len(transcript),
		"elapsed", time.Since(start),
	)
	return transcript, nil
}
