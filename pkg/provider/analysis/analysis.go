// Package analysis defines the text-analysis provider interface used by the
// insight extractors, the summariser, and the translator. Implementations
// live in subpackages (openai, anyllm) plus a mock for tests.
package analysis

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when the upstream provider rejects the
// configured credentials. The HTTP layer passes this through as 401 so a
// misconfigured API key is distinguishable from a transient failure.
var ErrUnauthorized = errors.New("analysis: unauthorized")

// Request is a single-shot instruction + input pair sent to a chat model.
type Request struct {
	// SystemPrompt is the fixed instruction describing the analysis.
	SystemPrompt string

	// UserText is the transcript (or other text) being analysed.
	UserText string

	// Temperature, when non-zero, overrides the model default.
	Temperature float64

	// MaxTokens, when positive, caps the completion length.
	MaxTokens int
}

// Provider runs one analysis request per call and returns the model's text
// output. Implementations must be safe for concurrent use — the insight
// extractors issue requests in parallel.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
