// Package embeddings defines the text-embedding provider interface used by
// the semantic session search. Implementations live in subpackages (openai)
// plus a mock for tests.
package embeddings

import "context"

// Provider converts text into dense vectors for similarity search.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
