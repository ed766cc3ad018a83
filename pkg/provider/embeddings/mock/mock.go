// Package mock provides a deterministic embeddings.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/sonara-health/sonara/pkg/provider/embeddings"
)

// Compile-time assertion that Provider implements embeddings.Provider.
var _ embeddings.Provider = (*Provider)(nil)

// Provider is a test double for embeddings.Provider. When EmbedFunc is nil it
// returns a fixed-dimension vector derived from the text length, which is
// deterministic and cheap. Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Dimensions is the vector size for generated embeddings. Default 4.
	Dimensions int

	// EmbedFunc, if set, handles every call.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// Err, if set and EmbedFunc is nil, is returned for every call.
	Err error

	calls []string
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.mu.Unlock()

	if p.EmbedFunc != nil {
		return p.EmbedFunc(ctx, text)
	}
	if p.Err != nil {
		return nil, p.Err
	}

	dim := p.Dimensions
	if dim <= 0 {
		dim = 4
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32((len(text)+i)%7) / 7
	}
	return vec, nil
}

// Calls returns a copy of all texts embedded so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}
