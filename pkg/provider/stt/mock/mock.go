// Package mock provides a scriptable stt.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/sonara-health/sonara/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a test double for stt.Provider. Configure either TranscribeFunc
// for full control, or Results to return canned texts in call order.
// Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// TranscribeFunc, if set, handles every call.
	TranscribeFunc func(ctx context.Context, req stt.Request) (string, error)

	// Results are returned in order when TranscribeFunc is nil. Calls past
	// the end return the last entry.
	Results []string

	// Err, if set and TranscribeFunc is nil, is returned instead of a result.
	Err error

	calls []stt.Request
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	n := len(p.calls)
	p.mu.Unlock()

	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, req)
	}
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Results) == 0 {
		return "", nil
	}
	idx := n - 1
	if idx >= len(p.Results) {
		idx = len(p.Results) - 1
	}
	return p.Results[idx], nil
}

// Calls returns a copy of all requests seen so far.
func (p *Provider) Calls() []stt.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stt.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of Transcribe invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
