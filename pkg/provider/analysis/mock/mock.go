// Package mock provides a scriptable analysis.Provider for tests.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/sonara-health/sonara/pkg/provider/analysis"
)

// Compile-time assertion that Provider implements analysis.Provider.
var _ analysis.Provider = (*Provider)(nil)

// Provider is a test double for analysis.Provider. Configure CompleteFunc for
// full control, or Responses to answer by system-prompt substring match.
// Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// CompleteFunc, if set, handles every call.
	CompleteFunc func(ctx context.Context, req analysis.Request) (string, error)

	// Responses maps a substring of the system prompt to a canned response.
	// The first matching entry wins; iteration order is not defined, so keep
	// substrings mutually exclusive in tests.
	Responses map[string]string

	// Err, if set and CompleteFunc is nil, is returned for every call.
	Err error

	calls []analysis.Request
}

// Complete implements analysis.Provider.
func (p *Provider) Complete(ctx context.Context, req analysis.Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if p.Err != nil {
		return "", p.Err
	}
	for sub, resp := range p.Responses {
		if strings.Contains(req.SystemPrompt, sub) {
			return resp, nil
		}
	}
	return "", nil
}

// Calls returns a copy of all requests seen so far.
func (p *Provider) Calls() []analysis.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]analysis.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns the number of Complete invocations.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
