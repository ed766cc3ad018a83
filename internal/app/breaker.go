package app

import (
	"context"

	"github.com/sonara-health/sonara/internal/resilience"
	"github.com/sonara-health/sonara/pkg/provider/analysis"
)

// guardedAnalysis wraps an analysis provider with a circuit breaker so a
// dead language-model endpoint fails fast instead of timing out every
// insight extraction. [resilience.ErrCircuitOpen] surfaces like any other
// provider error, degrading the affected insight to its fallback.
type guardedAnalysis struct {
	inner   analysis.Provider
	breaker *resilience.CircuitBreaker
}

var _ analysis.Provider = (*guardedAnalysis)(nil)

// guardAnalysis wraps p with a breaker using the default thresholds.
func guardAnalysis(p analysis.Provider) analysis.Provider {
	return &guardedAnalysis{
		inner:   p,
		breaker: resilience.NewCircuitBreaker(resilience.BreakerConfig{Name: "analysis"}),
	}
}

func (g *guardedAnalysis) Complete(ctx context.Context, req analysis.Request) (string, error) {
	var out string
	err := g.breaker.Execute(func() error {
		var err error
		out, err = g.inner.Complete(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
