package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// in the open state and the reset timeout has not yet elapsed. Insight
// extractors treat it like any other provider failure and fall back.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState represents the current operating mode of a [CircuitBreaker].
type BreakerState int

const (
	// BreakerClosed is the normal operating state — all calls are forwarded.
	BreakerClosed BreakerState = iota

	// BreakerOpen indicates the breaker has tripped due to consecutive
	// failures. Calls are rejected immediately with [ErrCircuitOpen] until
	// the reset timeout elapses.
	BreakerOpen

	// BreakerHalfOpen is the probe state entered after the reset timeout.
	// A single probe call is allowed through; success closes the breaker,
	// failure re-opens it.
	BreakerHalfOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [CircuitBreaker].
type BreakerConfig struct {
	// Name is a human-readable label used in log messages (e.g. "analysis").
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe call. Default: 30s.
	ResetTimeout time.Duration
}

// CircuitBreaker implements the three-state circuit breaker pattern with a
// single-probe half-open phase. Safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu              sync.Mutex
	state           BreakerState
	consecutiveFail int
	lastFailure     time.Time
	probing         bool
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied
// configuration. Zero-value config fields are replaced with defaults.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		state:        BreakerClosed,
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn. After the reset timeout a single probe
// call is admitted; its outcome decides whether the breaker closes or
// re-opens.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case BreakerOpen:
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = BreakerHalfOpen
		cb.probing = false
		slog.Info("circuit breaker transitioning to half-open", "name", cb.name)
		fallthrough

	case BreakerHalfOpen:
		if cb.probing {
			// Another goroutine owns the probe slot.
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	wasProbe := cb.state == BreakerHalfOpen
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.lastFailure = time.Now()
		if wasProbe {
			cb.state = BreakerOpen
			cb.probing = false
			slog.Warn("circuit breaker re-opened after failed probe", "name", cb.name)
			return err
		}
		cb.consecutiveFail++
		if cb.consecutiveFail >= cb.maxFailures && cb.state == BreakerClosed {
			cb.state = BreakerOpen
			slog.Warn("circuit breaker opened",
				"name", cb.name,
				"consecutive_failures", cb.consecutiveFail,
			)
		}
		return err
	}

	if wasProbe {
		slog.Info("circuit breaker closed after successful probe", "name", cb.name)
	}
	cb.state = BreakerClosed
	cb.consecutiveFail = 0
	cb.probing = false
	return nil
}
