// Package session turns a reviewed therapy session into an immutable
// persisted record and tracks each session's lifecycle state.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State is one phase of a session's lifecycle: Recording → Processing →
// Review → (Saved | Errored). Review and Errored may also return to
// Recording, for a clinician discarding the results and starting over;
// an Errored session may still reach Saved through a manual save retry.
type State string

const (
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateReview     State = "review"
	StateSaved      State = "saved"
	StateErrored    State = "errored"
)

// ErrInvalidTransition is returned when a requested state change is not
// allowed from the session's current state.
var ErrInvalidTransition = errors.New("session: invalid state transition")

var validTransitions = map[State][]State{
	StateRecording:  {StateProcessing, StateErrored},
	StateProcessing: {StateReview, StateErrored},
	StateReview:     {StateSaved, StateErrored, StateRecording},
	StateErrored:    {StateSaved, StateRecording},
	StateSaved:      nil,
}

// Session tracks the lifecycle of a single recording session. All
// methods are safe for concurrent use.
type Session struct {
	mu    sync.Mutex
	id    string
	state State
}

// NewSession returns a Session in [StateRecording] identified by id.
func NewSession(id string) *Session {
	return &Session{id: id, state: StateRecording}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to the given state, or returns
// [ErrInvalidTransition] if the move is not allowed.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, s.state, to)
}
