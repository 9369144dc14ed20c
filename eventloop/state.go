package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the dispatch loop.
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)          [Run()]
//	StateRunning (3) → StateSleeping (2)       [before Multiplexer.Wait]
//	StateSleeping (2) → StateRunning (3)       [after Multiplexer.Wait]
//	StateRunning (3) → StateTerminating (4)    [quit observed]
//	StateTerminating (4) → StateTerminated (1) [shutdown complete]
//	StateAwake (0) → StateTerminated (1)       [Close() before Run()]
//	StateTerminated (1) → (terminal)
//
// Use TryTransition (CAS) for the temporary states (Running, Sleeping), and
// Store only for the irreversible ones.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has stopped, and released its
	// multiplexer.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is blocked in Multiplexer.Wait.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is delivering notifications.
	StateRunning LoopState = 3
	// StateTerminating indicates the loop is shutting down.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine with cache-line padding.
type FastState struct { // betteralign:ignore
	_ [64]byte      // Cache line padding (before value) //nolint:unused
	v atomic.Uint64 // State value
	_ [56]byte      // Pad to complete cache line (64 - 8 = 56) //nolint:unused
}

// NewFastState creates a new state machine in the Awake state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *FastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state, without validating the transition.
func (s *FastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts to transition from any of validFrom to the target.
func (s *FastState) TransitionAny(validFrom []LoopState, to LoopState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the current state is terminal (Terminated).
func (s *FastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// IsRunning returns true if the loop is currently running or sleeping.
func (s *FastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}

// CanAcceptWork returns true if posted events may still be delivered.
func (s *FastState) CanAcceptWork() bool {
	state := s.Load()
	return state == StateAwake || state == StateRunning || state == StateSleeping
}
