package embed

import (
	relayerrors "github.com/byteness/embedrelay/errors"
)

// State is a step of the search-and-embed workflow.
type State int

const (
	// StateAttempting runs search and embed for the first time.
	StateAttempting State = iota
	// StateRegistering registers the caller as a QuickSight user.
	StateRegistering
	// StateRetrying runs search and embed after registration.
	StateRetrying
	// StateDone holds a minted embed URL.
	StateDone
	// StateFailed holds a fatal error.
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateRegistering:
		return "registering"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition exists.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// nextState returns the state following s given the error produced by the
// work done in s. Registering is only reachable from Attempting, so
// registration happens at most once per resolution.
func nextState(s State, err error) State {
	switch s {
	case StateAttempting:
		switch {
		case err == nil:
			return StateDone
		case relayerrors.IsKind(err, relayerrors.KindUserNotRegistered):
			return StateRegistering
		default:
			return StateFailed
		}
	case StateRegistering:
		if err != nil {
			return StateFailed
		}
		return StateRetrying
	case StateRetrying:
		if err != nil {
			return StateFailed
		}
		return StateDone
	default:
		return s
	}
}
