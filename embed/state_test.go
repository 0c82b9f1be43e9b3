package embed

import (
	"errors"
	"testing"

	relayerrors "github.com/byteness/embedrelay/errors"
)

func TestNextState(t *testing.T) {
	notRegistered := relayerrors.New(relayerrors.KindUserNotRegistered, "not registered", nil)
	notFound := relayerrors.New(relayerrors.KindDashboardNotFound, "missing", nil)
	plain := errors.New("boom")

	tests := []struct {
		name string
		from State
		err  error
		want State
	}{
		{"attempt succeeds", StateAttempting, nil, StateDone},
		{"attempt finds no user", StateAttempting, notRegistered, StateRegistering},
		{"attempt finds no dashboard", StateAttempting, notFound, StateFailed},
		{"attempt fails otherwise", StateAttempting, plain, StateFailed},
		{"registration succeeds", StateRegistering, nil, StateRetrying},
		{"registration fails", StateRegistering, plain, StateFailed},
		{"retry succeeds", StateRetrying, nil, StateDone},
		{"retry still unregistered", StateRetrying, notRegistered, StateFailed},
		{"retry fails otherwise", StateRetrying, notFound, StateFailed},
		{"done stays done", StateDone, nil, StateDone},
		{"failed stays failed", StateFailed, plain, StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextState(tt.from, tt.err); got != tt.want {
				t.Errorf("nextState(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateAttempting:  "attempting",
		StateRegistering: "registering",
		StateRetrying:    "retrying",
		StateDone:        "done",
		StateFailed:      "failed",
		State(99):        "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	if StateAttempting.Terminal() || StateRegistering.Terminal() || StateRetrying.Terminal() {
		t.Error("non-terminal state reported terminal")
	}
	if !StateDone.Terminal() || !StateFailed.Terminal() {
		t.Error("terminal state reported non-terminal")
	}
}
