package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("ip", "outside subnet", "10.0.0.1"), ErrValidation},
		{"conflict", &ConflictError{Kind: ConflictChainID, Subject: "1337", With: "alpha"}, ErrConflict},
		{"not found", &NotFoundError{Kind: NotFoundNode, Name: "v9"}, ErrNotFound},
		{"invalid state", &InvalidStateError{Entity: EntityNetwork, Name: "devnet", Operation: "setup", Current: "running"}, ErrInvalidState},
		{"timeout", &TimeoutError{Kind: TimeoutNodeReadiness, Subject: "v1", Deadline: time.Second}, ErrTimeout},
		{"runtime", NewRuntimeError("start", errors.New("boom")), ErrRuntime},
		{"file store", NewFileStoreError("write", "/tmp/x", errors.New("denied")), ErrFileStore},
		{"last validator", &LastValidatorError{Node: "v1"}, ErrLastValidator},
		{"prerequisite", &PrerequisiteError{Check: "memory", Reason: "not enough"}, ErrPrerequisite},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !errors.Is(wrapped, tc.sentinel) {
				t.Fatalf("expected %v to match %v", wrapped, tc.sentinel)
			}
			if tc.sentinel != ErrValidation && errors.Is(wrapped, ErrValidation) {
				t.Fatalf("%v unexpectedly matches ErrValidation", wrapped)
			}
		})
	}
}

func TestConflictKindOf(t *testing.T) {
	err := fmt.Errorf("add node: %w", &ConflictError{Kind: ConflictDuplicateIP, Subject: "172.20.0.10", With: "v1"})
	kind, ok := ConflictKindOf(err)
	if !ok || kind != ConflictDuplicateIP {
		t.Fatalf("expected duplicate_ip, got %q (%v)", kind, ok)
	}
	if !strings.Contains(err.Error(), `already used by "v1"`) {
		t.Errorf("unexpected message %q", err.Error())
	}

	if _, ok := ConflictKindOf(errors.New("plain")); ok {
		t.Error("plain error reported a conflict kind")
	}
}

func TestInvalidStateErrorListsAllowed(t *testing.T) {
	err := &InvalidStateError{
		Entity:    EntityNode,
		Name:      "v1",
		Operation: "stop",
		Current:   "created",
		Allowed:   NodeStatusNames(NodeRunning),
	}
	want := `cannot stop node "v1" in state created (allowed: running)`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestTimeoutErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TimeoutError{Kind: TimeoutNodeReadiness, Subject: "v1", Deadline: 2 * time.Second, Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "last error: connection refused") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStatusTransitions(t *testing.T) {
	nodeAllowed := map[NodeStatus][]NodeStatus{
		NodeCreated:  {NodeStarting},
		NodeStarting: {NodeRunning, NodeError},
		NodeRunning:  {NodeStopping, NodeError},
		NodeStopping: {NodeStopped, NodeError},
		NodeStopped:  {NodeStarting},
		NodeError:    nil,
	}
	all := []NodeStatus{NodeCreated, NodeStarting, NodeRunning, NodeStopping, NodeStopped, NodeError}
	for from, allowed := range nodeAllowed {
		for _, to := range all {
			want := false
			for _, a := range allowed {
				if a == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("node %s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}

	if !NetworkError.CanTransitionTo(NetworkStopping) {
		t.Error("network error must allow teardown")
	}
	if NetworkStopped.CanTransitionTo(NetworkInitializing) {
		t.Error("stopped network must not be set up again")
	}
}
