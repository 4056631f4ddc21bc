package systemd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"CreatorWatch/internal/domain"
)

func TestNotifierSendsStates(t *testing.T) {
	t.Parallel()

	var states []string
	n := NewNotifier(nil)
	n.notify = func(state string) (bool, error) {
		states = append(states, state)
		return true, nil
	}

	n.Ready()
	n.CycleStarted(context.Background(), "c1")
	n.CycleFinished(context.Background(), domain.CycleReport{ID: "c1", New: 2, Delivered: 3, Aborted: true})
	n.Stopping()

	if len(states) != 4 {
		t.Fatalf("expected 4 notifications, got %v", states)
	}
	if states[0] != "READY=1" || states[3] != "STOPPING=1" {
		t.Fatalf("unexpected lifecycle states: %v", states)
	}
	if !strings.Contains(states[1], "c1") {
		t.Fatalf("cycle id missing from status: %q", states[1])
	}
	if !strings.Contains(states[2], "aborted") || !strings.Contains(states[2], "2 new") {
		t.Fatalf("unexpected finish status: %q", states[2])
	}
}

func TestNotifierOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	n := NewNotifier(nil)
	n.Ready()

	n.notify = func(string) (bool, error) { return false, errors.New("socket gone") }
	n.Stopping()
}
