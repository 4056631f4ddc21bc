package systemd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"

	"CreatorWatch/internal/domain"
	"CreatorWatch/internal/ports"
)

// Notifier reports readiness and cycle status to the service manager.
// Outside systemd (no NOTIFY_SOCKET) every call is a no-op.
type Notifier struct {
	logger *slog.Logger
	notify func(state string) (bool, error)
}

var _ ports.CycleObserver = (*Notifier)(nil)

func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		logger: logger,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Ready signals that startup finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping signals a graceful shutdown.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) CycleStarted(_ context.Context, cycleID string) {
	n.send("STATUS=cycle " + cycleID + " running")
}

func (n *Notifier) CycleFinished(_ context.Context, r domain.CycleReport) {
	state := "ok"
	if r.Aborted {
		state = "aborted"
	}
	n.send(fmt.Sprintf("STATUS=last cycle %s: %d new, %d delivered, %d failed, %d errors",
		state, r.New, r.Delivered, r.Failed, r.Errors))
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify", "state", state)
	}
}
