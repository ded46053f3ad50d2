// Package systemd reports service lifecycle to the supervising systemd
// unit through sd_notify. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/scenecast/internal/events"
)

// notifyFunc matches daemon.SdNotify.
type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Notifier sends readiness, status text and watchdog pings.
type Notifier struct {
	logger *slog.Logger
	notify notifyFunc

	mu          sync.Mutex
	tracks      map[string]string
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewNotifier creates a notifier bound to $NOTIFY_SOCKET.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: daemon.SdNotify,
		tracks: make(map[string]string),
	}
}

// Ready signals that startup finished, mirrors session state into the unit
// status line and starts watchdog pings when WatchdogSec is configured.
func (n *Notifier) Ready(bus *events.Bus) {
	n.send(daemon.SdNotifyReady)
	n.send("STATUS=idle")
	if bus != nil {
		n.unsubscribe = bus.Subscribe(n.handleSession)
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return
	}
	if interval == 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.watchdog(ctx, interval/2)
	n.logger.Debug("Watchdog enabled", "interval", interval)
}

// Stopping signals shutdown and stops the watchdog.
func (n *Notifier) Stopping() {
	if n.unsubscribe != nil {
		n.unsubscribe()
	}
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
	n.send(daemon.SdNotifyStopping)
}

func (n *Notifier) watchdog(ctx context.Context, every time.Duration) {
	defer close(n.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) handleSession(e events.SessionStateChangedEvent) {
	n.mu.Lock()
	n.tracks[e.Track] = e.To
	status := statusLine(n.tracks)
	n.mu.Unlock()
	n.send("STATUS=" + status)
}

// statusLine renders non-idle tracks as "record=recording stream=live".
func statusLine(tracks map[string]string) string {
	parts := make([]string, 0, len(tracks))
	for track, state := range tracks {
		if state == "idle" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", track, state))
	}
	if len(parts) == 0 {
		return "idle"
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func (n *Notifier) send(state string) {
	if _, err := n.notify(false, state); err != nil {
		n.logger.Debug("sd_notify failed", "state", state, "error", err)
	}
}
