//go:build linux

package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"github.com/smazurov/scenecast/internal/events"
)

// HotplugMonitor listens for udev netlink events on the video4linux and
// sound subsystems and calls onChange, debounced, after devices come or go.
type HotplugMonitor struct {
	logger   *slog.Logger
	bus      *events.Bus
	onChange func()
	debounce time.Duration

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	timer   *time.Timer
	running bool
}

// NewHotplugMonitor creates a monitor. bus may be nil.
func NewHotplugMonitor(logger *slog.Logger, bus *events.Bus, onChange func()) *HotplugMonitor {
	return &HotplugMonitor{
		logger:   logger,
		bus:      bus,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
	}
}

// Start connects to the netlink socket. A connection failure is logged and
// leaves rescans to explicit requests.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("Failed to connect to netlink socket, hotplug rescans disabled", "error", err)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	go m.loop(ctx, conn, m.quit)

	m.logger.Info("Hotplug monitor started")
	return nil
}

// Stop shuts the monitor down.
func (m *HotplugMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	_ = m.conn.Close()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.conn, m.quit, m.running = nil, nil, false
	m.logger.Info("Hotplug monitor stopped")
}

func (m *HotplugMonitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, matcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case ev := <-queue:
			m.handle(ev)
		case err := <-errs:
			m.logger.Warn("Netlink monitor error", "error", err)
		}
	}
}

func matcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	for _, subsystem := range []string{"video4linux", "sound"} {
		rules.AddRule(netlink.RuleDefinition{
			Action: &action,
			Env:    map[string]string{"SUBSYSTEM": subsystem},
		})
	}
	return rules
}

func (m *HotplugMonitor) handle(ev netlink.UEvent) {
	devname := ev.Env["DEVNAME"]
	if devname == "" {
		return
	}
	path := devname
	if path[0] != '/' {
		path = "/dev/" + devname
	}
	m.logger.Info("Device hotplug", "action", string(ev.Action), "device", path, "subsystem", ev.Env["SUBSYSTEM"])
	m.bus.Publish(events.DeviceDiscoveryEvent{
		DevicePath: path,
		Subsystem:  ev.Env["SUBSYSTEM"],
		Action:     string(ev.Action),
		Timestamp:  events.Now(),
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.onChange == nil {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.onChange)
}
