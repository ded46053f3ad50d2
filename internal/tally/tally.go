// Package tally drives an on-air indicator from session state.
package tally

import (
	"log/slog"
	"sync"

	"github.com/smazurov/scenecast/internal/events"
)

// Manager listens for session transitions and shows the aggregate signal:
// on-air while the stream track is live, recording while only the record
// track runs, otherwise off.
type Manager struct {
	light  Light
	bus    *events.Bus
	logger *slog.Logger

	mu          sync.Mutex
	states      map[string]string
	shown       Signal
	unsubscribe func()
}

// NewManager creates a manager for light.
func NewManager(light Light, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		light:  light,
		bus:    bus,
		logger: logger,
		states: make(map[string]string),
	}
}

// Start subscribes to session events and turns the light off.
func (m *Manager) Start() {
	m.mu.Lock()
	m.show(SignalOff)
	m.mu.Unlock()
	m.unsubscribe = m.bus.Subscribe(m.handle)
}

// Stop unsubscribes and turns the light off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.show(SignalOff)
}

// Signal returns the signal currently shown.
func (m *Manager) Signal() Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shown
}

func (m *Manager) handle(e events.SessionStateChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[e.Track] = e.To
	m.show(signalFor(m.states))
}

func signalFor(states map[string]string) Signal {
	switch {
	case states["stream"] == "live":
		return SignalOnAir
	case states["record"] == "recording":
		return SignalRecording
	}
	return SignalOff
}

// show must be called with mu held.
func (m *Manager) show(s Signal) {
	if s == m.shown {
		return
	}
	if err := m.light.Show(s); err != nil {
		m.logger.Warn("Failed to set tally light", "signal", s, "error", err)
		return
	}
	m.logger.Debug("Tally light changed", "from", m.shown, "to", s)
	m.shown = s
}
