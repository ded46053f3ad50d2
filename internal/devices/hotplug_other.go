//go:build !linux

package devices

import (
	"context"
	"log/slog"

	"github.com/smazurov/scenecast/internal/events"
)

// HotplugMonitor is a no-op outside linux.
type HotplugMonitor struct {
	logger *slog.Logger
}

// NewHotplugMonitor creates a monitor that never fires.
func NewHotplugMonitor(logger *slog.Logger, _ *events.Bus, _ func()) *HotplugMonitor {
	return &HotplugMonitor{logger: logger}
}

// Start logs that hotplug monitoring is unavailable.
func (m *HotplugMonitor) Start(context.Context) error {
	m.logger.Info("Device hotplug monitoring not available on this platform")
	return nil
}

// Stop does nothing.
func (m *HotplugMonitor) Stop() {}
