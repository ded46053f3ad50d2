package tally

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Signal is what the tally light shows.
type Signal string

// Tally signals.
const (
	SignalOff       Signal = "off"
	SignalOnAir     Signal = "on-air"
	SignalRecording Signal = "recording"
)

// Light drives a physical tally indicator.
type Light interface {
	Show(s Signal) error
}

const (
	sysfsLEDRoot        = "/sys/class/leds"
	deviceTreeModelPath = "/proc/device-tree/model"
)

// boardLEDs maps single board computers to an LED usable as a tally.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New returns a sysfs light for the named LED. An empty name picks the
// board's default LED; without one the light only logs.
func New(name string, logger *slog.Logger) Light {
	if name == "" {
		model := detectBoard()
		for _, b := range boardLEDs {
			if strings.Contains(model, b.model) {
				name = b.led
				break
			}
		}
		if name == "" {
			logger.Info("No tally LED configured or detected", "board_model", model)
			return noop{logger: logger}
		}
		logger.Info("Using board LED as tally", "board_model", model, "led", name)
	}
	return &sysfsLight{dir: filepath.Join(sysfsLEDRoot, name)}
}

func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}

// sysfsLight drives a LED through its trigger and brightness attributes.
type sysfsLight struct {
	dir string
}

func (l *sysfsLight) Show(s Signal) error {
	if _, err := os.Stat(l.dir); err != nil {
		return fmt.Errorf("tally LED %s: %w", l.dir, err)
	}

	trigger, brightness := "none", "0"
	switch s {
	case SignalOnAir:
		brightness = "1"
	case SignalRecording:
		trigger, brightness = "heartbeat", "1"
	}
	if err := os.WriteFile(filepath.Join(l.dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("failed to set LED trigger: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

type noop struct {
	logger *slog.Logger
}

func (n noop) Show(s Signal) error {
	n.logger.Debug("Tally signal (no LED)", "signal", s)
	return nil
}
