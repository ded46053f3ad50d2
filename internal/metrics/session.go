// Package metrics provides Prometheus metrics for the session tracks, the
// compositor and device bindings.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scenecast"

var (
	sessionUp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "state",
		Help:      "1 for the current state of each session track",
	}, []string{"track", "state"})

	sessionFPS = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "fps",
		Help:      "Encoding FPS reported by the executor",
	}, []string{"track"})

	sessionBitrate = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "bitrate_kbps",
		Help:      "Output bitrate reported by the executor",
	}, []string{"track"})

	sessionDroppedFrames = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped by the executor",
	}, []string{"track"})

	sessionCPU = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "cpu_usage_percent",
		Help:      "Executor process CPU usage",
	}, []string{"track"})

	sessionSpeed = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "processing_speed",
		Help:      "Executor processing speed multiplier",
	}, []string{"track"})

	sessionFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "failures_total",
		Help:      "Transitions of a track into the error state",
	}, []string{"track"})

	// Last state per track, so the previous state series can be cleared.
	trackStates   = make(map[string]string)
	trackStatesMu sync.Mutex
)

// TrackTelemetry is one telemetry sample of a session track.
type TrackTelemetry struct {
	FPS             float64
	BitrateKbps     float64
	DroppedFrames   float64
	CPUUsagePercent float64
	Speed           float64
}

// SetTrackState records the current state of a track.
func SetTrackState(track, state string) {
	trackStatesMu.Lock()
	defer trackStatesMu.Unlock()
	if prev, ok := trackStates[track]; ok && prev != state {
		sessionUp.DeleteLabelValues(track, prev)
	}
	trackStates[track] = state
	sessionUp.WithLabelValues(track, state).Set(1)
	if state == "error" {
		sessionFailures.WithLabelValues(track).Inc()
	}
}

// SetTrackTelemetry records the latest telemetry of a track.
func SetTrackTelemetry(track string, t TrackTelemetry) {
	sessionFPS.WithLabelValues(track).Set(t.FPS)
	sessionBitrate.WithLabelValues(track).Set(t.BitrateKbps)
	sessionDroppedFrames.WithLabelValues(track).Set(t.DroppedFrames)
	sessionCPU.WithLabelValues(track).Set(t.CPUUsagePercent)
	sessionSpeed.WithLabelValues(track).Set(t.Speed)
}

// DeleteTrackTelemetry removes telemetry series of a stopped track.
func DeleteTrackTelemetry(track string) {
	sessionFPS.DeleteLabelValues(track)
	sessionBitrate.DeleteLabelValues(track)
	sessionDroppedFrames.DeleteLabelValues(track)
	sessionCPU.DeleteLabelValues(track)
	sessionSpeed.DeleteLabelValues(track)
}
