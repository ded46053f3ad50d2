package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesRendered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compositor",
		Name:      "frames_rendered_total",
		Help:      "Frames composed",
	})

	layerFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "compositor",
		Name:      "layer_failures_total",
		Help:      "Layers painted as placeholders, by source kind",
	}, []string{"kind"})

	renderSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "compositor",
		Name:      "render_seconds",
		Help:      "Time spent composing one frame",
		Buckets:   []float64{.001, .0025, .005, .01, .016, .025, .033, .05, .1},
	})

	deviceBindings = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "binding_refs",
		Help:      "Sources referencing each bound device",
	}, []string{"device", "state"})
)

// ObserveFrame records one composed frame.
func ObserveFrame(d time.Duration) {
	framesRendered.Inc()
	renderSeconds.Observe(d.Seconds())
}

// IncLayerFailure records a layer that fell back to a placeholder.
func IncLayerFailure(kind string) {
	layerFailures.WithLabelValues(kind).Inc()
}

// SetDeviceBinding records the state and reference count of a device.
// A released binding removes its series.
func SetDeviceBinding(device, state string, refs int) {
	deviceBindings.DeletePartialMatch(prometheus.Labels{"device": device})
	if state == "released" {
		return
	}
	deviceBindings.WithLabelValues(device, state).Set(float64(refs))
}
