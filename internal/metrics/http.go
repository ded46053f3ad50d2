package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/scenecast/internal/version"
)

// Registry holds every scenecast metric plus the Go runtime and process
// collectors. It is separate from the global registry so /metrics carries
// only what this service exports.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	info := version.Get()
	factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build metadata, always 1",
		ConstLabels: prometheus.Labels{"version": info.Version, "commit": info.GitCommit, "goversion": info.GoVersion},
	}).Set(1)
}

// HTTPHandler serves Registry in the Prometheus text or OpenMetrics format.
func HTTPHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		Registry:          Registry,
		EnableOpenMetrics: true,
	})
}
