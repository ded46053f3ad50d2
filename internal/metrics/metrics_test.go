package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetTrackStateClearsPrevious(t *testing.T) {
	SetTrackState("test-track", "starting")
	SetTrackState("test-track", "live")

	if got := testutil.ToFloat64(sessionUp.WithLabelValues("test-track", "live")); got != 1 {
		t.Errorf("live gauge = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(sessionUp); n != 1 {
		t.Errorf("expected a single state series, got %d", n)
	}

	before := testutil.ToFloat64(sessionFailures.WithLabelValues("test-track"))
	SetTrackState("test-track", "error")
	if got := testutil.ToFloat64(sessionFailures.WithLabelValues("test-track")); got != before+1 {
		t.Errorf("failures = %v, want %v", got, before+1)
	}
}

func TestTrackTelemetry(t *testing.T) {
	SetTrackTelemetry("rec", TrackTelemetry{FPS: 59.9, BitrateKbps: 4500, DroppedFrames: 3, CPUUsagePercent: 40, Speed: 1})
	if got := testutil.ToFloat64(sessionFPS.WithLabelValues("rec")); got != 59.9 {
		t.Errorf("fps = %v", got)
	}
	if got := testutil.ToFloat64(sessionDroppedFrames.WithLabelValues("rec")); got != 3 {
		t.Errorf("dropped = %v", got)
	}

	DeleteTrackTelemetry("rec")
	if n := testutil.CollectAndCount(sessionFPS); n != 0 {
		t.Errorf("expected fps series removed, got %d", n)
	}
}

func TestDeviceBindingSeries(t *testing.T) {
	SetDeviceBinding("/dev/video7", "pending", 1)
	SetDeviceBinding("/dev/video7", "live", 2)
	if got := testutil.ToFloat64(deviceBindings.WithLabelValues("/dev/video7", "live")); got != 2 {
		t.Errorf("live refs = %v, want 2", got)
	}

	SetDeviceBinding("/dev/video7", "released", 0)
	if n := testutil.CollectAndCount(deviceBindings); n != 0 {
		t.Errorf("expected no binding series, got %d", n)
	}
}

func TestHTTPHandlerExposesMetrics(t *testing.T) {
	ObserveFrame(5 * time.Millisecond)
	IncLayerFailure("camera")

	rec := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"scenecast_compositor_frames_rendered_total", "scenecast_compositor_layer_failures_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestRegistryCarriesBuildInfoAndRuntime(t *testing.T) {
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	seen := make(map[string]bool)
	for _, mf := range families {
		seen[mf.GetName()] = true
	}
	for _, name := range []string{"scenecast_build_info", "go_goroutines"} {
		if !seen[name] {
			t.Errorf("registry missing %s", name)
		}
	}
}
