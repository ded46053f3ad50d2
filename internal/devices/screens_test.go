package devices

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/scene"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestGrabber(t *testing.T, body string) (*ScreenGrabber, *testClock) {
	t.Helper()
	g := NewScreenGrabber(fakeFFmpeg(t, body), pipeline.PlatformLinux, testLogger())
	g.Width, g.Height = 4, 2
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g.now = clock.now
	t.Cleanup(g.Close)
	return g, clock
}

func screenSource(id, display string) scene.Source {
	return scene.Source{ID: scene.SourceID(id), Name: id, Visible: true, Content: scene.ScreenCapture{Display: display}}
}

// grabUntil polls Grab until it stops returning ErrNoFrame.
func grabUntil(t *testing.T, g *ScreenGrabber, src scene.Source) error {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		img, err := g.Grab(src)
		if !errors.Is(err, ErrNoFrame) {
			if err == nil && img == nil {
				t.Fatal("Grab returned neither frame nor error")
			}
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for a screen frame")
	return nil
}

func waitPoolIDs(t *testing.T, g *ScreenGrabber, want []string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if slices.Equal(g.pool.IDs(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pool members = %v, want %v", g.pool.IDs(), want)
}

const frameScript = "head -c 32 /dev/zero\nexec sleep 30"

func TestScreenGrabberSharesCapturePerDisplay(t *testing.T) {
	g, _ := newTestGrabber(t, frameScript)

	if err := grabUntil(t, g, screenSource("a", ":1.0")); err != nil {
		t.Fatalf("Grab() error = %v", err)
	}
	img, err := g.Grab(screenSource("b", ":1.0"))
	if err != nil {
		t.Fatalf("second source on the same display: %v", err)
	}
	if got := img.Bounds().Size(); got.X != 4 || got.Y != 2 {
		t.Errorf("frame size = %v, want 4x2", got)
	}
	if n := g.Active(); n != 1 {
		t.Errorf("Active() = %d, want one capture for one display", n)
	}
	waitPoolIDs(t, g, []string{"screen-1"})
}

func TestScreenGrabberStopsIdleCaptures(t *testing.T) {
	g, clock := newTestGrabber(t, frameScript)

	if err := grabUntil(t, g, screenSource("a", ":1.0")); err != nil {
		t.Fatal(err)
	}
	clock.advance(DefaultScreenIdleTimeout + time.Second)
	if err := grabUntil(t, g, screenSource("b", ":2.0")); err != nil {
		t.Fatal(err)
	}

	waitPoolIDs(t, g, []string{"screen-2"})
	if n := g.Active(); n != 1 {
		t.Errorf("Active() = %d, want 1", n)
	}
}

func TestScreenGrabberFailureRetriesAfterDelay(t *testing.T) {
	g, clock := newTestGrabber(t, `echo "[error] Cannot open display :9" >&2
exit 1`)
	src := screenSource("a", ":9")

	err := grabUntil(t, g, src)
	if err == nil || !strings.Contains(err.Error(), "Cannot open display") {
		t.Fatalf("Grab() error = %v, want the ffmpeg failure", err)
	}
	if _, err := g.Grab(src); err == nil {
		t.Fatal("failed capture returned a frame")
	}
	g.mu.Lock()
	launched := g.nextID
	g.mu.Unlock()
	if launched != 1 {
		t.Fatalf("capture relaunched %d times within the retry delay", launched-1)
	}

	clock.advance(DefaultScreenRetryDelay)
	_, _ = g.Grab(src)
	g.mu.Lock()
	launched = g.nextID
	g.mu.Unlock()
	if launched != 2 {
		t.Errorf("launches after retry delay = %d, want 2", launched)
	}
}

func TestScreenGrabberUnsupportedWindow(t *testing.T) {
	g, _ := newTestGrabber(t, frameScript)

	src := scene.Source{ID: "w", Visible: true, Content: scene.WindowCapture{Title: "Game"}}
	_, err := g.Grab(src)
	var unsupported *pipeline.UnsupportedCaptureError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Grab() error = %v, want UnsupportedCaptureError", err)
	}
	if ids := g.pool.IDs(); len(ids) != 0 {
		t.Errorf("unsupported source started captures %v", ids)
	}
}
