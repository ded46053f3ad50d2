package devices

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/scenecast/internal/scene"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHandle struct {
	id       string
	done     chan struct{}
	doneOnce sync.Once
}

func (h *fakeHandle) Frame() (image.Image, bool) {
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), true
}
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) Err() error            { return errors.New("unplugged") }
func (h *fakeHandle) end()                  { h.doneOnce.Do(func() { close(h.done) }) }

type fakeAcquirer struct {
	mu       sync.Mutex
	fail     map[string]error
	acquired map[string]int
	released map[string]int
	live     map[string]*fakeHandle
}

func newFakeAcquirer() *fakeAcquirer {
	return &fakeAcquirer{
		fail:     make(map[string]error),
		acquired: make(map[string]int),
		released: make(map[string]int),
		live:     make(map[string]*fakeHandle),
	}
}

func (a *fakeAcquirer) Acquire(_ context.Context, id string) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acquired[id]++
	if err := a.fail[id]; err != nil {
		return nil, err
	}
	h := &fakeHandle{id: id, done: make(chan struct{})}
	a.live[id] = h
	return h, nil
}

func (a *fakeAcquirer) Release(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fh := h.(*fakeHandle)
	a.released[fh.id]++
	delete(a.live, fh.id)
}

func (a *fakeAcquirer) setFail(id string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err == nil {
		delete(a.fail, id)
		return
	}
	a.fail[id] = err
}

func (a *fakeAcquirer) counts(id string) (acquired, released int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acquired[id], a.released[id]
}

func (a *fakeAcquirer) handle(id string) *fakeHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live[id]
}

type fakeEnumerator struct {
	cameras []DeviceInfo
	mics    []DeviceInfo
	calls   int
}

func (e *fakeEnumerator) ListCameras(context.Context) ([]DeviceInfo, error) {
	e.calls++
	return e.cameras, nil
}

func (e *fakeEnumerator) ListMicrophones(context.Context) ([]DeviceInfo, error) {
	return e.mics, nil
}

func camera(id scene.SourceID, device string) scene.Source {
	return scene.Source{ID: id, Visible: true, Content: scene.Camera{DeviceID: device}}
}

// waitState polls until the device reaches want or the timeout expires.
func waitState(t *testing.T, m *Manager, device string, want BindingState) Binding {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, b := range m.Bindings() {
			if b.DeviceID == device && b.State == want {
				return b
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("device %s never reached state %s; bindings: %+v", device, want, m.Bindings())
	return Binding{}
}

func TestSharedDeviceIsRefCounted(t *testing.T) {
	acq := newFakeAcquirer()
	m := NewManager(&fakeEnumerator{}, acq, testLogger(), nil)
	defer m.Close()

	a, b := camera("a", "/dev/video0"), camera("b", "/dev/video0")
	m.SourceShown(a)
	m.SourceShown(b)
	binding := waitState(t, m, "/dev/video0", StateLive)
	if binding.RefCount != 2 {
		t.Errorf("RefCount = %d, want 2", binding.RefCount)
	}

	m.SourceHidden(a)
	if acquired, released := acq.counts("/dev/video0"); acquired != 1 || released != 0 {
		t.Errorf("after first hide: acquired=%d released=%d, want 1/0", acquired, released)
	}
	if _, ok := m.Frame("/dev/video0"); !ok {
		t.Error("expected frame while one source still references the device")
	}

	m.SourceRemoved(b)
	if _, released := acq.counts("/dev/video0"); released != 1 {
		t.Errorf("released = %d, want 1 synchronously on last removal", released)
	}
	if len(m.Bindings()) != 0 {
		t.Errorf("expected no bindings, got %+v", m.Bindings())
	}
	if _, ok := m.Frame("/dev/video0"); ok {
		t.Error("expected no frame after release")
	}
}

func TestAcquisitionFailureIsSilent(t *testing.T) {
	acq := newFakeAcquirer()
	acq.setFail("/dev/video1", errors.New("device busy"))
	m := NewManager(&fakeEnumerator{}, acq, testLogger(), nil)
	defer m.Close()

	m.SourceShown(camera("cam", "/dev/video1"))
	b := waitState(t, m, "/dev/video1", StateFailed)
	if b.Error == "" {
		t.Error("expected failure reason on binding")
	}
	if _, ok := m.Frame("/dev/video1"); ok {
		t.Error("failed binding must not produce frames")
	}

	acq.setFail("/dev/video1", nil)
	if err := m.Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	waitState(t, m, "/dev/video1", StateLive)
	if acquired, _ := acq.counts("/dev/video1"); acquired != 2 {
		t.Errorf("acquired = %d, want 2 after rescan", acquired)
	}
}

func TestLostCaptureMarksFailed(t *testing.T) {
	acq := newFakeAcquirer()
	m := NewManager(&fakeEnumerator{}, acq, testLogger(), nil)
	defer m.Close()

	m.SourceShown(camera("cam", "/dev/video2"))
	waitState(t, m, "/dev/video2", StateLive)

	acq.handle("/dev/video2").end()
	b := waitState(t, m, "/dev/video2", StateFailed)
	if b.Error == "" {
		t.Error("expected capture loss reason")
	}
	if _, released := acq.counts("/dev/video2"); released != 1 {
		t.Errorf("released = %d, want 1", released)
	}
}

func TestHiddenUnknownSourceIsIgnored(t *testing.T) {
	acq := newFakeAcquirer()
	m := NewManager(&fakeEnumerator{}, acq, testLogger(), nil)
	defer m.Close()

	m.SourceShown(camera("a", "/dev/video0"))
	m.SourceHidden(camera("other", "/dev/video0"))
	m.SourceHidden(camera("a", "/dev/video9"))

	b := waitState(t, m, "/dev/video0", StateLive)
	if b.RefCount != 1 {
		t.Errorf("RefCount = %d, want 1", b.RefCount)
	}
}

func TestEnumerationIsASnapshot(t *testing.T) {
	enum := &fakeEnumerator{cameras: []DeviceInfo{{ID: "/dev/video0", Label: "Cam"}}}
	m := NewManager(enum, newFakeAcquirer(), testLogger(), nil)
	defer m.Close()

	cams, err := m.ListCameras(context.Background())
	if err != nil || len(cams) != 1 {
		t.Fatalf("ListCameras = %v, %v", cams, err)
	}

	enum.cameras = append(enum.cameras, DeviceInfo{ID: "/dev/video2", Label: "New"})
	cams, _ = m.ListCameras(context.Background())
	if len(cams) != 1 {
		t.Errorf("expected cached snapshot of 1 camera, got %d", len(cams))
	}

	if err := m.Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	cams, _ = m.ListCameras(context.Background())
	if len(cams) != 2 {
		t.Errorf("expected 2 cameras after rescan, got %d", len(cams))
	}
	if enum.calls != 2 {
		t.Errorf("enumerator called %d times, want 2", enum.calls)
	}
}

func TestBinderThroughSceneModel(t *testing.T) {
	acq := newFakeAcquirer()
	m := NewManager(&fakeEnumerator{}, acq, testLogger(), nil)
	defer m.Close()

	model := scene.NewModel(testLogger(), "Main", scene.WithBinder(m))
	sc := model.ActiveID()
	id, err := model.AddSource(sc, scene.NewSource{Content: scene.Camera{DeviceID: "/dev/video0"}})
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	waitState(t, m, "/dev/video0", StateLive)

	if err := model.RemoveSource(id); err != nil {
		t.Fatalf("RemoveSource: %v", err)
	}
	if _, released := acq.counts("/dev/video0"); released != 1 {
		t.Errorf("removal must release the device before returning, released=%d", released)
	}
}

func TestDeviceErrorUnwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := error(&DeviceError{DeviceID: "/dev/video0", Op: "acquire", Err: cause})
	if !errors.Is(err, cause) {
		t.Error("expected DeviceError to unwrap to its cause")
	}
	if got := err.Error(); got != "device /dev/video0: acquire: permission denied" {
		t.Errorf("Error() = %q", got)
	}
}

// serialAcquirer records overlapping Acquire/Release calls per device.
// Acquire waits for the device's gate to close; releaseDelay slows Release.
type serialAcquirer struct {
	*fakeAcquirer
	gates        map[string]chan struct{}
	releaseDelay time.Duration
	entered      chan string

	mu       sync.Mutex
	inflight map[string]int
	overlaps []string
}

func newSerialAcquirer() *serialAcquirer {
	return &serialAcquirer{
		fakeAcquirer: newFakeAcquirer(),
		gates:        make(map[string]chan struct{}),
		entered:      make(chan string, 8),
		inflight:     make(map[string]int),
	}
}

func (a *serialAcquirer) enter(id, op string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight[id]++
	if a.inflight[id] > 1 {
		a.overlaps = append(a.overlaps, op+" "+id)
	}
}

func (a *serialAcquirer) leave(id string) {
	a.mu.Lock()
	a.inflight[id]--
	a.mu.Unlock()
}

func (a *serialAcquirer) Acquire(ctx context.Context, id string) (Handle, error) {
	a.enter(id, "acquire")
	defer a.leave(id)
	a.entered <- id
	if gate := a.gates[id]; gate != nil {
		<-gate
	}
	return a.fakeAcquirer.Acquire(ctx, id)
}

func (a *serialAcquirer) Release(h Handle) {
	id := h.(*fakeHandle).id
	a.enter(id, "release")
	defer a.leave(id)
	time.Sleep(a.releaseDelay)
	a.fakeAcquirer.Release(h)
}

func (a *serialAcquirer) overlapping() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.overlaps...)
}

func TestDeviceOperationsAreSerializedPerDevice(t *testing.T) {
	acq := newSerialAcquirer()
	gate := make(chan struct{})
	acq.gates["/dev/video0"] = gate
	m := NewManager(&fakeEnumerator{}, acq, testLogger(), nil)
	defer m.Close()

	m.SourceShown(camera("a", "/dev/video0"))
	select {
	case id := <-acq.entered:
		if id != "/dev/video0" {
			t.Fatalf("first acquisition for %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("acquisition never started")
	}

	// Hide and show again while the first acquisition is still pending.
	m.SourceHidden(camera("a", "/dev/video0"))
	m.SourceShown(camera("a2", "/dev/video0"))

	// A second device binds while the first one is stuck.
	m.SourceShown(camera("b", "/dev/video1"))
	waitState(t, m, "/dev/video1", StateLive)
	<-acq.entered

	select {
	case id := <-acq.entered:
		t.Fatalf("acquisition for %s started while the previous one was pending", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	waitState(t, m, "/dev/video0", StateLive)

	if got := acq.overlapping(); len(got) != 0 {
		t.Errorf("overlapping device operations: %v", got)
	}
	acquired, released := acq.counts("/dev/video0")
	if acquired != 2 || released != 1 {
		t.Errorf("acquired, released = %d, %d; want 2, 1 (stale handle released)", acquired, released)
	}
}

func TestLostCaptureReleasedBeforeFailing(t *testing.T) {
	acq := newSerialAcquirer()
	acq.releaseDelay = 30 * time.Millisecond
	m := NewManager(&fakeEnumerator{}, acq, testLogger(), nil)
	defer m.Close()

	m.SourceShown(camera("cam", "/dev/video3"))
	waitState(t, m, "/dev/video3", StateLive)

	acq.handle("/dev/video3").end()
	waitState(t, m, "/dev/video3", StateFailed)
	if acq.handle("/dev/video3") != nil {
		t.Fatal("binding reported failed while the lost handle was still held")
	}

	if err := m.Rescan(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitState(t, m, "/dev/video3", StateLive)
	if got := acq.overlapping(); len(got) != 0 {
		t.Errorf("overlapping device operations: %v", got)
	}
	if acquired, released := acq.counts("/dev/video3"); acquired != 2 || released != 1 {
		t.Errorf("acquired, released = %d, %d; want 2, 1", acquired, released)
	}
}
