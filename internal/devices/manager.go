package devices

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/scenecast/internal/events"
	"github.com/smazurov/scenecast/internal/metrics"
	"github.com/smazurov/scenecast/internal/scene"
)

// Manager keeps one capture handle per device referenced by a visible camera
// source. It implements scene.Binder; acquisition runs in the background and
// a failure only ever surfaces as a failed binding.
type Manager struct {
	enum   Enumerator
	acq    Acquirer
	logger *slog.Logger
	bus    *events.Bus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	bindings map[string]*binding
	devLocks map[string]*sync.Mutex
	seq      uint64
	cameras  []DeviceInfo
	mics     []DeviceInfo
	scanned  bool
}

type binding struct {
	deviceID string
	sources  map[scene.SourceID]struct{}
	state    BindingState
	handle   Handle
	err      error
	gen      uint64 // acquisition attempt, unique across the manager
	cancel   context.CancelFunc
	since    time.Time
}

// NewManager creates a binding manager. bus may be nil.
func NewManager(enum Enumerator, acq Acquirer, logger *slog.Logger, bus *events.Bus) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		enum:     enum,
		acq:      acq,
		logger:   logger,
		bus:      bus,
		ctx:      ctx,
		cancel:   cancel,
		bindings: make(map[string]*binding),
		devLocks: make(map[string]*sync.Mutex),
	}
}

// lockDevice serializes Acquire and Release calls for one device.
func (m *Manager) lockDevice(id string) func() {
	m.mu.Lock()
	l, ok := m.devLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.devLocks[id] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// SourceShown adds a reference to the source's device and starts acquisition
// when the device has no handle yet.
func (m *Manager) SourceShown(src scene.Source) {
	id := scene.DeviceID(src.Content)
	if id == "" {
		return
	}

	m.mu.Lock()
	b, ok := m.bindings[id]
	if !ok {
		b = &binding{deviceID: id, sources: make(map[scene.SourceID]struct{})}
		m.bindings[id] = b
	}
	b.sources[src.ID] = struct{}{}
	start := !ok
	if start {
		m.setState(b, StatePending, nil)
	}
	snap := b.snapshot()
	m.mu.Unlock()

	m.publish(snap)
	if start {
		m.startAcquire(id)
	}
}

// SourceHidden drops the source's reference to its device.
func (m *Manager) SourceHidden(src scene.Source) {
	m.unref(src)
}

// SourceRemoved drops the source's reference to its device. The handle is
// released before this returns when no other source needs it.
func (m *Manager) SourceRemoved(src scene.Source) {
	m.unref(src)
}

func (m *Manager) unref(src scene.Source) {
	id := scene.DeviceID(src.Content)

	m.mu.Lock()
	b, ok := m.bindings[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if _, ref := b.sources[src.ID]; !ref {
		m.mu.Unlock()
		return
	}
	delete(b.sources, src.ID)
	if len(b.sources) > 0 {
		snap := b.snapshot()
		m.mu.Unlock()
		m.publish(snap)
		return
	}

	delete(m.bindings, id)
	b.gen = 0
	if b.cancel != nil {
		b.cancel()
	}
	h := b.handle
	b.handle = nil
	m.setState(b, StateReleased, nil)
	snap := b.snapshot()
	m.mu.Unlock()

	if h != nil {
		unlock := m.lockDevice(id)
		m.acq.Release(h)
		unlock()
	}
	m.logger.Info("Device released", "device_id", id)
	m.publish(snap)
}

// startAcquire acquires the device in the background for the current generation.
func (m *Manager) startAcquire(id string) {
	m.mu.Lock()
	b, ok := m.bindings[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.seq++
	b.gen = m.seq
	gen := b.gen
	ctx, cancel := context.WithCancel(m.ctx)
	b.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.acquire(ctx, id, gen)
	}()
}

func (m *Manager) acquire(ctx context.Context, id string, gen uint64) {
	unlock := m.lockDevice(id)
	defer unlock()

	h, err := m.acq.Acquire(ctx, id)

	m.mu.Lock()
	b, ok := m.bindings[id]
	if !ok || b.gen != gen {
		m.mu.Unlock()
		if h != nil {
			m.acq.Release(h)
		}
		return
	}
	b.cancel = nil
	if err != nil {
		transition := b.state != StateFailed
		m.setState(b, StateFailed, &DeviceError{DeviceID: id, Op: "acquire", Err: err})
		snap := b.snapshot()
		m.mu.Unlock()
		if transition {
			m.logger.Warn("Device acquisition failed, rendering placeholder", "device_id", id, "error", err)
		}
		m.publish(snap)
		return
	}
	b.handle = h
	m.setState(b, StateLive, nil)
	snap := b.snapshot()
	m.mu.Unlock()

	m.logger.Info("Device acquired", "device_id", id)
	m.publish(snap)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.watch(id, gen, h)
	}()
}

// watch marks the binding failed when a live capture ends on its own. The
// old handle is released under the device lock before the failure becomes
// visible, so a retry never finds the device still held.
func (m *Manager) watch(id string, gen uint64, h Handle) {
	select {
	case <-m.ctx.Done():
		return
	case <-h.Done():
	}

	unlock := m.lockDevice(id)
	m.mu.Lock()
	b, ok := m.bindings[id]
	if !ok || b.gen != gen || b.handle != h {
		m.mu.Unlock()
		unlock()
		return
	}
	b.handle = nil
	m.mu.Unlock()

	m.acq.Release(h)

	cause := h.Err()
	if cause == nil {
		cause = fmt.Errorf("capture ended")
	}
	m.mu.Lock()
	b, ok = m.bindings[id]
	if !ok || b.gen != gen {
		m.mu.Unlock()
		unlock()
		return
	}
	m.setState(b, StateFailed, &DeviceError{DeviceID: id, Op: "capture", Err: cause})
	snap := b.snapshot()
	m.mu.Unlock()
	unlock()

	m.logger.Warn("Device capture lost", "device_id", id, "error", cause)
	m.publish(snap)
}

// Frame returns the latest frame of a live device.
func (m *Manager) Frame(deviceID string) (image.Image, bool) {
	m.mu.Lock()
	b, ok := m.bindings[deviceID]
	var h Handle
	if ok && b.state == StateLive {
		h = b.handle
	}
	m.mu.Unlock()
	if h == nil {
		return nil, false
	}
	return h.Frame()
}

// Bindings returns a snapshot of every active binding ordered by device ID.
func (m *Manager) Bindings() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Binding, 0, len(m.bindings))
	for _, id := range slices.Sorted(maps.Keys(m.bindings)) {
		out = append(out, m.bindings[id].snapshot())
	}
	return out
}

// ListCameras returns the last enumeration snapshot, scanning once if needed.
func (m *Manager) ListCameras(ctx context.Context) ([]DeviceInfo, error) {
	if err := m.ensureScanned(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.cameras), nil
}

// ListMicrophones returns the last enumeration snapshot, scanning once if needed.
func (m *Manager) ListMicrophones(ctx context.Context) ([]DeviceInfo, error) {
	if err := m.ensureScanned(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.mics), nil
}

func (m *Manager) ensureScanned(ctx context.Context) error {
	m.mu.Lock()
	scanned := m.scanned
	m.mu.Unlock()
	if scanned {
		return nil
	}
	return m.scan(ctx)
}

func (m *Manager) scan(ctx context.Context) error {
	cameras, err := m.enum.ListCameras(ctx)
	if err != nil {
		return &DeviceError{Op: "list cameras", Err: err}
	}
	mics, err := m.enum.ListMicrophones(ctx)
	if err != nil {
		return &DeviceError{Op: "list microphones", Err: err}
	}

	m.mu.Lock()
	m.cameras, m.mics, m.scanned = cameras, mics, true
	m.mu.Unlock()

	m.logger.Debug("Devices enumerated", "cameras", len(cameras), "microphones", len(mics))
	return nil
}

// Rescan refreshes the device snapshot and retries every failed binding.
func (m *Manager) Rescan(ctx context.Context) error {
	err := m.scan(ctx)

	m.mu.Lock()
	var retry []string
	for id, b := range m.bindings {
		if b.state == StateFailed {
			m.setState(b, StatePending, nil)
			retry = append(retry, id)
		}
	}
	snaps := make([]Binding, 0, len(retry))
	for _, id := range retry {
		snaps = append(snaps, m.bindings[id].snapshot())
	}
	m.mu.Unlock()

	for i, id := range retry {
		m.publish(snaps[i])
		m.startAcquire(id)
	}
	if len(retry) > 0 {
		m.logger.Info("Retrying failed devices", "count", len(retry))
	}
	return err
}

// Close releases every handle and waits for background acquisitions.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	var handles []Handle
	for id, b := range m.bindings {
		b.gen = 0
		if b.cancel != nil {
			b.cancel()
		}
		if b.handle != nil {
			handles = append(handles, b.handle)
		}
		delete(m.bindings, id)
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.acq.Release(h)
	}
	m.wg.Wait()
}

// setState must be called with m.mu held.
func (m *Manager) setState(b *binding, state BindingState, err error) {
	b.state = state
	b.err = err
	b.since = time.Now()
}

func (m *Manager) publish(b Binding) {
	metrics.SetDeviceBinding(b.DeviceID, string(b.State), b.RefCount)
	m.bus.Publish(events.DeviceBindingEvent{
		DeviceID:  b.DeviceID,
		State:     string(b.State),
		RefCount:  b.RefCount,
		Error:     b.Error,
		Timestamp: events.Now(),
	})
}

func (b *binding) snapshot() Binding {
	s := Binding{
		DeviceID: b.deviceID,
		State:    b.state,
		RefCount: len(b.sources),
		Sources:  make([]string, 0, len(b.sources)),
		Since:    b.since,
	}
	for id := range b.sources {
		s.Sources = append(s.Sources, string(id))
	}
	slices.Sort(s.Sources)
	if b.err != nil {
		s.Error = b.err.Error()
	}
	return s
}
