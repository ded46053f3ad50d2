package scene

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/smazurov/scenecast/internal/events"
)

// Default placement for sources added without explicit bounds.
var DefaultBounds = Rect{X: 100, Y: 100, Width: 400, Height: 300}

const defaultVolume = 100

// Binder is notified synchronously when a camera source starts or stops
// needing its device. Implementations must not call back into the Model.
type Binder interface {
	SourceShown(src Source)
	SourceHidden(src Source)
	SourceRemoved(src Source)
}

// NewSource describes a source to add. Nil pointer fields take defaults:
// visible, DefaultBounds, volume 100 and a z-index above every existing source.
type NewSource struct {
	ID      SourceID
	Name    string
	Content Content
	Visible *bool
	Locked  bool
	Bounds  *Rect
	Volume  *int
	Muted   bool
	ZIndex  *int
}

// SourcePatch is a partial update. Nil fields are left unchanged.
type SourcePatch struct {
	Name    *string
	Visible *bool
	Locked  *bool
	Bounds  *Rect
	Volume  *int
	Muted   *bool
	ZIndex  *int
	Content Content
}

// Model owns every scene and source. All methods are safe for concurrent use;
// readers receive copies and never observe a partially applied mutation.
type Model struct {
	mu     sync.RWMutex
	scenes []*Scene
	owners map[SourceID]*Scene
	active SceneID
	binder Binder
	bus    *events.Bus
	logger *slog.Logger
	newID  func() string
}

// Option configures a Model.
type Option func(*Model)

// WithBinder sets the device binder notified about camera visibility.
func WithBinder(b Binder) Option {
	return func(m *Model) { m.binder = b }
}

// WithEventBus publishes a change event after every mutation.
func WithEventBus(bus *events.Bus) Option {
	return func(m *Model) { m.bus = bus }
}

// WithIDGenerator replaces uuid generation, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(m *Model) { m.newID = fn }
}

// NewModel creates a model holding a single scene named firstScene.
func NewModel(logger *slog.Logger, firstScene string, opts ...Option) *Model {
	m := &Model{
		owners: make(map[SourceID]*Scene),
		logger: logger,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	if strings.TrimSpace(firstScene) == "" {
		firstScene = "Scene"
	}
	first := &Scene{ID: SceneID(m.newID()), Name: firstScene}
	m.scenes = append(m.scenes, first)
	m.active = first.ID
	return m
}

// SetBinder attaches the binder after construction and announces every visible
// camera source already in the model.
func (m *Model) SetBinder(b Binder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binder = b
	for _, sc := range m.scenes {
		for _, src := range sc.Sources {
			m.shown(src)
		}
	}
}

// CreateScene appends a new empty scene.
func (m *Model) CreateScene(name string) (SceneID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "scene name must not be empty")
	}

	m.mu.Lock()
	sc := &Scene{ID: SceneID(m.newID()), Name: name}
	m.scenes = append(m.scenes, sc)
	m.mu.Unlock()

	m.logger.Info("Scene created", "scene_id", sc.ID, "name", name)
	m.bus.Publish(events.SceneCreatedEvent{SceneID: string(sc.ID), Name: name, Timestamp: events.Now()})
	return sc.ID, nil
}

// RenameScene changes a scene's display name.
func (m *Model) RenameScene(id SceneID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("name", "scene name must not be empty")
	}

	m.mu.Lock()
	sc := m.scene(id)
	if sc == nil {
		m.mu.Unlock()
		return sceneNotFound(id)
	}
	previous := sc.Name
	sc.Name = name
	m.mu.Unlock()

	if previous == name {
		return nil
	}
	m.logger.Info("Scene renamed", "scene_id", id, "from", previous, "to", name)
	m.bus.Publish(events.SceneRenamedEvent{SceneID: string(id), Name: name, Previous: previous, Timestamp: events.Now()})
	return nil
}

// DeleteScene removes a scene and its sources. Device handles of its camera
// sources are released before the sources leave the model.
func (m *Model) DeleteScene(id SceneID) error {
	m.mu.Lock()
	idx := m.sceneIndex(id)
	if idx < 0 {
		m.mu.Unlock()
		return sceneNotFound(id)
	}
	if len(m.scenes) == 1 {
		m.mu.Unlock()
		return &LastSceneError{SceneID: id}
	}

	sc := m.scenes[idx]
	for _, src := range sc.Sources {
		m.removed(src)
		delete(m.owners, src.ID)
	}
	m.scenes = append(m.scenes[:idx], m.scenes[idx+1:]...)

	previous := m.active
	if m.active == id {
		m.active = m.scenes[0].ID
	}
	active := m.active
	m.mu.Unlock()

	m.logger.Info("Scene deleted", "scene_id", id, "sources", len(sc.Sources))
	m.bus.Publish(events.SceneDeletedEvent{SceneID: string(id), Timestamp: events.Now()})
	if active != previous {
		m.bus.Publish(events.ActiveSceneChangedEvent{SceneID: string(active), Previous: string(previous), Timestamp: events.Now()})
	}
	return nil
}

// SetActiveScene selects the scene composited and described for output.
func (m *Model) SetActiveScene(id SceneID) error {
	m.mu.Lock()
	if m.scene(id) == nil {
		m.mu.Unlock()
		return sceneNotFound(id)
	}
	previous := m.active
	m.active = id
	m.mu.Unlock()

	if previous != id {
		m.logger.Info("Active scene changed", "scene_id", id, "previous", previous)
		m.bus.Publish(events.ActiveSceneChangedEvent{SceneID: string(id), Previous: string(previous), Timestamp: events.Now()})
	}
	return nil
}

// AddSource adds a layer to a scene and returns its id.
func (m *Model) AddSource(sceneID SceneID, spec NewSource) (SourceID, error) {
	if spec.Content == nil {
		return "", invalid("type", "source content is required")
	}
	if err := spec.Content.validate(); err != nil {
		return "", err
	}
	src := Source{
		ID:      spec.ID,
		Name:    strings.TrimSpace(spec.Name),
		Visible: true,
		Locked:  spec.Locked,
		Bounds:  DefaultBounds,
		Volume:  defaultVolume,
		Muted:   spec.Muted,
		Content: spec.Content,
	}
	if src.Name == "" {
		src.Name = defaultName(spec.Content.Kind())
	}
	if spec.Visible != nil {
		src.Visible = *spec.Visible
	}
	if spec.Bounds != nil {
		src.Bounds = *spec.Bounds
	}
	if err := src.Bounds.validate(); err != nil {
		return "", err
	}
	if spec.Volume != nil {
		src.Volume = clampVolume(*spec.Volume)
	}

	m.mu.Lock()
	sc := m.scene(sceneID)
	if sc == nil {
		m.mu.Unlock()
		return "", sceneNotFound(sceneID)
	}
	if src.ID == "" {
		src.ID = SourceID(m.newID())
	} else if _, taken := m.owners[src.ID]; taken {
		m.mu.Unlock()
		return "", invalid("id", "source id %q is already in use", src.ID)
	}
	src.ZIndex = len(sc.Sources)
	if spec.ZIndex != nil {
		src.ZIndex = *spec.ZIndex
	}
	sc.Sources = append(sc.Sources, src)
	m.owners[src.ID] = sc
	m.shown(src)
	m.mu.Unlock()

	m.logger.Debug("Source added", "scene_id", sceneID, "source_id", src.ID, "kind", src.Kind(), "bounds", src.Bounds.String())
	m.bus.Publish(events.SourceAddedEvent{
		SceneID:   string(sceneID),
		SourceID:  string(src.ID),
		Kind:      string(src.Kind()),
		Timestamp: events.Now(),
	})
	return src.ID, nil
}

// UpdateSource applies a partial update. Bounds and z-index of a locked source
// can only change in the same patch that unlocks it. The content variant may
// be replaced but not change kind.
func (m *Model) UpdateSource(id SourceID, patch SourcePatch) error {
	m.mu.Lock()
	sc, idx := m.source(id)
	if sc == nil {
		m.mu.Unlock()
		return sourceNotFound(id)
	}
	before := sc.Sources[idx]
	after, fields, err := applyPatch(before, patch)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	sc.Sources[idx] = after
	m.rebind(before, after)
	m.mu.Unlock()

	if len(fields) == 0 {
		return nil
	}
	m.logger.Debug("Source updated", "source_id", id, "fields", fields)
	m.bus.Publish(events.SourceUpdatedEvent{
		SceneID:   string(sc.ID),
		SourceID:  string(id),
		Fields:    fields,
		Timestamp: events.Now(),
	})
	return nil
}

// Reorder moves a source to a new z-index.
func (m *Model) Reorder(id SourceID, zIndex int) error {
	return m.UpdateSource(id, SourcePatch{ZIndex: &zIndex})
}

// RemoveSource deletes a source. A camera source releases its device handle
// before it is removed.
func (m *Model) RemoveSource(id SourceID) error {
	m.mu.Lock()
	sc, idx := m.source(id)
	if sc == nil {
		m.mu.Unlock()
		return sourceNotFound(id)
	}
	src := sc.Sources[idx]
	m.removed(src)
	sc.Sources = append(sc.Sources[:idx], sc.Sources[idx+1:]...)
	delete(m.owners, id)
	m.mu.Unlock()

	m.logger.Debug("Source removed", "scene_id", sc.ID, "source_id", id)
	m.bus.Publish(events.SourceRemovedEvent{SceneID: string(sc.ID), SourceID: string(id), Timestamp: events.Now()})
	return nil
}

// Scenes returns copies of every scene in creation order.
func (m *Model) Scenes() []Scene {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Scene, len(m.scenes))
	for i, sc := range m.scenes {
		out[i] = sc.clone()
	}
	return out
}

// Scene returns a copy of one scene.
func (m *Model) Scene(id SceneID) (Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc := m.scene(id)
	if sc == nil {
		return Scene{}, sceneNotFound(id)
	}
	return sc.clone(), nil
}

// ActiveID returns the id of the active scene.
func (m *Model) ActiveID() SceneID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Active returns a copy of the active scene.
func (m *Model) Active() Scene {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scene(m.active).clone()
}

// Source returns a copy of a source and the id of its scene.
func (m *Model) Source(id SourceID) (Source, SceneID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, idx := m.source(id)
	if sc == nil {
		return Source{}, "", sourceNotFound(id)
	}
	return sc.Sources[idx], sc.ID, nil
}

func (m *Model) scene(id SceneID) *Scene {
	if i := m.sceneIndex(id); i >= 0 {
		return m.scenes[i]
	}
	return nil
}

func (m *Model) sceneIndex(id SceneID) int {
	for i, sc := range m.scenes {
		if sc.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) source(id SourceID) (*Scene, int) {
	sc, ok := m.owners[id]
	if !ok {
		return nil, -1
	}
	for i := range sc.Sources {
		if sc.Sources[i].ID == id {
			return sc, i
		}
	}
	return nil, -1
}

func (m *Model) shown(src Source) {
	if m.binder != nil && src.Visible && src.Kind() == KindCamera {
		m.binder.SourceShown(src)
	}
}

func (m *Model) removed(src Source) {
	if m.binder != nil && src.Kind() == KindCamera {
		m.binder.SourceRemoved(src)
	}
}

// rebind notifies the binder about a visibility or device change of one source.
func (m *Model) rebind(before, after Source) {
	if m.binder == nil || before.Kind() != KindCamera {
		return
	}
	wasBound := before.Visible
	isBound := after.Visible
	sameDevice := DeviceID(before.Content) == DeviceID(after.Content)

	switch {
	case wasBound && isBound && !sameDevice:
		m.binder.SourceHidden(before)
		m.binder.SourceShown(after)
	case wasBound && !isBound:
		m.binder.SourceHidden(before)
	case !wasBound && isBound:
		m.binder.SourceShown(after)
	}
}

func applyPatch(src Source, p SourcePatch) (Source, []string, error) {
	var fields []string
	unlocking := p.Locked != nil && !*p.Locked

	if src.Locked && !unlocking {
		if p.Bounds != nil && *p.Bounds != src.Bounds {
			return src, nil, invalid("bounds", "source %q is locked", src.ID)
		}
		if p.ZIndex != nil && *p.ZIndex != src.ZIndex {
			return src, nil, invalid("z_index", "source %q is locked", src.ID)
		}
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return src, nil, invalid("name", "source name must not be empty")
		}
		if name != src.Name {
			src.Name = name
			fields = append(fields, "name")
		}
	}
	if p.Content != nil {
		if p.Content.Kind() != src.Kind() {
			return src, nil, invalid("type", "cannot change source type from %s to %s", src.Kind(), p.Content.Kind())
		}
		if err := p.Content.validate(); err != nil {
			return src, nil, err
		}
		if p.Content != src.Content {
			src.Content = p.Content
			fields = append(fields, "content")
		}
	}
	if p.Bounds != nil && *p.Bounds != src.Bounds {
		if err := p.Bounds.validate(); err != nil {
			return src, nil, err
		}
		src.Bounds = *p.Bounds
		fields = append(fields, "bounds")
	}
	if p.ZIndex != nil && *p.ZIndex != src.ZIndex {
		src.ZIndex = *p.ZIndex
		fields = append(fields, "z_index")
	}
	if p.Visible != nil && *p.Visible != src.Visible {
		src.Visible = *p.Visible
		fields = append(fields, "visible")
	}
	if p.Locked != nil && *p.Locked != src.Locked {
		src.Locked = *p.Locked
		fields = append(fields, "locked")
	}
	if p.Volume != nil {
		if v := clampVolume(*p.Volume); v != src.Volume {
			src.Volume = v
			fields = append(fields, "volume")
		}
	}
	if p.Muted != nil && *p.Muted != src.Muted {
		src.Muted = *p.Muted
		fields = append(fields, "muted")
	}
	return src, fields, nil
}

func defaultName(k Kind) string {
	switch k {
	case KindCamera:
		return "Camera"
	case KindScreenCapture:
		return "Screen Capture"
	case KindWindowCapture:
		return "Window Capture"
	case KindStaticImage:
		return "Image"
	case KindStaticColor:
		return "Color"
	case KindMediaFile:
		return "Media"
	}
	return "Source"
}
