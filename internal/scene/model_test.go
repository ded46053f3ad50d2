package scene

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/scenecast/internal/events"
)

type binderCall struct {
	op       string
	sourceID SourceID
	deviceID string
}

type recordingBinder struct {
	mu    sync.Mutex
	calls []binderCall
}

func (b *recordingBinder) record(op string, src Source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, binderCall{op: op, sourceID: src.ID, deviceID: DeviceID(src.Content)})
}

func (b *recordingBinder) SourceShown(src Source)   { b.record("shown", src) }
func (b *recordingBinder) SourceHidden(src Source)  { b.record("hidden", src) }
func (b *recordingBinder) SourceRemoved(src Source) { b.record("removed", src) }

func (b *recordingBinder) ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	for i, c := range b.calls {
		out[i] = c.op + ":" + c.deviceID
	}
	return out
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestModel(opts ...Option) *Model {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	return NewModel(logger, "Main Scene", opts...)
}

func ptr[T any](v T) *T { return &v }

func TestAddSourceDefaults(t *testing.T) {
	m := newTestModel()
	sceneID := m.ActiveID()

	id, err := m.AddSource(sceneID, NewSource{Content: StaticColor{Color: "#ff0000"}})
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	second, err := m.AddSource(sceneID, NewSource{Name: "Cam", Content: Camera{DeviceID: "/dev/video0"}})
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	src, owner, err := m.Source(id)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if owner != sceneID {
		t.Errorf("owner = %s, want %s", owner, sceneID)
	}
	if !src.Visible || src.Volume != 100 || src.Bounds != DefaultBounds || src.ZIndex != 0 || src.Name != "Color" {
		t.Errorf("unexpected defaults: %+v", src)
	}
	cam, _, _ := m.Source(second)
	if cam.ZIndex != 1 {
		t.Errorf("second source z-index = %d, want 1", cam.ZIndex)
	}
}

func TestAddSourceValidation(t *testing.T) {
	m := newTestModel()
	sceneID := m.ActiveID()

	tests := []struct {
		name  string
		spec  NewSource
		field string
	}{
		{"missing content", NewSource{}, "type"},
		{"camera without device", NewSource{Content: Camera{}}, "device_id"},
		{"bad color", NewSource{Content: StaticColor{Color: "blue"}}, "content_ref"},
		{"image without path", NewSource{Content: StaticImage{}}, "content_ref"},
		{"zero width", NewSource{Content: ScreenCapture{}, Bounds: &Rect{Width: 0, Height: 10}}, "bounds"},
		{"negative height", NewSource{Content: ScreenCapture{}, Bounds: &Rect{Width: 10, Height: -1}}, "bounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.AddSource(sceneID, tt.spec)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	if n := len(m.Active().Sources); n != 0 {
		t.Errorf("rejected sources must not be added, scene has %d", n)
	}
}

func TestAddSourceUnknownScene(t *testing.T) {
	m := newTestModel()
	_, err := m.AddSource("nope", NewSource{Content: ScreenCapture{}})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "scene" {
		t.Fatalf("expected scene NotFoundError, got %v", err)
	}
}

func TestVolumeIsClamped(t *testing.T) {
	m := newTestModel()
	id, _ := m.AddSource(m.ActiveID(), NewSource{Content: MediaFile{Path: "intro.mp4"}, Volume: ptr(150)})

	src, _, _ := m.Source(id)
	if src.Volume != 100 {
		t.Errorf("volume = %d, want 100", src.Volume)
	}
	if err := m.UpdateSource(id, SourcePatch{Volume: ptr(-20)}); err != nil {
		t.Fatal(err)
	}
	src, _, _ = m.Source(id)
	if src.Volume != 0 {
		t.Errorf("volume = %d, want 0", src.Volume)
	}
}

func TestDeleteLastSceneFails(t *testing.T) {
	m := newTestModel()
	only := m.ActiveID()
	if _, err := m.AddSource(only, NewSource{Content: StaticColor{Color: "#000"}}); err != nil {
		t.Fatal(err)
	}
	before := m.Active()

	err := m.DeleteScene(only)
	var last *LastSceneError
	if !errors.As(err, &last) {
		t.Fatalf("expected LastSceneError, got %v", err)
	}

	after := m.Active()
	if after.ID != before.ID || len(after.Sources) != len(before.Sources) {
		t.Errorf("scene changed after failed delete: %+v", after)
	}
}

func TestDeleteSceneReleasesDevicesFirst(t *testing.T) {
	binder := &recordingBinder{}
	m := newTestModel(WithBinder(binder))
	first := m.ActiveID()
	other, _ := m.CreateScene("Other")

	if _, err := m.AddSource(other, NewSource{Content: Camera{DeviceID: "/dev/video0"}}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetActiveScene(other); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteScene(other); err != nil {
		t.Fatalf("DeleteScene: %v", err)
	}

	want := []string{"shown:/dev/video0", "removed:/dev/video0"}
	if got := binder.ops(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("binder calls = %v, want %v", got, want)
	}
	if m.ActiveID() != first {
		t.Errorf("active scene = %s, want fallback %s", m.ActiveID(), first)
	}
	if _, err := m.Scene(other); err == nil {
		t.Error("deleted scene still reachable")
	}
}

func TestSetActiveSceneUnknown(t *testing.T) {
	m := newTestModel()
	err := m.SetActiveScene("missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateSourceNotFound(t *testing.T) {
	m := newTestModel()
	err := m.UpdateSource("ghost", SourcePatch{Visible: ptr(false)})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "source" {
		t.Fatalf("expected source NotFoundError, got %v", err)
	}
}

func TestLockedSourceRejectsPlacement(t *testing.T) {
	m := newTestModel()
	id, _ := m.AddSource(m.ActiveID(), NewSource{
		Content: StaticColor{Color: "#1e1b4b"},
		Locked:  true,
		Bounds:  &Rect{Width: 1920, Height: 1080},
	})

	moved := Rect{X: 10, Width: 1920, Height: 1080}
	var verr *ValidationError
	if err := m.UpdateSource(id, SourcePatch{Bounds: &moved}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError moving a locked source, got %v", err)
	}
	if err := m.Reorder(id, 9); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError reordering a locked source, got %v", err)
	}
	if err := m.UpdateSource(id, SourcePatch{Visible: ptr(false)}); err != nil {
		t.Fatalf("visibility of a locked source must stay editable: %v", err)
	}
	if err := m.UpdateSource(id, SourcePatch{Locked: ptr(false), Bounds: &moved}); err != nil {
		t.Fatalf("unlocking patch should allow a move: %v", err)
	}

	src, _, _ := m.Source(id)
	if src.Bounds != moved || src.Locked {
		t.Errorf("unexpected source after unlock: %+v", src)
	}
}

func TestUpdateSourceCannotChangeKind(t *testing.T) {
	m := newTestModel()
	id, _ := m.AddSource(m.ActiveID(), NewSource{Content: StaticImage{Path: "logo.png"}})

	var verr *ValidationError
	if err := m.UpdateSource(id, SourcePatch{Content: MediaFile{Path: "a.mp4"}}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := m.UpdateSource(id, SourcePatch{Content: StaticImage{Path: "banner.png"}}); err != nil {
		t.Fatalf("same-kind content swap: %v", err)
	}
}

func TestVisibilityDrivesBinder(t *testing.T) {
	binder := &recordingBinder{}
	m := newTestModel(WithBinder(binder))
	sceneID := m.ActiveID()

	id, _ := m.AddSource(sceneID, NewSource{Content: Camera{DeviceID: "/dev/video0"}, Visible: ptr(false)})
	_ = m.UpdateSource(id, SourcePatch{Visible: ptr(true)})
	_ = m.UpdateSource(id, SourcePatch{Content: Camera{DeviceID: "/dev/video2"}})
	_ = m.UpdateSource(id, SourcePatch{Visible: ptr(false)})
	_ = m.UpdateSource(id, SourcePatch{Name: ptr("Facecam")})
	_ = m.RemoveSource(id)

	if _, err := m.AddSource(sceneID, NewSource{Content: ScreenCapture{}}); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"shown:/dev/video0",
		"hidden:/dev/video0",
		"shown:/dev/video2",
		"hidden:/dev/video2",
		"removed:/dev/video2",
	}
	if got := binder.ops(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("binder calls = %v, want %v", got, want)
	}
}

func TestRemoveThenReAddSameIDKeysByDevice(t *testing.T) {
	binder := &recordingBinder{}
	m := newTestModel(WithBinder(binder))
	sceneID := m.ActiveID()

	if _, err := m.AddSource(sceneID, NewSource{ID: "cam", Content: Camera{DeviceID: "/dev/video0"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddSource(sceneID, NewSource{ID: "cam", Content: Camera{DeviceID: "/dev/video0"}}); err == nil {
		t.Fatal("adding a live id twice must fail")
	}
	if err := m.RemoveSource("cam"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddSource(sceneID, NewSource{ID: "cam", Content: Camera{DeviceID: "/dev/video1"}}); err != nil {
		t.Fatalf("re-adding a removed id: %v", err)
	}

	want := []string{"shown:/dev/video0", "removed:/dev/video0", "shown:/dev/video1"}
	if got := binder.ops(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("binder calls = %v, want %v", got, want)
	}
}

func TestSnapshotsAreCopies(t *testing.T) {
	m := newTestModel()
	id, _ := m.AddSource(m.ActiveID(), NewSource{Content: ScreenCapture{}})

	snap := m.Active()
	snap.Sources[0].Name = "mutated"

	src, _, _ := m.Source(id)
	if src.Name == "mutated" {
		t.Error("mutating a snapshot leaked into the model")
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	bus := events.New()
	added := make(chan events.SourceAddedEvent, 1)
	updated := make(chan events.SourceUpdatedEvent, 1)
	unsub1 := bus.Subscribe(func(e events.SourceAddedEvent) { added <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e events.SourceUpdatedEvent) { updated <- e })
	defer unsub2()
	renamed := make(chan events.SceneRenamedEvent, 2)
	unsub3 := bus.Subscribe(func(e events.SceneRenamedEvent) { renamed <- e })
	defer unsub3()

	m := newTestModel(WithEventBus(bus))
	id, _ := m.AddSource(m.ActiveID(), NewSource{Content: StaticColor{Color: "#fff"}})
	_ = m.Reorder(id, 4)
	previous := m.Active().Name
	if err := m.RenameScene(m.ActiveID(), "Gameplay"); err != nil {
		t.Fatal(err)
	}
	if err := m.RenameScene(m.ActiveID(), "Gameplay"); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-added:
		if e.SourceID != string(id) || e.Kind != string(KindStaticColor) {
			t.Errorf("unexpected added event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no SourceAddedEvent")
	}
	select {
	case e := <-updated:
		if fmt.Sprint(e.Fields) != "[z_index]" {
			t.Errorf("updated fields = %v", e.Fields)
		}
	case <-time.After(time.Second):
		t.Fatal("no SourceUpdatedEvent")
	}
	select {
	case e := <-renamed:
		if e.SceneID != string(m.ActiveID()) || e.Name != "Gameplay" || e.Previous != previous {
			t.Errorf("unexpected renamed event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no SceneRenamedEvent")
	}
	select {
	case e := <-renamed:
		t.Errorf("renaming to the same name published %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}
