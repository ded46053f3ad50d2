package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/scenecast/internal/scene"
)

// ScenesVersion is the current scenes file format.
const ScenesVersion = 1

// Default scene set seeded when no scenes file exists.
const (
	MainSceneName  = "Main Scene"
	MainBackground = "#1e1b4b"
)

// DefaultSceneNames lists the scenes created on first start.
var DefaultSceneNames = []string{MainSceneName, "Just Chatting", "Be Right Back"}

// SourceEntry is one persisted source.
type SourceEntry struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	DeviceID string `toml:"device_id,omitempty"`
	Content  string `toml:"content,omitempty"`
	Loop     bool   `toml:"loop,omitempty"`
	Visible  bool   `toml:"visible"`
	Locked   bool   `toml:"locked,omitempty"`
	X        int    `toml:"x"`
	Y        int    `toml:"y"`
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	Volume   int    `toml:"volume"`
	Muted    bool   `toml:"muted,omitempty"`
	ZIndex   int    `toml:"z_index"`
}

// SceneEntry is one persisted scene. Sources keep insertion order.
type SceneEntry struct {
	ID      string        `toml:"id"`
	Name    string        `toml:"name"`
	Sources []SourceEntry `toml:"sources"`
}

// ScenesFile is the on-disk scene collection.
type ScenesFile struct {
	Version int          `toml:"version"`
	Active  string       `toml:"active"`
	Scenes  []SceneEntry `toml:"scenes"`
}

// LoadScenes reads a scenes file. It returns nil without error when the file
// does not exist.
func LoadScenes(path string) (*ScenesFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scenes file: %w", err)
	}

	var doc ScenesFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenes file: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = ScenesVersion
	}
	if doc.Version != ScenesVersion {
		return nil, fmt.Errorf("unsupported scenes file version %d", doc.Version)
	}
	if len(doc.Scenes) == 0 {
		return nil, errors.New("scenes file has no scenes")
	}
	return &doc, nil
}

// SaveScenes writes the model's scenes to path, replacing the file atomically.
func SaveScenes(path string, m *scene.Model) error {
	doc := Snapshot(m)

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal scenes: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create scenes directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scenes-*.toml")
	if err != nil {
		return fmt.Errorf("failed to write scenes file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write scenes file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write scenes file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace scenes file: %w", err)
	}
	return nil
}

// Snapshot converts the model into its file form.
func Snapshot(m *scene.Model) *ScenesFile {
	doc := &ScenesFile{Version: ScenesVersion, Active: string(m.ActiveID())}
	for _, sc := range m.Scenes() {
		entry := SceneEntry{ID: string(sc.ID), Name: sc.Name, Sources: make([]SourceEntry, 0, len(sc.Sources))}
		for _, src := range sc.Sources {
			kind, deviceID, ref := scene.Flatten(src.Content)
			e := SourceEntry{
				ID:       string(src.ID),
				Name:     src.Name,
				Type:     string(kind),
				DeviceID: deviceID,
				Content:  ref,
				Visible:  src.Visible,
				Locked:   src.Locked,
				X:        src.Bounds.X,
				Y:        src.Bounds.Y,
				Width:    src.Bounds.Width,
				Height:   src.Bounds.Height,
				Volume:   src.Volume,
				Muted:    src.Muted,
				ZIndex:   src.ZIndex,
			}
			if mf, ok := src.Content.(scene.MediaFile); ok {
				e.Loop = mf.Loop
			}
			entry.Sources = append(entry.Sources, e)
		}
		doc.Scenes = append(doc.Scenes, entry)
	}
	return doc
}

// BuildModel creates a scene model from doc, or from the default scene set
// when doc is nil. Scene ids are regenerated; source ids are kept.
func BuildModel(doc *ScenesFile, logger *slog.Logger, opts ...scene.Option) (*scene.Model, error) {
	if doc == nil {
		return defaultModel(logger, opts...)
	}

	m := scene.NewModel(logger, doc.Scenes[0].Name, opts...)
	ids := map[string]scene.SceneID{doc.Scenes[0].ID: m.ActiveID()}
	for i, entry := range doc.Scenes {
		id := m.ActiveID()
		if i > 0 {
			var err error
			if id, err = m.CreateScene(entry.Name); err != nil {
				return nil, fmt.Errorf("scene %q: %w", entry.Name, err)
			}
			ids[entry.ID] = id
		}
		for _, se := range entry.Sources {
			if err := addEntry(m, id, se); err != nil {
				return nil, fmt.Errorf("scene %q source %q: %w", entry.Name, se.ID, err)
			}
		}
	}

	if active, ok := ids[doc.Active]; ok {
		if err := m.SetActiveScene(active); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func addEntry(m *scene.Model, id scene.SceneID, se SourceEntry) error {
	content, err := scene.NewContent(scene.Kind(se.Type), se.DeviceID, se.Content)
	if err != nil {
		return err
	}
	if mf, ok := content.(scene.MediaFile); ok {
		mf.Loop = se.Loop
		content = mf
	}
	visible, volume, z := se.Visible, se.Volume, se.ZIndex
	_, err = m.AddSource(id, scene.NewSource{
		ID:      scene.SourceID(se.ID),
		Name:    se.Name,
		Content: content,
		Visible: &visible,
		Locked:  se.Locked,
		Bounds:  &scene.Rect{X: se.X, Y: se.Y, Width: se.Width, Height: se.Height},
		Volume:  &volume,
		Muted:   se.Muted,
		ZIndex:  &z,
	})
	return err
}

// defaultModel seeds the three default scenes. The main scene gets a locked
// full-frame background.
func defaultModel(logger *slog.Logger, opts ...scene.Option) (*scene.Model, error) {
	m := scene.NewModel(logger, DefaultSceneNames[0], opts...)
	visible, z := true, 0
	if _, err := m.AddSource(m.ActiveID(), scene.NewSource{
		Name:    "Background",
		Content: scene.StaticColor{Color: MainBackground},
		Visible: &visible,
		Locked:  true,
		Bounds:  &scene.Rect{Width: 1920, Height: 1080},
		ZIndex:  &z,
	}); err != nil {
		return nil, err
	}
	for _, name := range DefaultSceneNames[1:] {
		if _, err := m.CreateScene(name); err != nil {
			return nil, err
		}
	}
	return m, nil
}
