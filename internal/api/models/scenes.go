package models

import "github.com/smazurov/scenecast/internal/scene"

// Rect is a source placement in canvas pixels.
type Rect struct {
	X      int `json:"x" example:"100" doc:"Left edge"`
	Y      int `json:"y" example:"100" doc:"Top edge"`
	Width  int `json:"width" example:"400" minimum:"1" doc:"Width in pixels"`
	Height int `json:"height" example:"300" minimum:"1" doc:"Height in pixels"`
}

// SourceData is the wire form of a source. Content is flattened into
// device_id or content_ref depending on type.
type SourceData struct {
	ID         string `json:"id" example:"3b0c1d2e-..." doc:"Source identifier"`
	Name       string `json:"name" example:"Facecam" doc:"Display name"`
	Type       string `json:"type" example:"camera" enum:"camera,screen-capture,window-capture,static-image,static-color,media-file" doc:"Source kind"`
	DeviceID   string `json:"device_id,omitempty" example:"/dev/video0" doc:"Capture device for camera sources"`
	ContentRef string `json:"content_ref,omitempty" example:"#1e1b4b" doc:"Color, file path, display or window title"`
	Loop       bool   `json:"loop,omitempty" doc:"Loop playback of media files"`
	Visible    bool   `json:"visible" doc:"Whether the source is painted"`
	Locked     bool   `json:"locked" doc:"Locked sources reject bounds and z-index changes"`
	Bounds     Rect   `json:"bounds" doc:"Placement on the canvas"`
	Volume     int    `json:"volume" example:"100" doc:"Audio volume 0-100"`
	Muted      bool   `json:"muted" doc:"Audio muted"`
	ZIndex     int    `json:"z_index" example:"1" doc:"Paint order, higher is on top"`
}

// SceneData is the wire form of a scene.
type SceneData struct {
	ID      string       `json:"id" doc:"Scene identifier"`
	Name    string       `json:"name" example:"Just Chatting" doc:"Scene name"`
	Active  bool         `json:"active" doc:"Whether this is the scene being composited"`
	Sources []SourceData `json:"sources" doc:"Sources in insertion order"`
}

type SceneListData struct {
	Scenes []SceneData `json:"scenes" doc:"All scenes in creation order"`
	Active string      `json:"active" doc:"Active scene identifier"`
	Count  int         `json:"count" example:"3" doc:"Number of scenes"`
}

type SceneListResponse struct {
	Body SceneListData
}

type SceneResponse struct {
	Body SceneData
}

type SourceResponse struct {
	Body SourceData
}

type SceneIDPath struct {
	SceneID string `path:"id" doc:"Scene identifier"`
}

type SourceIDPath struct {
	SourceID string `path:"id" doc:"Source identifier"`
}

type SceneCreateRequest struct {
	Body struct {
		Name string `json:"name" example:"Gameplay" minLength:"1" doc:"Scene name"`
	}
}

type SceneRenameRequest struct {
	SceneID string `path:"id" doc:"Scene identifier"`
	Body    struct {
		Name string `json:"name" example:"Gameplay" minLength:"1" doc:"New scene name"`
	}
}

type ActiveSceneRequest struct {
	Body struct {
		SceneID string `json:"scene_id" doc:"Scene to make active"`
	}
}

type SaveScenesData struct {
	Path string `json:"path" example:"scenes.toml" doc:"File the scenes were written to"`
}

type SaveScenesResponse struct {
	Body SaveScenesData
}

type SourceCreateRequest struct {
	SceneID string `path:"id" doc:"Scene to add the source to"`
	Body    struct {
		ID         string `json:"id,omitempty" doc:"Explicit source identifier; generated when empty"`
		Name       string `json:"name,omitempty" example:"Facecam" doc:"Display name; defaults by type"`
		Type       string `json:"type" example:"camera" enum:"camera,screen-capture,window-capture,static-image,static-color,media-file" doc:"Source kind"`
		DeviceID   string `json:"device_id,omitempty" example:"/dev/video0" doc:"Capture device for camera sources"`
		ContentRef string `json:"content_ref,omitempty" doc:"Color, file path, display or window title"`
		Loop       bool   `json:"loop,omitempty" doc:"Loop playback of media files"`
		Visible    *bool  `json:"visible,omitempty" doc:"Defaults to true"`
		Locked     bool   `json:"locked,omitempty" doc:"Lock placement"`
		Bounds     *Rect  `json:"bounds,omitempty" doc:"Defaults to 400x300 at 100,100"`
		Volume     *int   `json:"volume,omitempty" minimum:"0" maximum:"100" doc:"Defaults to 100"`
		Muted      bool   `json:"muted,omitempty" doc:"Audio muted"`
		ZIndex     *int   `json:"z_index,omitempty" doc:"Defaults to the top of the scene"`
	}
}

type SourceUpdateRequest struct {
	SourceID string `path:"id" doc:"Source identifier"`
	Body     struct {
		Name       *string `json:"name,omitempty" doc:"Display name"`
		Visible    *bool   `json:"visible,omitempty" doc:"Whether the source is painted"`
		Locked     *bool   `json:"locked,omitempty" doc:"Lock placement"`
		Bounds     *Rect   `json:"bounds,omitempty" doc:"Placement on the canvas"`
		Volume     *int    `json:"volume,omitempty" minimum:"0" maximum:"100" doc:"Audio volume"`
		Muted      *bool   `json:"muted,omitempty" doc:"Audio muted"`
		ZIndex     *int    `json:"z_index,omitempty" doc:"Paint order"`
		DeviceID   *string `json:"device_id,omitempty" doc:"New capture device for camera sources"`
		ContentRef *string `json:"content_ref,omitempty" doc:"New color, path, display or title"`
		Loop       *bool   `json:"loop,omitempty" doc:"Loop playback of media files"`
	}
}

type ReorderRequest struct {
	SourceID string `path:"id" doc:"Source identifier"`
	Body     struct {
		ZIndex int `json:"z_index" example:"3" doc:"New paint order"`
	}
}

// ToRect converts a wire rect into the model type.
func (r Rect) ToRect() scene.Rect {
	return scene.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// FromSource renders a model source.
func FromSource(src scene.Source) SourceData {
	kind, deviceID, ref := scene.Flatten(src.Content)
	data := SourceData{
		ID:         string(src.ID),
		Name:       src.Name,
		Type:       string(kind),
		DeviceID:   deviceID,
		ContentRef: ref,
		Visible:    src.Visible,
		Locked:     src.Locked,
		Bounds:     Rect{X: src.Bounds.X, Y: src.Bounds.Y, Width: src.Bounds.Width, Height: src.Bounds.Height},
		Volume:     src.Volume,
		Muted:      src.Muted,
		ZIndex:     src.ZIndex,
	}
	if mf, ok := src.Content.(scene.MediaFile); ok {
		data.Loop = mf.Loop
	}
	return data
}

// FromScene renders a model scene.
func FromScene(sc scene.Scene, active scene.SceneID) SceneData {
	data := SceneData{
		ID:      string(sc.ID),
		Name:    sc.Name,
		Active:  sc.ID == active,
		Sources: make([]SourceData, 0, len(sc.Sources)),
	}
	for _, src := range sc.Sources {
		data.Sources = append(data.Sources, FromSource(src))
	}
	return data
}
