package pipeline

import (
	"encoding/json"

	"github.com/smazurov/scenecast/internal/profile"
	"github.com/smazurov/scenecast/internal/scene"
)

// DescriptionVersion is bumped whenever the serialized layout changes.
const DescriptionVersion = 1

// SinkKind selects between live delivery and a local file.
type SinkKind string

// Sink kinds.
const (
	SinkPush SinkKind = "push"
	SinkFile SinkKind = "file"
)

// Description is the structured pipeline handed to an executor. It names
// capture inputs symbolically and never holds live device handles.
type Description struct {
	Version int     `json:"version"`
	SceneID string  `json:"scene_id"`
	Scene   string  `json:"scene"`
	Canvas  Canvas  `json:"canvas"`
	Inputs  []Input `json:"inputs"`
	Graph   Graph   `json:"graph"`
	Sink    Sink    `json:"sink"`
}

// Canvas is the output frame every layer is composed onto.
type Canvas struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
	FPS        int    `json:"fps"`
}

// InputOption is a demuxer option applied before an input. An empty Value
// marks a bare flag.
type InputOption struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Input describes one capture input.
type Input struct {
	Ref      string        `json:"ref"`
	SourceID string        `json:"source_id"`
	Kind     scene.Kind    `json:"kind"`
	Platform Platform      `json:"platform"`
	Format   string        `json:"format,omitempty"`
	Locator  string        `json:"locator"`
	Options  []InputOption `json:"options,omitempty"`
}

// Layer places an input on the canvas, scaled to Width x Height.
type Layer struct {
	InputRef string `json:"input_ref"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// OverlayStep composites one layer over the accumulated result. Label names
// the node it produces.
type OverlayStep struct {
	Layer
	Label string `json:"label"`
}

// AudioInput mixes an input's audio at Gain (0..1).
type AudioInput struct {
	InputRef string  `json:"input_ref"`
	Gain     float64 `json:"gain"`
}

// Graph is the layering chain. Base is the bottom layer (nil for an empty
// scene); each step overlays the next layer; Output names the terminal node.
type Graph struct {
	Base   *Layer        `json:"base,omitempty"`
	Steps  []OverlayStep `json:"steps"`
	Output string        `json:"output"`
	Audio  []AudioInput  `json:"audio,omitempty"`
}

// Sink is the output of the pipeline.
type Sink struct {
	Kind                    SinkKind            `json:"kind"`
	Target                  string              `json:"target"`
	Container               string              `json:"container"`
	Encoder                 string              `json:"encoder"`
	BitrateKbps             int                 `json:"bitrate_kbps"`
	FPS                     int                 `json:"fps"`
	Resolution              profile.Resolution  `json:"resolution"`
	Preset                  string              `json:"preset"`
	KeyframeIntervalSeconds int                 `json:"keyframe_interval_seconds"`
	RateControl             profile.RateControl `json:"rate_control"`

	// ingest is the push target without the stream key; keyed marks a target
	// that ends in a key.
	ingest string
	keyed  bool
}

// Canvas node name used when a scene has no visible sources.
const CanvasNode = "canvas"

// Encode serializes the description. Equal descriptions encode to identical bytes.
func (d *Description) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// EncodeIndent is Encode with indentation, for humans.
func (d *Description) EncodeIndent() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Redacted returns a copy safe to log or display: the stream key inside a
// push target is masked.
func (d *Description) Redacted() *Description {
	out := *d
	out.Inputs = append([]Input(nil), d.Inputs...)
	out.Graph.Steps = append([]OverlayStep(nil), d.Graph.Steps...)
	out.Graph.Audio = append([]AudioInput(nil), d.Graph.Audio...)
	if d.Sink.Kind == SinkPush && d.Sink.keyed {
		out.Sink.Target = d.Sink.ingest + "/" + profile.Secret(d.Sink.Target).String()
		out.Sink.keyed = false
	}
	return &out
}

// InputByRef returns the input with the given reference.
func (d *Description) InputByRef(ref string) (Input, bool) {
	for _, in := range d.Inputs {
		if in.Ref == ref {
			return in, true
		}
	}
	return Input{}, false
}
