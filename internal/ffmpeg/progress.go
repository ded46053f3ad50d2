package ffmpeg

import (
	"strconv"
	"strings"
	"time"
)

// Progress is one block of ffmpeg -progress output.
type Progress struct {
	Frame         int64
	FPS           float64
	BitrateKbps   float64
	DroppedFrames int64
	DupFrames     int64
	Speed         float64
	OutTime       time.Duration
	// End is set on the final block, written when ffmpeg exits cleanly
	End bool
}

// ProgressParser accumulates key=value lines until a progress= line closes
// the block. It is not safe for concurrent use.
type ProgressParser struct {
	fields map[string]string
}

// NewProgressParser creates an empty parser.
func NewProgressParser() *ProgressParser {
	return &ProgressParser{fields: make(map[string]string)}
}

// Feed consumes one line and returns a progress value when a block completes.
func (p *ProgressParser) Feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key != "progress" {
		p.fields[key] = value
		return Progress{}, false
	}

	out := Progress{
		Frame:         parseInt(p.fields["frame"]),
		FPS:           parseFloat(p.fields["fps"]),
		BitrateKbps:   parseFloat(strings.TrimSuffix(p.fields["bitrate"], "kbits/s")),
		DroppedFrames: parseInt(p.fields["drop_frames"]),
		DupFrames:     parseInt(p.fields["dup_frames"]),
		Speed:         parseFloat(strings.TrimSuffix(p.fields["speed"], "x")),
		OutTime:       time.Duration(parseInt(p.fields["out_time_us"])) * time.Microsecond,
		End:           value == "end",
	}
	p.fields = make(map[string]string)
	return out, true
}

// parseInt and parseFloat treat N/A and malformed values as zero.
func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
