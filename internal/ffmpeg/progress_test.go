package ffmpeg

import (
	"testing"
	"time"
)

func TestProgressParser(t *testing.T) {
	lines := []string{
		"frame=120",
		"fps=59.94",
		"stream_0_0_q=23.0",
		"bitrate=4480.2kbits/s",
		"total_size=1048576",
		"out_time_us=2000000",
		"dup_frames=1",
		"drop_frames=3",
		"speed=1.01x",
		"progress=continue",
	}

	p := NewProgressParser()
	var got Progress
	var done bool
	for i, line := range lines {
		got, done = p.Feed(line)
		if done != (i == len(lines)-1) {
			t.Fatalf("line %d (%q): done = %v", i, line, done)
		}
	}

	want := Progress{
		Frame:         120,
		FPS:           59.94,
		BitrateKbps:   4480.2,
		DroppedFrames: 3,
		DupFrames:     1,
		Speed:         1.01,
		OutTime:       2 * time.Second,
	}
	if got != want {
		t.Errorf("progress = %+v, want %+v", got, want)
	}
}

func TestProgressParserResetsBetweenBlocks(t *testing.T) {
	p := NewProgressParser()
	p.Feed("fps=30")
	p.Feed("progress=continue")

	p.Feed("bitrate=N/A")
	got, ok := p.Feed("progress=end")
	if !ok || !got.End {
		t.Fatalf("expected end block, got %+v ok=%v", got, ok)
	}
	if got.FPS != 0 || got.BitrateKbps != 0 {
		t.Errorf("fields leaked from the previous block: %+v", got)
	}
}

func TestProgressParserIgnoresNoise(t *testing.T) {
	p := NewProgressParser()
	if _, ok := p.Feed("Press [q] to stop"); ok {
		t.Error("non key=value line completed a block")
	}
	if _, ok := p.Feed(""); ok {
		t.Error("empty line completed a block")
	}
}
