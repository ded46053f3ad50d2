package session

import (
	"time"

	"github.com/smazurov/scenecast/internal/events"
)

// TrackStatus describes one track.
type TrackStatus struct {
	Track     Track      `json:"track"`
	State     State      `json:"state"`
	SessionID string     `json:"session_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Target    string     `json:"target,omitempty" doc:"Sink target with the stream key masked"`
	Error     string     `json:"error,omitempty"`
}

// Stats aggregates both tracks into one session view.
type Stats struct {
	Status          State         `json:"status" enum:"idle,starting,live,recording,error"`
	UptimeSeconds   float64       `json:"uptime_seconds"`
	BitrateKbps     float64       `json:"bitrate_kbps"`
	FPS             float64       `json:"fps"`
	DroppedFrames   int64         `json:"dropped_frames"`
	CPUUsagePercent float64       `json:"cpu_usage_percent"`
	Tracks          []TrackStatus `json:"tracks"`
}

func active(s State) bool {
	return s == StateStarting || s == StateLive || s == StateRecording
}

// Stats returns the aggregated session view. Status is error when any track
// failed, otherwise live, recording, starting or idle in that precedence.
// Uptime runs from the earliest active track; telemetry comes from the
// stream track when it is live and from the record track otherwise.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := Stats{Status: StateIdle, Tracks: make([]TrackStatus, 0, len(Tracks))}
	var earliest time.Time
	states := make(map[State]bool, len(Tracks))

	for _, name := range Tracks {
		t := c.tracks[name]
		states[t.state] = true
		st := TrackStatus{Track: name, State: t.state}
		if t.state != StateIdle {
			st.SessionID = t.sessionID
			st.Target = t.target
			started := t.startedAt
			st.StartedAt = &started
		}
		if t.state == StateError && t.lastErr != nil {
			st.Error = t.lastErr.Error()
		}
		out.Tracks = append(out.Tracks, st)

		if active(t.state) && (earliest.IsZero() || t.startedAt.Before(earliest)) {
			earliest = t.startedAt
		}
	}

	switch {
	case states[StateError]:
		out.Status = StateError
	case states[StateLive]:
		out.Status = StateLive
	case states[StateRecording]:
		out.Status = StateRecording
	case states[StateStarting]:
		out.Status = StateStarting
	}

	if !earliest.IsZero() {
		out.UptimeSeconds = now.Sub(earliest).Seconds()
	}

	source := c.tracks[TrackRecord]
	if s := c.tracks[TrackStream]; s.state == StateLive {
		source = s
	}
	if source.state == StateLive || source.state == StateRecording {
		out.BitrateKbps = source.telemetry.BitrateKbps
		out.FPS = source.telemetry.FPS
		out.DroppedFrames = source.telemetry.DroppedFrames
		out.CPUUsagePercent = source.telemetry.CPUUsagePercent
	}
	return out
}

func (c *Controller) publishStats() {
	if c.bus == nil {
		return
	}
	s := c.Stats()
	c.bus.Publish(events.SessionStatsEvent{
		Status:          string(s.Status),
		UptimeSeconds:   s.UptimeSeconds,
		BitrateKbps:     s.BitrateKbps,
		FPS:             s.FPS,
		DroppedFrames:   s.DroppedFrames,
		CPUUsagePercent: s.CPUUsagePercent,
	})
}
