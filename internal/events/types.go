package events

import (
	"time"

	"github.com/smazurov/scenecast/internal/logging"
)

// Event type constants for kelindar/event.
const (
	TypeSceneCreated uint32 = iota + 1
	TypeSceneDeleted
	TypeActiveSceneChanged
	TypeSourceAdded
	TypeSourceUpdated
	TypeSourceRemoved
	TypeDeviceBinding
	TypeDeviceDiscovery
	TypeSessionStateChanged
	TypeSessionStats
	TypeLogEntry
	TypeSceneRenamed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SceneCreatedEvent is published after a scene is added to the model.
type SceneCreatedEvent struct {
	SceneID   string `json:"scene_id" example:"c1f4..." doc:"Scene identifier"`
	Name      string `json:"name" example:"Just Chatting" doc:"Scene name"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SceneCreatedEvent.
func (e SceneCreatedEvent) Type() uint32 { return TypeSceneCreated }

// SceneRenamedEvent is published after a scene's display name changes.
type SceneRenamedEvent struct {
	SceneID   string `json:"scene_id" doc:"Scene identifier"`
	Name      string `json:"name" example:"Gameplay" doc:"New scene name"`
	Previous  string `json:"previous" example:"Just Chatting" doc:"Previous scene name"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SceneRenamedEvent.
func (e SceneRenamedEvent) Type() uint32 { return TypeSceneRenamed }

// SceneDeletedEvent is published after a scene and all its sources are removed.
type SceneDeletedEvent struct {
	SceneID   string `json:"scene_id" doc:"Deleted scene identifier"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SceneDeletedEvent.
func (e SceneDeletedEvent) Type() uint32 { return TypeSceneDeleted }

// ActiveSceneChangedEvent is published when the scene being composited changes.
type ActiveSceneChangedEvent struct {
	SceneID   string `json:"scene_id" doc:"New active scene"`
	Previous  string `json:"previous" doc:"Previously active scene"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ActiveSceneChangedEvent.
func (e ActiveSceneChangedEvent) Type() uint32 { return TypeActiveSceneChanged }

// SourceAddedEvent is published after a source joins a scene.
type SourceAddedEvent struct {
	SceneID   string `json:"scene_id" doc:"Owning scene"`
	SourceID  string `json:"source_id" doc:"Source identifier"`
	Kind      string `json:"kind" example:"camera" doc:"Source kind"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourceAddedEvent.
func (e SourceAddedEvent) Type() uint32 { return TypeSourceAdded }

// SourceUpdatedEvent is published after any source field changes, including z-order.
type SourceUpdatedEvent struct {
	SceneID   string   `json:"scene_id" doc:"Owning scene"`
	SourceID  string   `json:"source_id" doc:"Source identifier"`
	Fields    []string `json:"fields" example:"[\"visible\"]" doc:"Names of the changed fields"`
	Timestamp string   `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourceUpdatedEvent.
func (e SourceUpdatedEvent) Type() uint32 { return TypeSourceUpdated }

// SourceRemovedEvent is published after a source leaves the model.
type SourceRemovedEvent struct {
	SceneID   string `json:"scene_id" doc:"Owning scene"`
	SourceID  string `json:"source_id" doc:"Source identifier"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourceRemovedEvent.
func (e SourceRemovedEvent) Type() uint32 { return TypeSourceRemoved }

// DeviceBindingEvent reports a capture handle state transition.
type DeviceBindingEvent struct {
	DeviceID  string `json:"device_id" example:"/dev/video0" doc:"Capture device identifier"`
	State     string `json:"state" example:"live" doc:"Binding state: pending, live, failed, released"`
	RefCount  int    `json:"ref_count" example:"1" doc:"Number of visible sources bound to the device"`
	Error     string `json:"error,omitempty" doc:"Failure reason when state is failed"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceBindingEvent.
func (e DeviceBindingEvent) Type() uint32 { return TypeDeviceBinding }

// DeviceDiscoveryEvent represents device hotplug events.
type DeviceDiscoveryEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path of the affected device node"`
	Subsystem  string `json:"subsystem" example:"video4linux" doc:"Kernel subsystem"`
	Action     string `json:"action" example:"add" doc:"Action type: add, remove, change"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// SessionStateChangedEvent is published on every stream or record track transition.
type SessionStateChangedEvent struct {
	Track     string `json:"track" example:"stream" doc:"Session track: stream or record"`
	From      string `json:"from" example:"starting" doc:"Previous state"`
	To        string `json:"to" example:"live" doc:"New state"`
	Reason    string `json:"reason,omitempty" doc:"Failure reason when entering error"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// SessionStatsEvent carries the derived session snapshot after each telemetry update.
type SessionStatsEvent struct {
	Status          string  `json:"status" example:"live" doc:"Aggregate session status"`
	UptimeSeconds   float64 `json:"uptime_seconds" example:"42.5" doc:"Seconds since the earliest active track started"`
	BitrateKbps     float64 `json:"bitrate_kbps" example:"4480.2" doc:"Reported output bitrate"`
	FPS             float64 `json:"fps" example:"59.9" doc:"Reported encode rate"`
	DroppedFrames   int64   `json:"dropped_frames" example:"0" doc:"Frames dropped by the executor"`
	CPUUsagePercent float64 `json:"cpu_usage_percent" example:"35.1" doc:"Executor process CPU usage"`
}

// Type returns the event type identifier for SessionStatsEvent.
func (e SessionStatsEvent) Type() uint32 { return TypeSessionStats }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// NewLogEntryEvent converts a buffered log entry.
func NewLogEntryEvent(entry logging.LogEntry) LogEntryEvent {
	return LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}
