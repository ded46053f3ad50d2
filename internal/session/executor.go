package session

import (
	"context"
	"fmt"

	"github.com/smazurov/scenecast/internal/pipeline"
)

// Telemetry is one periodic report from a running job.
type Telemetry struct {
	BitrateKbps     float64
	FPS             float64
	DroppedFrames   int64
	CPUUsagePercent float64
	Speed           float64
}

// Job is a running pipeline.
type Job interface {
	// Telemetry delivers periodic reports until the job ends.
	Telemetry() <-chan Telemetry
	// Done is closed when the job has ended.
	Done() <-chan struct{}
	// Err is the failure reason once Done is closed; nil after a requested stop.
	Err() error
	// Stop tears the job down and waits for it to end or ctx to expire.
	Stop(ctx context.Context) error
}

// Executor runs pipeline descriptions.
type Executor interface {
	// Start launches desc and returns once the job has confirmed startup.
	// Cancelling ctx aborts a pending start.
	Start(ctx context.Context, desc *pipeline.Description) (Job, error)
}

// ExecutorError is an executor failure on a track.
type ExecutorError struct {
	Track  Track
	Reason string
	Err    error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("%s executor failed: %s", e.Track, e.Reason)
}

func (e *ExecutorError) Unwrap() error { return e.Err }

// TransitionError is returned when an operation is not valid in the track's state.
type TransitionError struct {
	Track Track
	From  State
	Op    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s track in state %s", e.Op, e.Track, e.From)
}
