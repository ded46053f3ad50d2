package executor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/scenecast/internal/ffmpeg"
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/session"
)

// DryRun logs the command it would run and reports nominal telemetry without
// spawning anything. It backs the --dry-run flag.
type DryRun struct {
	Binary   string
	Interval time.Duration

	logger *slog.Logger
}

// NewDryRun creates a dry-run executor.
func NewDryRun(binary string, logger *slog.Logger) *DryRun {
	return &DryRun{Binary: binary, Interval: time.Second, logger: logger}
}

// Start renders the command for desc and returns a job that runs until stopped.
func (d *DryRun) Start(ctx context.Context, desc *pipeline.Description) (session.Job, error) {
	args, err := ffmpeg.BuildArgs(desc.Redacted())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.logger.Info("Dry run, not starting ffmpeg", "command", strings.Join(append([]string{d.Binary}, args...), " "))

	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	j := &dryRunJob{
		tel:  make(chan session.Telemetry, 1),
		done: make(chan struct{}),
		sample: session.Telemetry{
			BitrateKbps: float64(desc.Sink.BitrateKbps),
			FPS:         float64(desc.Sink.FPS),
			Speed:       1,
		},
	}
	go j.run(interval)
	return j, nil
}

type dryRunJob struct {
	tel      chan session.Telemetry
	done     chan struct{}
	stopOnce sync.Once
	sample   session.Telemetry
}

func (j *dryRunJob) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			select {
			case j.tel <- j.sample:
			default:
			}
		}
	}
}

func (j *dryRunJob) Telemetry() <-chan session.Telemetry { return j.tel }
func (j *dryRunJob) Done() <-chan struct{}               { return j.done }
func (j *dryRunJob) Err() error                          { return nil }

func (j *dryRunJob) Stop(context.Context) error {
	j.stopOnce.Do(func() { close(j.done) })
	return nil
}
