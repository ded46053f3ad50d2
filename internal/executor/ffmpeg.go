// Package executor runs pipeline descriptions for the session controller.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/scenecast/internal/ffmpeg"
	"github.com/smazurov/scenecast/internal/logging"
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/process"
	"github.com/smazurov/scenecast/internal/session"
)

// DefaultStartTimeout bounds the wait for the first progress report.
const DefaultStartTimeout = 15 * time.Second

// ErrStartTimeout is returned when ffmpeg runs but never reports progress.
var ErrStartTimeout = errors.New("ffmpeg reported no progress")

// FFmpeg runs each description as one ffmpeg process. Startup is confirmed by
// the first progress block on stdout.
type FFmpeg struct {
	Binary          string
	StartTimeout    time.Duration
	GracefulTimeout time.Duration

	logger *slog.Logger
}

// NewFFmpeg creates an executor running binary.
func NewFFmpeg(binary string, logger *slog.Logger) *FFmpeg {
	return &FFmpeg{
		Binary:          binary,
		StartTimeout:    DefaultStartTimeout,
		GracefulTimeout: 5 * time.Second,
		logger:          logger,
	}
}

// Start launches desc and waits for ffmpeg to report progress.
func (f *FFmpeg) Start(ctx context.Context, desc *pipeline.Description) (session.Job, error) {
	args, err := ffmpeg.BuildArgs(desc)
	if err != nil {
		return nil, err
	}
	redacted := desc.Redacted()
	logArgs, err := ffmpeg.BuildArgs(redacted)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("%s-%s", desc.Sink.Kind, desc.SceneID)
	j := newFFmpegJob()
	proc := process.NewProcessWithOutput(id, append([]string{f.Binary}, args...), f.logger, j)
	proc.SetLogArgs(append([]string{f.Binary}, logArgs...))
	proc.SetScrubber(scrubber(desc.Sink.Target, redacted.Sink.Target))
	proc.SetLogParser(logging.GetLogger("ffmpeg").With("sink", desc.Sink.Kind), ffmpeg.ParseLogLevel)
	proc.SetStdoutConsumer(j.readProgress)
	proc.SetGracefulTimeout(f.GracefulTimeout)
	j.proc = proc

	go j.run()

	timeout := f.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-j.started:
		f.logger.Info("ffmpeg confirmed startup", "id", id, "pid", proc.Pid())
		return j, nil
	case <-j.done:
		return nil, j.Err()
	case <-timer.C:
		j.abort()
		if reason := j.reason(); reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrStartTimeout, reason)
		}
		return nil, ErrStartTimeout
	case <-ctx.Done():
		j.abort()
		return nil, ctx.Err()
	}
}

// scrubber masks the push target in every output line.
func scrubber(target, redacted string) process.Scrubber {
	if target == redacted {
		return nil
	}
	return func(line string) string {
		return strings.ReplaceAll(line, target, redacted)
	}
}

type ffmpegJob struct {
	proc *process.Process
	tel  chan session.Telemetry
	cpu  *cpuSampler

	started   chan struct{}
	startOnce sync.Once
	done      chan struct{}

	mu        sync.Mutex
	err       error
	lastError string
	stopping  bool
}

func newFFmpegJob() *ffmpegJob {
	return &ffmpegJob{
		tel:     make(chan session.Telemetry, 1),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (j *ffmpegJob) run() {
	code, err := j.proc.Run()

	j.mu.Lock()
	switch {
	case err != nil:
		j.err = err
	case j.stopping:
	case j.lastError != "":
		j.err = errors.New(j.lastError)
	case code != 0:
		j.err = fmt.Errorf("ffmpeg exited with code %d", code)
	default:
		j.err = errors.New("ffmpeg exited")
	}
	j.mu.Unlock()
	close(j.done)
}

// readProgress parses -progress blocks from stdout.
func (j *ffmpegJob) readProgress(r io.Reader) {
	parser := ffmpeg.NewProgressParser()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p, ok := parser.Feed(scanner.Text())
		if !ok {
			continue
		}
		j.startOnce.Do(func() {
			j.cpu = newCPUSampler(j.proc.Pid())
			close(j.started)
		})
		if p.End {
			continue
		}
		j.publish(session.Telemetry{
			BitrateKbps:     p.BitrateKbps,
			FPS:             p.FPS,
			DroppedFrames:   p.DroppedFrames,
			CPUUsagePercent: j.cpu.sample(),
			Speed:           p.Speed,
		})
	}
}

// publish keeps only the newest sample when the reader falls behind.
func (j *ffmpegJob) publish(t session.Telemetry) {
	select {
	case j.tel <- t:
		return
	default:
	}
	select {
	case <-j.tel:
	default:
	}
	select {
	case j.tel <- t:
	default:
	}
}

// HandleLine keeps the last error line from stderr as the failure reason.
func (j *ffmpegJob) HandleLine(source, line string) {
	if source != "stderr" {
		return
	}
	if level, msg := ffmpeg.ParseLogLevel(line); ffmpeg.IsFailure(level) {
		j.mu.Lock()
		j.lastError = msg
		j.mu.Unlock()
	}
}

func (j *ffmpegJob) reason() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastError
}

// abort stops a job that never confirmed startup and waits for it to exit.
func (j *ffmpegJob) abort() {
	j.mu.Lock()
	j.stopping = true
	j.mu.Unlock()
	j.proc.Shutdown()
	<-j.done
}

func (j *ffmpegJob) Telemetry() <-chan session.Telemetry { return j.tel }
func (j *ffmpegJob) Done() <-chan struct{}               { return j.done }

func (j *ffmpegJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Stop interrupts ffmpeg so it can finalize the output, then waits.
func (j *ffmpegJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	j.stopping = true
	j.mu.Unlock()
	j.proc.Shutdown()

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
