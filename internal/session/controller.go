// Package session drives the stream and record tracks through their
// lifecycle: idle, starting, live or recording, error.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/scenecast/internal/events"
	"github.com/smazurov/scenecast/internal/metrics"
	"github.com/smazurov/scenecast/internal/pipeline"
	"github.com/smazurov/scenecast/internal/profile"
	"github.com/smazurov/scenecast/internal/scene"
)

// Track names one of the two independent session tracks.
type Track string

// Session tracks.
const (
	TrackStream Track = "stream"
	TrackRecord Track = "record"
)

// Tracks lists every track in display order.
var Tracks = []Track{TrackStream, TrackRecord}

// State is the lifecycle state of a track.
type State string

// Track states.
const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateLive      State = "live"
	StateRecording State = "recording"
	StateError     State = "error"
)

// DefaultStopTimeout bounds executor teardown.
const DefaultStopTimeout = 10 * time.Second

// SceneSource supplies the scene a session renders. *scene.Model satisfies it.
type SceneSource interface {
	Active() scene.Scene
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventBus publishes transitions and telemetry on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithPlatform overrides the capture platform used for pipeline builds.
func WithPlatform(p pipeline.Platform) Option {
	return func(c *Controller) { c.platform = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(d time.Duration) Option {
	return func(c *Controller) { c.stopTimeout = d }
}

// Controller owns the stream and record state machines.
type Controller struct {
	scenes      SceneSource
	exec        Executor
	logger      *slog.Logger
	bus         *events.Bus
	platform    pipeline.Platform
	now         func() time.Time
	newID       func() string
	stopTimeout time.Duration

	mu      sync.Mutex
	profile profile.StreamProfile
	tracks  map[Track]*track
	wg      sync.WaitGroup
}

type track struct {
	name Track
	op   sync.Mutex // serializes Start and Stop calls

	state     State
	gen       uint64
	cancel    context.CancelFunc
	job       Job
	sessionID string
	startedAt time.Time
	target    string
	lastErr   error
	telemetry Telemetry
	settled   chan struct{}
}

// NewController creates a controller for the validated profile p.
func NewController(scenes SceneSource, exec Executor, p profile.StreamProfile, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		scenes:      scenes,
		exec:        exec,
		logger:      logger,
		platform:    pipeline.HostPlatform(),
		now:         time.Now,
		newID:       uuid.NewString,
		stopTimeout: DefaultStopTimeout,
		profile:     p,
		tracks:      make(map[Track]*track, len(Tracks)),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, name := range Tracks {
		c.tracks[name] = &track{name: name, state: StateIdle}
		metrics.SetTrackState(string(name), string(StateIdle))
	}
	return c
}

// StartStream starts the stream track. It pushes to the ingest when a stream
// key is configured and records to a file otherwise.
func (c *Controller) StartStream() error {
	return c.start(TrackStream, pipeline.TargetAuto)
}

// StartRecording starts the record track.
func (c *Controller) StartRecording() error {
	return c.start(TrackRecord, pipeline.TargetRecord)
}

// StopStream stops the stream track.
func (c *Controller) StopStream() error {
	return c.Stop(TrackStream)
}

// StopRecording stops the record track.
func (c *Controller) StopRecording() error {
	return c.Stop(TrackRecord)
}

// Start starts the named track.
func (c *Controller) Start(name Track) error {
	switch name {
	case TrackStream:
		return c.StartStream()
	case TrackRecord:
		return c.StartRecording()
	}
	return &TransitionError{Track: name, Op: "start"}
}

// start builds the pipeline and hands it to the executor in the background.
// Build failures leave the track idle. Starting an active track is a no-op.
func (c *Controller) start(name Track, target pipeline.Target) error {
	t, ok := c.tracks[name]
	if !ok {
		return &TransitionError{Track: name, Op: "start"}
	}
	t.op.Lock()
	defer t.op.Unlock()

	c.mu.Lock()
	switch t.state {
	case StateStarting, StateLive, StateRecording:
		state := t.state
		c.mu.Unlock()
		c.logger.Warn("Start ignored, track already active", "track", name, "state", state)
		return nil
	case StateError:
		c.mu.Unlock()
		return &TransitionError{Track: name, From: StateError, Op: "start"}
	}

	sessionID := c.newID()
	startedAt := c.now()
	p := c.profile
	c.mu.Unlock()

	desc, err := pipeline.Build(c.scenes.Active(), p, pipeline.Options{
		Platform:  c.platform,
		Target:    target,
		SessionID: sessionID,
		StartedAt: startedAt,
	})
	if err != nil {
		c.logger.Error("Pipeline build failed", "track", name, "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	t.gen++
	gen := t.gen
	t.cancel = cancel
	t.sessionID = sessionID
	t.startedAt = startedAt
	t.target = desc.Redacted().Sink.Target
	t.lastErr = nil
	t.telemetry = Telemetry{}
	t.settled = make(chan struct{})
	c.transition(t, StateStarting, nil)
	c.mu.Unlock()

	c.logger.Info("Starting session", "track", name, "session_id", sessionID, "sink", desc.Sink.Kind, "target", t.target)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, t, gen, desc)
	}()
	return nil
}

// run waits for the executor to confirm startup, then follows the job.
func (c *Controller) run(ctx context.Context, t *track, gen uint64, desc *pipeline.Description) {
	job, err := c.exec.Start(ctx, desc)

	c.mu.Lock()
	if t.gen != gen {
		c.mu.Unlock()
		if job != nil {
			c.logger.Info("Start resolved after stop, tearing down", "track", t.name)
			c.stopJob(t.name, job)
		}
		return
	}
	if err != nil {
		c.fail(t, err)
		c.mu.Unlock()
		return
	}
	t.job = job
	settled := StateLive
	if t.name == TrackRecord {
		settled = StateRecording
	}
	c.transition(t, settled, nil)
	c.mu.Unlock()

	c.follow(t, gen, job)
}

// follow consumes telemetry until the job ends.
func (c *Controller) follow(t *track, gen uint64, job Job) {
	tel := job.Telemetry()
	for {
		select {
		case sample, ok := <-tel:
			if !ok {
				tel = nil
				continue
			}
			c.mu.Lock()
			current := t.gen == gen
			if current {
				t.telemetry = sample
			}
			c.mu.Unlock()
			if !current {
				return
			}
			metrics.SetTrackTelemetry(string(t.name), metrics.TrackTelemetry{
				FPS:             sample.FPS,
				BitrateKbps:     sample.BitrateKbps,
				DroppedFrames:   float64(sample.DroppedFrames),
				CPUUsagePercent: sample.CPUUsagePercent,
				Speed:           sample.Speed,
			})
			c.publishStats()
		case <-job.Done():
			c.mu.Lock()
			defer c.mu.Unlock()
			if t.gen != gen {
				return
			}
			cause := job.Err()
			if cause == nil {
				cause = errors.New("executor stopped unexpectedly")
			}
			t.job = nil
			c.fail(t, cause)
			return
		}
	}
}

// fail moves t to error. Must be called with c.mu held.
func (c *Controller) fail(t *track, cause error) {
	var execErr *ExecutorError
	if !errors.As(cause, &execErr) {
		execErr = &ExecutorError{Track: t.name, Reason: cause.Error(), Err: cause}
	}
	t.lastErr = execErr
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	c.logger.Error("Session failed", "track", t.name, "session_id", t.sessionID, "reason", execErr.Reason)
	c.transition(t, StateError, execErr)
}

// Stop tears the track down and returns it to idle. Teardown failures are
// logged and never keep the track out of idle. Stopping an idle track is a
// no-op.
func (c *Controller) Stop(name Track) error {
	t, ok := c.tracks[name]
	if !ok {
		return &TransitionError{Track: name, Op: "stop"}
	}
	t.op.Lock()
	defer t.op.Unlock()

	c.mu.Lock()
	if t.state == StateIdle {
		c.mu.Unlock()
		return nil
	}
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	job := t.job
	t.job = nil
	c.mu.Unlock()

	if job != nil {
		c.stopJob(name, job)
	}

	c.mu.Lock()
	t.telemetry = Telemetry{}
	c.transition(t, StateIdle, nil)
	c.mu.Unlock()

	metrics.DeleteTrackTelemetry(string(name))
	c.logger.Info("Session stopped", "track", name, "session_id", t.sessionID)
	return nil
}

// Reset returns a failed track to idle.
func (c *Controller) Reset(name Track) error {
	return c.Stop(name)
}

func (c *Controller) stopJob(name Track, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), c.stopTimeout)
	defer cancel()
	if err := job.Stop(ctx); err != nil {
		c.logger.Warn("Executor teardown failed", "track", name, "error", err)
	}
}

// transition records a state change. Must be called with c.mu held.
func (c *Controller) transition(t *track, to State, cause error) {
	from := t.state
	if from == to {
		return
	}
	t.state = to
	if from == StateStarting && t.settled != nil {
		close(t.settled)
		t.settled = nil
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	c.logger.Info("Session state changed", "track", t.name, "from", from, "to", to)
	metrics.SetTrackState(string(t.name), string(to))
	c.bus.Publish(events.SessionStateChangedEvent{
		Track:     string(t.name),
		From:      string(from),
		To:        string(to),
		Reason:    reason,
		Timestamp: events.Now(),
	})
}

// Wait blocks until the track is no longer starting, or ctx expires, and
// returns its state.
func (c *Controller) Wait(ctx context.Context, name Track) (State, error) {
	t, ok := c.tracks[name]
	if !ok {
		return "", &TransitionError{Track: name, Op: "wait"}
	}
	c.mu.Lock()
	settled := t.settled
	state := t.state
	c.mu.Unlock()
	if state != StateStarting || settled == nil {
		return state, nil
	}

	select {
	case <-settled:
	case <-ctx.Done():
		return StateStarting, ctx.Err()
	}
	return c.State(name), nil
}

// State returns the current state of a track.
func (c *Controller) State(name Track) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tracks[name]; ok {
		return t.state
	}
	return ""
}

// LastError returns the failure that moved the track into error, if any.
func (c *Controller) LastError(name Track) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.tracks[name]; ok {
		return t.lastErr
	}
	return nil
}

// SetProfile validates and swaps the profile used by subsequent starts.
func (c *Controller) SetProfile(p profile.StreamProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.profile = p
	c.mu.Unlock()
	c.logger.Info("Profile updated", "profile", p)
	return nil
}

// Profile returns the current profile.
func (c *Controller) Profile() profile.StreamProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Platform returns the capture platform used for pipeline builds.
func (c *Controller) Platform() pipeline.Platform {
	return c.platform
}

// Close stops both tracks and waits for background work.
func (c *Controller) Close() {
	for _, name := range Tracks {
		_ = c.Stop(name)
	}
	c.wg.Wait()
}
