package process

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/scenecast/internal/logging"
)

// ErrPoolClosed is returned by Start after Close.
var ErrPoolClosed = errors.New("process pool closed")

// State is the lifecycle state of a pool member.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Info describes one pool member.
type Info struct {
	ID        string
	State     State
	PID       int
	StartedAt time.Time
}

// ExitFunc is called once for every started process after it exits. err is
// nil for a requested stop or exit code 0.
type ExitFunc func(id string, err error)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithExitHandler sets the callback run after each process exits.
func WithExitHandler(fn ExitFunc) PoolOption {
	return func(p *Pool) { p.onExit = fn }
}

// WithStopWait bounds how long Stop waits for a process to exit.
func WithStopWait(d time.Duration) PoolOption {
	return func(p *Pool) { p.stopWait = d }
}

// WithPoolLogger sets the logger for pool operations.
func WithPoolLogger(l logging.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

type member struct {
	proc      *Process
	startedAt time.Time
	stopping  bool
	done      chan struct{}
}

// Pool runs processes keyed by ID, at most one per ID. Capture uses one
// member per device.
type Pool struct {
	logger   logging.Logger
	onExit   ExitFunc
	stopWait time.Duration

	mu      sync.Mutex
	members map[string]*member
	closed  bool
	wg      sync.WaitGroup
}

// NewPool creates an empty pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		logger:   slog.Default(),
		stopWait: 10 * time.Second,
		members:  make(map[string]*member),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs proc as member id.
func (p *Pool) Start(id string, proc *Process) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if _, busy := p.members[id]; busy {
		return fmt.Errorf("process %s already running", id)
	}

	m := &member{proc: proc, startedAt: time.Now(), done: make(chan struct{})}
	p.members[id] = m

	p.wg.Add(1)
	go p.run(id, m)
	return nil
}

func (p *Pool) run(id string, m *member) {
	defer p.wg.Done()

	code, err := m.proc.Run()

	p.mu.Lock()
	requested := m.stopping
	if p.members[id] == m {
		delete(p.members, id)
	}
	p.mu.Unlock()
	close(m.done)

	switch {
	case err != nil:
	case requested:
	case code != 0:
		err = fmt.Errorf("process exited with code %d", code)
		p.logger.Error("Process crashed", "id", id, "exit_code", code)
	}
	if err == nil {
		p.logger.Info("Process exited", "id", id, "exit_code", code)
	}
	if p.onExit != nil {
		p.onExit(id, err)
	}
}

// Stop shuts member id down and waits for it to exit. Unknown IDs are a
// no-op.
func (p *Pool) Stop(id string) error {
	p.mu.Lock()
	m, ok := p.members[id]
	if ok {
		m.stopping = true
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}

	p.logger.Info("Stopping process", "id", id)
	m.proc.Shutdown()

	select {
	case <-m.done:
		return nil
	case <-time.After(p.stopWait):
		return fmt.Errorf("process %s did not exit within %s", id, p.stopWait)
	}
}

// Status reports member id; unknown IDs are idle.
func (p *Pool) Status(id string) Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.members[id]
	if !ok {
		return Info{ID: id, State: StateIdle}
	}
	state := StateRunning
	if m.stopping {
		state = StateStopping
	}
	return Info{ID: id, State: state, PID: m.proc.Pid(), StartedAt: m.startedAt}
}

// IDs returns the running member IDs in sorted order.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.members))
	for id := range p.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close stops every member and rejects further starts.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	for _, id := range p.IDs() {
		if err := p.Stop(id); err != nil {
			p.logger.Warn("Failed to stop process", "id", id, "error", err)
		}
	}
	p.wg.Wait()
}
