package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/scenecast/internal/logging"
)

// KilledExitCode is reported when the subprocess had to be force killed.
const KilledExitCode = 137

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
type LogParser func(line string) (level, msg string)

// Scrubber rewrites a line before it is logged or handed to the OutputHandler.
type Scrubber func(line string) string

// StdoutConsumer takes ownership of the raw stdout stream. It must read until EOF.
type StdoutConsumer func(r io.Reader)

// Process manages the lifecycle of a subprocess.
type Process struct {
	id              string
	args            []string
	logArgs         []string
	logger          logging.Logger
	processLogger   logging.Logger // logger for process output (nil = use logger)
	logParser       LogParser      // parses process output for log level (nil = no parsing)
	scrub           Scrubber
	stdout          StdoutConsumer
	outputHandler   OutputHandler
	ctx             context.Context
	cancel          context.CancelFunc
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewProcess creates a new process. args[0] is the binary.
func NewProcess(id string, args []string, logger logging.Logger) *Process {
	return NewProcessWithOutput(id, args, logger, nil)
}

// NewProcessWithOutput creates a new process with an output handler.
// The handler receives each line of stdout/stderr from the subprocess.
func NewProcessWithOutput(id string, args []string, logger logging.Logger, handler OutputHandler) *Process {
	ctx, cancel := context.WithCancel(context.Background())
	return &Process{
		id:              id,
		args:            args,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		outputHandler:   handler,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// Args returns the argument vector the process runs with.
func (p *Process) Args() []string {
	return p.args
}

// SetLogParser sets a custom logger and log parser for process output.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler replaces the line handler.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// SetLogArgs sets the argument vector shown in logs in place of the real one.
func (p *Process) SetLogArgs(args []string) {
	p.logArgs = args
}

// SetScrubber installs a filter applied to every output line.
func (p *Process) SetScrubber(s Scrubber) {
	p.scrub = s
}

// SetStdoutConsumer hands raw stdout to fn instead of line scanning it.
func (p *Process) SetStdoutConsumer(fn StdoutConsumer) {
	p.stdout = fn
}

// SetGracefulTimeout sets how long Shutdown waits after SIGINT before killing.
func (p *Process) SetGracefulTimeout(d time.Duration) {
	if d > 0 {
		p.gracefulTimeout = d
	}
}

// Pid returns the subprocess pid, or 0 when not started.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Shutdown triggers a graceful shutdown of the process.
func (p *Process) Shutdown() {
	p.cancel()
}

// runningProcess holds channels for monitoring a running subprocess.
type runningProcess struct {
	processDone <-chan error
}

func (p *Process) displayCommand() string {
	if p.logArgs != nil {
		return strings.Join(p.logArgs, " ")
	}
	return strings.Join(p.args, " ")
}

// startProcess starts the subprocess and returns channels for monitoring.
func (p *Process) startProcess() (*runningProcess, error) {
	if len(p.args) == 0 {
		p.logger.Error("Empty command")
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(p.args[0], p.args[1:]...)
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.logger.Error("Failed to create stdout pipe", "error", err)
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.logger.Error("Failed to create stderr pipe", "error", err)
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", p.displayCommand())
		return nil, fmt.Errorf("start %s: %w", p.args[0], err)
	}

	p.mu.Lock()
	p.cmd = cmd
	p.mu.Unlock()

	p.logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "command", p.displayCommand())

	outputDone := make(chan struct{}, 2)
	go func() {
		if p.stdout != nil {
			p.stdout(stdout)
			_, _ = io.Copy(io.Discard, stdout)
		} else {
			p.streamOutput(stdout, "stdout")
		}
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	processDone := make(chan error, 1)
	go func() {
		// Wait closes the pipes, so drain them first.
		<-outputDone
		<-outputDone
		processDone <- cmd.Wait()
	}()

	return &runningProcess{processDone: processDone}, nil
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return KilledExitCode
	}
	return 1
}

// Run starts the subprocess and blocks until it exits or Shutdown is called.
// The error is non-nil only when the subprocess could not be started.
func (p *Process) Run() (int, error) {
	rp, err := p.startProcess()
	if err != nil {
		return 1, err
	}

	select {
	case <-p.ctx.Done():
		p.logger.Info("Shutting down process", "id", p.id)
		p.sendStopSignal()
		return p.waitForExit(rp.processDone, p.gracefulTimeout), nil
	case processErr := <-rp.processDone:
		exitCode := exitCodeFromError(processErr)
		if processErr != nil && exitCode == 1 {
			p.logger.Error("Process exited with error", "error", processErr)
		}
		p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
		return exitCode, nil
	}
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	p.logger.Debug("Sending SIGINT to process", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(processDone <-chan error, timeout time.Duration) int {
	select {
	case err := <-processDone:
		return exitCodeFromError(err)
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", timeout)
		p.mu.Lock()
		cmd := p.cmd
		p.mu.Unlock()
		if cmd != nil && cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Error("Failed to kill process", "error", err)
			}
		}
		select {
		case <-processDone:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal")
		}
		return KilledExitCode
	}
}

// streamOutput streams line output from the subprocess through the
// scrubber, the output handler, and the process logger.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		if p.scrub != nil {
			line = p.scrub(line)
		}

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "panic", "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}
