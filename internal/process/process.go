package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/media"
)

// ErrSpawn matches every *SpawnError.
var ErrSpawn = errors.New("process spawn failed")

// SpawnError reports a process that could not be created. Spawn failures
// are never retried.
type SpawnError struct {
	ID      string
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.ID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, gstreamer, etc.)
type LogParser func(line string) (level, msg string)

// Exit code reported when the process had to be killed.
const killedExitCode = 137

// Default shutdown timeouts.
const (
	DefaultGracefulTimeout = 5 * time.Second
	DefaultKillTimeout     = 5 * time.Second
)

// Options configures a Pipe.
type Options struct {
	// Logger receives lifecycle messages. If nil, uses slog.Default().
	Logger logging.Logger

	// OutputLogger receives stderr lines (nil = use Logger).
	OutputLogger logging.Logger

	// LogParser extracts levels from stderr lines (nil = everything at info).
	LogParser LogParser

	// GracefulTimeout bounds the wait after SIGINT before SIGKILL.
	GracefulTimeout time.Duration

	// KillTimeout bounds the wait after SIGKILL.
	KillTimeout time.Duration
}

// Pipe is one running subprocess with a directional byte stream.
type Pipe struct {
	id        string
	command   string
	direction media.Direction
	cmd       *exec.Cmd

	reader *os.File // our end of stdout, read directions only
	writer *os.File // our end of stdin, playout only

	logger          logging.Logger
	outputLogger    logging.Logger
	logParser       LogParser
	gracefulTimeout time.Duration
	killTimeout     time.Duration

	done       chan struct{}
	outputDone chan struct{}
	stopOnce   sync.Once

	mu       sync.Mutex
	exitCode int
	killed   bool
}

// Start parses command and spawns it with a pipe for the given direction.
func Start(id, command string, dir media.Direction, opts Options) (*Pipe, error) {
	args, err := parseCommand(command)
	if err != nil {
		return nil, &SpawnError{ID: id, Command: command, Err: err}
	}
	return start(id, command, args, dir, opts)
}

// StartArgs spawns an already split argument list.
func StartArgs(id string, args []string, dir media.Direction, opts Options) (*Pipe, error) {
	return start(id, strings.Join(args, " "), args, dir, opts)
}

func start(id, command string, args []string, dir media.Direction, opts Options) (*Pipe, error) {
	p := newPipe(id, command, dir, opts)

	if len(args) == 0 {
		p.logger.Error("Empty command")
		return nil, &SpawnError{ID: id, Command: command, Err: errors.New("empty command")}
	}

	if err := p.spawn(args); err != nil {
		p.logger.Error("Failed to start process", "error", err, "command", command)
		return nil, &SpawnError{ID: id, Command: command, Err: err}
	}
	return p, nil
}

func newPipe(id, command string, dir media.Direction, opts Options) *Pipe {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	outputLogger := opts.OutputLogger
	if outputLogger == nil {
		outputLogger = logger
	}
	graceful := opts.GracefulTimeout
	if graceful <= 0 {
		graceful = DefaultGracefulTimeout
	}
	kill := opts.KillTimeout
	if kill <= 0 {
		kill = DefaultKillTimeout
	}

	return &Pipe{
		id:              id,
		command:         command,
		direction:       dir,
		logger:          logger,
		outputLogger:    outputLogger,
		logParser:       opts.LogParser,
		gracefulTimeout: graceful,
		killTimeout:     kill,
		done:            make(chan struct{}),
		outputDone:      make(chan struct{}),
		exitCode:        -1,
	}
}

// spawn starts the subprocess. Plain os.Pipe handles are used instead of
// exec's StdoutPipe so that Wait never closes our end while unread data is
// still buffered in the pipe.
func (p *Pipe) spawn(args []string) error {
	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// child holds the ends that must be closed in the parent after Start.
	var child []*os.File
	closeAll := func(files ...*os.File) {
		for _, f := range files {
			f.Close()
		}
	}

	if p.direction.Reads() {
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("stdout pipe: %w", err)
		}
		p.reader = r
		p.cmd.Stdout = w
		child = append(child, w)
	} else {
		r, w, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("stdin pipe: %w", err)
		}
		p.writer = w
		p.cmd.Stdin = r
		child = append(child, r)
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(child...)
		closeAll(p.ownEnd()...)
		return fmt.Errorf("stderr pipe: %w", err)
	}
	p.cmd.Stderr = stderrW
	child = append(child, stderrW)

	if err := p.cmd.Start(); err != nil {
		closeAll(child...)
		closeAll(stderrR)
		closeAll(p.ownEnd()...)
		return err
	}
	closeAll(child...)

	p.logger.Info("Process started", "id", p.id, "pid", p.cmd.Process.Pid, "direction", p.direction.String(), "command", p.command)

	go func() {
		p.streamOutput(stderrR)
		stderrR.Close()
		close(p.outputDone)
	}()

	go func() {
		err := p.cmd.Wait()
		code := exitCodeFromError(err)

		p.mu.Lock()
		if p.killed {
			code = killedExitCode
		}
		p.exitCode = code
		p.mu.Unlock()

		p.logger.Info("Process exited", "id", p.id, "exit_code", code)
		close(p.done)
	}()

	return nil
}

func (p *Pipe) ownEnd() []*os.File {
	var files []*os.File
	if p.reader != nil {
		files = append(files, p.reader)
	}
	if p.writer != nil {
		files = append(files, p.writer)
	}
	return files
}

// ID returns the identifier the pipe was started with.
func (p *Pipe) ID() string { return p.id }

// Direction returns the stream direction of the pipe.
func (p *Pipe) Direction() media.Direction { return p.direction }

// PID returns the process id.
func (p *Pipe) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited.
func (p *Pipe) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit code, or -1 while the process is running.
func (p *Pipe) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Read fills buf from the process output. It blocks until buf is full or
// the stream ends. A count below len(buf) with a nil error means
// end-of-stream: the process exited, closed its output, or Stop was called.
func (p *Pipe) Read(buf []byte) (int, error) {
	if p.reader == nil {
		return 0, fmt.Errorf("read from %s pipe: %w", p.direction, os.ErrInvalid)
	}
	n, err := io.ReadFull(p.reader, buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, os.ErrClosed):
		return n, nil
	default:
		return n, err
	}
}

// Write sends buf to the process input. A process that has gone away is
// reported as an error wrapping os.ErrClosed or syscall.EPIPE.
func (p *Pipe) Write(buf []byte) (int, error) {
	if p.writer == nil {
		return 0, fmt.Errorf("write to %s pipe: %w", p.direction, os.ErrInvalid)
	}
	return p.writer.Write(buf)
}

// Stop closes the pipe and terminates the process, returning its exit
// code. It is idempotent and safe to call after the process has exited.
func (p *Pipe) Stop() int {
	p.stopOnce.Do(func() {
		// Closing our end unblocks any in-flight Read. For playout it is
		// also the flush: the encoder sees EOF on stdin and finishes.
		if p.reader != nil {
			p.reader.Close()
		}
		if p.writer != nil {
			p.writer.Close()
			if p.waitDone(p.gracefulTimeout) {
				return
			}
		}

		select {
		case <-p.done:
			return
		default:
		}

		p.sendStopSignal()
		p.waitForExit()
	})

	select {
	case <-p.outputDone:
	case <-time.After(p.killTimeout):
		p.logger.Warn("Process output still open after exit", "id", p.id)
	}
	return p.ExitCode()
}

func (p *Pipe) waitDone(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// signal delivers sig to the whole process group.
func (p *Pipe) signal(sig syscall.Signal) error {
	pid := p.PID()
	if pid == 0 {
		return nil
	}
	if err := syscall.Kill(-pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Pipe) sendStopSignal() {
	p.logger.Info("Sending SIGINT to process", "pid", p.PID())
	if err := p.signal(syscall.SIGINT); err != nil {
		p.logger.Warn("Failed to send SIGINT", "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Pipe) waitForExit() {
	if p.waitDone(p.gracefulTimeout) {
		return
	}

	p.logger.Warn("Graceful shutdown timeout, forcing kill", "timeout", p.gracefulTimeout)
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	if err := p.signal(syscall.SIGKILL); err != nil {
		p.logger.Error("Failed to kill process", "error", err)
	}

	if !p.waitDone(p.killTimeout) {
		p.logger.Error("Process did not exit after kill signal")
	}
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
		// Terminated by a signal.
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
	}
	return 1
}

// streamOutput forwards stderr lines to the output logger, using the
// configured LogParser to pick a level.
func (p *Pipe) streamOutput(reader io.Reader) {
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "panic", "fatal", "error":
			p.outputLogger.Error(msg, "id", p.id)
		case "warning":
			p.outputLogger.Warn(msg, "id", p.id)
		case "verbose", "debug", "trace":
			p.outputLogger.Debug(msg, "id", p.id)
		default:
			p.outputLogger.Info(msg, "id", p.id)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Warn("Error reading output", "source", "stderr", "error", err)
	}
}
