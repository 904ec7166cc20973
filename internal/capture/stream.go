package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/ffpipe/internal/cadence"
	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/events"
	"github.com/smazurov/ffpipe/internal/ffmpeg"
	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/media"
	"github.com/smazurov/ffpipe/internal/metrics"
	"github.com/smazurov/ffpipe/internal/process"
)

// Options configures the stream directions.
type Options struct {
	// Logger receives stream lifecycle messages (nil = "capture" module logger).
	Logger *slog.Logger

	// Events receives state, drop and end-of-stream events (nil = none).
	Events *events.Bus

	// Catalog resolves device names (nil = catalog.Default()).
	Catalog *catalog.Catalog

	// Process configures the spawned pipes. Missing loggers and parser
	// default to the "process" and "ffmpeg" module loggers and ffmpeg's
	// log level parser.
	Process process.Options
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.GetLogger("capture")
	}
	if o.Catalog == nil {
		o.Catalog = catalog.Default()
	}
	if o.Process.Logger == nil {
		o.Process.Logger = logging.GetLogger("process")
	}
	if o.Process.OutputLogger == nil {
		o.Process.OutputLogger = logging.GetLogger("ffmpeg")
	}
	if o.Process.LogParser == nil {
		o.Process.LogParser = ffmpeg.ParseLogLevel
	}
	return o
}

// Status is a point-in-time view of one direction.
type Status struct {
	Direction    string    `json:"direction" example:"capture" doc:"Stream direction"`
	State        State     `json:"state" example:"running" doc:"Lifecycle state"`
	Session      string    `json:"session,omitempty" doc:"Id of the current start"`
	PID          int       `json:"pid,omitempty" doc:"Process id while running"`
	BufferSize   int       `json:"buffer_size" doc:"Bytes moved per cycle"`
	Delivered    uint64    `json:"delivered" doc:"Buffers delivered in this session"`
	Dropped      uint64    `json:"dropped" doc:"Buffers dropped in this session"`
	Overruns     uint64    `json:"overruns" doc:"Cycles that exceeded their period"`
	Ended        bool      `json:"ended" doc:"The worker reached end-of-stream and awaits Stop"`
	StartedAt    time.Time `json:"started_at,omitzero" doc:"Time of the last start"`
	LastDelivery time.Time `json:"last_delivery,omitzero" doc:"Time of the last delivery"`
}

// stepFunc runs one cycle against the pipe and the arena buffer. It returns
// false at end-of-stream.
type stepFunc func(pipe *process.Pipe, buf []byte) bool

// stream is the lifecycle shared by every direction.
type stream struct {
	dir    media.Direction
	id     string
	logger *slog.Logger
	bus    *events.Bus
	opts   process.Options

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	// mu guards everything below except running.
	mu           sync.Mutex
	state        State
	session      string
	arena        arena
	pipe         *process.Pipe
	done         chan struct{}
	delivered    uint64
	dropped      uint64
	ended        bool
	startedAt    time.Time
	lastDelivery time.Time

	overruns atomic.Uint64
	running  atomic.Bool
}

func newStream(dir media.Direction, id string, opts Options) *stream {
	return &stream{
		dir:    dir,
		id:     id,
		logger: opts.Logger.With("direction", dir.String()),
		bus:    opts.Events,
		opts:   opts.Process,
		state:  Idle,
	}
}

// State returns the current lifecycle state.
func (s *stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns counters and timestamps of the current session.
func (s *stream) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Direction:    s.dir.String(),
		State:        s.state,
		Session:      s.session,
		BufferSize:   s.arena.Cap(),
		Delivered:    s.delivered,
		Dropped:      s.dropped,
		Overruns:     s.overruns.Load(),
		Ended:        s.ended,
		StartedAt:    s.startedAt,
		LastDelivery: s.lastDelivery,
	}
	if s.pipe != nil {
		st.PID = s.pipe.PID()
	}
	return st
}

// bufferCap returns the size of the arena buffer.
func (s *stream) bufferCap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena.Cap()
}

// setState records a transition and publishes it.
func (s *stream) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	session := s.session
	s.mu.Unlock()

	metrics.SetStreamState(s.dir.String(), next.String())
	if prev == next {
		return
	}
	s.logger.Debug("Stream state changed", "from", prev.String(), "to", next.String())
	s.bus.Publish(events.StreamStateChangedEvent{
		Direction: s.dir.String(),
		Session:   session,
		OldState:  prev.String(),
		NewState:  next.String(),
		Timestamp: time.Now(),
	})
}

// start spawns command and launches the worker. The caller holds
// lifecycle and has checked that the stream is Idle.
func (s *stream) start(command string, size int, period time.Duration, step stepFunc) error {
	s.mu.Lock()
	s.session = uuid.NewString()
	s.delivered = 0
	s.dropped = 0
	s.ended = false
	s.startedAt = time.Now()
	s.lastDelivery = time.Time{}
	s.overruns.Store(0)
	s.mu.Unlock()
	s.setState(Starting)

	pipe, err := process.Start(s.id, command, s.dir, s.opts)
	if err != nil {
		s.logger.Error("Failed to start stream", "error", err)
		metrics.RecordSpawnFailure(s.dir.String())
		s.bus.Publish(events.SpawnFailedEvent{
			Direction: s.dir.String(),
			Command:   command,
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
		s.setState(Idle)
		return newStreamError(ErrCodeSpawn, s.dir.String(), "failed to start process", err)
	}

	s.mu.Lock()
	buf := s.arena.alloc(size)
	s.pipe = pipe
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	loop := cadence.New(period)
	loop.OnOverrun = func(elapsed time.Duration) {
		s.overruns.Add(1)
		metrics.RecordOverrun(s.dir.String())
	}

	s.running.Store(true)
	s.setState(Running)
	s.logger.Info("Stream started", "pid", pipe.PID(), "buffer_size", size, "period", period)

	go s.run(loop, pipe, buf, step, done)
	return nil
}

// run is the worker goroutine.
func (s *stream) run(loop *cadence.Loop, pipe *process.Pipe, buf []byte, step stepFunc, done chan struct{}) {
	defer close(done)

	stats := loop.Run(s.running.Load, func() bool {
		start := time.Now()
		ok := step(pipe, buf)
		metrics.ObserveCycle(s.dir.String(), time.Since(start))
		return ok
	})

	// Still running means the loop ended on its own.
	if !s.running.Load() {
		return
	}

	s.mu.Lock()
	s.ended = true
	session := s.session
	delivered := s.delivered
	s.mu.Unlock()

	s.logger.Info("Stream reached end of input", "delivered", delivered, "steps", stats.Steps, "overruns", stats.Overruns)
	metrics.RecordStreamEnded(s.dir.String())
	s.bus.Publish(events.StreamEndedEvent{
		Direction: s.dir.String(),
		Session:   session,
		Reason:    "end of stream",
		Delivered: delivered,
		Timestamp: time.Now(),
	})
}

// stop brings the stream back to Idle. The caller holds lifecycle.
func (s *stream) stop() {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return
	}
	pipe := s.pipe
	done := s.done
	s.mu.Unlock()

	s.setState(Stopping)
	s.running.Store(false)

	// Closing the pipe is what releases a worker blocked in Read or Write.
	code := -1
	if pipe != nil {
		code = pipe.Stop()
	}
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.arena.free()
	s.pipe = nil
	s.done = nil
	delivered := s.delivered
	s.mu.Unlock()

	s.setState(Idle)
	s.logger.Info("Stream stopped", "exit_code", code, "delivered", delivered)
}

// Stop stops the stream and waits for the worker to exit. It is a no-op
// on an Idle stream.
func (s *stream) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stop()
}

// live reports whether the stream is running and no stop is pending. The
// caller holds lifecycle.
func (s *stream) live() bool {
	return s.State() == Running && s.running.Load()
}

// RequestStop ends the stream without waiting. It is safe to call from a
// downstream callback.
func (s *stream) RequestStop() {
	s.mu.Lock()
	session := s.session
	active := s.state == Running
	s.mu.Unlock()
	if !active {
		return
	}

	s.running.Store(false)
	go func() {
		s.lifecycle.Lock()
		defer s.lifecycle.Unlock()

		// A Stop followed by a new Start must not be undone here.
		s.mu.Lock()
		same := s.session == session
		s.mu.Unlock()
		if same {
			s.stop()
		}
	}()
}

// recordDelivery counts one buffer handed downstream.
func (s *stream) recordDelivery(n int) {
	s.mu.Lock()
	s.delivered++
	s.lastDelivery = time.Now()
	s.mu.Unlock()
	metrics.RecordDelivered(s.dir.String(), n)
}

// recordDrop counts a buffer that was not delivered.
func (s *stream) recordDrop(reason string, err error) {
	s.mu.Lock()
	s.dropped++
	session := s.session
	s.mu.Unlock()

	metrics.RecordDropped(s.dir.String(), reason)
	ev := events.FrameDroppedEvent{
		Direction: s.dir.String(),
		Session:   session,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(ev)
}

// invoke calls a downstream callback, recovering a panic so that one bad
// callback cannot take the stream down. It reports whether fn returned
// normally.
func (s *stream) invoke(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.logger.Error("Downstream callback panicked", "panic", r)
			metrics.RecordCallbackPanic(s.dir.String())

			s.mu.Lock()
			session := s.session
			s.mu.Unlock()
			s.bus.Publish(events.CallbackPanickedEvent{
				Direction: s.dir.String(),
				Session:   session,
				Panic:     fmt.Sprint(r),
				Timestamp: time.Now(),
			})
		}
	}()
	fn()
	return true
}
