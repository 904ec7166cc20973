// Package engine supervises the three stream directions of one ffpipe
// instance. It builds commands from config sections, attaches the host
// adapters and restarts directions whose config changes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/ffpipe/internal/capture"
	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/config"
	"github.com/smazurov/ffpipe/internal/events"
	"github.com/smazurov/ffpipe/internal/ffmpeg"
	"github.com/smazurov/ffpipe/internal/host"
	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/media"
	"github.com/smazurov/ffpipe/internal/metrics"
	"github.com/smazurov/ffpipe/internal/metrics/collectors"
	"github.com/smazurov/ffpipe/internal/process"
)

// Playout sources.
const (
	SourceLoopback = "loopback"
	SourceTone     = "tone"
	SourceSilence  = "silence"
)

// ToneFrequency is the frequency of the tone playout source.
const ToneFrequency = 1000.0

// ErrUnknownSource is returned for a playout source that is not one of
// the Source constants.
var ErrUnknownSource = errors.New("unknown playout source")

// Options configures an Engine.
type Options struct {
	Logger  logging.Logger
	Events  *events.Bus
	Catalog *catalog.Catalog
	Process process.Options

	// ConfigPath is reported in ConfigReloadedEvent.
	ConfigPath string

	// ProgressDir holds one ffmpeg progress socket per direction. Empty
	// disables progress metrics.
	ProgressDir string
}

// Snapshot is a point-in-time view of every direction and host adapter.
type Snapshot struct {
	Capture  capture.Status     `json:"capture"`
	Record   capture.Status     `json:"record"`
	Playout  capture.Status     `json:"playout"`
	Frames   host.FrameSnapshot `json:"frames"`
	Loopback host.LoopbackStats `json:"loopback"`
	Source   string             `json:"source" example:"loopback" doc:"Playout source"`

	// Progress holds the latest ffmpeg progress report per direction.
	Progress map[string]metrics.FFmpegProgress `json:"progress,omitempty"`
}

// Engine owns one VideoCapture and one AudioDevice.
type Engine struct {
	opts   Options
	logger logging.Logger

	// mu serializes lifecycle calls.
	mu       sync.Mutex
	ctx      context.Context
	cfg      config.Engine
	video    *capture.VideoCapture
	audio    *capture.AudioDevice
	frames   *host.FrameStats
	loopback *host.Loopback
	source   string

	progress map[media.Direction]*collectors.FFmpegCollector
}

// New creates an idle engine for cfg.
func New(cfg config.Engine, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("engine")
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}

	e := &Engine{
		opts:     opts,
		logger:   opts.Logger,
		ctx:      context.Background(),
		cfg:      cfg,
		frames:   host.NewFrameStats(),
		loopback: host.NewLoopback(host.DefaultLoopbackDepth),
		progress: make(map[media.Direction]*collectors.FFmpegCollector),
	}

	e.audio = capture.NewAudioDevice(e.captureOptions())
	if err := e.audio.Init(); err != nil {
		return nil, fmt.Errorf("init audio device: %w", err)
	}
	if err := e.attachSource(cfg.Playout); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) captureOptions() capture.Options {
	return capture.Options{
		Events:  e.opts.Events,
		Catalog: e.opts.Catalog,
		Process: e.opts.Process,
	}
}

// Start starts every enabled direction. Progress sockets live until ctx
// is done. Errors from individual directions are joined; the others still
// start.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ctx = ctx
	var errs []error
	for _, dir := range []media.Direction{media.Capture, media.Record, media.Playout} {
		if !e.enabled(dir) {
			continue
		}
		if err := e.startLocked(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartDirection starts one direction whether or not it is enabled in
// the config. Starting a running direction does nothing.
func (e *Engine) StartDirection(dir media.Direction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(dir)
}

// StopDirection stops one direction and waits for its worker.
func (e *Engine) StopDirection(dir media.Direction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(dir)
}

// RestartDirection stops and starts one direction, for example after
// it reached end-of-stream.
func (e *Engine) RestartDirection(dir media.Direction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(dir)
	return e.startLocked(dir)
}

// Stop stops every direction and terminates the audio device.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dir := range []media.Direction{media.Playout, media.Record, media.Capture} {
		e.stopLocked(dir)
	}
	e.audio.Terminate()
}

// Apply replaces the config. Directions whose section changed are
// stopped, and started again if still enabled. It returns the changed
// directions.
func (e *Engine) Apply(next config.Engine) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := next.Changed(e.cfg)
	e.cfg = next
	if len(changed) == 0 {
		return nil, nil
	}
	e.logger.Info("Engine config changed", "directions", changed)

	var errs []error
	for _, name := range changed {
		dir, err := media.ParseDirection(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e.stopLocked(dir)
		if dir == media.Playout {
			if err := e.attachSource(next.Playout); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if e.enabled(dir) {
			if err := e.startLocked(dir); err != nil {
				errs = append(errs, err)
			}
		}
	}

	e.opts.Events.Publish(events.ConfigReloadedEvent{
		Path:      e.opts.ConfigPath,
		Changed:   changed,
		Timestamp: time.Now(),
	})
	return changed, errors.Join(errs...)
}

// Config returns the current config.
func (e *Engine) Config() config.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Status returns the state of every direction.
func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	video, source := e.video, e.source
	e.mu.Unlock()

	st := Snapshot{
		Capture:  capture.Status{Direction: media.Capture.String(), State: capture.Idle},
		Record:   e.audio.RecordingStatus(),
		Playout:  e.audio.PlayoutStatus(),
		Frames:   e.frames.Snapshot(),
		Loopback: e.loopback.Stats(),
		Source:   source,
	}
	if video != nil {
		st.Capture = video.Status()
	}
	for _, dir := range []media.Direction{media.Capture, media.Record, media.Playout} {
		if p, ok := metrics.GetFFmpegProgress(dir.String()); ok {
			if st.Progress == nil {
				st.Progress = make(map[string]metrics.FFmpegProgress)
			}
			st.Progress[dir.String()] = p
		}
	}
	return st
}

// DirectionStatus returns the status of one direction.
func (e *Engine) DirectionStatus(dir media.Direction) capture.Status {
	st := e.Status()
	switch dir {
	case media.Record:
		return st.Record
	case media.Playout:
		return st.Playout
	default:
		return st.Capture
	}
}

// Healthy reports whether every enabled direction is running and has not
// reached end-of-stream.
func (e *Engine) Healthy() bool {
	st := e.Status()
	cfg := e.Config()
	for _, check := range []struct {
		enabled bool
		status  capture.Status
	}{
		{cfg.Video.Enabled, st.Capture},
		{cfg.Record.Enabled, st.Record},
		{cfg.Playout.Enabled, st.Playout},
	} {
		if check.enabled && (check.status.State != capture.Running || check.status.Ended) {
			return false
		}
	}
	return true
}

// Frames returns the video sink.
func (e *Engine) Frames() *host.FrameStats {
	return e.frames
}

func (e *Engine) enabled(dir media.Direction) bool {
	switch dir {
	case media.Capture:
		return e.cfg.Video.Enabled
	case media.Record:
		return e.cfg.Record.Enabled
	case media.Playout:
		return e.cfg.Playout.Enabled
	}
	return false
}

func (e *Engine) startLocked(dir media.Direction) error {
	var err error
	switch dir {
	case media.Capture:
		err = e.startCapture()
	case media.Record:
		err = e.startRecord()
	case media.Playout:
		err = e.startPlayout()
	default:
		err = fmt.Errorf("unknown direction %d", dir)
	}
	if err != nil {
		e.stopProgress(dir)
		e.logger.Error("Failed to start direction", "direction", dir.String(), "error", err)
	}
	return err
}

func (e *Engine) stopLocked(dir media.Direction) {
	switch dir {
	case media.Capture:
		if e.video != nil {
			e.video.Stop()
		}
	case media.Record:
		e.audio.StopRecording()
	case media.Playout:
		e.audio.StopPlayout()
	}
	e.stopProgress(dir)
}

func (e *Engine) startCapture() error {
	section := e.cfg.Video
	cfg, err := section.Config()
	if err != nil {
		return err
	}

	// A device change needs a new capture.
	if e.video == nil || e.video.DeviceID() != section.Device {
		if e.video != nil {
			e.video.Stop()
		}
		video, err := capture.NewVideoCapture(section.Device, e.captureOptions())
		if err != nil {
			return err
		}
		video.RegisterCallback(e.frames)
		e.video = video
	}
	if e.video.Started() {
		return nil
	}

	command, err := section.BuildCommand(cfg)
	if err != nil {
		return err
	}
	e.frames.Reset()
	return e.video.Start(cfg, e.withProgress(media.Capture, command))
}

func (e *Engine) startRecord() error {
	if e.audio.Recording() {
		return nil
	}
	section := e.cfg.Record
	cfg, err := section.Config()
	if err != nil {
		return err
	}
	if err := e.audio.InitRecording(cfg); err != nil {
		return err
	}
	command, err := section.BuildRecordCommand(cfg)
	if err != nil {
		return err
	}
	return e.audio.StartRecording(e.withProgress(media.Record, command))
}

func (e *Engine) startPlayout() error {
	if e.audio.Playing() {
		return nil
	}
	section := e.cfg.Playout
	cfg, err := section.Config()
	if err != nil {
		return err
	}
	if err := e.audio.InitPlayout(cfg); err != nil {
		return err
	}
	command, err := section.BuildPlayoutCommand(cfg)
	if err != nil {
		return err
	}
	return e.audio.StartPlayout(e.withProgress(media.Playout, command))
}

// attachSource selects the audio transport for the playout section.
func (e *Engine) attachSource(section config.AudioSection) error {
	source := section.Source
	if source == "" {
		source = SourceLoopback
	}

	switch source {
	case SourceLoopback:
		e.audio.AttachTransport(e.loopback)
	case SourceTone:
		cfg, err := section.Config()
		if err != nil {
			return err
		}
		e.audio.AttachTransport(host.NewTone(ToneFrequency, 0.5, cfg))
	case SourceSilence:
		e.audio.AttachTransport(nil)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	e.source = source
	return nil
}

// withProgress starts a progress collector for dir and points the
// command at it. The command is unchanged when progress is disabled or
// the socket cannot be opened.
func (e *Engine) withProgress(dir media.Direction, command string) string {
	if e.opts.ProgressDir == "" {
		return command
	}
	e.stopProgress(dir)

	if err := os.MkdirAll(e.opts.ProgressDir, 0o755); err != nil {
		e.logger.Warn("Progress directory unavailable", "error", err)
		return command
	}
	socket := filepath.Join(e.opts.ProgressDir, "ffpipe-"+dir.String()+".sock")
	collector := collectors.NewFFmpegCollector(socket, dir.String())
	if err := collector.Start(e.ctx); err != nil {
		e.logger.Warn("Progress collector failed to start", "direction", dir.String(), "error", err)
		return command
	}
	e.progress[dir] = collector
	return ffmpeg.WithProgress(command, collector.ProgressURL())
}

func (e *Engine) stopProgress(dir media.Direction) {
	if c, ok := e.progress[dir]; ok {
		c.Stop()
		delete(e.progress, dir)
	}
}
