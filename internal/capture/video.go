package capture

import (
	"fmt"

	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/convert"
	"github.com/smazurov/ffpipe/internal/media"
	"github.com/smazurov/ffpipe/internal/metrics"
	"github.com/smazurov/ffpipe/internal/process"
)

// FrameSink receives canonical frames. The frame and its planes are reused
// for the next cycle; a sink that keeps a frame must Clone it.
type FrameSink interface {
	OnFrame(frame *media.Frame)
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(frame *media.Frame)

// OnFrame calls f.
func (f FrameSinkFunc) OnFrame(frame *media.Frame) { f(frame) }

// VideoCapture reads raw frames from a process, normalizes them to I420
// and delivers them at the configured frame rate.
type VideoCapture struct {
	*stream

	device catalog.Device

	// Guarded by stream.mu.
	sink FrameSink
	cfg  media.VideoConfig

	// Owned by the worker while running.
	frame      *media.Frame
	normalizer *convert.Normalizer
}

// NewVideoCapture creates an idle capture for a catalog device.
func NewVideoCapture(deviceID string, opts Options) (*VideoCapture, error) {
	opts = opts.withDefaults()

	var device catalog.Device
	found := false
	for _, d := range opts.Catalog.Devices() {
		if d.ID == deviceID {
			device, found = d, true
			break
		}
	}
	if !found {
		return nil, newStreamError(ErrCodeDeviceNotFound, media.Capture.String(), deviceID, catalog.ErrDeviceNotFound)
	}

	return &VideoCapture{
		stream: newStream(media.Capture, "capture-"+device.Name, opts),
		device: device,
	}, nil
}

// Start spawns command and begins delivering frames of cfg. Starting a
// running capture with the same config does nothing; a different config
// restarts it.
func (v *VideoCapture) Start(cfg media.VideoConfig, command string) error {
	if err := cfg.Validate(); err != nil {
		return newStreamError(ErrCodeInvalidConfig, v.dir.String(), cfg.String(), fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if !convert.Supported(cfg.PixelFormat) {
		return newStreamError(ErrCodeInvalidConfig, v.dir.String(), cfg.String(),
			fmt.Errorf("%w: %w", ErrInvalidConfig, convert.ErrUnsupportedFormat))
	}

	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()

	v.mu.Lock()
	state, current := v.state, v.cfg
	v.mu.Unlock()

	if state != Idle {
		switch {
		case current == cfg && v.live():
			v.logger.Debug("Start ignored", "reason", ErrAlreadyRunning, "config", cfg.String())
			return nil
		case current != cfg:
			v.logger.Info("Capture config changed, restarting", "from", current.String(), "to", cfg.String())
		}
		// A pending RequestStop finds a new session and leaves it alone.
		v.stop()
	}

	v.mu.Lock()
	v.cfg = cfg
	v.mu.Unlock()
	v.frame = media.NewFrame(cfg.Width, cfg.Height)
	v.normalizer = convert.NewNormalizer()

	return v.start(command, cfg.FrameSize(), cfg.FramePeriod(), v.step)
}

// Stop stops the capture and waits for the worker to exit.
func (v *VideoCapture) Stop() {
	v.lifecycle.Lock()
	defer v.lifecycle.Unlock()
	v.stop()
	v.frame = nil
	v.normalizer = nil
}

// RegisterCallback sets the frame sink. A nil sink disables delivery
// without stopping the capture.
func (v *VideoCapture) RegisterCallback(sink FrameSink) {
	v.mu.Lock()
	v.sink = sink
	v.mu.Unlock()
}

// DeregisterCallback removes the frame sink.
func (v *VideoCapture) DeregisterCallback() {
	v.RegisterCallback(nil)
}

// Started reports whether the capture is running.
func (v *VideoCapture) Started() bool {
	return v.State() == Running
}

// Settings returns the config of the current or last start.
func (v *VideoCapture) Settings() media.VideoConfig {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cfg
}

// FrameCount returns the frames delivered since the last start.
func (v *VideoCapture) FrameCount() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.delivered
}

// DeviceName returns the catalog name of the device.
func (v *VideoCapture) DeviceName() string {
	return v.device.Name
}

// DeviceID returns the catalog id of the device.
func (v *VideoCapture) DeviceID() string {
	return v.device.ID
}

// BufferSize returns the raw frame buffer size, or 0 when idle.
func (v *VideoCapture) BufferSize() int {
	return v.bufferCap()
}

// SetRotation always fails: frames are delivered unrotated.
func (v *VideoCapture) SetRotation(degrees int) error {
	if degrees == 0 {
		return nil
	}
	return fmt.Errorf("rotation %d: %w", degrees, ErrNotSupported)
}

// ApplyRotation reports whether the capture rotates frames itself.
func (v *VideoCapture) ApplyRotation() bool {
	return false
}

// step reads one raw frame and delivers it. A short read is end-of-stream.
func (v *VideoCapture) step(pipe *process.Pipe, buf []byte) bool {
	n, err := pipe.Read(buf)
	if err != nil {
		v.logger.Warn("Frame read failed", "error", err)
		return false
	}
	if n < len(buf) {
		if n > 0 {
			v.logger.Debug("Partial frame at end of stream", "bytes", n, "frame_size", len(buf))
		}
		return false
	}
	if !v.deliver(buf[:n]) {
		metrics.RecordBytes(v.dir.String(), n)
	}
	return true
}

// deliver converts raw and hands it to the sink. It reports whether a frame
// was delivered; a failed conversion or missing sink drops the frame.
func (v *VideoCapture) deliver(raw []byte) bool {
	v.mu.Lock()
	sink := v.sink
	cfg := v.cfg
	v.mu.Unlock()

	if sink == nil {
		v.recordDrop(metrics.DropNoCallback, nil)
		return false
	}

	if err := v.normalizer.Normalize(v.frame, raw, cfg.PixelFormat, cfg.Width, cfg.Height); err != nil {
		v.logger.Warn("Dropping frame", "error", err)
		v.recordDrop(metrics.DropSizeMismatch, err)
		return false
	}

	if !v.invoke(func() { sink.OnFrame(v.frame) }) {
		return false
	}

	v.recordDelivery(len(raw))
	return true
}
