package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/media"
	"github.com/smazurov/ffpipe/internal/metrics"
	"github.com/smazurov/ffpipe/internal/process"
)

// AudioTransport is the host side of the audio device.
type AudioTransport interface {
	// DeliverRecordedData receives one recorded quantum. buf is reused
	// after the call returns.
	DeliverRecordedData(buf []byte, samplesPerChannel int)

	// RequestPlayoutData fills dst with up to samplesPerChannel samples
	// and returns how many it wrote. The rest of the quantum is played
	// as silence.
	RequestPlayoutData(samplesPerChannel int, dst []byte) int
}

// AudioDevice records from one process and plays out to another, each on
// its own worker, in fixed 10 ms quanta.
type AudioDevice struct {
	rec  *stream
	play *stream

	devices *catalog.Catalog

	mu          sync.Mutex
	transport   AudioTransport
	initialized bool
	recCfg      media.AudioConfig
	playCfg     media.AudioConfig
}

// NewAudioDevice creates an uninitialized audio device bound to the first
// record and playout endpoints of the catalog.
func NewAudioDevice(opts Options) *AudioDevice {
	opts = opts.withDefaults()

	d := &AudioDevice{
		devices: opts.Catalog,
		recCfg:  media.DefaultAudioConfig,
		playCfg: media.DefaultAudioConfig,
	}
	recName, playName := catalog.DefaultRecordingDevice, catalog.DefaultPlayoutDevice
	if dev, err := opts.Catalog.AudioDevice(media.Record, 0); err == nil {
		d.recCfg, recName = dev.Config, dev.Name
	}
	if dev, err := opts.Catalog.AudioDevice(media.Playout, 0); err == nil {
		d.playCfg, playName = dev.Config, dev.Name
	}

	d.rec = newStream(media.Record, "record-"+recName, opts)
	d.play = newStream(media.Playout, "playout-"+playName, opts)
	return d
}

// AttachTransport sets the host transport. A nil transport disables
// delivery; playout then writes silence.
func (d *AudioDevice) AttachTransport(t AudioTransport) {
	d.mu.Lock()
	d.transport = t
	d.mu.Unlock()
}

func (d *AudioDevice) currentTransport() AudioTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transport
}

// Init prepares the device. It is idempotent.
func (d *AudioDevice) Init() error {
	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()
	return nil
}

// Terminate stops both directions and returns the device to its
// uninitialized state.
func (d *AudioDevice) Terminate() {
	d.StopRecording()
	d.StopPlayout()
	d.mu.Lock()
	d.initialized = false
	d.mu.Unlock()
}

// Initialized reports whether Init has been called.
func (d *AudioDevice) Initialized() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized
}

// InitRecording sets the record config. It fails while recording.
func (d *AudioDevice) InitRecording(cfg media.AudioConfig) error {
	return d.negotiate(d.rec, &d.recCfg, cfg)
}

// InitPlayout sets the playout config. It fails while playing.
func (d *AudioDevice) InitPlayout(cfg media.AudioConfig) error {
	return d.negotiate(d.play, &d.playCfg, cfg)
}

func (d *AudioDevice) negotiate(s *stream, dst *media.AudioConfig, cfg media.AudioConfig) error {
	if err := cfg.Validate(); err != nil {
		return newStreamError(ErrCodeInvalidConfig, s.dir.String(), cfg.String(), fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.State() != Idle {
		return newStreamError(ErrCodeRunning, s.dir.String(), "stop before changing config", ErrAlreadyRunning)
	}

	d.mu.Lock()
	*dst = cfg
	d.mu.Unlock()
	return nil
}

// RecordingConfig returns the record config.
func (d *AudioDevice) RecordingConfig() media.AudioConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recCfg
}

// PlayoutConfig returns the playout config.
func (d *AudioDevice) PlayoutConfig() media.AudioConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playCfg
}

// StartRecording spawns command and delivers its output to the transport
// every 10 ms. It does nothing if recording is already running.
func (d *AudioDevice) StartRecording(command string) error {
	return d.startDirection(d.rec, command, d.RecordingConfig(), d.recordStep)
}

// StartPlayout spawns command and writes one quantum to it every 10 ms.
// It does nothing if playout is already running.
func (d *AudioDevice) StartPlayout(command string) error {
	return d.startDirection(d.play, command, d.PlayoutConfig(), d.playoutStep)
}

func (d *AudioDevice) startDirection(s *stream, command string, cfg media.AudioConfig, step func(media.AudioConfig) stepFunc) error {
	if !d.Initialized() {
		return newStreamError(ErrCodeNotInitialized, s.dir.String(), "call Init first", ErrNotInitialized)
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.live() {
		s.logger.Debug("Start ignored", "reason", ErrAlreadyRunning)
		return nil
	}
	s.stop()
	return s.start(command, cfg.QuantumSize(), media.Quantum, step(cfg))
}

// StopRecording stops recording and waits for the worker to exit.
func (d *AudioDevice) StopRecording() { d.rec.Stop() }

// StopPlayout stops playout and waits for the worker to exit. The process
// sees end of input first so it can flush.
func (d *AudioDevice) StopPlayout() { d.play.Stop() }

// RequestStopRecording ends recording without waiting. Safe to call from
// the transport.
func (d *AudioDevice) RequestStopRecording() { d.rec.RequestStop() }

// RequestStopPlayout ends playout without waiting. Safe to call from the
// transport.
func (d *AudioDevice) RequestStopPlayout() { d.play.RequestStop() }

// Recording reports whether recording is running.
func (d *AudioDevice) Recording() bool { return d.rec.State() == Running }

// Playing reports whether playout is running.
func (d *AudioDevice) Playing() bool { return d.play.State() == Running }

// RecordingStatus returns the record direction's status.
func (d *AudioDevice) RecordingStatus() Status { return d.rec.Status() }

// PlayoutStatus returns the playout direction's status.
func (d *AudioDevice) PlayoutStatus() Status { return d.play.Status() }

// RecordingBufferSize returns the record quantum size, or 0 when idle.
func (d *AudioDevice) RecordingBufferSize() int { return d.rec.bufferCap() }

// PlayoutBufferSize returns the playout quantum size, or 0 when idle.
func (d *AudioDevice) PlayoutBufferSize() int { return d.play.bufferCap() }

// RecordingDevices returns the number of record endpoints.
func (d *AudioDevice) RecordingDevices() int {
	return len(d.devices.AudioDevices(media.Record))
}

// PlayoutDevices returns the number of playout endpoints.
func (d *AudioDevice) PlayoutDevices() int {
	return len(d.devices.AudioDevices(media.Playout))
}

// RecordingDeviceName returns the name and GUID of a record endpoint.
func (d *AudioDevice) RecordingDeviceName(index int) (name, guid string, err error) {
	dev, err := d.devices.AudioDevice(media.Record, index)
	return dev.Name, dev.GUID, err
}

// PlayoutDeviceName returns the name and GUID of a playout endpoint.
func (d *AudioDevice) PlayoutDeviceName(index int) (name, guid string, err error) {
	dev, err := d.devices.AudioDevice(media.Playout, index)
	return dev.Name, dev.GUID, err
}

// Volume and mute are owned by the external processes, so every getter and
// setter below reports ErrNotSupported.

// SpeakerVolume reports ErrNotSupported.
func (d *AudioDevice) SpeakerVolume() (uint32, error) { return 0, ErrNotSupported }

// SetSpeakerVolume reports ErrNotSupported.
func (d *AudioDevice) SetSpeakerVolume(uint32) error { return ErrNotSupported }

// MicrophoneVolume reports ErrNotSupported.
func (d *AudioDevice) MicrophoneVolume() (uint32, error) { return 0, ErrNotSupported }

// SetMicrophoneVolume reports ErrNotSupported.
func (d *AudioDevice) SetMicrophoneVolume(uint32) error { return ErrNotSupported }

// SpeakerMute reports ErrNotSupported.
func (d *AudioDevice) SpeakerMute() (bool, error) { return false, ErrNotSupported }

// SetSpeakerMute reports ErrNotSupported.
func (d *AudioDevice) SetSpeakerMute(bool) error { return ErrNotSupported }

// MicrophoneMute reports ErrNotSupported.
func (d *AudioDevice) MicrophoneMute() (bool, error) { return false, ErrNotSupported }

// SetMicrophoneMute reports ErrNotSupported.
func (d *AudioDevice) SetMicrophoneMute(bool) error { return ErrNotSupported }

// StereoPlayoutAvailable is always true; the process does any downmix.
func (d *AudioDevice) StereoPlayoutAvailable() bool { return true }

// StereoRecordingAvailable is always true; the process does any upmix.
func (d *AudioDevice) StereoRecordingAvailable() bool { return true }

// PlayoutDelay is always zero. The pipe adds no delay of its own.
func (d *AudioDevice) PlayoutDelay() time.Duration { return 0 }

// recordStep reads one quantum. A zero read delivers nothing; a partial
// read is padded with silence and delivered. Either one ends the stream.
func (d *AudioDevice) recordStep(cfg media.AudioConfig) stepFunc {
	samples := cfg.SamplesPerQuantum()
	return func(pipe *process.Pipe, buf []byte) bool {
		n, err := pipe.Read(buf)
		if err != nil {
			d.rec.logger.Warn("Record read failed", "error", err)
			return false
		}
		if n == 0 {
			d.rec.recordDrop(metrics.DropNoData, nil)
			return false
		}
		if n < len(buf) {
			clear(buf[n:])
		}
		d.deliverRecorded(buf, samples)
		return n == len(buf)
	}
}

func (d *AudioDevice) deliverRecorded(buf []byte, samples int) {
	t := d.currentTransport()
	if t == nil {
		d.rec.recordDrop(metrics.DropNoCallback, nil)
		return
	}
	if d.rec.invoke(func() { t.DeliverRecordedData(buf, samples) }) {
		d.rec.recordDelivery(len(buf))
	}
}

// playoutStep asks the transport for one quantum and writes it. A write
// failure means the process is gone and ends the stream.
func (d *AudioDevice) playoutStep(cfg media.AudioConfig) stepFunc {
	samples := cfg.SamplesPerQuantum()
	frameBytes := cfg.Channels * cfg.SampleFormat.BytesPerSample()
	return func(pipe *process.Pipe, buf []byte) bool {
		d.fillPlayout(buf, samples, frameBytes)

		n, err := pipe.Write(buf)
		if err != nil {
			d.play.logger.Info("Playout process stopped accepting input", "error", err)
			return false
		}
		d.play.recordDelivery(n)
		return true
	}
}

// fillPlayout pulls one quantum from the transport into buf, padding
// whatever it did not provide with silence.
func (d *AudioDevice) fillPlayout(buf []byte, samples, frameBytes int) {
	t := d.currentTransport()
	if t == nil {
		clear(buf)
		d.play.recordDrop(metrics.DropNoCallback, nil)
		return
	}

	got := 0
	d.play.invoke(func() { got = t.RequestPlayoutData(samples, buf) })
	got = max(0, min(got, samples))
	if got < samples {
		clear(buf[got*frameBytes:])
		d.play.recordDrop(metrics.DropUnderrun, nil)
	}
}
