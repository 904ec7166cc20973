package media

import (
	"errors"
	"fmt"
	"time"
)

// Quantum is the fixed slice of audio moved per cycle.
const Quantum = 10 * time.Millisecond

// quantaPerSecond is the number of audio quanta in one second.
const quantaPerSecond = int(time.Second / Quantum)

// ErrInvalidConfig is returned for stream parameters that cannot be sized.
var ErrInvalidConfig = errors.New("invalid stream config")

// VideoConfig describes a negotiated video stream.
type VideoConfig struct {
	Width       int         `json:"width" toml:"width"`
	Height      int         `json:"height" toml:"height"`
	FPS         int         `json:"fps" toml:"fps"`
	PixelFormat PixelFormat `json:"pixel_format" toml:"pixel_format"`
	Interlaced  bool        `json:"interlaced" toml:"interlaced"`
}

// FrameSize returns the size of one raw frame in bytes.
func (c VideoConfig) FrameSize() int {
	return FrameSize(c.PixelFormat, c.Width, c.Height)
}

// FramePeriod returns the nominal time between frames.
func (c VideoConfig) FramePeriod() time.Duration {
	if c.FPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.FPS)
}

// Validate checks that the config describes a sizable stream.
func (c VideoConfig) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.FPS <= 0:
		return fmt.Errorf("%w: fps %d", ErrInvalidConfig, c.FPS)
	case c.FrameSize() == 0:
		return fmt.Errorf("%w: pixel format %s", ErrInvalidConfig, c.PixelFormat)
	}
	return nil
}

func (c VideoConfig) String() string {
	return fmt.Sprintf("%dx%d@%d %s", c.Width, c.Height, c.FPS, c.PixelFormat)
}

// AudioConfig describes a negotiated PCM stream.
type AudioConfig struct {
	SampleRate   int          `json:"sample_rate" toml:"sample_rate"`
	Channels     int          `json:"channels" toml:"channels"`
	SampleFormat SampleFormat `json:"sample_format" toml:"sample_format"`
}

// DefaultAudioConfig is the fixed 48 kHz stereo s16le layout used by the
// ffmpeg audio device.
var DefaultAudioConfig = AudioConfig{
	SampleRate:   48000,
	Channels:     2,
	SampleFormat: SampleFormatS16LE,
}

// SamplesPerQuantum returns the number of samples per channel in 10 ms.
func SamplesPerQuantum(sampleRate int) int {
	return sampleRate / quantaPerSecond
}

// QuantumSize returns the size of one 10 ms buffer in bytes.
func QuantumSize(c AudioConfig) int {
	return SamplesPerQuantum(c.SampleRate) * c.Channels * c.SampleFormat.BytesPerSample()
}

// SamplesPerQuantum returns the samples per channel in one quantum.
func (c AudioConfig) SamplesPerQuantum() int {
	return SamplesPerQuantum(c.SampleRate)
}

// QuantumSize returns the size of one 10 ms buffer in bytes.
func (c AudioConfig) QuantumSize() int {
	return QuantumSize(c)
}

// Validate checks that the config describes a sizable stream.
func (c AudioConfig) Validate() error {
	switch {
	case c.SampleRate < quantaPerSecond:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, c.Channels)
	case c.SampleFormat.BytesPerSample() == 0:
		return fmt.Errorf("%w: sample format %d", ErrInvalidConfig, c.SampleFormat)
	}
	return nil
}

func (c AudioConfig) String() string {
	return fmt.Sprintf("%dHz/%dch %s", c.SampleRate, c.Channels, c.SampleFormat)
}
