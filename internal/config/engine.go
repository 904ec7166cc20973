package config

import (
	"fmt"
	"os"
	"reflect"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/ffmpeg"
	"github.com/smazurov/ffpipe/internal/media"
)

// Engine holds the stream sections of the config file. Each section maps
// to one direction; a change to a section restarts that direction only.
type Engine struct {
	Video   VideoSection `toml:"video" json:"video"`
	Record  AudioSection `toml:"record" json:"record"`
	Playout AudioSection `toml:"playout" json:"playout"`
}

// VideoSection configures the capture direction.
type VideoSection struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Device  string `toml:"device" json:"device"`

	Width       int    `toml:"width" json:"width"`
	Height      int    `toml:"height" json:"height"`
	FPS         int    `toml:"fps" json:"fps"`
	PixelFormat string `toml:"pixel_format" json:"pixel_format"`
	Interlaced  bool   `toml:"interlaced" json:"interlaced"`

	// Command overrides the generated ffmpeg command.
	Command string `toml:"command" json:"command,omitempty"`

	// Input is what the generated command decodes (empty = test pattern).
	Input ffmpeg.Input `toml:"input" json:"input"`
}

// AudioSection configures the record or playout direction.
type AudioSection struct {
	Enabled bool `toml:"enabled" json:"enabled"`

	SampleRate   int    `toml:"sample_rate" json:"sample_rate"`
	Channels     int    `toml:"channels" json:"channels"`
	SampleFormat string `toml:"sample_format" json:"sample_format"`

	// Command overrides the generated ffmpeg command.
	Command string `toml:"command" json:"command,omitempty"`

	// Input is decoded by record commands (empty = test tone).
	Input ffmpeg.Input `toml:"input" json:"input"`

	// Output receives played-out audio.
	Output ffmpeg.Output `toml:"output" json:"output"`

	// Source feeds playout (playout section only):
	//   loopback  replays recorded audio (default)
	//   tone      generates a 1 kHz sine wave
	//   silence   detaches the host; record drops, playout is silent
	Source string `toml:"source" json:"source,omitempty"`
}

// DefaultEngine returns the engine settings used when the file has none:
// the default catalog device at its first capability, 48 kHz stereo audio.
func DefaultEngine() Engine {
	capability := catalog.Capability{Width: 640, Height: 480, MaxFPS: 30, PixelFormat: media.PixelFormatI420}
	if caps, err := catalog.Default().ListCapabilities(catalog.DefaultDeviceID); err == nil && len(caps) > 0 {
		capability = caps[0]
	}
	audio := AudioSection{
		SampleRate:   media.DefaultAudioConfig.SampleRate,
		Channels:     media.DefaultAudioConfig.Channels,
		SampleFormat: media.DefaultAudioConfig.SampleFormat.String(),
	}
	playout := audio
	playout.Source = "loopback"

	return Engine{
		Video: VideoSection{
			Device:      catalog.DefaultDeviceID,
			Width:       capability.Width,
			Height:      capability.Height,
			FPS:         capability.MaxFPS,
			PixelFormat: capability.PixelFormat.String(),
		},
		Record:  audio,
		Playout: playout,
	}
}

// LoadEngine reads the stream sections of a config file on top of
// DefaultEngine. A missing file yields the defaults.
func LoadEngine(path string) (Engine, error) {
	engine := DefaultEngine()
	if path == "" {
		return engine, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return engine, nil
	}
	if err != nil {
		return engine, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &engine); err != nil {
		return engine, fmt.Errorf("failed to parse engine config: %w", err)
	}
	if _, err := engine.Video.Config(); err != nil {
		return engine, fmt.Errorf("video section: %w", err)
	}
	for name, section := range map[string]AudioSection{"record": engine.Record, "playout": engine.Playout} {
		if _, err := section.Config(); err != nil {
			return engine, fmt.Errorf("%s section: %w", name, err)
		}
	}
	return engine, nil
}

// Config returns the stream config of the section.
func (v VideoSection) Config() (media.VideoConfig, error) {
	format, err := media.ParsePixelFormat(v.PixelFormat)
	if err != nil {
		return media.VideoConfig{}, err
	}
	cfg := media.VideoConfig{
		Width:       v.Width,
		Height:      v.Height,
		FPS:         v.FPS,
		PixelFormat: format,
		Interlaced:  v.Interlaced,
	}
	return cfg, cfg.Validate()
}

// BuildCommand returns Command, or an ffmpeg command that decodes Input
// (or a test pattern) into raw frames of cfg.
func (v VideoSection) BuildCommand(cfg media.VideoConfig) (string, error) {
	if v.Command != "" {
		return v.Command, nil
	}
	in := v.Input
	if in.URL == "" {
		in = ffmpeg.TestVideoInput(cfg)
	}
	return ffmpeg.VideoCaptureCommand(in, cfg)
}

// Config returns the stream config of the section.
func (a AudioSection) Config() (media.AudioConfig, error) {
	format, err := media.ParseSampleFormat(a.SampleFormat)
	if err != nil {
		return media.AudioConfig{}, err
	}
	cfg := media.AudioConfig{
		SampleRate:   a.SampleRate,
		Channels:     a.Channels,
		SampleFormat: format,
	}
	return cfg, cfg.Validate()
}

// BuildRecordCommand returns Command, or an ffmpeg command that decodes
// Input (or a test tone) into PCM of cfg.
func (a AudioSection) BuildRecordCommand(cfg media.AudioConfig) (string, error) {
	if a.Command != "" {
		return a.Command, nil
	}
	in := a.Input
	if in.URL == "" {
		in = ffmpeg.TestAudioInput(cfg)
	}
	return ffmpeg.AudioRecordCommand(in, cfg)
}

// BuildPlayoutCommand returns Command, or an ffmpeg command that encodes
// PCM of cfg into Output.
func (a AudioSection) BuildPlayoutCommand(cfg media.AudioConfig) (string, error) {
	if a.Command != "" {
		return a.Command, nil
	}
	return ffmpeg.AudioPlayoutCommand(a.Output, cfg)
}

// Changed lists the directions whose sections differ from prev.
func (e Engine) Changed(prev Engine) []string {
	var changed []string
	if !reflect.DeepEqual(e.Video, prev.Video) {
		changed = append(changed, media.Capture.String())
	}
	if !reflect.DeepEqual(e.Playout, prev.Playout) {
		changed = append(changed, media.Playout.String())
	}
	if !reflect.DeepEqual(e.Record, prev.Record) {
		changed = append(changed, media.Record.String())
	}
	return changed
}
