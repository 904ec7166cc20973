package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/ffpipe/internal/media"
)

// ErrUnsupportedFormat is returned when ffmpeg cannot emit the requested
// raw layout.
var ErrUnsupportedFormat = errors.New("format not supported by ffmpeg")

// Binary is the ffmpeg executable used by the command builders.
var Binary = "ffmpeg"

// Input describes where ffmpeg reads media from.
type Input struct {
	URL string `toml:"url" json:"url"`

	// Format is passed as -f before -i (lavfi, v4l2, alsa).
	Format string `toml:"format" json:"format,omitempty"`

	// Args are extra input options placed before -i.
	Args []string `toml:"args" json:"args,omitempty"`

	// Realtime paces file inputs at their native rate (-re).
	Realtime bool `toml:"realtime" json:"realtime"`

	// Loop repeats the input forever (-stream_loop -1).
	Loop bool `toml:"loop" json:"loop"`
}

// Output describes where ffmpeg writes played-out audio.
type Output struct {
	URL    string   `toml:"url" json:"url"`
	Format string   `toml:"format" json:"format,omitempty"`
	Args   []string `toml:"args" json:"args,omitempty"`
}

// Base returns the ffmpeg invocation with standard flags. The level prefix
// on log lines is what ParseLogLevel expects.
func Base() string {
	return Binary + " -hide_banner -loglevel level+info"
}

// TestVideoInput is a generated test pattern at the given config.
func TestVideoInput(cfg media.VideoConfig) Input {
	return Input{
		URL:      fmt.Sprintf("testsrc2=size=%dx%d:rate=%d", cfg.Width, cfg.Height, cfg.FPS),
		Format:   "lavfi",
		Realtime: true,
	}
}

// TestAudioInput is a generated 1 kHz tone.
func TestAudioInput(cfg media.AudioConfig) Input {
	return Input{
		URL:      fmt.Sprintf("sine=frequency=1000:sample_rate=%d", cfg.SampleRate),
		Format:   "lavfi",
		Realtime: true,
	}
}

// VideoCaptureCommand builds a command that decodes in and writes raw
// frames of cfg to stdout, scaled and rate-converted by ffmpeg.
func VideoCaptureCommand(in Input, cfg media.VideoConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	pixFmt := cfg.PixelFormat.FFmpegName()
	if pixFmt == "" {
		return "", fmt.Errorf("%w: pixel format %s", ErrUnsupportedFormat, cfg.PixelFormat)
	}

	var cmd strings.Builder
	cmd.WriteString(Base())
	cmd.WriteString(" -nostdin")
	writeInput(&cmd, in)
	cmd.WriteString(" -an -f rawvideo -pix_fmt " + pixFmt)
	cmd.WriteString(" -r " + strconv.Itoa(cfg.FPS))
	cmd.WriteString(fmt.Sprintf(" -s %dx%d", cfg.Width, cfg.Height))
	cmd.WriteString(" pipe:1")
	return cmd.String(), nil
}

// AudioRecordCommand builds a command that decodes the audio of in and
// writes interleaved PCM of cfg to stdout.
func AudioRecordCommand(in Input, cfg media.AudioConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	codec, err := pcmCodec(cfg.SampleFormat)
	if err != nil {
		return "", err
	}

	var cmd strings.Builder
	cmd.WriteString(Base())
	cmd.WriteString(" -nostdin")
	writeInput(&cmd, in)
	cmd.WriteString(" -vn -f " + cfg.SampleFormat.String() + " -c:a " + codec)
	cmd.WriteString(" -ac " + strconv.Itoa(cfg.Channels))
	cmd.WriteString(" -ar " + strconv.Itoa(cfg.SampleRate))
	cmd.WriteString(" pipe:1")
	return cmd.String(), nil
}

// AudioPlayoutCommand builds a command that reads interleaved PCM of cfg
// from stdin and writes it to out.
func AudioPlayoutCommand(out Output, cfg media.AudioConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("playout output URL is required")
	}
	if _, err := pcmCodec(cfg.SampleFormat); err != nil {
		return "", err
	}

	var cmd strings.Builder
	cmd.WriteString(Base())
	cmd.WriteString(" -f " + cfg.SampleFormat.String())
	cmd.WriteString(" -ar " + strconv.Itoa(cfg.SampleRate))
	cmd.WriteString(" -ac " + strconv.Itoa(cfg.Channels))
	cmd.WriteString(" -i pipe:0")
	for _, arg := range out.Args {
		cmd.WriteString(" " + Quote(arg))
	}
	if out.Format != "" {
		cmd.WriteString(" -f " + out.Format)
	}
	cmd.WriteString(" -y " + Quote(out.URL))
	return cmd.String(), nil
}

func writeInput(cmd *strings.Builder, in Input) {
	if in.Realtime {
		cmd.WriteString(" -re")
	}
	if in.Loop {
		cmd.WriteString(" -stream_loop -1")
	}
	for _, arg := range in.Args {
		cmd.WriteString(" " + Quote(arg))
	}
	if in.Format != "" {
		cmd.WriteString(" -f " + in.Format)
	}
	cmd.WriteString(" -i " + Quote(in.URL))
}

func pcmCodec(f media.SampleFormat) (string, error) {
	switch f {
	case media.SampleFormatS16LE:
		return "pcm_s16le", nil
	case media.SampleFormatF32LE:
		return "pcm_f32le", nil
	default:
		return "", fmt.Errorf("%w: sample format %s", ErrUnsupportedFormat, f)
	}
}

// Quote wraps s in double quotes when it contains characters the command
// parser would otherwise split or interpret.
func Quote(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\n\"'\\") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// WithProgress adds -progress url to a command built by this package.
// Custom commands are returned unchanged.
func WithProgress(command, url string) string {
	rest, ok := strings.CutPrefix(command, Base())
	if !ok || url == "" {
		return command
	}
	return Base() + " -progress " + Quote(url) + " -nostats" + rest
}
