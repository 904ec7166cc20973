package ffmpeg

import (
	"errors"
	"strings"
	"testing"

	"github.com/smazurov/ffpipe/internal/media"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Stream mapping:", "info", "Stream mapping:"},
		{"[error] Conversion failed!", "error", "Conversion failed!"},
		{"[warning] deprecated pixel format", "warning", "deprecated pixel format"},
		{"[h264 @ 0x55d0c8] [error] decode_slice_header error", "error", "[h264 @ 0x55d0c8] decode_slice_header error"},
		{"[h264 @ 0x55d0c8] no level here", "info", "[h264 @ 0x55d0c8] no level here"},
		{"plain line", "info", "plain line"},
		{"[]", "info", "[]"},
		{"", "info", ""},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestVideoCaptureCommand(t *testing.T) {
	cfg := media.VideoConfig{Width: 640, Height: 480, FPS: 30, PixelFormat: media.PixelFormatI420}
	cmd, err := VideoCaptureCommand(Input{URL: "video.h264"}, cfg)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"ffmpeg -hide_banner -loglevel level+info -nostdin",
		"-i video.h264",
		"-f rawvideo -pix_fmt yuv420p",
		"-r 30",
		"-s 640x480",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("command %q missing %q", cmd, want)
		}
	}
	if !strings.HasSuffix(cmd, " pipe:1") {
		t.Errorf("command %q should write to stdout", cmd)
	}
}

func TestVideoCaptureCommandErrors(t *testing.T) {
	_, err := VideoCaptureCommand(Input{URL: "x"}, media.VideoConfig{Width: 2, Height: 2, FPS: 1, PixelFormat: media.PixelFormatYV12})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	_, err = VideoCaptureCommand(Input{URL: "x"}, media.VideoConfig{})
	if !errors.Is(err, media.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestAudioRecordCommand(t *testing.T) {
	in := Input{URL: "rtmp://localhost/camera", Args: []string{"-rtsp_transport", "tcp"}}
	cmd, err := AudioRecordCommand(in, media.DefaultAudioConfig)
	if err != nil {
		t.Fatal(err)
	}
	want := "ffmpeg -hide_banner -loglevel level+info -nostdin -rtsp_transport tcp -i rtmp://localhost/camera -vn -f s16le -c:a pcm_s16le -ac 2 -ar 48000 pipe:1"
	if cmd != want {
		t.Errorf("command =\n%q\nwant\n%q", cmd, want)
	}
}

func TestAudioPlayoutCommand(t *testing.T) {
	cfg := media.AudioConfig{SampleRate: 44100, Channels: 1, SampleFormat: media.SampleFormatF32LE}
	cmd, err := AudioPlayoutCommand(Output{URL: "my output.wav", Format: "wav"}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := `ffmpeg -hide_banner -loglevel level+info -f f32le -ar 44100 -ac 1 -i pipe:0 -f wav -y "my output.wav"`
	if cmd != want {
		t.Errorf("command =\n%q\nwant\n%q", cmd, want)
	}

	if _, err := AudioPlayoutCommand(Output{}, cfg); err == nil {
		t.Error("expected error for missing output URL")
	}
}

func TestTestInputs(t *testing.T) {
	cmd, err := VideoCaptureCommand(TestVideoInput(media.VideoConfig{Width: 320, Height: 240, FPS: 15, PixelFormat: media.PixelFormatRGB24}),
		media.VideoConfig{Width: 320, Height: 240, FPS: 15, PixelFormat: media.PixelFormatRGB24})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cmd, "-re -f lavfi -i testsrc2=size=320x240:rate=15") {
		t.Errorf("unexpected test source command %q", cmd)
	}

	in := TestAudioInput(media.DefaultAudioConfig)
	if in.URL != "sine=frequency=1000:sample_rate=48000" || in.Format != "lavfi" {
		t.Errorf("unexpected audio test input %+v", in)
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"plain":      "plain",
		"":           `""`,
		"with space": `"with space"`,
		`say "hi"`:   `"say \"hi\""`,
		`back\slash`: `"back\\slash"`,
		"it's":       `"it's"`,
	}
	for in, want := range tests {
		if got := Quote(in); got != want {
			t.Errorf("Quote(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestWithProgress(t *testing.T) {
	cmd, err := AudioRecordCommand(TestAudioInput(media.DefaultAudioConfig), media.DefaultAudioConfig)
	if err != nil {
		t.Fatal(err)
	}

	got := WithProgress(cmd, "unix:///tmp/p.sock")
	if !strings.HasPrefix(got, Base()+" -progress unix:///tmp/p.sock -nostats ") {
		t.Errorf("progress not inserted after base flags: %s", got)
	}
	if !strings.HasSuffix(got, " pipe:1") {
		t.Errorf("command tail changed: %s", got)
	}

	if got := WithProgress("cat /dev/zero", "unix:///tmp/p.sock"); got != "cat /dev/zero" {
		t.Errorf("custom command changed: %s", got)
	}
	if got := WithProgress(cmd, ""); got != cmd {
		t.Errorf("empty url changed command: %s", got)
	}
}
