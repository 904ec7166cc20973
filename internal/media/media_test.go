package media

import (
	"errors"
	"testing"
	"time"
)

func TestQuantumSize(t *testing.T) {
	tests := []struct {
		name string
		cfg  AudioConfig
		want int
	}{
		{"48k stereo s16", AudioConfig{48000, 2, SampleFormatS16LE}, 480 * 2 * 2},
		{"44.1k stereo s16", AudioConfig{44100, 2, SampleFormatS16LE}, 441 * 2 * 2},
		{"16k mono s16", AudioConfig{16000, 1, SampleFormatS16LE}, 160 * 2},
		{"48k 6ch f32", AudioConfig{48000, 6, SampleFormatF32LE}, 480 * 6 * 4},
		{"8k mono f32", AudioConfig{8000, 1, SampleFormatF32LE}, 80 * 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuantumSize(tt.cfg); got != tt.want {
				t.Errorf("QuantumSize() = %d, want %d", got, tt.want)
			}
			if got := tt.cfg.SamplesPerQuantum() * tt.cfg.Channels * tt.cfg.SampleFormat.BytesPerSample(); got != tt.want {
				t.Errorf("samples*channels*width = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFrameSize(t *testing.T) {
	tests := []struct {
		format PixelFormat
		w, h   int
		want   int
	}{
		{PixelFormatI420, 640, 480, 640 * 480 * 3 / 2},
		{PixelFormatI420, 1920, 1080, 1920 * 1080 * 3 / 2},
		{PixelFormatI420, 3, 3, 9 + 2*2*2},
		{PixelFormatNV12, 640, 480, 640 * 480 * 3 / 2},
		{PixelFormatYUY2, 640, 480, 640 * 480 * 2},
		{PixelFormatYUY2, 3, 2, 2 * 4 * 2},
		{PixelFormatRGB24, 640, 480, 640 * 480 * 3},
		{PixelFormatBGRA, 320, 240, 320 * 240 * 4},
		{PixelFormatUnknown, 320, 240, 0},
		{PixelFormatI420, 0, 240, 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := FrameSize(tt.format, tt.w, tt.h); got != tt.want {
				t.Errorf("FrameSize(%s, %d, %d) = %d, want %d", tt.format, tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestParsePixelFormat(t *testing.T) {
	tests := map[string]PixelFormat{
		"i420":    PixelFormatI420,
		"yuv420p": PixelFormatI420,
		"RGB24":   PixelFormatRGB24,
		"yuyv422": PixelFormatYUY2,
		"uyvy":    PixelFormatUYVY,
		" nv21 ":  PixelFormatNV21,
	}
	for in, want := range tests {
		got, err := ParsePixelFormat(in)
		if err != nil {
			t.Errorf("ParsePixelFormat(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParsePixelFormat(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParsePixelFormat("h264"); err == nil {
		t.Error("expected error for compressed format")
	}
}

func TestPixelFormatText(t *testing.T) {
	var p PixelFormat
	if err := p.UnmarshalText([]byte("nv12")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	text, err := p.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}
	if string(text) != "nv12" {
		t.Errorf("MarshalText() = %q, want nv12", text)
	}
}

func TestVideoConfigValidate(t *testing.T) {
	valid := VideoConfig{Width: 640, Height: 480, FPS: 30, PixelFormat: PixelFormatI420}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got := valid.FramePeriod(); got != time.Second/30 {
		t.Errorf("FramePeriod() = %v", got)
	}

	invalid := []VideoConfig{
		{Width: 0, Height: 480, FPS: 30, PixelFormat: PixelFormatI420},
		{Width: 640, Height: 480, FPS: 0, PixelFormat: PixelFormatI420},
		{Width: 640, Height: 480, FPS: 30, PixelFormat: PixelFormatUnknown},
	}
	for _, cfg := range invalid {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidConfig", cfg, err)
		}
	}
}

func TestAudioConfigValidate(t *testing.T) {
	if err := DefaultAudioConfig.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if err := (AudioConfig{SampleRate: 50, Channels: 2}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for sub-quantum rate, got %v", err)
	}
	if err := (AudioConfig{SampleRate: 48000}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero channels, got %v", err)
	}
}

func TestFrameResetReusesPlanes(t *testing.T) {
	f := NewFrame(640, 480)
	y := &f.Y[0]

	f.Reset(320, 240)
	if &f.Y[0] != y {
		t.Error("expected Y plane to be reused when shrinking")
	}
	if f.StrideY != 320 || f.StrideUV != 160 {
		t.Errorf("strides = %d/%d, want 320/160", f.StrideY, f.StrideUV)
	}

	f.Reset(5, 3)
	if f.StrideUV != 3 || len(f.U) != 3*2 {
		t.Errorf("odd dimensions: StrideUV=%d len(U)=%d", f.StrideUV, len(f.U))
	}
	if f.Size() != FrameSize(PixelFormatI420, 5, 3) {
		t.Errorf("Size() = %d, want %d", f.Size(), FrameSize(PixelFormatI420, 5, 3))
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range Directions {
		got, err := ParseDirection(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDirection(%q) = %v, %v", d.String(), got, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if Playout.Reads() || !Capture.Reads() || !Record.Reads() {
		t.Error("unexpected Reads() result")
	}
}
