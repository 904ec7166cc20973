package media

import (
	"fmt"
	"strings"
)

// PixelFormat is the memory layout of a raw video frame.
type PixelFormat int

// Supported pixel formats. Packed RGB names follow byte order in memory.
const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatI420                // Y, U, V planes, 4:2:0
	PixelFormatYV12                // Y, V, U planes, 4:2:0
	PixelFormatNV12                // Y plane + interleaved UV, 4:2:0
	PixelFormatNV21                // Y plane + interleaved VU, 4:2:0
	PixelFormatYUY2                // packed Y0 U Y1 V, 4:2:2
	PixelFormatUYVY                // packed U Y0 V Y1, 4:2:2
	PixelFormatRGB24               // R, G, B
	PixelFormatBGR24               // B, G, R
	PixelFormatRGBA                // R, G, B, A
	PixelFormatBGRA                // B, G, R, A
	PixelFormatARGB                // A, R, G, B
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatI420:  "I420",
	PixelFormatYV12:  "YV12",
	PixelFormatNV12:  "NV12",
	PixelFormatNV21:  "NV21",
	PixelFormatYUY2:  "YUY2",
	PixelFormatUYVY:  "UYVY",
	PixelFormatRGB24: "RGB24",
	PixelFormatBGR24: "BGR24",
	PixelFormatRGBA:  "RGBA",
	PixelFormatBGRA:  "BGRA",
	PixelFormatARGB:  "ARGB",
}

// ffmpeg -pix_fmt names. YV12 has no rawvideo equivalent.
var pixelFormatFFmpeg = map[PixelFormat]string{
	PixelFormatI420:  "yuv420p",
	PixelFormatNV12:  "nv12",
	PixelFormatNV21:  "nv21",
	PixelFormatYUY2:  "yuyv422",
	PixelFormatUYVY:  "uyvy422",
	PixelFormatRGB24: "rgb24",
	PixelFormatBGR24: "bgr24",
	PixelFormatRGBA:  "rgba",
	PixelFormatBGRA:  "bgra",
	PixelFormatARGB:  "argb",
}

func (p PixelFormat) String() string {
	if name, ok := pixelFormatNames[p]; ok {
		return name
	}
	return "Unknown"
}

// FFmpegName returns the ffmpeg pix_fmt name, or "" if ffmpeg cannot emit it.
func (p PixelFormat) FFmpegName() string {
	return pixelFormatFFmpeg[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p PixelFormat) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(p.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PixelFormat) UnmarshalText(text []byte) error {
	parsed, err := ParsePixelFormat(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePixelFormat accepts either the canonical name (i420, rgb24, ...) or
// the ffmpeg pix_fmt name (yuv420p, yuyv422, ...), case-insensitively.
func ParsePixelFormat(s string) (PixelFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range pixelFormatNames {
		if strings.ToLower(name) == s {
			return f, nil
		}
	}
	for f, name := range pixelFormatFFmpeg {
		if name == s {
			return f, nil
		}
	}
	return PixelFormatUnknown, fmt.Errorf("unsupported pixel format %q", s)
}

// FrameSize returns the byte length of one frame. Chroma planes of 4:2:0
// formats round odd dimensions up. Returns 0 for unknown formats or
// non-positive dimensions.
func FrameSize(format PixelFormat, width, height int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	halfW := (width + 1) / 2
	halfH := (height + 1) / 2
	switch format {
	case PixelFormatI420, PixelFormatYV12, PixelFormatNV12, PixelFormatNV21:
		return width*height + 2*halfW*halfH
	case PixelFormatYUY2, PixelFormatUYVY:
		return halfW * 4 * height
	case PixelFormatRGB24, PixelFormatBGR24:
		return width * height * 3
	case PixelFormatRGBA, PixelFormatBGRA, PixelFormatARGB:
		return width * height * 4
	default:
		return 0
	}
}

// SampleFormat is the encoding of one PCM sample.
type SampleFormat int

// Supported sample formats, both interleaved little-endian.
const (
	SampleFormatS16LE SampleFormat = iota
	SampleFormatF32LE
)

func (s SampleFormat) String() string {
	switch s {
	case SampleFormatS16LE:
		return "s16le"
	case SampleFormatF32LE:
		return "f32le"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the width of one sample of one channel.
func (s SampleFormat) BytesPerSample() int {
	switch s {
	case SampleFormatS16LE:
		return 2
	case SampleFormatF32LE:
		return 4
	default:
		return 0
	}
}

// ParseSampleFormat converts an ffmpeg sample format name.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s16le", "s16", "":
		return SampleFormatS16LE, nil
	case "f32le", "f32", "flt":
		return SampleFormatF32LE, nil
	default:
		return 0, fmt.Errorf("unsupported sample format %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s SampleFormat) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SampleFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseSampleFormat(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
