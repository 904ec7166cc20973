// Package convert normalizes raw video frames into canonical I420.
//
// Every supported source layout is converted into tightly packed planes
// with StrideY equal to the width and StrideUV equal to the chroma width,
// rounded up. RGB sources use BT.601 limited-range coefficients. Frames are
// never rotated or cropped.
package convert

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/smazurov/ffpipe/internal/media"
)

var (
	// ErrFrameSizeMismatch is returned when a raw buffer does not hold
	// exactly one frame of the declared format and resolution.
	ErrFrameSizeMismatch = errors.New("frame size mismatch")

	// ErrUnsupportedFormat is returned for pixel formats with no converter.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
)

// SizeError describes a raw buffer with the wrong length.
type SizeError struct {
	Format   media.PixelFormat
	Width    int
	Height   int
	Expected int
	Got      int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s %dx%d: expected %d bytes, got %d",
		e.Format, e.Width, e.Height, e.Expected, e.Got)
}

func (e *SizeError) Unwrap() error {
	return ErrFrameSizeMismatch
}

type converter func(dst *media.Frame, raw []byte, w, h int)

var converters = map[media.PixelFormat]converter{
	media.PixelFormatI420:  fromI420,
	media.PixelFormatYV12:  fromYV12,
	media.PixelFormatNV12:  fromNV12,
	media.PixelFormatNV21:  fromNV21,
	media.PixelFormatYUY2:  packed422(0, 1, 3),
	media.PixelFormatUYVY:  packed422(1, 0, 2),
	media.PixelFormatRGB24: packedRGB(3, 0, 1, 2),
	media.PixelFormatBGR24: packedRGB(3, 2, 1, 0),
	media.PixelFormatRGBA:  packedRGB(4, 0, 1, 2),
	media.PixelFormatBGRA:  packedRGB(4, 2, 1, 0),
	media.PixelFormatARGB:  packedRGB(4, 1, 2, 3),
}

// Supported reports whether format can be normalized.
func Supported(format media.PixelFormat) bool {
	_, ok := converters[format]
	return ok
}

// Normalize converts one raw frame into a newly allocated I420 frame
// stamped with the current time.
func Normalize(raw []byte, format media.PixelFormat, width, height int) (*media.Frame, error) {
	frame := &media.Frame{}
	if err := ConvertInto(frame, raw, format, width, height); err != nil {
		return nil, err
	}
	frame.Timestamp = time.Now()
	return frame, nil
}

// ConvertInto converts raw into dst, reusing dst's planes when they are
// large enough. Sequence and Timestamp are left untouched.
func ConvertInto(dst *media.Frame, raw []byte, format media.PixelFormat, width, height int) error {
	conv, ok := converters[format]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	expected := media.FrameSize(format, width, height)
	if expected == 0 || len(raw) != expected {
		return &SizeError{
			Format:   format,
			Width:    width,
			Height:   height,
			Expected: expected,
			Got:      len(raw),
		}
	}

	dst.Reset(width, height)
	dst.Rotation = 0
	conv(dst, raw, width, height)
	return nil
}

// Normalizer converts frames for one stream, numbering them in order and
// stamping each with the time of conversion.
type Normalizer struct {
	// Now defaults to time.Now.
	Now func() time.Time

	seq atomic.Uint64
}

// NewNormalizer creates a Normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

// Normalize converts raw into dst. The sequence number only advances on
// success, so dropped frames leave no gaps.
func (n *Normalizer) Normalize(dst *media.Frame, raw []byte, format media.PixelFormat, width, height int) error {
	if err := ConvertInto(dst, raw, format, width, height); err != nil {
		return err
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	dst.Sequence = n.seq.Add(1)
	dst.Timestamp = now()
	return nil
}

// Sequence returns the number of frames converted so far.
func (n *Normalizer) Sequence() uint64 {
	return n.seq.Load()
}
