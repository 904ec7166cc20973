package media

import "time"

// Frame is a canonical I420 video frame as delivered downstream.
// Planes are tightly packed: StrideY is the width and StrideUV is the
// chroma width, rounded up.
type Frame struct {
	Y, U, V  []byte
	StrideY  int
	StrideUV int
	Width    int
	Height   int

	// Rotation is always zero; the engine never rotates.
	Rotation int

	// Sequence increases by one per frame delivered on a stream.
	Sequence uint64

	// Timestamp is taken when the frame is converted, not when it was read.
	Timestamp time.Time
}

// NewFrame allocates an I420 frame for the given dimensions.
func NewFrame(width, height int) *Frame {
	f := &Frame{}
	f.Reset(width, height)
	return f
}

// Reset resizes the frame planes, reusing their backing arrays when large enough.
func (f *Frame) Reset(width, height int) {
	halfW := (width + 1) / 2
	halfH := (height + 1) / 2
	f.Width = width
	f.Height = height
	f.StrideY = width
	f.StrideUV = halfW
	f.Y = resize(f.Y, width*height)
	f.U = resize(f.U, halfW*halfH)
	f.V = resize(f.V, halfW*halfH)
}

// Size returns the total number of plane bytes.
func (f *Frame) Size() int {
	return len(f.Y) + len(f.U) + len(f.V)
}

// Clone returns a deep copy, for consumers that keep frames beyond OnFrame.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Y = append([]byte(nil), f.Y...)
	c.U = append([]byte(nil), f.U...)
	c.V = append([]byte(nil), f.V...)
	return &c
}

func resize(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	return make([]byte, n)
}
