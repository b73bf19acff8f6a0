package domain

import "fmt"

// FrameBuffer is a fixed-width by fixed-height grid of RGB triples at a
// panel's native resolution. Pixels are stored row-major, three bytes per
// pixel, top-left origin.
type FrameBuffer struct {
	width  int
	height int
	pix    []byte
}

// NewFrameBuffer allocates a black frame buffer of the given dimensions.
func NewFrameBuffer(width, height int) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 || width > 255 || height > 255 {
		return nil, fmt.Errorf("%w: dimensions %dx%d out of range", ErrEncoding, width, height)
	}
	return &FrameBuffer{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*3),
	}, nil
}

// Width returns the buffer width in pixels.
func (f *FrameBuffer) Width() int { return f.width }

// Height returns the buffer height in pixels.
func (f *FrameBuffer) Height() int { return f.height }

// SetPixel sets the RGB value at (x, y). Out-of-range coordinates are
// ignored.
func (f *FrameBuffer) SetPixel(x, y int, r, g, b byte) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return
	}
	i := (y*f.width + x) * 3
	f.pix[i] = r
	f.pix[i+1] = g
	f.pix[i+2] = b
}

// At returns the RGB value at (x, y). Out-of-range coordinates read black.
func (f *FrameBuffer) At(x, y int) (r, g, b byte) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0, 0, 0
	}
	i := (y*f.width + x) * 3
	return f.pix[i], f.pix[i+1], f.pix[i+2]
}

// Fill sets every pixel to the given RGB value.
func (f *FrameBuffer) Fill(r, g, b byte) {
	for i := 0; i < len(f.pix); i += 3 {
		f.pix[i] = r
		f.pix[i+1] = g
		f.pix[i+2] = b
	}
}

// Pixels returns the raw row-major RGB bytes. The slice is the buffer's
// backing store; callers must not hold it across mutations.
func (f *FrameBuffer) Pixels() []byte { return f.pix }

// EncodedFrame is the opaque wire representation of one frame. It is
// produced once per FrameBuffer by the encoder and consumed exactly once
// by a session send.
type EncodedFrame struct {
	data []byte
}

// NewEncodedFrame wraps an encoded byte sequence.
func NewEncodedFrame(data []byte) EncodedFrame {
	return EncodedFrame{data: data}
}

// Bytes returns the encoded byte sequence.
func (e EncodedFrame) Bytes() []byte { return e.data }

// Len returns the total encoded length in bytes.
func (e EncodedFrame) Len() int { return len(e.data) }
