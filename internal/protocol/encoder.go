package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
)

// headerLength is the fixed frame header size:
// [2B tag][1B opcode][1B width][1B height][2B payload length LE].
const headerLength = 7

// Encoder converts frame buffers into the byte sequence the panel firmware
// expects for one frame. Encoding is pure and deterministic: identical input
// yields an identical byte sequence.
type Encoder struct {
	// TileWidth and TileHeight are the panel's native resolution. Buffers
	// of any other size are rejected, never cropped or padded.
	TileWidth  int
	TileHeight int
}

// Encode produces the wire representation of one frame: the fixed header,
// the pixel payload in row-major RGB order, and a trailing XOR checksum of
// the payload.
func (e Encoder) Encode(buf *domain.FrameBuffer) (domain.EncodedFrame, error) {
	if buf == nil {
		return domain.EncodedFrame{}, fmt.Errorf("%w: nil buffer", domain.ErrEncoding)
	}
	if buf.Width() != e.TileWidth || buf.Height() != e.TileHeight {
		return domain.EncodedFrame{}, fmt.Errorf("%w: buffer %dx%d, device expects %dx%d",
			domain.ErrEncoding, buf.Width(), buf.Height(), e.TileWidth, e.TileHeight)
	}

	pix := buf.Pixels()
	if len(pix) != e.TileWidth*e.TileHeight*3 {
		return domain.EncodedFrame{}, fmt.Errorf("%w: payload %d bytes, expected %d",
			domain.ErrEncoding, len(pix), e.TileWidth*e.TileHeight*3)
	}

	out := make([]byte, headerLength+len(pix)+1)
	out[0] = tag0
	out[1] = tag1
	out[2] = opFrame
	out[3] = byte(e.TileWidth)
	out[4] = byte(e.TileHeight)
	binary.LittleEndian.PutUint16(out[5:7], uint16(len(pix)))
	copy(out[headerLength:], pix)

	var sum byte
	for _, b := range pix {
		sum ^= b
	}
	out[len(out)-1] = sum

	return domain.NewEncodedFrame(out), nil
}
