package panel

import (
	"testing"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
)

func TestSliceTile_ExactPartition(t *testing.T) {
	// Each tile of a 2x2 grid is filled with a distinct color so the
	// slicer's source region is unambiguous.
	const tileW, tileH = 4, 3
	colors := [2][2][3]byte{
		{{0xFF, 0x00, 0x00}, {0x00, 0xFF, 0x00}},
		{{0x00, 0x00, 0xFF}, {0xFF, 0xFF, 0x00}},
	}

	composite, err := domain.NewFrameBuffer(2*tileW, 2*tileH)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	for y := 0; y < 2*tileH; y++ {
		for x := 0; x < 2*tileW; x++ {
			c := colors[y/tileH][x/tileW]
			composite.SetPixel(x, y, c[0], c[1], c[2])
		}
	}

	for gy := 0; gy < 2; gy++ {
		for gx := 0; gx < 2; gx++ {
			tile := sliceTile(composite, gx, gy, tileW, tileH)
			want := colors[gy][gx]
			for y := 0; y < tileH; y++ {
				for x := 0; x < tileW; x++ {
					r, g, b := tile.At(x, y)
					if r != want[0] || g != want[1] || b != want[2] {
						t.Fatalf("tile (%d,%d) pixel (%d,%d) = %02X%02X%02X, want %02X%02X%02X",
							gx, gy, x, y, r, g, b, want[0], want[1], want[2])
					}
				}
			}
		}
	}
}

func TestSliceTile_RowMajorOrder(t *testing.T) {
	// A gradient across the composite checks that the tile preserves
	// per-pixel positions, not just aggregate content.
	composite, err := domain.NewFrameBuffer(8, 2)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 8; x++ {
			composite.SetPixel(x, y, byte(x), byte(y), byte(x+y))
		}
	}

	tile := sliceTile(composite, 1, 0, 4, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			r, g, b := tile.At(x, y)
			srcX := x + 4
			if r != byte(srcX) || g != byte(y) || b != byte(srcX+y) {
				t.Fatalf("pixel (%d,%d) = (%d,%d,%d), want (%d,%d,%d)",
					x, y, r, g, b, srcX, y, srcX+y)
			}
		}
	}
}
