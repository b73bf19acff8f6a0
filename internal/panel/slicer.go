package panel

import (
	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
)

// sliceTile copies one tile out of a composite buffer. The caller has
// already validated that the composite covers the grid, so the tile window
// is always in range.
func sliceTile(composite *domain.FrameBuffer, gridX, gridY, tileW, tileH int) *domain.FrameBuffer {
	tile, err := domain.NewFrameBuffer(tileW, tileH)
	if err != nil {
		// Tile dimensions come from validated configuration.
		panic(err)
	}

	originX := gridX * tileW
	originY := gridY * tileH
	for y := 0; y < tileH; y++ {
		for x := 0; x < tileW; x++ {
			r, g, b := composite.At(originX+x, originY+y)
			tile.SetPixel(x, y, r, g, b)
		}
	}
	return tile
}
