// Package content turns image files into frame buffers sized for the
// panel canvas. Decoding covers PNG, JPEG and GIF; resampling is
// nearest-neighbor, which keeps pixel art crisp on low-resolution
// matrices.
package content

import (
	"fmt"
	"image"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/kacper-serewis/Bk-Light-AppBypass/internal/domain"
)

// FitMode selects how a source image maps onto the canvas.
type FitMode int

const (
	// FitStretch resizes width and height independently to fill the
	// canvas, ignoring aspect ratio.
	FitStretch FitMode = iota
	// FitContain scales the image to fit entirely inside the canvas,
	// letterboxing with black.
	FitContain
	// FitCover scales the image to cover the canvas, cropping the
	// overflow centered.
	FitCover
)

// ParseFitMode maps a user-facing mode name to its FitMode.
func ParseFitMode(s string) (FitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "stretch":
		return FitStretch, nil
	case "contain", "fit":
		return FitContain, nil
	case "cover", "fill":
		return FitCover, nil
	}
	return 0, fmt.Errorf("unknown fit mode %q", s)
}

// Options controls how Load shapes the decoded image.
type Options struct {
	Mode FitMode
	// Rotate is a clockwise rotation in degrees, any multiple of 90.
	Rotate int
	// Mirror flips the image horizontally, after rotation.
	Mirror bool
	// Invert negates every channel.
	Invert bool
}

// Load reads the image at path and renders it into a width x height
// frame buffer.
func Load(path string, width, height int, opts Options) (*domain.FrameBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return Render(img, width, height, opts)
}

// Render maps an already decoded image onto a frame buffer.
func Render(img image.Image, width, height int, opts Options) (*domain.FrameBuffer, error) {
	if opts.Rotate%90 != 0 {
		return nil, fmt.Errorf("rotation must be a multiple of 90, got %d", opts.Rotate)
	}

	buf, err := domain.NewFrameBuffer(width, height)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return buf, nil
	}

	turns := ((opts.Rotate/90)%4 + 4) % 4
	// Rotation happens in source space: the effective source
	// dimensions swap on odd quarter turns.
	effW, effH := srcW, srcH
	if turns%2 == 1 {
		effW, effH = srcH, srcW
	}

	region := sourceRegion(opts.Mode, effW, effH, width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx, sy, ok := region.lookup(x, y)
			if !ok {
				continue // letterbox stays black
			}
			if opts.Mirror {
				sx = effW - 1 - sx
			}
			sx, sy = unrotate(sx, sy, turns, srcW, srcH)
			r, g, b, _ := img.At(bounds.Min.X+sx, bounds.Min.Y+sy).RGBA()
			pr, pg, pb := byte(r>>8), byte(g>>8), byte(b>>8)
			if opts.Invert {
				pr, pg, pb = ^pr, ^pg, ^pb
			}
			buf.SetPixel(x, y, pr, pg, pb)
		}
	}
	return buf, nil
}

// mapping describes the active canvas window and the source rectangle
// it samples from.
type mapping struct {
	dstX, dstY int // top-left of the active window on the canvas
	dstW, dstH int // size of the active window
	srcX, srcY int // top-left of the sampled region in source space
	srcW, srcH int // size of the sampled region
}

// lookup translates a canvas pixel to its nearest source pixel.
// ok is false when the pixel falls in the letterbox.
func (m mapping) lookup(x, y int) (sx, sy int, ok bool) {
	x -= m.dstX
	y -= m.dstY
	if x < 0 || y < 0 || x >= m.dstW || y >= m.dstH {
		return 0, 0, false
	}
	sx = m.srcX + x*m.srcW/m.dstW
	sy = m.srcY + y*m.srcH/m.dstH
	return sx, sy, true
}

func sourceRegion(mode FitMode, srcW, srcH, dstW, dstH int) mapping {
	m := mapping{dstW: dstW, dstH: dstH, srcW: srcW, srcH: srcH}
	switch mode {
	case FitContain:
		// Shrink the destination window to the source aspect ratio.
		if srcW*dstH > srcH*dstW {
			m.dstH = dstW * srcH / srcW
			if m.dstH < 1 {
				m.dstH = 1
			}
			m.dstY = (dstH - m.dstH) / 2
		} else {
			m.dstW = dstH * srcW / srcH
			if m.dstW < 1 {
				m.dstW = 1
			}
			m.dstX = (dstW - m.dstW) / 2
		}
	case FitCover:
		// Shrink the source window to the destination aspect ratio.
		if srcW*dstH > srcH*dstW {
			m.srcW = srcH * dstW / dstH
			if m.srcW < 1 {
				m.srcW = 1
			}
			m.srcX = (srcW - m.srcW) / 2
		} else {
			m.srcH = srcW * dstH / dstW
			if m.srcH < 1 {
				m.srcH = 1
			}
			m.srcY = (srcH - m.srcH) / 2
		}
	}
	return m
}

// unrotate maps a coordinate in rotated space back to the original
// source pixel for a clockwise rotation of turns quarter turns.
func unrotate(x, y, turns, srcW, srcH int) (int, int) {
	switch turns {
	case 1:
		return y, srcH - 1 - x
	case 2:
		return srcW - 1 - x, srcH - 1 - y
	case 3:
		return srcW - 1 - y, x
	default:
		return x, y
	}
}
