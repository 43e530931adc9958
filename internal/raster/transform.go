package raster

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// Rotate returns a copy of b turned clockwise by angle degrees.
func Rotate(b *PixelBuffer, angle int) (*PixelBuffer, error) {
	if err := b.Validate(); err != nil {
		return nil, &ImageError{Op: "rotate", Err: err}
	}
	// imaging rotates counter-clockwise.
	switch angle {
	case 0:
		return b.Clone(), nil
	case 90:
		return FromImage(imaging.Rotate270(b.Image()))
	case 180:
		return FromImage(imaging.Rotate180(b.Image()))
	case 270:
		return FromImage(imaging.Rotate90(b.Image()))
	default:
		return nil, &ImageError{Op: "rotate", Err: fmt.Errorf("%w: %d", ErrInvalidAngle, angle)}
	}
}

// Thumbnail scales b down to width pixels, keeping the aspect ratio.
// Buffers already narrower than width are copied unchanged.
func Thumbnail(b *PixelBuffer, width int) (*PixelBuffer, error) {
	if err := b.Validate(); err != nil {
		return nil, &ImageError{Op: "thumbnail", Err: err}
	}
	if width <= 0 || b.Width <= width {
		return b.Clone(), nil
	}
	return FromImage(imaging.Resize(b.Image(), width, 0, imaging.Lanczos))
}
