// Package raster holds the RGBA pixel buffer handed between pipeline stages
// and the image operations applied to it before text recognition.
package raster

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidImage is returned for buffers with zero width or height or
	// pixel data that does not match the dimensions.
	ErrInvalidImage = errors.New("invalid image")

	// ErrUnsupportedFormat is returned when the input cannot be decoded as a
	// raster image (for example a PDF).
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidAngle is returned for rotations other than 0, 90, 180 or 270.
	ErrInvalidAngle = errors.New("rotation angle must be one of 0, 90, 180, 270")
)

// ImageError records the raster operation that failed.
type ImageError struct {
	Op  string
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("raster: %s: %v", e.Op, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// Angles are the clockwise rotations the pipeline works with, in the order
// orientation probes are evaluated.
var Angles = [4]int{0, 90, 180, 270}

// PixelBuffer is a width x height RGBA image. Pix holds 4 bytes per pixel,
// row-major with no padding between rows.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed buffer.
func New(width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &ImageError{Op: "new", Err: fmt.Errorf("%w: %dx%d", ErrInvalidImage, width, height)}
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, 4*width*height),
	}, nil
}

// FromImage copies any decoded image into a buffer.
func FromImage(img image.Image) (*PixelBuffer, error) {
	if img == nil {
		return nil, &ImageError{Op: "convert", Err: ErrInvalidImage}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageError{Op: "convert", Err: fmt.Errorf("%w: %dx%d", ErrInvalidImage, b.Dx(), b.Dy())}
	}
	// Clone always produces a tightly packed NRGBA anchored at (0,0).
	nrgba := imaging.Clone(img)
	return &PixelBuffer{
		Width:  nrgba.Rect.Dx(),
		Height: nrgba.Rect.Dy(),
		Pix:    nrgba.Pix,
	}, nil
}

// Validate reports ErrInvalidImage when the buffer cannot be processed.
func (b *PixelBuffer) Validate() error {
	if b == nil {
		return ErrInvalidImage
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImage, b.Width, b.Height)
	}
	if len(b.Pix) != 4*b.Width*b.Height {
		return fmt.Errorf("%w: %d bytes of pixel data for %dx%d", ErrInvalidImage, len(b.Pix), b.Width, b.Height)
	}
	return nil
}

// Image returns an image.Image view of the buffer. The view shares storage
// with b.
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: 4 * b.Width,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Clone returns a deep copy.
func (b *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &PixelBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Offset returns the index of the red byte of pixel (x, y) in Pix.
func (b *PixelBuffer) Offset(x, y int) int {
	return 4 * (y*b.Width + x)
}
