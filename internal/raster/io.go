package raster

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// Formats beyond the ones imaging registers itself.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsSupported reports whether path has an image extension Load accepts.
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Decode reads an encoded image and applies its EXIF orientation, so phone
// photos arrive upright before any orientation probing.
func Decode(r io.Reader) (*PixelBuffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageError{Op: "decode", Err: fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)}
	}
	return FromImage(img)
}

// Load decodes the image stored at path.
func Load(path string) (*PixelBuffer, error) {
	if !IsSupported(path) {
		return nil, &ImageError{Op: "load", Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ImageError{Op: "load", Err: err}
	}
	defer f.Close()
	return Decode(f)
}

// EncodePNG writes the buffer as a PNG.
func EncodePNG(w io.Writer, b *PixelBuffer) error {
	if err := b.Validate(); err != nil {
		return &ImageError{Op: "encode", Err: err}
	}
	if err := imaging.Encode(w, b.Image(), imaging.PNG); err != nil {
		return &ImageError{Op: "encode", Err: err}
	}
	return nil
}

// PNG returns the buffer encoded as PNG bytes, the form OCR engines accept.
func (b *PixelBuffer) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
