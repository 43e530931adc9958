package raster

import "math"

// NormalizeOptions controls the OCR preparation pass.
type NormalizeOptions struct {
	// Contrast enables the contrast step. Grayscale and sharpening always run.
	Contrast bool

	// LowRangeThreshold is the luminance range below which a linear stretch
	// to the full 0-255 range is applied instead of the contrast curve.
	LowRangeThreshold float64

	// StdDevThreshold picks between the strong and mild contrast factors.
	StdDevThreshold float64

	MildFactor   float64
	StrongFactor float64
}

// DefaultNormalizeOptions returns the factors tuned on scanned ID cards.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		Contrast:          true,
		LowRangeThreshold: 60,
		StdDevThreshold:   45,
		MildFactor:        3.0,
		StrongFactor:      3.0,
	}
}

// Stats summarizes the luminance of a buffer.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Range is Max - Min.
func (s Stats) Range() float64 {
	return s.Max - s.Min
}

// Luminance returns the Rec. 601 luma of an RGB triple.
func Luminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// LuminanceStats computes min, max, mean and population standard deviation
// of the buffer's luminance.
func LuminanceStats(b *PixelBuffer) Stats {
	lum := luminances(b)
	return statsOf(lum)
}

func luminances(b *PixelBuffer) []float64 {
	lum := make([]float64, b.Width*b.Height)
	for i := range lum {
		p := b.Pix[4*i : 4*i+3]
		lum[i] = Luminance(p[0], p[1], p[2])
	}
	return lum
}

func statsOf(lum []float64) Stats {
	if len(lum) == 0 {
		return Stats{}
	}
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, l := range lum {
		s.Min = math.Min(s.Min, l)
		s.Max = math.Max(s.Max, l)
		sum += l
	}
	s.Mean = sum / float64(len(lum))
	var sq float64
	for _, l := range lum {
		d := l - s.Mean
		sq += d * d
	}
	s.StdDev = math.Sqrt(sq / float64(len(lum)))
	return s
}

// Normalize prepares b for OCR: grayscale collapse, adaptive contrast and a
// 3x3 sharpen. The result has the same dimensions and alpha as b, with
// R = G = B everywhere. b is not modified.
func Normalize(b *PixelBuffer, opts NormalizeOptions) (*PixelBuffer, error) {
	if err := b.Validate(); err != nil {
		return nil, &ImageError{Op: "normalize", Err: err}
	}

	lum := luminances(b)
	curve := contrastCurve(statsOf(lum), opts)

	out := &PixelBuffer{Width: b.Width, Height: b.Height, Pix: make([]byte, len(b.Pix))}
	for i, l := range lum {
		v := clampByte(curve(l))
		o := 4 * i
		out.Pix[o] = v
		out.Pix[o+1] = v
		out.Pix[o+2] = v
		out.Pix[o+3] = b.Pix[o+3]
	}

	return Sharpen(out)
}

func contrastCurve(s Stats, opts NormalizeOptions) func(float64) float64 {
	if !opts.Contrast {
		return func(l float64) float64 { return l }
	}
	if r := s.Range(); r > 0 && r < opts.LowRangeThreshold {
		return func(l float64) float64 { return (l - s.Min) / r * 255 }
	}
	factor := opts.MildFactor
	if s.StdDev < opts.StdDevThreshold {
		factor = opts.StrongFactor
	}
	return func(l float64) float64 {
		return ((l/255-0.5)*factor + 0.5) * 255
	}
}

var sharpenKernel = [3][3]int{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Sharpen applies a 3x3 sharpen kernel to the colour channels of b. It reads
// from an untouched copy, so results do not depend on scan order, and leaves
// the outermost 1-pixel border and alpha as they were.
func Sharpen(b *PixelBuffer) (*PixelBuffer, error) {
	if err := b.Validate(); err != nil {
		return nil, &ImageError{Op: "sharpen", Err: err}
	}
	out := b.Clone()
	for y := 1; y < b.Height-1; y++ {
		for x := 1; x < b.Width-1; x++ {
			o := b.Offset(x, y)
			for c := 0; c < 3; c++ {
				acc := 0
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						w := sharpenKernel[ky+1][kx+1]
						if w == 0 {
							continue
						}
						acc += w * int(b.Pix[b.Offset(x+kx, y+ky)+c])
					}
				}
				out.Pix[o+c] = clampByte(float64(acc))
			}
		}
	}
	return out, nil
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
