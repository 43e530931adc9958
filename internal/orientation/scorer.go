package orientation

import (
	"context"

	"idscan/internal/ocr"
	"idscan/internal/raster"
)

// Scorer rates how readable a probe image is. Higher is more readable.
type Scorer interface {
	Score(ctx context.Context, buf *raster.PixelBuffer) (int, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, buf *raster.PixelBuffer) (int, error)

func (f ScorerFunc) Score(ctx context.Context, buf *raster.PixelBuffer) (int, error) {
	return f(ctx, buf)
}

// NewOCRScorer scores a probe by the number of ASCII letters and digits a
// fast recognition pass returns.
func NewOCRScorer(rec ocr.Recognizer, lang string) Scorer {
	return ScorerFunc(func(ctx context.Context, buf *raster.PixelBuffer) (int, error) {
		res, err := rec.Recognize(ctx, buf, lang, ocr.ModeFast)
		if err != nil {
			return 0, err
		}
		return CountAlphanumeric(res.Text), nil
	})
}

// CountAlphanumeric counts the bytes of s in [A-Za-z0-9].
func CountAlphanumeric(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}
