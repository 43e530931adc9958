package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"idscan/internal/logger"
	"idscan/internal/raster"
)

// TesseractRecognizer implements Recognizer with a local Tesseract install.
// Each call gets its own client, so a recognizer is safe for concurrent use.
type TesseractRecognizer struct {
	clientFactory func() *gosseract.Client
	log           zerolog.Logger
}

// NewTesseractRecognizer creates a recognizer backed by gosseract.
func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{
		clientFactory: gosseract.NewClient,
		log:           logger.WithComponent("ocr-tesseract"),
	}
}

// Recognize runs Tesseract on buf. Fast mode switches to sparse-text page
// segmentation and skips the per-word confidence pass.
func (t *TesseractRecognizer) Recognize(ctx context.Context, buf *raster.PixelBuffer, lang string, mode Mode) (*Result, error) {
	const op = "Recognize"
	startTime := time.Now()

	// Tesseract calls cannot be interrupted; honour cancellation up front.
	if err := ctx.Err(); err != nil {
		return nil, WrapOCRError(op, err, "canceled before recognition")
	}

	content, err := encode(op, buf)
	if err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(content); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}
	langs := splitLanguages(lang)
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set languages: %v", err))
		}
	}
	psm := gosseract.PSM_AUTO
	if mode == ModeFast {
		psm = gosseract.PSM_SPARSE_TEXT
	}
	if err := c.SetPageSegMode(psm); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set page segmentation: %v", err))
	}

	text, err := c.Text()
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("recognize text: %v", err))
	}

	result := &Result{
		Text:          text,
		Engine:        EngineTesseract,
		LanguageCodes: langs,
	}
	if mode == ModeAccurate {
		result.Confidence = averageWordConfidence(c)
	}

	t.log.Debug().
		Str("mode", mode.String()).
		Strs("languages", langs).
		Int("chars", len(text)).
		Msg("Tesseract recognition finished")

	return finish(op, result, mode, startTime)
}

func averageWordConfidence(c *gosseract.Client) float32 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return float32(sum / float64(len(boxes)))
}

func splitLanguages(lang string) []string {
	var langs []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}
