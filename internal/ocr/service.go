// Package ocr recognizes text in the pixel buffers produced by the raster
// package.
//
// Three engines are available behind the Recognizer interface:
//   - vision: Google Cloud Vision (DOCUMENT_TEXT_DETECTION, or TEXT_DETECTION in fast mode)
//   - tesseract: a local Tesseract installation through gosseract
//   - documentai: a Google Document AI OCR processor
//
// Required Environment Variables (cloud engines):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID: Document AI only
//
// Every engine receives the buffer encoded as PNG. Fast mode trades accuracy
// for latency and is what orientation probes use.
package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"idscan/internal/raster"
)

// Mode selects the accuracy/latency trade-off of a recognition call.
type Mode int

const (
	// ModeAccurate is used for the final full-resolution pass.
	ModeAccurate Mode = iota

	// ModeFast is used for orientation probes.
	ModeFast
)

func (m Mode) String() string {
	if m == ModeFast {
		return "fast"
	}
	return "accurate"
}

// Engine names accepted by New.
const (
	EngineVision     = "vision"
	EngineTesseract  = "tesseract"
	EngineDocumentAI = "documentai"
)

// MaxImageSizeBytes is the largest encoded image sent to a cloud engine (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

// Recognizer turns an image into text.
type Recognizer interface {
	// Recognize returns the text found in buf. lang is a Tesseract-style
	// language list such as "ron+eng". An image without text yields ErrEmptyText.
	Recognize(ctx context.Context, buf *raster.PixelBuffer, lang string, mode Mode) (*Result, error)
}

// Result contains the results of OCR processing with metadata.
type Result struct {
	// Text is the recognized text in reading order.
	Text string `json:"text"`

	// Confidence is the average confidence reported by the engine (0.0 to 1.0),
	// or 0 when the engine reports none.
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages, when the engine reports them.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// Engine is the name of the engine that produced the text.
	Engine string `json:"engine"`

	// Mode is the mode the call ran in.
	Mode string `json:"mode"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Config selects and configures an engine.
type Config struct {
	Engine string

	// Document AI settings
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string

	// Timeout bounds a single cloud request. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// New creates the Recognizer named by cfg.Engine.
func New(ctx context.Context, cfg Config) (Recognizer, error) {
	const op = "New"

	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", EngineVision:
		r, err := NewGoogleVisionRecognizer(ctx)
		if err != nil {
			return nil, err
		}
		return r, nil
	case EngineTesseract:
		return NewTesseractRecognizer(), nil
	case EngineDocumentAI:
		r, err := NewDocumentAIRecognizer(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, WrapOCRError(op, ErrUnsupportedEngine, fmt.Sprintf("engine %q (want %s, %s or %s)", cfg.Engine, EngineVision, EngineTesseract, EngineDocumentAI))
	}
}

// Close releases the engine's resources when it holds any.
func Close(r Recognizer) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// encode validates buf and returns its PNG encoding.
func encode(op string, buf *raster.PixelBuffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, WrapOCRError(op, err, "invalid pixel buffer")
	}
	content, err := buf.PNG()
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to encode image")
	}
	if len(content) > MaxImageSizeBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("encoded size: %d bytes", len(content)))
	}
	return content, nil
}

// finish stamps timing metadata and rejects empty text.
func finish(op string, result *Result, mode Mode, start time.Time) (*Result, error) {
	if strings.TrimSpace(result.Text) == "" {
		return nil, WrapOCRError(op, ErrEmptyText, result.Engine)
	}
	result.Mode = mode.String()
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(start)
	return result, nil
}
