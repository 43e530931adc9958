// Package pipeline runs one identity card image through orientation
// detection, OCR preparation, recognition and field extraction.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"idscan/internal/idcard"
	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/orientation"
	"idscan/internal/raster"
	"idscan/internal/textnorm"
	"idscan/pkg/models"
)

// Stage names the step a pipeline error came from.
type Stage string

const (
	StageDecode      Stage = "decode"
	StageOrientation Stage = "orientation"
	StageNormalize   Stage = "normalize"
	StageRecognize   Stage = "recognize"
)

// Error reports the stage that aborted processing.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options are the per-call switches.
type Options struct {
	// Language is the OCR language list, e.g. "ron+eng". Empty uses the
	// pipeline default.
	Language string

	// AutoEnhance enables the contrast step of the final OCR preparation.
	AutoEnhance bool

	// DetectOrientation enables rotation probing.
	DetectOrientation bool
}

// Config is the fixed configuration of a Pipeline.
type Config struct {
	Language    string
	Normalize   raster.NormalizeOptions
	Orientation orientation.Config
}

// DefaultConfig returns the defaults used for Romanian ID cards.
func DefaultConfig() Config {
	return Config{
		Language:    "ron+eng",
		Normalize:   raster.DefaultNormalizeOptions(),
		Orientation: orientation.DefaultConfig(),
	}
}

// Result is everything one run produced.
type Result struct {
	Record      *models.IdentityRecord  `json:"record"`
	Rotation    int                     `json:"rotation"`
	Candidates  []orientation.Candidate `json:"candidates,omitempty"`
	OCR         *ocr.Result             `json:"ocr"`
	Duration    time.Duration           `json:"duration"`
	Width       int                     `json:"width"`
	Height      int                     `json:"height"`
	Enhanced    bool                    `json:"enhanced"`
	Orientation bool                    `json:"orientationDetected"`
}

// Pipeline holds no per-document state and is safe for concurrent use when
// its recognizer is.
type Pipeline struct {
	cfg        Config
	recognizer ocr.Recognizer
	detector   *orientation.Detector
	builder    *idcard.Builder
	log        zerolog.Logger
}

// New creates a pipeline. The recognizer serves both the orientation probes
// (fast mode) and the final pass (accurate mode).
func New(recognizer ocr.Recognizer, cfg Config, opts ...idcard.Option) *Pipeline {
	if cfg.Language == "" {
		cfg.Language = "ron+eng"
	}
	return &Pipeline{
		cfg:        cfg,
		recognizer: recognizer,
		detector:   orientation.NewDetector(cfg.Orientation, orientation.NewOCRScorer(recognizer, cfg.Language)),
		builder:    idcard.NewBuilder(opts...),
		log:        logger.WithComponent("pipeline"),
	}
}

// DefaultOptions enables every stage with the configured language.
func (p *Pipeline) DefaultOptions() Options {
	return Options{
		Language:          p.cfg.Language,
		AutoEnhance:       true,
		DetectOrientation: true,
	}
}

// ProcessFile decodes the image at path and processes it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, opts Options) (*Result, error) {
	buf, err := raster.Load(path)
	if err != nil {
		return nil, &Error{Stage: StageDecode, Err: err}
	}
	return p.Process(ctx, buf, opts)
}

// ProcessReader decodes an encoded image from r and processes it.
func (p *Pipeline) ProcessReader(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	buf, err := raster.Decode(r)
	if err != nil {
		return nil, &Error{Stage: StageDecode, Err: err}
	}
	return p.Process(ctx, buf, opts)
}

// Process runs every enabled stage on buf. Missing fields are not errors;
// an invalid image or a failed final recognition is.
func (p *Pipeline) Process(ctx context.Context, buf *raster.PixelBuffer, opts Options) (*Result, error) {
	start := time.Now()

	if err := buf.Validate(); err != nil {
		return nil, &Error{Stage: StageDecode, Err: err}
	}
	lang := opts.Language
	if lang == "" {
		lang = p.cfg.Language
	}

	result := &Result{
		Width:       buf.Width,
		Height:      buf.Height,
		Enhanced:    opts.AutoEnhance,
		Orientation: opts.DetectOrientation,
	}

	upright := buf
	if opts.DetectOrientation {
		rotation, candidates, err := p.detectRotation(ctx, buf, lang)
		if err != nil {
			return nil, &Error{Stage: StageOrientation, Err: err}
		}
		result.Rotation = rotation
		result.Candidates = candidates
		if rotation != 0 {
			upright, err = raster.Rotate(buf, rotation)
			if err != nil {
				return nil, &Error{Stage: StageOrientation, Err: err}
			}
		}
	}

	normOpts := p.cfg.Normalize
	normOpts.Contrast = normOpts.Contrast && opts.AutoEnhance
	prepared, err := raster.Normalize(upright, normOpts)
	if err != nil {
		return nil, &Error{Stage: StageNormalize, Err: err}
	}

	ocrResult, err := p.recognizer.Recognize(ctx, prepared, lang, ocr.ModeAccurate)
	if err != nil {
		return nil, &Error{Stage: StageRecognize, Err: err}
	}
	result.OCR = ocrResult

	lines := textnorm.Lines(ocrResult.Text)
	result.Record = p.builder.Build(lines)
	result.Duration = time.Since(start)

	p.log.Info().
		Int("rotation", result.Rotation).
		Int("lines", len(lines)).
		Int("fields", len(result.Record.Fields())).
		Dur("duration", result.Duration).
		Msg("Document processed")

	return result, nil
}

// detectRotation probes in the same language as the final pass.
func (p *Pipeline) detectRotation(ctx context.Context, buf *raster.PixelBuffer, lang string) (int, []orientation.Candidate, error) {
	detector := p.detector
	if lang != p.cfg.Language {
		detector = orientation.NewDetector(p.cfg.Orientation, orientation.NewOCRScorer(p.recognizer, lang))
	}
	thumb, err := raster.Thumbnail(buf, detector.Config().ThumbnailWidth)
	if err != nil {
		return 0, nil, err
	}
	res, err := detector.Detect(ctx, thumb)
	if err != nil {
		return 0, nil, err
	}
	return res.Angle, res.Candidates, nil
}
