// Package orientation decides which clockwise rotation brings a scanned card
// upright by comparing how much text a fast OCR pass finds at each angle.
package orientation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"idscan/internal/logger"
	"idscan/internal/raster"
)

// Config holds the probe and decision parameters.
type Config struct {
	// ThumbnailWidth is the width callers downscale to before Detect.
	ThumbnailWidth int

	// MinScore is the best score below which no rotation is applied.
	MinScore int

	// AbsoluteGain is the lead over the upright score a rotation needs, and
	// the score it needs outright when nothing was read upright.
	AbsoluteGain int

	// Ratio is the factor by which a rotation must beat the upright score.
	Ratio float64

	// Concurrent issues the four probes in parallel.
	Concurrent bool

	// Normalize prepares each rotated probe for OCR.
	Normalize raster.NormalizeOptions
}

// DefaultConfig returns the thresholds tuned on scanned ID cards.
func DefaultConfig() Config {
	return Config{
		ThumbnailWidth: 600,
		MinScore:       10,
		AbsoluteGain:   20,
		Ratio:          1.4,
		Concurrent:     true,
		Normalize:      raster.DefaultNormalizeOptions(),
	}
}

// Candidate is the score of one rotation.
type Candidate struct {
	Angle int `json:"angle"`
	Score int `json:"score"`
}

// Result is the outcome of a detection.
type Result struct {
	Angle      int         `json:"angle"`
	Baseline   int         `json:"baseline"`
	Best       Candidate   `json:"best"`
	Candidates []Candidate `json:"candidates"`
}

// Detector scores the four rotations of a thumbnail.
type Detector struct {
	cfg    Config
	scorer Scorer
	log    zerolog.Logger
}

// NewDetector creates a detector that scores probes with scorer.
func NewDetector(cfg Config, scorer Scorer) *Detector {
	return &Detector{
		cfg:    cfg,
		scorer: scorer,
		log:    logger.WithComponent("orientation"),
	}
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect returns the clockwise rotation to apply to thumb. A failed probe
// scores 0; only an invalid thumbnail or a done context is an error.
func (d *Detector) Detect(ctx context.Context, thumb *raster.PixelBuffer) (Result, error) {
	if err := thumb.Validate(); err != nil {
		return Result{}, &raster.ImageError{Op: "detect orientation", Err: err}
	}

	scores := make([]int, len(raster.Angles))
	if d.cfg.Concurrent {
		g, gctx := errgroup.WithContext(ctx)
		for i := range raster.Angles {
			g.Go(func() error {
				scores[i] = d.probe(gctx, thumb, raster.Angles[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, angle := range raster.Angles {
			scores[i] = d.probe(ctx, thumb, angle)
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	candidates := make([]Candidate, len(raster.Angles))
	for i, angle := range raster.Angles {
		candidates[i] = Candidate{Angle: angle, Score: scores[i]}
	}

	result := Result{
		Angle:      Select(candidates, d.cfg),
		Baseline:   candidates[0].Score,
		Best:       best(candidates),
		Candidates: candidates,
	}

	d.log.Debug().
		Int("angle", result.Angle).
		Int("baseline", result.Baseline).
		Int("best_angle", result.Best.Angle).
		Int("best_score", result.Best.Score).
		Ints("scores", scores).
		Msg("Orientation detected")

	return result, nil
}

func (d *Detector) probe(ctx context.Context, thumb *raster.PixelBuffer, angle int) int {
	rotated, err := raster.Rotate(thumb, angle)
	if err != nil {
		d.log.Warn().Err(err).Int("angle", angle).Msg("Rotation probe failed")
		return 0
	}
	prepared, err := raster.Normalize(rotated, d.cfg.Normalize)
	if err != nil {
		d.log.Warn().Err(err).Int("angle", angle).Msg("Rotation probe failed")
		return 0
	}
	score, err := d.scorer.Score(ctx, prepared)
	if err != nil {
		d.log.Warn().Err(err).Int("angle", angle).Msg("Rotation probe failed, scoring 0")
		return 0
	}
	return score
}

// Select applies the decision rule to scored candidates. Ties go to the
// earlier angle in 0, 90, 180, 270 order, and 0 is returned unless a rotation
// clearly beats the upright reading.
func Select(candidates []Candidate, cfg Config) int {
	if len(candidates) == 0 {
		return 0
	}
	baseline := 0
	for _, c := range candidates {
		if c.Angle == 0 {
			baseline = c.Score
		}
	}

	top := best(candidates)
	if top.Angle == 0 || top.Score < cfg.MinScore {
		return 0
	}
	if baseline == 0 {
		if top.Score >= cfg.AbsoluteGain {
			return top.Angle
		}
		return 0
	}
	if float64(top.Score) >= float64(baseline)*cfg.Ratio && top.Score-baseline >= cfg.AbsoluteGain {
		return top.Angle
	}
	return 0
}

// best returns the highest scoring candidate, preferring the earlier angle
// in fixed rotation order on ties.
func best(candidates []Candidate) Candidate {
	byAngle := make(map[int]int, len(candidates))
	for _, c := range candidates {
		byAngle[c.Angle] = c.Score
	}
	top := Candidate{Angle: 0, Score: byAngle[0]}
	for _, angle := range raster.Angles[1:] {
		if s, ok := byAngle[angle]; ok && s > top.Score {
			top = Candidate{Angle: angle, Score: s}
		}
	}
	return top
}

func (c Candidate) String() string {
	return fmt.Sprintf("%d°=%d", c.Angle, c.Score)
}
