package ocr

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"idscan/internal/logger"
	"idscan/internal/raster"
)

// GoogleVisionRecognizer implements Recognizer using Google Cloud Vision API.
type GoogleVisionRecognizer struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewGoogleVisionRecognizer creates a recognizer with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionRecognizer(ctx context.Context) (*GoogleVisionRecognizer, error) {
	const op = "NewGoogleVisionRecognizer"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return NewGoogleVisionRecognizerWithClient(client), nil
}

// NewGoogleVisionRecognizerWithClient creates a recognizer with an explicit client (for testing).
func NewGoogleVisionRecognizerWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionRecognizer {
	return &GoogleVisionRecognizer{
		client: client,
		log:    logger.WithComponent("ocr-vision"),
	}
}

// Recognize sends buf to Vision as an inline PNG.
func (g *GoogleVisionRecognizer) Recognize(ctx context.Context, buf *raster.PixelBuffer, lang string, mode Mode) (*Result, error) {
	const op = "Recognize"
	startTime := time.Now()

	content, err := encode(op, buf)
	if err != nil {
		return nil, err
	}

	feature := visionpb.Feature_DOCUMENT_TEXT_DETECTION
	if mode == ModeFast {
		feature = visionpb.Feature_TEXT_DETECTION
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{{Type: feature}},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: LanguageHints(lang),
				},
			},
		},
	}

	g.log.Debug().
		Str("mode", mode.String()).
		Int("width", buf.Width).
		Int("height", buf.Height).
		Int("bytes", len(content)).
		Msg("Sending image to Vision API")

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}

	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	return finish(op, visionResult(imgResp), mode, startTime)
}

// visionResult collects text, confidence and languages from a response.
func visionResult(resp *visionpb.AnnotateImageResponse) *Result {
	result := &Result{Engine: EngineVision}

	if full := resp.FullTextAnnotation; full != nil {
		result.Text = full.Text

		var confidenceSum float32
		var confidenceCount int
		languageSet := make(map[string]bool)
		for _, page := range full.Pages {
			if page.Confidence > 0 {
				confidenceSum += page.Confidence
				confidenceCount++
			}
			if page.Property != nil {
				for _, l := range page.Property.DetectedLanguages {
					if l.LanguageCode != "" {
						languageSet[l.LanguageCode] = true
					}
				}
			}
		}
		if confidenceCount > 0 {
			result.Confidence = confidenceSum / float32(confidenceCount)
		}
		for l := range languageSet {
			result.LanguageCodes = append(result.LanguageCodes, l)
		}
		sort.Strings(result.LanguageCodes)
	}

	// TEXT_DETECTION answers carry the whole text in the first annotation.
	if strings.TrimSpace(result.Text) == "" && len(resp.TextAnnotations) > 0 {
		result.Text = resp.TextAnnotations[0].Description
		if result.Text != "" && resp.TextAnnotations[0].Locale != "" {
			result.LanguageCodes = []string{resp.TextAnnotations[0].Locale}
		}
	}

	return result
}

var tesseractToBCP47 = map[string]string{
	"ron": "ro",
	"eng": "en",
	"fra": "fr",
	"deu": "de",
	"hun": "hu",
	"ukr": "uk",
}

// LanguageHints converts a Tesseract language list ("ron+eng") into the
// BCP-47 hints Vision expects. Two-letter codes pass through.
func LanguageHints(lang string) []string {
	var hints []string
	for _, code := range strings.Split(lang, "+") {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if mapped, ok := tesseractToBCP47[code]; ok {
			code = mapped
		}
		if len(code) == 2 {
			hints = append(hints, code)
		}
	}
	return hints
}

// Close closes the underlying Vision client.
func (g *GoogleVisionRecognizer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
