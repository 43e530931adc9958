package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idscan/internal/raster"
)

func TestWrapOCRError(t *testing.T) {
	assert.Nil(t, WrapOCRError("op", nil, ""))

	err := WrapOCRError("Recognize", ErrEmptyText, "vision")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, "ocr: Recognize failed: vision: image contains no readable text", err.Error())

	again := WrapOCRError("Outer", err, "ignored")
	assert.Same(t, err, again)

	plain := NewOCRError("New", ErrUnsupportedEngine, "")
	assert.Equal(t, "ocr: New failed: unsupported OCR engine", plain.Error())
	assert.True(t, errors.Is(plain, ErrUnsupportedEngine))
}

func TestNew_UnsupportedEngine(t *testing.T) {
	r, err := New(context.Background(), Config{Engine: "abbyy"})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrUnsupportedEngine)
}

func TestNew_Tesseract(t *testing.T) {
	r, err := New(context.Background(), Config{Engine: " Tesseract "})
	require.NoError(t, err)
	assert.IsType(t, &TesseractRecognizer{}, r)
	assert.NoError(t, Close(r))
}

func TestNewDocumentAIRecognizer_RequiresSettings(t *testing.T) {
	_, err := NewDocumentAIRecognizer(context.Background(), Config{ProcessorID: "p"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewDocumentAIRecognizer(context.Background(), Config{ProjectID: "proj"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestDocumentAIRecognizer_ProcessorName(t *testing.T) {
	p := NewDocumentAIRecognizerWithClient(Config{ProjectID: "proj", Location: "eu", ProcessorID: "abc"}, nil)
	assert.Equal(t, "projects/proj/locations/eu/processors/abc", p.ProcessorName())

	p = NewDocumentAIRecognizerWithClient(Config{ProjectID: "proj", Location: "us", ProcessorID: "abc", ProcessorVersion: "v2"}, nil)
	assert.Equal(t, "projects/proj/locations/us/processors/abc/processorVersions/v2", p.ProcessorName())
	assert.NoError(t, p.Close())
}

func TestDocumentAIRecognizer_HandleProcessingError(t *testing.T) {
	p := NewDocumentAIRecognizerWithClient(Config{ProcessorID: "abc"}, nil)

	tests := []struct {
		msg  string
		want error
	}{
		{"rpc error: code = PermissionDenied desc = PERMISSION_DENIED", ErrPermissionDenied},
		{"rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED", ErrQuotaExceeded},
		{"rpc error: code = NotFound desc = NOT_FOUND", ErrInvalidConfiguration},
		{"context deadline exceeded", context.DeadlineExceeded},
		{"context canceled", context.Canceled},
		{"boom", ErrOCRFailed},
	}
	for _, tt := range tests {
		err := p.handleProcessingError("Recognize", errors.New(tt.msg))
		assert.ErrorIs(t, err, tt.want, tt.msg)
	}
}

func TestRecognize_InvalidBuffer(t *testing.T) {
	r := NewTesseractRecognizer()
	_, err := r.Recognize(context.Background(), &raster.PixelBuffer{}, "ron", ModeFast)
	assert.ErrorIs(t, err, raster.ErrInvalidImage)
}

func TestRecognize_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf, err := raster.New(4, 4)
	require.NoError(t, err)

	_, err = NewTesseractRecognizer().Recognize(ctx, buf, "ron", ModeAccurate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLanguageHints(t *testing.T) {
	assert.Equal(t, []string{"ro", "en"}, LanguageHints("ron+eng"))
	assert.Equal(t, []string{"ro"}, LanguageHints(" RO "))
	assert.Nil(t, LanguageHints(""))
	assert.Nil(t, LanguageHints("osd"))
}

func TestSplitLanguages(t *testing.T) {
	assert.Equal(t, []string{"ron", "eng"}, splitLanguages("ron+eng"))
	assert.Nil(t, splitLanguages("+"))
}

func TestVisionResult(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Text: "ROMANIA\nCARTE DE IDENTITATE\n",
			Pages: []*visionpb.Page{
				{
					Confidence: 0.9,
					Property: &visionpb.TextAnnotation_TextProperty{
						DetectedLanguages: []*visionpb.TextAnnotation_DetectedLanguage{
							{LanguageCode: "ro"}, {LanguageCode: "en"},
						},
					},
				},
				{Confidence: 0.7},
			},
		},
	}

	res := visionResult(resp)
	assert.Equal(t, "ROMANIA\nCARTE DE IDENTITATE\n", res.Text)
	assert.InDelta(t, 0.8, res.Confidence, 1e-6)
	assert.Equal(t, []string{"en", "ro"}, res.LanguageCodes)
	assert.Equal(t, EngineVision, res.Engine)
}

func TestVisionResult_TextDetectionFallback(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{
		TextAnnotations: []*visionpb.EntityAnnotation{
			{Description: "SERIA RK NR 028132", Locale: "ro"},
			{Description: "SERIA"},
		},
	}
	res := visionResult(resp)
	assert.Equal(t, "SERIA RK NR 028132", res.Text)
	assert.Equal(t, []string{"ro"}, res.LanguageCodes)
}

func TestFinish(t *testing.T) {
	_, err := finish("Recognize", &Result{Text: " \n ", Engine: EngineVision}, ModeFast, time.Now())
	assert.ErrorIs(t, err, ErrEmptyText)

	res, err := finish("Recognize", &Result{Text: "CNP", Engine: EngineVision}, ModeFast, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Mode)
	assert.False(t, res.ProcessedAt.IsZero())
}
