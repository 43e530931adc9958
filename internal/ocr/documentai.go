package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"idscan/internal/logger"
	"idscan/internal/raster"
)

// DocumentAIRecognizer implements Recognizer with a Document AI OCR processor.
// The processor picks its own languages and has no fast mode, so lang and
// mode only show up in the result metadata.
type DocumentAIRecognizer struct {
	client *documentai.DocumentProcessorClient
	config Config
	log    zerolog.Logger
}

// NewDocumentAIRecognizer creates a recognizer with credentials from environment.
// Expects: GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS
// Requires: cfg.ProjectID and cfg.ProcessorID; cfg.Location defaults to "us".
func NewDocumentAIRecognizer(ctx context.Context, cfg Config) (*DocumentAIRecognizer, error) {
	const op = "NewDocumentAIRecognizer"

	if cfg.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if cfg.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	var clientOptions []option.ClientOption

	// Regional processors live behind regional endpoints
	if cfg.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", cfg.Location))
	}

	return NewDocumentAIRecognizerWithClient(cfg, client), nil
}

// NewDocumentAIRecognizerWithClient creates a recognizer with explicit config and client (for testing).
func NewDocumentAIRecognizerWithClient(cfg Config, client *documentai.DocumentProcessorClient) *DocumentAIRecognizer {
	return &DocumentAIRecognizer{
		client: client,
		config: cfg,
		log:    logger.WithComponent("ocr-document-ai"),
	}
}

// Recognize sends buf to the processor as an inline PNG.
func (p *DocumentAIRecognizer) Recognize(ctx context.Context, buf *raster.PixelBuffer, lang string, mode Mode) (*Result, error) {
	const op = "Recognize"
	startTime := time.Now()

	content, err := encode(op, buf)
	if err != nil {
		return nil, err
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	req := &documentaipb.ProcessRequest{
		Name: p.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: "image/png",
			},
		},
	}

	p.log.Debug().
		Str("processor", req.Name).
		Str("mode", mode.String()).
		Int("bytes", len(content)).
		Msg("Sending image to Document AI")

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	result := &Result{
		Text:   resp.Document.Text,
		Engine: EngineDocumentAI,
	}
	if lang != "" {
		result.LanguageCodes = LanguageHints(lang)
	}
	return finish(op, result, mode, startTime)
}

// ProcessorName constructs the full processor name for Document AI API.
func (p *DocumentAIRecognizer) ProcessorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to OCR errors.
func (p *DocumentAIRecognizer) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return WrapOCRError(op, ErrPermissionDenied, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return WrapOCRError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NOT_FOUND"):
		return WrapOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return WrapOCRError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return WrapOCRError(op, context.Canceled, "processing canceled")
	default:
		return WrapOCRError(op, ErrOCRFailed, errStr)
	}
}

// Close closes the underlying Document AI client.
func (p *DocumentAIRecognizer) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
