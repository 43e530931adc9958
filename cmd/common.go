package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"idscan/internal/ocr"
	"idscan/internal/pipeline"
	"idscan/internal/raster"
)

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// validateImageFile checks that path is a readable, non-empty image file.
func validateImageFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("image file is empty: %s", path)
	}
	if !raster.IsSupported(path) {
		log.Error().Str("file", path).Msg("Unsupported image extension")
		return nil, fmt.Errorf("unsupported image format: %s (PDF pages must be rendered to an image first)", path)
	}

	return fileInfo, nil
}

// createRecognizer builds the configured OCR engine, letting engine override
// the configured one when set.
func createRecognizer(ctx context.Context, engine string, log zerolog.Logger) (ocr.Recognizer, error) {
	cfg := appConfig.OCRConfig()
	if engine != "" {
		cfg.Engine = engine
	}

	cloud := cfg.Engine == "" || cfg.Engine == ocr.EngineVision || cfg.Engine == ocr.EngineDocumentAI
	if cloud && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" && os.Getenv("GOOGLE_CREDENTIALS") == "" {
		log.Error().Str("engine", cfg.Engine).Msg("Google Cloud credentials not configured")
		return nil, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. Or run with --engine tesseract to use a local Tesseract installation")
	}

	recognizer, err := ocr.New(ctx, cfg)
	if err != nil {
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n"+
				"1. Credentials file exists and is readable\n"+
				"2. JSON format is valid\n"+
				"3. Service account has proper permissions\n\n"+
				"Original error: %w", err)
		case errors.Is(err, ocr.ErrUnsupportedEngine), errors.Is(err, ocr.ErrInvalidConfiguration):
			return nil, err
		}
		log.Error().Err(err).Msg("Failed to create OCR engine")
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	log.Debug().Str("engine", cfg.Engine).Msg("OCR engine created successfully")
	return recognizer, nil
}

// handleScanError provides user-friendly error messages for pipeline failures
func handleScanError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Scan failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, raster.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported or corrupted image. Supported formats: JPEG, PNG, GIF, BMP, TIFF, WEBP")
	case errors.Is(err, raster.ErrInvalidImage):
		return fmt.Errorf("invalid image: %w", err)
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large for the OCR service (maximum 20MB encoded). Try a smaller scan")
	case errors.Is(err, ocr.ErrEmptyText):
		return fmt.Errorf("no readable text found in the image. Check the scan quality or try --no-enhance")
	case errors.Is(err, ocr.ErrPermissionDenied):
		return fmt.Errorf("permission denied. Please ensure your service account can use the configured OCR API")
	case errors.Is(err, ocr.ErrQuotaExceeded):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas in the Google Cloud Console")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials: %w", err)
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			return fmt.Errorf("%s failed: %w", perr.Stage, perr.Err)
		}
		return fmt.Errorf("processing failed: %w", err)
	}
}

// writeJSON marshals v with indentation and writes it to outputPath or stdout.
func writeJSON(v any, outputPath string, log zerolog.Logger) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(append(data, '\n'), outputPath, log)
}

// writeOutput writes data to outputPath, or to stdout when it is empty.
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}
