package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrImageTooLarge is returned when the encoded image exceeds the engine's
	// request size limit.
	ErrImageTooLarge = errors.New("image size exceeds the maximum limit (20MB)")

	// ErrOCRFailed is returned when the engine fails to process the image.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrEmptyText is returned when the engine recognized no text at all.
	ErrEmptyText = errors.New("image contains no readable text")

	// ErrUnsupportedEngine is returned for an unknown OCR_ENGINE value.
	ErrUnsupportedEngine = errors.New("unsupported OCR engine")

	// ErrInvalidConfiguration is returned when required engine settings are missing.
	ErrInvalidConfiguration = errors.New("invalid OCR configuration")

	// ErrQuotaExceeded is returned when the cloud API quota is exhausted.
	ErrQuotaExceeded = errors.New("OCR API quota exceeded")

	// ErrPermissionDenied is returned when the credentials lack access to the API.
	ErrPermissionDenied = errors.New("insufficient permissions for OCR API")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewTesseractRecognizer").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}
