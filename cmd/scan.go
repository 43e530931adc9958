package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"idscan/internal/completion"
	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/orientation"
	"idscan/internal/pipeline"
	"idscan/pkg/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Extract an identity record from a card image",
	Long: `Run the full pipeline on one identity card image and print the record as JSON.

The image is decoded (JPEG, PNG, GIF, BMP, TIFF or WEBP, with EXIF orientation
applied), probed at 0, 90, 180 and 270 degrees with a fast OCR pass to find the
upright rotation, converted to sharpened high-contrast grayscale and recognized.
Fields are read from the text by their printed labels in Romanian, French and
English.

Required environment variables (cloud engines):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string

Optional environment variables:
  OCR_ENGINE - vision (default), tesseract or documentai
  OCR_LANGUAGE - Tesseract-style language list (default: ron+eng)
  OPENAI_API_KEY - Required with --complete`,
	Example: `  # Scan a card and print the record
  idscan scan card.jpg

  # Use the local Tesseract engine and save the result
  idscan scan card.jpg --engine tesseract -o card.json

  # Skip rotation probing for images known to be upright
  idscan scan card.png --no-orientation

  # Let a chat model fill fields the label rules could not read
  idscan scan card.jpg --complete`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

// ScanOutput is the JSON document written by the scan command
type ScanOutput struct {
	File               string                  `json:"file"`
	Record             *models.IdentityRecord  `json:"record"`
	Missing            []string                `json:"missing,omitempty"`
	Completed          []string                `json:"completed,omitempty"`
	Rotation           int                     `json:"rotation"`
	Candidates         []orientation.Candidate `json:"candidates,omitempty"`
	Engine             string                  `json:"engine,omitempty"`
	Confidence         float32                 `json:"confidence,omitempty"`
	Text               string                  `json:"text,omitempty"`
	ProcessingDuration string                  `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().String("lang", "", "OCR language list, e.g. ron+eng (default from OCR_LANGUAGE)")
	scanCmd.Flags().Bool("no-enhance", false, "Skip the contrast step of image preparation")
	scanCmd.Flags().Bool("no-orientation", false, "Skip rotation detection")
	scanCmd.Flags().Bool("complete", false, "Fill missing fields with an OpenAI chat model")
	scanCmd.Flags().Bool("raw", false, "Include the full recognized text in the output")
	scanCmd.Flags().Duration("timeout", 2*time.Minute, "Processing timeout")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	outputPath, _ := cmd.Flags().GetString("output")
	lang, _ := cmd.Flags().GetString("lang")
	noEnhance, _ := cmd.Flags().GetBool("no-enhance")
	noOrientation, _ := cmd.Flags().GetBool("no-orientation")
	complete, _ := cmd.Flags().GetBool("complete")
	raw, _ := cmd.Flags().GetBool("raw")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	engine, _ := cmd.Flags().GetString("engine")

	imagePath := args[0]

	log.Info().
		Str("file", imagePath).
		Str("output", outputPath).
		Bool("enhance", !noEnhance).
		Bool("orientation", !noOrientation).
		Bool("complete", complete).
		Dur("timeout", timeout).
		Msg("Starting scan")

	if _, err := validateImageFile(imagePath, log); err != nil {
		return err
	}

	var completer *completion.Service
	if complete {
		var err error
		completer, err = completion.NewService(appConfig.OpenAIAPIKey, appConfig.CompletionConfig())
		if err != nil {
			return fmt.Errorf("--complete: %w", err)
		}
	}

	ctx, cancel := createContextWithTimeout(timeout, log)
	defer cancel()

	recognizer, err := createRecognizer(ctx, engine, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := ocr.Close(recognizer); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	p := pipeline.New(recognizer, appConfig.PipelineConfig())
	opts := p.DefaultOptions()
	if lang != "" {
		opts.Language = lang
	}
	opts.AutoEnhance = !noEnhance
	opts.DetectOrientation = !noOrientation

	result, err := p.ProcessFile(ctx, imagePath, opts)
	if err != nil {
		return handleScanError(err, log)
	}

	output := newScanOutput(imagePath, result, raw)
	if completer != nil {
		output.Completed = completeRecord(ctx, completer, result.Record, log)
		output.Missing = result.Record.Missing()
	}

	return writeJSON(output, outputPath, log)
}

func newScanOutput(path string, result *pipeline.Result, raw bool) ScanOutput {
	output := ScanOutput{
		File:               filepath.Base(path),
		Record:             result.Record,
		Missing:            result.Record.Missing(),
		Rotation:           result.Rotation,
		Candidates:         result.Candidates,
		ProcessingDuration: result.Duration.String(),
	}
	if result.OCR != nil {
		output.Engine = result.OCR.Engine
		output.Confidence = result.OCR.Confidence
		if raw {
			output.Text = result.OCR.Text
		}
	}
	return output
}

// completeRecord runs the optional completion step. Its failure is logged and
// the record is kept as extracted.
func completeRecord(ctx context.Context, completer *completion.Service, rec *models.IdentityRecord, log zerolog.Logger) []string {
	filled, err := completer.Complete(ctx, rec)
	if err != nil {
		log.Warn().Err(err).Msg("Completion failed, keeping extracted fields")
		return nil
	}
	return filled
}
