package cmd

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/raster"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Print the raw text the OCR engine reads from an image",
	Long: `Recognize an image with the configured OCR engine and print the text as is.

No rotation or field extraction is done. By default the image is converted to
sharpened grayscale first, exactly as the scan command prepares it; use
--no-prepare to send the decoded image unchanged.`,
	Example: `  # Print recognized text
  idscan ocr card.jpg

  # Fast mode, as used by rotation probes, with metadata as JSON
  idscan ocr card.jpg --fast --json`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string    `json:"text"`
	Engine             string    `json:"engine"`
	Mode               string    `json:"mode"`
	Confidence         float32   `json:"confidence,omitempty"`
	LanguageCodes      []string  `json:"language_codes,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
	FileName           string    `json:"file_name"`
	Width              int       `json:"width"`
	Height             int       `json:"height"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().String("lang", "", "OCR language list (default from OCR_LANGUAGE)")
	ocrCmd.Flags().Bool("fast", false, "Use the fast recognition mode")
	ocrCmd.Flags().Bool("no-prepare", false, "Skip grayscale, contrast and sharpening")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Duration("timeout", 2*time.Minute, "Processing timeout")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	outputPath, _ := cmd.Flags().GetString("output")
	lang, _ := cmd.Flags().GetString("lang")
	fast, _ := cmd.Flags().GetBool("fast")
	noPrepare, _ := cmd.Flags().GetBool("no-prepare")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	engine, _ := cmd.Flags().GetString("engine")

	imagePath := args[0]
	if lang == "" {
		lang = appConfig.OCRLanguage
	}
	mode := ocr.ModeAccurate
	if fast {
		mode = ocr.ModeFast
	}

	if _, err := validateImageFile(imagePath, log); err != nil {
		return err
	}

	buf, err := raster.Load(imagePath)
	if err != nil {
		return handleScanError(err, log)
	}
	if !noPrepare {
		buf, err = raster.Normalize(buf, appConfig.PipelineConfig().Normalize)
		if err != nil {
			return handleScanError(err, log)
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

	log.Info().
		Str("file", imagePath).
		Int("width", buf.Width).
		Int("height", buf.Height).
		Str("mode", mode.String()).
		Msg("Recognizing image")

	result, err := recognizer.Recognize(ctx, buf, lang, mode)
	if err != nil {
		return handleScanError(err, log)
	}

	log.Info().
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Int("text_length", len(result.Text)).
		Msg("OCR processing completed successfully")

	if jsonOutput {
		return writeJSON(OCROutput{
			Text:               result.Text,
			Engine:             result.Engine,
			Mode:               result.Mode,
			Confidence:         result.Confidence,
			LanguageCodes:      result.LanguageCodes,
			ProcessedAt:        result.ProcessedAt,
			ProcessingDuration: result.ProcessingDuration.String(),
			FileName:           filepath.Base(imagePath),
			Width:              buf.Width,
			Height:             buf.Height,
		}, outputPath, log)
	}

	text := result.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return writeOutput([]byte(text), outputPath, log)
}
