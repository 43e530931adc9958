package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"idscan/internal/logger"
	"idscan/internal/metrics"
	"idscan/internal/ocr"
	"idscan/internal/pipeline"
	"idscan/internal/raster"
	"idscan/internal/sheets"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder-path]",
	Short: "Scan every card image in a folder",
	Long: `Scan all images in a folder with a pool of parallel workers.

Results are written as a JSON array in file order. Optionally the records are
appended to a Google Sheet (one row per file) and Prometheus metrics are written
in the node_exporter textfile format.

Optional environment variables:
  BATCH_WORKERS - Number of parallel workers (default: 4)
  GOOGLE_SHEET_URL - Google Sheets URL used with --sheets
  GOOGLE_SHEET_WORKSHEET - Worksheet name (default: ID_Scans)`,
	Example: `  # Scan a folder and save all records
  idscan batch ./scans -o records.json

  # Append rows to the configured Google Sheet and export metrics
  idscan batch ./scans --sheets --metrics-file /var/lib/node_exporter/idscan.prom`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// documentProcessor is the part of the pipeline the batch command drives.
type documentProcessor interface {
	ProcessFile(ctx context.Context, path string, opts pipeline.Options) (*pipeline.Result, error)
}

// BatchResult represents the result of processing a single image
type BatchResult struct {
	Filename string
	Result   *pipeline.Result
	Error    error
	Status   string // ok, partial, error
	Index    int    // Original order index
}

// WorkerJob represents an image processing job
type WorkerJob struct {
	FilePath string
	Index    int
}

// BatchOutput is one element of the batch JSON output
type BatchOutput struct {
	ScanOutput
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	batchCmd.Flags().Int("workers", 0, "Number of parallel workers (default from BATCH_WORKERS or 4)")
	batchCmd.Flags().String("lang", "", "OCR language list (default from OCR_LANGUAGE)")
	batchCmd.Flags().Bool("no-enhance", false, "Skip the contrast step of image preparation")
	batchCmd.Flags().Bool("no-orientation", false, "Skip rotation detection")
	batchCmd.Flags().Bool("sheets", false, "Append results to the Google Sheet in GOOGLE_SHEET_URL")
	batchCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this textfile")
	batchCmd.Flags().Duration("timeout", 30*time.Minute, "Timeout for the whole batch")
	batchCmd.Flags().Bool("verbose", false, "Log every processed file")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	folderPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	workers, _ := cmd.Flags().GetInt("workers")
	lang, _ := cmd.Flags().GetString("lang")
	noEnhance, _ := cmd.Flags().GetBool("no-enhance")
	noOrientation, _ := cmd.Flags().GetBool("no-orientation")
	toSheets, _ := cmd.Flags().GetBool("sheets")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")
	engine, _ := cmd.Flags().GetString("engine")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}
	if toSheets && appConfig.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required with --sheets")
	}
	if workers <= 0 {
		workers = getNumWorkers()
	}

	imageFiles, err := findImageFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find image files: %w", err)
	}
	if len(imageFiles) == 0 {
		fmt.Fprintln(os.Stderr, "No image files found in folder.")
		return nil
	}

	log.Info().
		Str("folder", folderPath).
		Int("files", len(imageFiles)).
		Int("workers", workers).
		Bool("sheets", toSheets).
		Msg("Starting batch processing")

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

	recorder := metrics.NewRecorder()
	results := processImagesInParallel(ctx, imageFiles, p, opts, workers, recorder, os.Stderr, log, verbose)

	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	fmt.Fprintf(os.Stderr, "\nComplete: %d, partial: %d, failed: %d\n", counts["ok"], counts["partial"], counts["error"])

	if metricsFile != "" {
		if err := recorder.WriteTextfile(metricsFile); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
		log.Info().Str("metrics_file", metricsFile).Msg("Metrics written")
	}

	if toSheets {
		if err := writeToSheet(ctx, results, log); err != nil {
			return err
		}
	}

	log.Info().
		Int("total", len(results)).
		Int("ok", counts["ok"]).
		Int("partial", counts["partial"]).
		Int("errors", counts["error"]).
		Msg("Batch processing completed")

	return writeJSON(batchOutputs(results), outputPath, log)
}

// findImageFiles returns the supported images below folderPath in lexical order
func findImageFiles(folderPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && raster.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// getNumWorkers returns the number of workers from environment or default
func getNumWorkers() int {
	if workersStr := os.Getenv("BATCH_WORKERS"); workersStr != "" {
		if workers, err := strconv.Atoi(workersStr); err == nil && workers > 0 {
			return workers
		}
	}
	return 4
}

// processSingleImage runs one file through the pipeline
func processSingleImage(ctx context.Context, path string, processor documentProcessor, opts pipeline.Options) BatchResult {
	res, err := processor.ProcessFile(ctx, path, opts)
	return BatchResult{
		Result: res,
		Error:  err,
		Status: metrics.Status(res, err),
	}
}

// processImagesInParallel processes images using a worker pool pattern
func processImagesInParallel(ctx context.Context, files []string, processor documentProcessor, opts pipeline.Options, numWorkers int, recorder *metrics.Recorder, progress io.Writer, log zerolog.Logger, verbose bool) []BatchResult {
	jobs := make(chan WorkerJob, len(files))
	results := make([]BatchResult, len(files))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				fileLog := log.With().Int("worker", workerID).Str("file", job.FilePath).Logger()
				fileCtx := fileLog.WithContext(ctx)
				logger.WithContext(fileCtx).Debug().Int("index", job.Index+1).Msg("Worker processing image")

				result := processSingleImage(fileCtx, job.FilePath, processor, opts)
				result.Index = job.Index
				result.Filename = filepath.Base(job.FilePath)

				results[job.Index] = result

				mu.Lock()
				recorder.Observe(result.Result, result.Error)
				processedCount++
				fmt.Fprintf(progress, "[%d/%d] %s - %s", processedCount, len(files), result.Filename, result.Status)
				if result.Error != nil {
					fmt.Fprintf(progress, " (%s)", result.Error)
				} else if result.Result != nil && result.Result.Record.CNP != "" {
					fmt.Fprintf(progress, " (CNP %s)", result.Result.Record.CNP)
				}
				fmt.Fprintln(progress)
				mu.Unlock()

				if verbose && result.Result != nil {
					fileLog.Info().
						Int("rotation", result.Result.Rotation).
						Strs("missing", result.Result.Record.Missing()).
						Msg("Image processed successfully")
				}
			}
		}(w)
	}

	for i, file := range files {
		jobs <- WorkerJob{FilePath: file, Index: i}
	}
	close(jobs)

	wg.Wait()

	return results
}

func batchOutputs(results []BatchResult) []BatchOutput {
	out := make([]BatchOutput, len(results))
	for i, r := range results {
		o := BatchOutput{Status: r.Status}
		if r.Result != nil {
			o.ScanOutput = newScanOutput(r.Filename, r.Result, false)
		} else {
			o.File = r.Filename
		}
		if r.Error != nil {
			o.Error = r.Error.Error()
		}
		out[i] = o
	}
	return out
}

func writeToSheet(ctx context.Context, results []BatchResult, log zerolog.Logger) error {
	sheetsService, err := sheets.NewSheetsService(ctx, appConfig.GoogleSheetURL)
	if err != nil {
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}

	rows := make([]sheets.Result, len(results))
	for i, r := range results {
		rows[i] = sheets.Result{
			Filename: r.Filename,
			Status:   r.Status,
			Error:    r.Error,
		}
		if r.Result != nil {
			rows[i].Record = r.Result.Record
			rows[i].Rotation = r.Result.Rotation
		}
	}

	if err := sheetsService.WriteResults(ctx, rows, appConfig.GoogleSheetWorksheet); err != nil {
		return fmt.Errorf("failed to write to Google Sheet: %w", err)
	}

	log.Info().
		Str("sheet", appConfig.GoogleSheetWorksheet).
		Int("rows", len(rows)).
		Msg("Results written to Google Sheet")
	return nil
}
