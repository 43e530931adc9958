package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"idscan/internal/idcard"
	"idscan/internal/logger"
	"idscan/internal/textnorm"
	"idscan/pkg/models"
)

var parseCmd = &cobra.Command{
	Use:   "parse [text-file|-]",
	Short: "Build an identity record from already recognized text",
	Long: `Parse OCR text into an identity record without touching any image or OCR engine.

The input is either plain text (one OCR line per line) or a record JSON document
previously written by scan or parse, in which case its rawLines are parsed again.
Use - to read from stdin.`,
	Example: `  # Parse text produced by another OCR tool
  idscan parse card.txt

  # Re-run extraction on a saved record
  idscan scan card.jpg | jq .record | idscan parse -`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")
	outputPath, _ := cmd.Flags().GetString("output")

	data, err := readInput(args[0])
	if err != nil {
		return err
	}

	lines := inputLines(data)
	log.Debug().Int("lines", len(lines)).Msg("Parsing text")

	record := idcard.NewBuilder().Build(lines)
	return writeJSON(record, outputPath, log)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return data, nil
}

// inputLines accepts a record JSON document (its rawLines are used) or plain text.
func inputLines(data []byte) []textnorm.Line {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var rec models.IdentityRecord
		if err := json.Unmarshal(data, &rec); err == nil && len(rec.RawLines) > 0 {
			return textnorm.Lines(strings.Join(rec.RawLines, "\n"))
		}
	}
	return textnorm.Lines(string(data))
}
