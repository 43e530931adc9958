package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"idscan/internal/config"
	"idscan/internal/logger"
)

var version = "1.0.0"

// appConfig is set by main before Execute.
var appConfig = config.Default()

var rootCmd = &cobra.Command{
	Use:   "idscan",
	Short: "idscan - read Romanian identity cards into structured records",
	Long: `idscan turns a photographed or scanned identity card into a structured
record: names, series and number, CNP, birthplace, address, issuing authority
and validity interval.

Each image is rotated upright, prepared for OCR, recognized with the configured
engine (Google Cloud Vision, Document AI or a local Tesseract) and parsed with
multilingual label rules.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// SetConfig installs the loaded configuration.
func SetConfig(cfg *config.Config) {
	if cfg != nil {
		appConfig = cfg
	}
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Debug().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("engine", "", "OCR engine: vision, tesseract or documentai (default from OCR_ENGINE)")
}
