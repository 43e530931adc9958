package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"idscan/cmd"
	"idscan/internal/config"
	"idscan/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration, using defaults: %v", err)
		cfg = config.Default()
	}

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Printf("Warning: Invalid logging configuration: %v", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	cmd.SetConfig(cfg)
	cmd.Execute()
}
