package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"idscan/internal/completion"
	"idscan/internal/logger"
	"idscan/internal/ocr"
	"idscan/internal/pipeline"
)

// ConfigFileEnv names the environment variable holding an optional YAML,
// JSON or TOML config file. Environment variables override file values.
const ConfigFileEnv = "IDSCAN_CONFIG"

type Config struct {
	// OCR Configuration
	OCREngine   string        `mapstructure:"ocr_engine"`
	OCRLanguage string        `mapstructure:"ocr_language"`
	OCRTimeout  time.Duration `mapstructure:"ocr_timeout"`

	// Image preparation
	ContrastMildFactor      float64 `mapstructure:"contrast_mild_factor"`
	ContrastStrongFactor    float64 `mapstructure:"contrast_strong_factor"`
	ContrastStdDevThreshold float64 `mapstructure:"contrast_stddev_threshold"`
	ContrastLowRange        float64 `mapstructure:"contrast_low_range"`

	// Orientation detection
	OrientationThumbnailWidth int     `mapstructure:"orientation_thumbnail_width"`
	OrientationMinScore       int     `mapstructure:"orientation_min_score"`
	OrientationAbsoluteGain   int     `mapstructure:"orientation_absolute_gain"`
	OrientationRatio          float64 `mapstructure:"orientation_ratio"`
	OrientationConcurrent     bool    `mapstructure:"orientation_concurrent"`

	// Google Cloud Configuration
	GoogleCloudProject         string `mapstructure:"google_cloud_project"`
	GoogleCloudLocation        string `mapstructure:"google_cloud_location"`
	DocumentAIProcessorID      string `mapstructure:"document_ai_processor_id"`
	DocumentAIProcessorVersion string `mapstructure:"document_ai_processor_version"`

	// OpenAI Configuration
	OpenAIAPIKey      string  `mapstructure:"openai_api_key"`
	OpenAIModel       string  `mapstructure:"openai_model"`
	OpenAITemperature float32 `mapstructure:"openai_temperature"`
	CompletionRetries int     `mapstructure:"completion_max_retries"`

	// Google Sheets Configuration
	GoogleSheetURL       string `mapstructure:"google_sheet_url"`
	GoogleSheetWorksheet string `mapstructure:"google_sheet_worksheet"`

	// Logging Configuration
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogTimeFormat string `mapstructure:"log_time_format"`
	LogOutput     string `mapstructure:"log_output"`
}

var defaults = map[string]any{
	"ocr_engine":                    ocr.EngineVision,
	"ocr_language":                  "ron+eng",
	"ocr_timeout":                   60 * time.Second,
	"contrast_mild_factor":          3.0,
	"contrast_strong_factor":        3.0,
	"contrast_stddev_threshold":     45.0,
	"contrast_low_range":            60.0,
	"orientation_thumbnail_width":   600,
	"orientation_min_score":         10,
	"orientation_absolute_gain":     20,
	"orientation_ratio":             1.4,
	"orientation_concurrent":        true,
	"google_cloud_project":          "",
	"google_cloud_location":         "eu",
	"document_ai_processor_id":      "",
	"document_ai_processor_version": "",
	"openai_api_key":                "",
	"openai_model":                  completion.DefaultConfig().Model,
	"openai_temperature":            0.1,
	"completion_max_retries":        3,
	"google_sheet_url":              "",
	"google_sheet_worksheet":        "ID_Scans",
	"log_level":                     "info",
	"log_format":                    "console",
	"log_time_format":               time.RFC3339,
	"log_output":                    "stderr",
}

// Load reads the configuration from the environment and, when IDSCAN_CONFIG
// is set, from that file.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile reads the configuration from path (optional) and the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration with every default applied and no
// environment lookups.
func Default() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

func (c *Config) validate() error {
	var errs []error

	switch strings.ToLower(c.OCREngine) {
	case ocr.EngineVision, ocr.EngineTesseract:
	case ocr.EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			errs = append(errs, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the %s engine", ocr.EngineDocumentAI))
		}
		if c.DocumentAIProcessorID == "" {
			errs = append(errs, fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the %s engine", ocr.EngineDocumentAI))
		}
	default:
		errs = append(errs, fmt.Errorf("OCR_ENGINE %q is not supported", c.OCREngine))
	}

	if c.OCRLanguage == "" {
		errs = append(errs, errors.New("OCR_LANGUAGE must not be empty"))
	}
	if c.ContrastMildFactor <= 0 || c.ContrastStrongFactor <= 0 {
		errs = append(errs, errors.New("contrast factors must be positive"))
	}
	if c.OrientationThumbnailWidth <= 0 {
		errs = append(errs, errors.New("ORIENTATION_THUMBNAIL_WIDTH must be positive"))
	}
	if c.OrientationRatio < 1 {
		errs = append(errs, errors.New("ORIENTATION_RATIO must be at least 1"))
	}

	return errors.Join(errs...)
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// OCRConfig returns the engine selection for ocr.New.
func (c *Config) OCRConfig() ocr.Config {
	return ocr.Config{
		Engine:           c.OCREngine,
		ProjectID:        c.GoogleCloudProject,
		Location:         c.GoogleCloudLocation,
		ProcessorID:      c.DocumentAIProcessorID,
		ProcessorVersion: c.DocumentAIProcessorVersion,
		Timeout:          c.OCRTimeout,
	}
}

// PipelineConfig returns the image preparation and orientation settings.
func (c *Config) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Language = c.OCRLanguage

	cfg.Normalize.MildFactor = c.ContrastMildFactor
	cfg.Normalize.StrongFactor = c.ContrastStrongFactor
	cfg.Normalize.StdDevThreshold = c.ContrastStdDevThreshold
	cfg.Normalize.LowRangeThreshold = c.ContrastLowRange

	cfg.Orientation.ThumbnailWidth = c.OrientationThumbnailWidth
	cfg.Orientation.MinScore = c.OrientationMinScore
	cfg.Orientation.AbsoluteGain = c.OrientationAbsoluteGain
	cfg.Orientation.Ratio = c.OrientationRatio
	cfg.Orientation.Concurrent = c.OrientationConcurrent
	cfg.Orientation.Normalize = cfg.Normalize
	return cfg
}

// CompletionConfig returns the chat model settings.
func (c *Config) CompletionConfig() completion.Config {
	cfg := completion.DefaultConfig()
	cfg.Model = c.OpenAIModel
	cfg.Temperature = c.OpenAITemperature
	cfg.MaxRetries = c.CompletionRetries
	return cfg
}
