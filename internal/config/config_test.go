package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "vision", cfg.OCREngine)
	assert.Equal(t, "ron+eng", cfg.OCRLanguage)
	assert.Equal(t, 60*time.Second, cfg.OCRTimeout)
	assert.Equal(t, 3.0, cfg.ContrastMildFactor)
	assert.Equal(t, 10, cfg.OrientationMinScore)
	assert.Equal(t, 1.4, cfg.OrientationRatio)
	assert.True(t, cfg.OrientationConcurrent)
	assert.NoError(t, cfg.validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("OCR_ENGINE", "tesseract")
	t.Setenv("OCR_LANGUAGE", "ron")
	t.Setenv("OCR_TIMEOUT", "15s")
	t.Setenv("ORIENTATION_MIN_SCORE", "25")
	t.Setenv("ORIENTATION_CONCURRENT", "false")
	t.Setenv("CONTRAST_STRONG_FACTOR", "2.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tesseract", cfg.OCREngine)
	assert.Equal(t, 15*time.Second, cfg.OCRTimeout)
	assert.Equal(t, "debug", cfg.GetLoggerConfig().Level)

	p := cfg.PipelineConfig()
	assert.Equal(t, "ron", p.Language)
	assert.Equal(t, 25, p.Orientation.MinScore)
	assert.False(t, p.Orientation.Concurrent)
	assert.Equal(t, 2.5, p.Normalize.StrongFactor)
	assert.Equal(t, 2.5, p.Orientation.Normalize.StrongFactor)
	assert.True(t, p.Normalize.Contrast)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ocr_engine: documentai
google_cloud_project: my-project
document_ai_processor_id: abc123
orientation_ratio: 1.6
`), 0o600))
	t.Setenv("GOOGLE_CLOUD_LOCATION", "us")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	oc := cfg.OCRConfig()
	assert.Equal(t, "documentai", oc.Engine)
	assert.Equal(t, "my-project", oc.ProjectID)
	assert.Equal(t, "abc123", oc.ProcessorID)
	assert.Equal(t, "us", oc.Location)
	assert.Equal(t, 1.6, cfg.PipelineConfig().Orientation.Ratio)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("OCR_ENGINE", "documentai")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("DOCUMENT_AI_PROCESSOR_ID", "")
	t.Setenv("ORIENTATION_RATIO", "0.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_CLOUD_PROJECT is required")
	assert.Contains(t, err.Error(), "DOCUMENT_AI_PROCESSOR_ID is required")
	assert.Contains(t, err.Error(), "ORIENTATION_RATIO")

	t.Setenv("OCR_ENGINE", "abbyy")
	t.Setenv("ORIENTATION_RATIO", "")
	_, err = Load()
	assert.ErrorContains(t, err, `OCR_ENGINE "abbyy" is not supported`)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCompletionConfig(t *testing.T) {
	cfg := Default()
	cfg.OpenAIModel = "gpt-4o"
	cc := cfg.CompletionConfig()
	assert.Equal(t, "gpt-4o", cc.Model)
	assert.Equal(t, 3, cc.MaxRetries)
	assert.InDelta(t, 0.1, cc.Temperature, 1e-6)
}
