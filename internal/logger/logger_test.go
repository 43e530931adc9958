package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogConfig{Format: "json"})
	l.Info().Str("component", "test").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "test", entry["component"])
	assert.Contains(t, entry, "caller")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LogConfig{Format: "console"})
	l.Warn().Msg("careful")
	assert.Contains(t, buf.String(), "careful")
	assert.Contains(t, buf.String(), "WRN")
}

func TestSetup(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	assert.Error(t, Setup(LogConfig{Level: "loud"}))

	path := filepath.Join(t.TempDir(), "scan.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log := WithComponent("pipeline")
	log.Debug().Msg("written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"pipeline"`)

	require.NoError(t, Setup(DefaultConfig()))
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).With().Str("file", "card.jpg").Logger()
	ctx := l.WithContext(context.Background())

	WithContext(ctx).Info().Msg("scanned")
	assert.Contains(t, buf.String(), `"file":"card.jpg"`)

	assert.NotNil(t, WithContext(context.Background()))
}
