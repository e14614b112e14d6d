package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, false, "monitorsim")

	logger.Debug("hidden")
	logger.Info("mqtt:connected", slog.String("broker", "localhost:1883"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "mqtt:connected", rec["msg"])
	assert.Equal(t, "monitorsim", rec["app"])
	assert.Equal(t, "localhost:1883", rec["broker"])
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, true, "sensorpub")

	logger.Info("hidden")
	logger.Warn("publish:failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "publish:failed")
	assert.Contains(t, out, "sensorpub")
}
