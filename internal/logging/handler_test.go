// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestSetup_JSONAddsServiceIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("magnum-plugins", "1.2.3", "json", "info", &buf)

	logger.InfoContext(context.Background(), "scanning plugins", "dir", "/plugins")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "magnum-plugins", record["service"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, "scanning plugins", record["msg"])
	assert.Equal(t, "/plugins", record["dir"])
	assert.NotContains(t, record, "trace_id", "no trace context means no trace attrs")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("magnum-plugins", "dev", "text", "debug", &buf)

	logger.Debug("probe")
	assert.Contains(t, buf.String(), "msg=probe")
	assert.Contains(t, buf.String(), "service=magnum-plugins")
}

func TestSetup_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("magnum-plugins", "dev", "json", "error", &buf)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("svc", "v", "json", "info", &buf)

	logger.With("plugin", "font-a").WithGroup("scan").Info("done", "count", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "font-a", record["plugin"])
	group, ok := record["scan"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), group["count"])
}
