package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/koopa0/classic-pong/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, logger.ParseLevel(tt.input))
		})
	}
}

func TestContextHandler_AddsConnAndRoom(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "json")

	ctx := logger.WithConnID(context.Background(), "conn-1")
	ctx = logger.WithRoomID(ctx, 7)
	log.With("component", "test").InfoContext(ctx, "player joined")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "player joined", record["msg"])
	assert.Equal(t, "conn-1", record["conn_id"])
	assert.Equal(t, float64(7), record["room_id"])
	assert.Equal(t, "test", record["component"])
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "warn", "text")

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
