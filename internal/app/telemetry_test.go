package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiHandler(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer

	logger := slog.New(NewMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)).With("request_id", "req-1")

	logger.Debug("cache miss")
	logger.Info("grant processed", "purchase_id", "cs_test_1")

	assert.Contains(t, debugBuf.String(), "cache miss")
	assert.Contains(t, debugBuf.String(), "grant processed")
	assert.NotContains(t, infoBuf.String(), "cache miss")
	assert.Contains(t, infoBuf.String(), "purchase_id=cs_test_1")
	assert.Contains(t, infoBuf.String(), "request_id=req-1")
}

func TestMultiHandler_Enabled(t *testing.T) {
	handler := NewMultiHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

func TestInitTelemetry_WithoutCollector(t *testing.T) {
	var buf bytes.Buffer

	shutdown, err := InitTelemetry(Config{}, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)

	shutdown(context.Background())
	assert.Contains(t, buf.String(), "skipping initialization")
}
