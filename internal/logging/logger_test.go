package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsoleLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)
	return slog.New(newConsoleHandler(buf, levelVar))
}

func TestConsoleHandlerPrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(newConsoleLogger(&buf, slog.LevelInfo), "pipeline")

	logger.Info("job complete", String("video_id", "dQw4w9WgXcQ"))

	out := buf.String()
	assert.Contains(t, out, "INFO pipeline: job complete")
	assert.Contains(t, out, "video_id=dQw4w9WgXcQ")
	assert.NotContains(t, out, "component=")
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := newConsoleLogger(&buf, slog.LevelInfo)

	logger.Warn("retrying", Error(errors.New("rate limited")))
	assert.Contains(t, buf.String(), `error="rate limited"`)
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newConsoleLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNewJSONFormat(t *testing.T) {
	logger, err := New(Options{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNewNopDiscardsEverything(t *testing.T) {
	logger := NewNop()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
