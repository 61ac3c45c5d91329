package whisper

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxbox/internal/transcript"
)

func TestTranscribeParsesCLIOutput(t *testing.T) {
	svc := NewService("whisper-ctranslate2", "base", slog.New(slog.NewTextHandler(io.Discard, nil)))

	var gotArgs []string
	svc.run = func(_ context.Context, name string, args ...string) error {
		gotArgs = append([]string{name}, args...)
		// Emulate the CLI writing its JSON next to --output_dir.
		outDir := args[len(args)-1]
		payload := `{"language":"en","segments":[{"start":0,"end":2.5,"text":" hello "},{"start":2.5,"end":4,"text":"world"}]}`
		return os.WriteFile(filepath.Join(outDir, "episode.json"), []byte(payload), 0o644)
	}

	result, err := svc.Transcribe(context.Background(), "/tmp/episode.mp3")
	require.NoError(t, err)
	assert.Equal(t, transcript.SourceWhisper, result.Source)
	assert.Equal(t, "en", result.Language)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, "hello", result.Segments[0].Text)
	assert.Equal(t, "whisper-ctranslate2", gotArgs[0])
	assert.Contains(t, gotArgs, "--model")
	assert.Contains(t, gotArgs, "base")
}

func TestTranscribeCommandFailure(t *testing.T) {
	svc := NewService("whisper-ctranslate2", "base", slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.run = func(_ context.Context, _ string, _ ...string) error {
		return assert.AnError
	}

	_, err := svc.Transcribe(context.Background(), "/tmp/episode.mp3")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTranscribeEmptySegments(t *testing.T) {
	svc := NewService("whisper-ctranslate2", "base", slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.run = func(_ context.Context, _ string, args ...string) error {
		outDir := args[len(args)-1]
		return os.WriteFile(filepath.Join(outDir, "episode.json"), []byte(`{"language":"en","segments":[]}`), 0o644)
	}

	_, err := svc.Transcribe(context.Background(), "/tmp/episode.mp3")
	assert.ErrorContains(t, err, "no segments")
}
