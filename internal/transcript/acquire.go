package transcript

import (
	"context"
	"fmt"
	"log/slog"
)

// FallbackTranscriber produces a transcript from audio when no usable
// captions exist.
type FallbackTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}

// Acquirer chooses the best available transcript for a downloaded video.
type Acquirer struct {
	fallback FallbackTranscriber
	logger   *slog.Logger
}

func NewAcquirer(fallback FallbackTranscriber, logger *slog.Logger) *Acquirer {
	return &Acquirer{fallback: fallback, logger: logger}
}

// Acquire returns caption-derived transcripts when a caption file was
// downloaded and parses cleanly, otherwise transcribes the audio.
// captionSource is the downloader's provenance hint ("manual" or "auto");
// anything else is treated as auto-generated.
func (a *Acquirer) Acquire(ctx context.Context, captionPath, captionSource, audioPath string) (Result, error) {
	if captionPath != "" {
		result, err := a.fromCaptions(captionPath, captionSource)
		if err == nil {
			return result, nil
		}
		a.logger.Warn("captions unusable, falling back to speech recognition",
			slog.String("path", captionPath), slog.Any("error", err))
	}

	if a.fallback == nil {
		return Result{}, fmt.Errorf("no captions and no fallback transcriber configured")
	}
	result, err := a.fallback.Transcribe(ctx, audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("fallback transcription: %w", err)
	}
	result.Source = SourceWhisper
	return result, nil
}

func (a *Acquirer) fromCaptions(path, captionSource string) (Result, error) {
	raw, err := ParseVTT(path)
	if err != nil {
		return Result{}, err
	}
	cleaned := make([]Segment, 0, len(raw))
	for _, seg := range raw {
		seg.Text = CleanCaptionText(seg.Text)
		if seg.Text != "" {
			cleaned = append(cleaned, seg)
		}
	}
	merged := MergeSegments(cleaned)
	if len(merged) == 0 {
		return Result{}, fmt.Errorf("captions empty after cleaning")
	}

	source := SourceYouTubeAuto
	if captionSource == "manual" {
		source = SourceYouTubeManual
	}
	return Result{Segments: merged, Source: source}, nil
}
