// Package whisper runs a local Whisper-compatible CLI to transcribe audio
// when no captions are available.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"voxbox/internal/transcript"
)

// commandRunner abstracts exec for tests.
type commandRunner func(ctx context.Context, name string, args ...string) error

// Service wraps a whisper CLI such as whisper-ctranslate2. The CLI is
// expected to support --output_format json and write one JSON file next to
// the requested output directory.
type Service struct {
	binary string
	model  string
	logger *slog.Logger
	run    commandRunner
}

func NewService(binary, model string, logger *slog.Logger) *Service {
	return &Service{
		binary: binary,
		model:  model,
		logger: logger,
		run: func(ctx context.Context, name string, args ...string) error {
			cmd := exec.CommandContext(ctx, name, args...)
			out, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
			}
			return nil
		},
	}
}

// Available reports whether the configured binary can be found.
func (s *Service) Available() bool {
	_, err := exec.LookPath(s.binary)
	return err == nil
}

// Transcribe runs the CLI against audioPath and parses its JSON output.
func (s *Service) Transcribe(ctx context.Context, audioPath string) (transcript.Result, error) {
	outDir, err := os.MkdirTemp("", "voxbox-whisper-")
	if err != nil {
		return transcript.Result{}, fmt.Errorf("create whisper output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	s.logger.Info("transcribing audio",
		slog.String("binary", s.binary),
		slog.String("model", s.model),
		slog.String("audio", filepath.Base(audioPath)))

	args := []string{
		audioPath,
		"--model", s.model,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if err := s.run(ctx, s.binary, args...); err != nil {
		return transcript.Result{}, fmt.Errorf("run whisper: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return parseOutput(filepath.Join(outDir, base+".json"))
}

type whisperOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func parseOutput(path string) (transcript.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return transcript.Result{}, fmt.Errorf("read whisper output: %w", err)
	}
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return transcript.Result{}, fmt.Errorf("parse whisper output: %w", err)
	}
	if len(out.Segments) == 0 {
		return transcript.Result{}, fmt.Errorf("whisper produced no segments")
	}

	segments := make([]transcript.Segment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{Start: seg.Start, End: seg.End, Text: text})
	}
	return transcript.Result{
		Segments: segments,
		Source:   transcript.SourceWhisper,
		Language: out.Language,
	}, nil
}
