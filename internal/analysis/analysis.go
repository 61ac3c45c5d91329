// Package analysis turns transcripts into structured notes material using
// an LLM, with retries and tolerant repair of the model's JSON output.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrExhausted indicates every analysis attempt failed.
var ErrExhausted = errors.New("analysis attempts exhausted")

const (
	maxPromptTranscriptChars = 15000

	fallbackTitle    = "Untitled Video"
	fallbackSummary  = "No summary available."
	fallbackTakeaway = "No key takeaways extracted."
	uncategorizedTag = "uncategorized"
)

// Tag is one classification assigned to a video. Exactly one tag in a
// result is Primary.
type Tag struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
	Primary    bool   `json:"primary"`
}

// Result is the structured outcome of analyzing one transcript.
type Result struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	KeyTakeaways []string `json:"key_takeaways"`
	Tags         []Tag    `json:"tags"`
	Topics       []string `json:"topics"`
}

// Request carries everything the engine needs for one analysis.
type Request struct {
	Transcript      string
	VideoTitle      string
	Channel         string
	DurationSeconds int
	AllowedTags     []string
}

// Summarizer is the LLM boundary: one prompt in, raw model text out.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Engine drives analysis with exponential-backoff retries.
type Engine struct {
	summarizer  Summarizer
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
}

func NewEngine(summarizer Summarizer, maxAttempts int, baseDelay time.Duration, logger *slog.Logger) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Engine{
		summarizer:  summarizer,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepContext,
		logger:      logger,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Analyze prompts the model and repairs whatever comes back. Model calls
// are retried with doubling delays; a successful call with an empty body
// still yields a fully-defaulted result rather than an error.
func (e *Engine) Analyze(ctx context.Context, req Request) (Result, error) {
	prompt := buildPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.baseDelay << (attempt - 2)
			e.logger.Warn("retrying analysis",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", lastErr))
			if err := e.sleep(ctx, delay); err != nil {
				return Result{}, err
			}
		}

		raw, err := e.summarizer.Summarize(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		return repair(raw, req.VideoTitle), nil
	}
	return Result{}, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, e.maxAttempts, lastErr)
}

func buildPrompt(req Request) string {
	transcript := req.Transcript
	if len(transcript) > maxPromptTranscriptChars {
		transcript = transcript[:maxPromptTranscriptChars]
	}

	var b strings.Builder
	b.WriteString("Analyze this video transcript and respond with JSON only, no prose.\n\n")
	fmt.Fprintf(&b, "Video title: %s\n", req.VideoTitle)
	fmt.Fprintf(&b, "Channel: %s\n", req.Channel)
	fmt.Fprintf(&b, "Duration: %s\n\n", humanDuration(req.DurationSeconds))
	b.WriteString("Respond with a JSON object with these fields:\n")
	b.WriteString(`  "title": a cleaned-up title for the video` + "\n")
	b.WriteString(`  "summary": 2-4 sentence summary` + "\n")
	b.WriteString(`  "key_takeaways": array of 3-7 concise takeaways` + "\n")
	b.WriteString(`  "tags": array of {"name","confidence","primary"} objects; confidence 0-100; exactly one primary` + "\n")
	b.WriteString(`  "topics": array of short topic strings` + "\n\n")
	fmt.Fprintf(&b, "Choose tag names only from this list: %s\n\n", strings.Join(req.AllowedTags, ", "))
	b.WriteString("Transcript:\n")
	b.WriteString(transcript)
	return b.String()
}

func humanDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
