// Package transcript acquires and normalizes video transcripts, preferring
// downloaded captions and falling back to local speech recognition.
package transcript

import (
	"fmt"
	"regexp"
	"strings"
)

// Source identifies where a transcript came from.
type Source string

const (
	SourceYouTubeManual Source = "youtube_manual"
	SourceYouTubeAuto   Source = "youtube_auto"
	SourceWhisper       Source = "whisper"
)

// Segment is one timed span of speech. Start and End are seconds from the
// beginning of the video.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is a normalized transcript.
type Result struct {
	Segments []Segment
	Source   Source
	Language string
}

// FullText joins all segment text with single spaces.
func (r Result) FullText() string {
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

// FormatWithTimestamps renders the transcript as flowing text with a
// timestamp marker inserted at most once per interval. Markers look like
// "(MM:SS)" on their own line, or "(HH:MM:SS)" past the hour mark.
func (r Result) FormatWithTimestamps(intervalSeconds int) string {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	last := float64(-intervalSeconds)
	var parts []string
	for _, seg := range r.Segments {
		if seg.Text == "" {
			continue
		}
		if seg.Start-last >= float64(intervalSeconds) {
			parts = append(parts, "\n"+formatTimestamp(seg.Start))
			last = seg.Start
		}
		parts = append(parts, seg.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("(%d:%02d:%02d)", h, m, s)
	}
	return fmt.Sprintf("(%02d:%02d)", m, s)
}

var (
	markupTags  = regexp.MustCompile(`<[^>]+>`)
	bracketed   = regexp.MustCompile(`\[[^\]]*\]`)
	parenized   = regexp.MustCompile(`\([^)]*\)`)
	extraSpaces = regexp.MustCompile(`\s+`)
)

// CleanCaptionText strips caption markup and sound annotations: inline
// tags like <c> and <00:00:01.000>, and bracketed or parenthesized cues
// such as [Music] or (applause).
func CleanCaptionText(text string) string {
	text = markupTags.ReplaceAllString(text, "")
	text = bracketed.ReplaceAllString(text, "")
	text = parenized.ReplaceAllString(text, "")
	return strings.TrimSpace(extraSpaces.ReplaceAllString(text, " "))
}

// MergeSegments removes the duplication typical of auto-generated
// captions, where consecutive cues repeat or extend each other. Exact
// repeats (case-insensitive) are dropped, a cue fully contained in the
// previous kept cue is dropped, and a cue that extends the previous kept
// cue replaces it.
func MergeSegments(segments []Segment) []Segment {
	seen := make(map[string]struct{}, len(segments))
	var merged []Segment
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		if len(merged) > 0 {
			prev := strings.ToLower(strings.TrimSpace(merged[len(merged)-1].Text))
			if strings.Contains(prev, key) {
				continue
			}
			if strings.Contains(key, prev) {
				delete(seen, prev)
				merged = merged[:len(merged)-1]
			}
		}
		seen[key] = struct{}{}
		seg.Text = text
		merged = append(merged, seg)
	}
	return merged
}
