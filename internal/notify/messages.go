package notify

import (
	"fmt"
	"strings"

	"voxbox/internal/analysis"
)

// SuccessDetails is the material for a completion notification.
type SuccessDetails struct {
	Title            string
	Channel          string
	Duration         int
	Tags             []analysis.Tag
	TranscriptSource string
	OutputFolder     string
	Summary          string
	AccountEmail     string
}

// ErrorDetails is the material for a failure notification.
type ErrorDetails struct {
	VideoID      string
	URL          string
	Message      string
	AccountEmail string
}

const summaryExcerptLimit = 300

// SuccessMessage formats a processing-complete notification.
func SuccessMessage(d SuccessDetails) string {
	var b strings.Builder
	b.WriteString("✅ Video processed\n\n")
	fmt.Fprintf(&b, "Title: %s\n", d.Title)
	if d.Channel != "" {
		fmt.Fprintf(&b, "Channel: %s\n", d.Channel)
	}
	if d.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %s\n", clockDuration(d.Duration))
	}
	if len(d.Tags) > 0 {
		names := make([]string, 0, len(d.Tags))
		for _, tag := range d.Tags {
			name := tag.Name
			if tag.Primary {
				name = "⭐ " + name
			}
			names = append(names, name)
		}
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(names, ", "))
	}
	if d.TranscriptSource != "" {
		fmt.Fprintf(&b, "Transcript: %s\n", d.TranscriptSource)
	}
	if d.AccountEmail != "" {
		fmt.Fprintf(&b, "Account: %s\n", d.AccountEmail)
	}
	fmt.Fprintf(&b, "Output: %s\n", d.OutputFolder)
	if summary := strings.TrimSpace(d.Summary); summary != "" {
		if len(summary) > summaryExcerptLimit {
			summary = summary[:summaryExcerptLimit] + "…"
		}
		b.WriteString("\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}
	return b.String()
}

// ErrorMessage formats a processing-failed notification.
func ErrorMessage(d ErrorDetails) string {
	var b strings.Builder
	b.WriteString("❌ Video processing failed\n\n")
	if d.VideoID != "" {
		fmt.Fprintf(&b, "Video: %s\n", d.VideoID)
	}
	if d.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", d.URL)
	}
	if d.AccountEmail != "" {
		fmt.Fprintf(&b, "Account: %s\n", d.AccountEmail)
	}
	fmt.Fprintf(&b, "Error: %s\n", d.Message)
	return b.String()
}

func clockDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
