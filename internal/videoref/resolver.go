// Package videoref resolves free-form job text into a canonical YouTube
// watch URL and its 11-character video identifier.
package videoref

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoReference indicates no recognizable video reference was found.
var ErrNoReference = errors.New("no video reference found")

// Reference is a resolved video reference. URL is always the canonical
// watch-URL form so downstream keying is insensitive to the input variant.
type Reference struct {
	VideoID string
	URL     string
}

var patterns = []*regexp.Regexp{
	// Standard watch URLs: youtube.com/watch?v=VIDEO_ID
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
	// Short URLs: youtu.be/VIDEO_ID
	regexp.MustCompile(`(?:https?://)?youtu\.be/([a-zA-Z0-9_-]{11})`),
	// Embed URLs: youtube.com/embed/VIDEO_ID
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	// Shorts URLs: youtube.com/shorts/VIDEO_ID
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	// Live URLs: youtube.com/live/VIDEO_ID
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/live/([a-zA-Z0-9_-]{11})`),
	// Mobile URLs: m.youtube.com/watch?v=VIDEO_ID
	regexp.MustCompile(`(?:https?://)?m\.youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
}

var embeddedURL = regexp.MustCompile(`https?://\S+`)

// ExtractVideoID extracts the video identifier from any supported URL form.
func ExtractVideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(raw); match != nil {
			return match[1], true
		}
	}

	// Last resort: a youtube host with a v query parameter of the right length.
	if parsed, err := url.Parse(raw); err == nil {
		host := parsed.Hostname()
		if strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be") {
			if id := parsed.Query().Get("v"); len(id) == 11 {
				return id, true
			}
		}
	}
	return "", false
}

// Canonical returns the canonical watch URL for a video identifier.
func Canonical(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Resolve scans job file content and returns the first resolvable
// reference. Blank lines and lines starting with '#' are ignored; a line
// that does not match as a whole is retried against any embedded
// http(s) substring.
func Resolve(content string) (Reference, error) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if id, ok := ExtractVideoID(line); ok {
			return Reference{VideoID: id, URL: Canonical(id)}, nil
		}
		if embedded := embeddedURL.FindString(line); embedded != "" {
			if id, ok := ExtractVideoID(embedded); ok {
				return Reference{VideoID: id, URL: Canonical(id)}, nil
			}
		}
	}
	return Reference{}, ErrNoReference
}
