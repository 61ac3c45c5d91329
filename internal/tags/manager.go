// Package tags maintains the classification vocabulary offered to the
// analysis model: a user-editable tags.txt plus tags learned from notes
// already produced.
package tags

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Uncategorized is always a valid tag; repair falls back to it when the
// model returns nothing usable.
const Uncategorized = "uncategorized"

// DefaultTags seeds tags.txt on first run.
var DefaultTags = []string{
	"technology", "programming", "science", "mathematics", "engineering",
	"business", "finance", "productivity", "health", "fitness",
	"cooking", "travel", "history", "philosophy", "psychology",
	"music", "art", "education", "news", "entertainment",
}

var validTag = regexp.MustCompile(`^[a-z0-9_-]{2,30}$`)

var reserved = map[string]struct{}{
	"inbox": {}, "outbox": {}, "archive": {}, "logs": {},
}

// Manager reads and maintains the tag vocabulary.
type Manager struct {
	tagsFile  string
	outboxDir string
}

func NewManager(tagsFile, outboxDir string) *Manager {
	return &Manager{tagsFile: tagsFile, outboxDir: outboxDir}
}

// EnsureDefaults writes the default vocabulary if tags.txt does not exist.
func (m *Manager) EnsureDefaults() error {
	if _, err := os.Stat(m.tagsFile); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.tagsFile), 0o755); err != nil {
		return fmt.Errorf("create tags directory: %w", err)
	}
	var b strings.Builder
	b.WriteString("# One tag per line. Lowercase letters, digits, '-' and '_' only.\n")
	for _, tag := range DefaultTags {
		b.WriteString(tag)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(m.tagsFile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write default tags: %w", err)
	}
	return nil
}

// AvailableTags returns the sorted union of the tags.txt vocabulary, tags
// learned from existing note frontmatter, and the uncategorized fallback.
func (m *Manager) AvailableTags() ([]string, error) {
	set := map[string]struct{}{Uncategorized: {}}

	fileTags, err := m.readTagsFile()
	if err != nil {
		return nil, err
	}
	for _, tag := range fileTags {
		set[tag] = struct{}{}
	}
	for _, tag := range m.learnedTags() {
		set[tag] = struct{}{}
	}

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Valid reports whether name is an acceptable tag.
func Valid(name string) bool {
	if _, bad := reserved[name]; bad {
		return false
	}
	return validTag.MatchString(name)
}

func (m *Manager) readTagsFile() ([]string, error) {
	f, err := os.Open(m.tagsFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open tags file: %w", err)
	}
	defer f.Close()

	var tags []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if Valid(line) {
			tags = append(tags, line)
		}
	}
	return tags, scanner.Err()
}

// learnedTags scans note frontmatter in the outbox for tags added by hand
// or by earlier runs. Scanning is best-effort; unreadable notes are
// skipped.
func (m *Manager) learnedTags() []string {
	if m.outboxDir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(m.outboxDir, "*", "*.md"))
	if err != nil {
		return nil
	}
	var tags []string
	for _, path := range matches {
		tags = append(tags, frontmatterTags(path)...)
	}
	return tags
}

func frontmatterTags(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var (
		tags       []string
		inMatter   bool
		inTagsList bool
		lineNo     int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "---":
			if lineNo == 1 {
				inMatter = true
				continue
			}
			return tags
		case !inMatter:
			return nil
		case strings.HasPrefix(trimmed, "tags:"):
			inTagsList = true
		case inTagsList && strings.HasPrefix(trimmed, "- "):
			tag := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")))
			if Valid(tag) {
				tags = append(tags, tag)
			}
		case inTagsList:
			inTagsList = false
		}
	}
	return tags
}
