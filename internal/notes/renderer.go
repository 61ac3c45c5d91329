// Package notes renders the final Obsidian-compatible artifact folder: a
// markdown note with YAML frontmatter plus the video's audio file.
package notes

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"voxbox/internal/analysis"
)

// Input carries everything needed to render one note.
type Input struct {
	VideoID          string
	URL              string
	Channel          string
	Duration         int
	UploadDate       string
	Analysis         analysis.Result
	Transcript       string
	TranscriptSource string
	AudioPath        string
}

// Output describes the rendered artifact.
type Output struct {
	Folder    string
	NotePath  string
	AudioName string
}

// Renderer writes artifact folders under the outbox.
type Renderer struct {
	outboxDir string
	now       func() time.Time
}

func NewRenderer(outboxDir string) *Renderer {
	return &Renderer{outboxDir: outboxDir, now: time.Now}
}

// CreateNote renders the markdown note and copies the audio alongside it.
// The folder is named "YYYY-MM-DD_Sanitized_Title"; name collisions get a
// numeric suffix.
func (r *Renderer) CreateNote(in Input) (*Output, error) {
	title := strings.TrimSpace(in.Analysis.Title)
	if title == "" {
		title = "Untitled Video"
	}
	folder, err := r.reserveFolder(title)
	if err != nil {
		return nil, err
	}

	audioName := ""
	if in.AudioPath != "" {
		audioName = sanitizeName(title) + ".mp3"
		if err := copyFile(in.AudioPath, filepath.Join(folder, audioName)); err != nil {
			os.RemoveAll(folder)
			return nil, fmt.Errorf("copy audio: %w", err)
		}
	}

	notePath := filepath.Join(folder, sanitizeName(title)+".md")
	content := r.renderMarkdown(in, title, audioName)
	if err := os.WriteFile(notePath, []byte(content), 0o644); err != nil {
		os.RemoveAll(folder)
		return nil, fmt.Errorf("write note: %w", err)
	}

	return &Output{Folder: folder, NotePath: notePath, AudioName: audioName}, nil
}

// reserveFolder creates the dated folder, trying "_2".."_100" on
// collision and finally a unix-timestamp suffix.
func (r *Renderer) reserveFolder(title string) (string, error) {
	base := r.now().Format("2006-01-02") + "_" + sanitizeName(title)
	candidate := filepath.Join(r.outboxDir, base)
	for i := 2; ; i++ {
		err := os.MkdirAll(filepath.Dir(candidate), 0o755)
		if err != nil {
			return "", fmt.Errorf("create outbox: %w", err)
		}
		err = os.Mkdir(candidate, 0o755)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create artifact folder: %w", err)
		}
		if i > 100 {
			candidate = filepath.Join(r.outboxDir, fmt.Sprintf("%s_%d", base, r.now().Unix()))
			continue
		}
		candidate = filepath.Join(r.outboxDir, fmt.Sprintf("%s_%d", base, i))
	}
}

func (r *Renderer) renderMarkdown(in Input, title, audioName string) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %s\n", yamlEscape(title))
	fmt.Fprintf(&b, "video_id: %s\n", in.VideoID)
	fmt.Fprintf(&b, "url: %s\n", in.URL)
	if in.Channel != "" {
		fmt.Fprintf(&b, "channel: %s\n", yamlEscape(in.Channel))
	}
	if in.Duration > 0 {
		fmt.Fprintf(&b, "duration: %s\n", formatDuration(in.Duration))
	}
	if in.UploadDate != "" {
		fmt.Fprintf(&b, "upload_date: %s\n", in.UploadDate)
	}
	fmt.Fprintf(&b, "processed: %s\n", r.now().Format(time.RFC3339))
	if in.TranscriptSource != "" {
		fmt.Fprintf(&b, "transcript_source: %s\n", in.TranscriptSource)
	}
	b.WriteString("tags:\n")
	for _, tag := range in.Analysis.Tags {
		fmt.Fprintf(&b, "  - %s\n", tag.Name)
	}
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## AI Summary\n\n")
	b.WriteString(in.Analysis.Summary)
	b.WriteString("\n\n")

	b.WriteString("## Key Takeaways\n\n")
	for _, takeaway := range in.Analysis.KeyTakeaways {
		fmt.Fprintf(&b, "- %s\n", takeaway)
	}
	b.WriteString("\n")

	if len(in.Analysis.Topics) > 0 {
		b.WriteString("## Topics\n\n")
		for _, topic := range in.Analysis.Topics {
			fmt.Fprintf(&b, "- %s\n", topic)
		}
		b.WriteString("\n")
	}

	if audioName != "" {
		b.WriteString("## Audio\n\n")
		fmt.Fprintf(&b, "![[%s]]\n\n", audioName)
	}

	b.WriteString("## Transcript\n")
	b.WriteString(in.Transcript)
	b.WriteString("\n")

	return b.String()
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// sanitizeName makes a title filesystem-safe: NFC-normalized, runs of
// unsafe characters collapsed to single underscores, length capped on a
// rune boundary.
func sanitizeName(title string) string {
	name := norm.NFC.String(title)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._-")
	if name == "" {
		name = "Untitled"
	}
	for len(name) > 80 {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return strings.Trim(name, "._-")
}

func yamlEscape(value string) string {
	if strings.ContainsAny(value, ":#\"'{}[]") {
		return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	return value
}

func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
