package notes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxbox/internal/analysis"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 30, 15, 4, 5, 0, time.UTC)
}

func sampleInput(t *testing.T) Input {
	t.Helper()
	audio := filepath.Join(t.TempDir(), "dQw4w9WgXcQ.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("mp3-bytes"), 0o644))
	return Input{
		VideoID:    "dQw4w9WgXcQ",
		URL:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Channel:    "Rick",
		Duration:   212,
		UploadDate: "20091025",
		Analysis: analysis.Result{
			Title:        "Never Gonna Give You Up: A Study",
			Summary:      "A summary.",
			KeyTakeaways: []string{"one", "two"},
			Tags: []analysis.Tag{
				{Name: "music", Confidence: 95, Primary: true},
				{Name: "entertainment", Confidence: 60},
			},
			Topics: []string{"rickrolling"},
		},
		Transcript:       "\n(00:00) never gonna give you up",
		TranscriptSource: "youtube_manual",
		AudioPath:        audio,
	}
}

func TestCreateNoteLayout(t *testing.T) {
	outbox := t.TempDir()
	r := NewRenderer(outbox)
	r.now = fixedClock

	out, err := r.CreateNote(sampleInput(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outbox, "2026-08-30_Never_Gonna_Give_You_Up_A_Study"), out.Folder)

	data, err := os.ReadFile(out.NotePath)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `title: "Never Gonna Give You Up: A Study"`)
	assert.Contains(t, content, "video_id: dQw4w9WgXcQ")
	assert.Contains(t, content, "duration: 3:32")
	assert.Contains(t, content, "transcript_source: youtube_manual")
	assert.Contains(t, content, "  - music\n  - entertainment\n")
	assert.Contains(t, content, "## AI Summary")
	assert.Contains(t, content, "- one\n- two\n")
	assert.Contains(t, content, "![[Never_Gonna_Give_You_Up_A_Study.mp3]]")
	assert.Contains(t, content, "(00:00) never gonna give you up")

	copied, err := os.ReadFile(filepath.Join(out.Folder, out.AudioName))
	require.NoError(t, err)
	assert.Equal(t, "mp3-bytes", string(copied))
}

func TestCreateNoteCollisionSuffix(t *testing.T) {
	outbox := t.TempDir()
	r := NewRenderer(outbox)
	r.now = fixedClock

	in := sampleInput(t)
	first, err := r.CreateNote(in)
	require.NoError(t, err)
	second, err := r.CreateNote(in)
	require.NoError(t, err)

	assert.NotEqual(t, first.Folder, second.Folder)
	assert.Equal(t, first.Folder+"_2", second.Folder)
}

func TestCreateNoteWithoutAudio(t *testing.T) {
	r := NewRenderer(t.TempDir())
	r.now = fixedClock

	in := sampleInput(t)
	in.AudioPath = ""
	out, err := r.CreateNote(in)
	require.NoError(t, err)
	assert.Empty(t, out.AudioName)

	data, err := os.ReadFile(out.NotePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "![[")
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Hello_World", sanitizeName("Hello, World!"))
	assert.Equal(t, "Untitled", sanitizeName("???"))
	assert.LessOrEqual(t, len(sanitizeName(strings.Repeat("a b", 60))), 80)
}

func TestSanitizeNameKeepsUnicodeLetters(t *testing.T) {
	assert.Equal(t, "Café_Métodos", sanitizeName("Café: Métodos"))
	assert.Equal(t, "日本語のタイトル", sanitizeName("日本語のタイトル"))
}

func TestSanitizeNameTruncatesOnRuneBoundary(t *testing.T) {
	// 79 ASCII bytes followed by a two-byte rune: a byte-offset cut at
	// 80 would split the rune.
	name := sanitizeName(strings.Repeat("a", 79) + "é")
	assert.LessOrEqual(t, len(name), 80)
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, strings.Repeat("a", 79), name)
}
