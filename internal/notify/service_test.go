package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxbox/internal/analysis"
)

type recordingProvider struct {
	name     string
	err      error
	messages []string
}

func (p *recordingProvider) Name() string { return p.name }
func (p *recordingProvider) Send(_ context.Context, message string) error {
	p.messages = append(p.messages, message)
	return p.err
}

func TestManagerFansOutAndSwallowsFailures(t *testing.T) {
	good := &recordingProvider{name: "good"}
	bad := &recordingProvider{name: "bad", err: errors.New("down")}
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), bad, good)

	m.Send(context.Background(), "hello")

	assert.Equal(t, []string{"hello"}, good.messages)
	assert.Equal(t, []string{"hello"}, bad.messages)
}

func TestTelegramSend(t *testing.T) {
	var got map[string]string
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tg := NewTelegram("bot-token", "chat-1")
	tg.baseURL = server.URL

	require.NoError(t, tg.Send(context.Background(), "ping"))
	assert.Equal(t, "/botbot-token/sendMessage", path)
	assert.Equal(t, "chat-1", got["chat_id"])
	assert.Equal(t, "ping", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestTelegramSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusForbidden)
	}))
	defer server.Close()

	tg := NewTelegram("t", "c")
	tg.baseURL = server.URL
	err := tg.Send(context.Background(), "ping")
	assert.ErrorContains(t, err, "status 403")
}

func TestEmailSendHeaders(t *testing.T) {
	e := NewEmail("smtp.example.com", 587, "user", "pass", "vox@example.com", "me@example.com")
	var gotAddr, gotMsg string
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = string(msg)
		assert.Equal(t, "vox@example.com", from)
		assert.Equal(t, []string{"me@example.com"}, to)
		return nil
	}

	require.NoError(t, e.Send(context.Background(), "Video processed\n\nTitle: T\n"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, gotMsg, "Subject: Video processed\r\n")
	assert.Contains(t, gotMsg, "Title: T")
}

func TestEmailSendEncodesNonASCIISubject(t *testing.T) {
	e := NewEmail("smtp.example.com", 587, "user", "pass", "vox@example.com", "me@example.com")
	var gotMsg string
	e.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	require.NoError(t, e.Send(context.Background(), "✅ Video processed\n\nTitle: T\n"))
	subjectLine := ""
	for _, line := range strings.Split(gotMsg, "\r\n") {
		if strings.HasPrefix(line, "Subject: ") {
			subjectLine = line
		}
	}
	require.NotEmpty(t, subjectLine)
	assert.True(t, strings.HasPrefix(subjectLine, "Subject: =?utf-8?q?"), subjectLine)
	for _, r := range subjectLine {
		assert.Less(t, r, rune(128), "header must be pure ASCII")
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(strings.TrimPrefix(subjectLine, "Subject: "))
	require.NoError(t, err)
	assert.Equal(t, "✅ Video processed", decoded)
}

func TestSuccessMessageContent(t *testing.T) {
	msg := SuccessMessage(SuccessDetails{
		Title:            "T",
		Channel:          "C",
		Duration:         3723,
		Tags:             []analysis.Tag{{Name: "tech", Primary: true}, {Name: "science"}},
		TranscriptSource: "whisper",
		OutputFolder:     "/outbox/2026-08-30_T",
		Summary:          strings.Repeat("s", 400),
		AccountEmail:     "me@example.com",
	})
	assert.Contains(t, msg, "Duration: 1:02:03")
	assert.Contains(t, msg, "⭐ tech, science")
	assert.Contains(t, msg, "Account: me@example.com")
	assert.Contains(t, msg, strings.Repeat("s", 300)+"…")
	assert.NotContains(t, msg, strings.Repeat("s", 301))
}

func TestErrorMessageContent(t *testing.T) {
	msg := ErrorMessage(ErrorDetails{
		VideoID: "dQw4w9WgXcQ",
		URL:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Message: "download failed",
	})
	assert.Contains(t, msg, "processing failed")
	assert.Contains(t, msg, "Video: dQw4w9WgXcQ")
	assert.Contains(t, msg, "Error: download failed")
	assert.NotContains(t, msg, "Account:")
}
