package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxbox/internal/analysis"
	"voxbox/internal/ledger"
	"voxbox/internal/notes"
	"voxbox/internal/notify"
	"voxbox/internal/tags"
	"voxbox/internal/transcript"
	"voxbox/internal/ytdlp"
)

type fakeDownloader struct {
	asset    *ytdlp.Asset
	err      error
	cleaned  []string
	download int
}

func (f *fakeDownloader) Download(_ context.Context, _, videoID string) (*ytdlp.Asset, error) {
	f.download++
	if f.err != nil {
		return nil, f.err
	}
	asset := *f.asset
	asset.VideoID = videoID
	return &asset, nil
}

func (f *fakeDownloader) Cleanup(videoID string) { f.cleaned = append(f.cleaned, videoID) }

type fakeTranscriber struct {
	result transcript.Result
	err    error
}

func (f *fakeTranscriber) Acquire(_ context.Context, _, _, _ string) (transcript.Result, error) {
	return f.result, f.err
}

type fakeAnalyzer struct {
	result  analysis.Result
	err     error
	lastReq analysis.Request
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (analysis.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Enabled() bool { return true }
func (n *recordingNotifier) Send(_ context.Context, message string) {
	n.messages = append(n.messages, message)
}

type env struct {
	processor  *Processor
	downloader *fakeDownloader
	analyzer   *fakeAnalyzer
	notifier   *recordingNotifier
	store      *ledger.Store
	outbox     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	outbox := filepath.Join(dir, "Outbox")

	store, err := ledger.Open(filepath.Join(dir, "processed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	audio := filepath.Join(dir, "dQw4w9WgXcQ.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("audio"), 0o644))

	downloader := &fakeDownloader{asset: &ytdlp.Asset{
		Title:         "Original Title",
		Channel:       "Chan",
		Duration:      212,
		UploadDate:    "20091025",
		AudioPath:     audio,
		CaptionPath:   "caps.en.vtt",
		CaptionSource: "manual",
	}}
	transcriber := &fakeTranscriber{result: transcript.Result{
		Segments: []transcript.Segment{{Start: 0, End: 2, Text: "hello world"}},
		Source:   transcript.SourceYouTubeManual,
	}}
	analyzer := &fakeAnalyzer{result: analysis.Result{
		Title:        "Clean Title",
		Summary:      "Summary.",
		KeyTakeaways: []string{"a"},
		Tags:         []analysis.Tag{{Name: "music", Confidence: 90, Primary: true}},
		Topics:       []string{},
	}}
	notifier := &recordingNotifier{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	processor := NewProcessor(
		downloader,
		transcriber,
		analyzer,
		tags.NewManager(filepath.Join(dir, "tags.txt"), outbox),
		notes.NewRenderer(outbox),
		notifier,
		store,
		logger,
	)
	return &env{
		processor:  processor,
		downloader: downloader,
		analyzer:   analyzer,
		notifier:   notifier,
		store:      store,
		outbox:     outbox,
	}
}

func job() Job {
	return Job{
		Identifier: "local:/inbox/video.txt",
		Filename:   "video.txt",
		Content:    "https://youtu.be/dQw4w9WgXcQ\n",
	}
}

func TestProcessEndToEnd(t *testing.T) {
	e := newEnv(t)

	outcome, err := e.processor.Process(context.Background(), job())
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", outcome.VideoID)
	assert.Equal(t, transcript.SourceYouTubeManual, outcome.TranscriptSource)

	// Artifact folder holds the note and the copied audio.
	note, err := os.ReadFile(outcome.OutputFolder + "/Clean_Title.md")
	require.NoError(t, err)
	assert.Contains(t, string(note), "# Clean Title")
	_, err = os.Stat(outcome.OutputFolder + "/Clean_Title.mp3")
	require.NoError(t, err)

	// Ledger has exactly one success row.
	rec, err := e.store.Get("local:/inbox/video.txt")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ledger.StatusSuccess, rec.Status)
	assert.Equal(t, outcome.OutputFolder, rec.OutputPath)
	assert.Equal(t, "dQw4w9WgXcQ", rec.Hash, "video id recorded with the success row")

	// Success was notified and temp files cleaned.
	require.Len(t, e.notifier.messages, 1)
	assert.Contains(t, e.notifier.messages[0], "Clean Title")
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, e.downloader.cleaned)

	// Analysis saw the allowed vocabulary.
	assert.Contains(t, e.analyzer.lastReq.AllowedTags, tags.Uncategorized)
}

func TestProcessSecondRunIsNoOp(t *testing.T) {
	e := newEnv(t)

	_, err := e.processor.Process(context.Background(), job())
	require.NoError(t, err)

	_, err = e.processor.Process(context.Background(), job())
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, 1, e.downloader.download, "no re-download")
	assert.Len(t, e.notifier.messages, 1, "no duplicate notification")

	records, err := e.store.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestProcessDownloadFailureRecordsErrorAndNotifies(t *testing.T) {
	e := newEnv(t)
	e.downloader.err = errors.New("network down")

	_, err := e.processor.Process(context.Background(), job())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDownload, stageErr.Stage)

	rec, err := e.store.Get("local:/inbox/video.txt")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ledger.StatusError, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "network down")

	require.Len(t, e.notifier.messages, 1)
	assert.Contains(t, e.notifier.messages[0], "failed")

	// Failed jobs remain retryable.
	done, err := e.store.IsProcessed("local:/inbox/video.txt")
	require.NoError(t, err)
	assert.False(t, done)
}

type failingLedger struct{ err error }

func (f *failingLedger) IsProcessed(string) (bool, error)  { return false, f.err }
func (f *failingLedger) MarkProcessed(ledger.Record) error { return f.err }

func TestProcessLedgerUnavailable(t *testing.T) {
	e := newEnv(t)
	e.processor.ledger = &failingLedger{err: errors.New("database is locked")}

	_, err := e.processor.Process(context.Background(), job())
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageRecord, stageErr.Stage)
	assert.Equal(t, 0, e.downloader.download, "no work without a duplicate check")
	assert.Empty(t, e.notifier.messages)
}

func TestProcessUnresolvableContent(t *testing.T) {
	e := newEnv(t)
	j := job()
	j.Content = "# only comments\n"

	_, err := e.processor.Process(context.Background(), j)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageResolve, stageErr.Stage)
	assert.Equal(t, 0, e.downloader.download)
}

func TestProcessAnalyzeFailureCleansTempFiles(t *testing.T) {
	e := newEnv(t)
	e.analyzer.err = analysis.ErrExhausted

	_, err := e.processor.Process(context.Background(), job())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageAnalyze, stageErr.Stage)
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, e.downloader.cleaned)
}

func TestIsJobFile(t *testing.T) {
	assert.True(t, IsJobFile("/inbox/a.txt"))
	assert.True(t, IsJobFile("/inbox/a.TXT"))
	assert.False(t, IsJobFile("/inbox/a.md"))
	assert.False(t, IsJobFile("/inbox/txt"))
}

var _ Notifier = (*notify.Manager)(nil)
