// Package pipeline orchestrates the processing of one job file: resolve
// the video reference, download, transcribe, analyze, render the note,
// and record the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"voxbox/internal/analysis"
	"voxbox/internal/ledger"
	"voxbox/internal/notes"
	"voxbox/internal/notify"
	"voxbox/internal/transcript"
	"voxbox/internal/videoref"
	"voxbox/internal/ytdlp"
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageResolve    Stage = "resolve"
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageAnalyze    Stage = "analyze"
	StageRender     Stage = "render"
	StageRecord     Stage = "record"
)

// StageError wraps a failure with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrAlreadyProcessed is returned when the ledger shows the job already
// completed successfully.
var ErrAlreadyProcessed = errors.New("job already processed")

// ErrLedgerUnavailable means the duplicate check could not be answered at
// all. Without it every job would re-run on each event, so watchers treat
// this as fatal rather than a per-job failure.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// Job is one unit of work from any source.
type Job struct {
	// Identifier is the stable ledger key: "local:<abs-path>" or
	// "dropbox:<account-id>:<file-id>".
	Identifier   string
	Filename     string
	Content      string
	AccountID    string
	AccountEmail string
}

// Outcome describes a successful run.
type Outcome struct {
	VideoID          string
	NoteTitle        string
	OutputFolder     string
	TranscriptSource transcript.Source
}

// Collaborator boundaries, satisfied by the concrete services and by
// fakes in tests.
type (
	Downloader interface {
		Download(ctx context.Context, url, videoID string) (*ytdlp.Asset, error)
		Cleanup(videoID string)
	}
	Transcriber interface {
		Acquire(ctx context.Context, captionPath, captionSource, audioPath string) (transcript.Result, error)
	}
	Analyzer interface {
		Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
	}
	TagSource interface {
		AvailableTags() ([]string, error)
	}
	Renderer interface {
		CreateNote(in notes.Input) (*notes.Output, error)
	}
	Notifier interface {
		Enabled() bool
		Send(ctx context.Context, message string)
	}
	Ledger interface {
		IsProcessed(jobID string) (bool, error)
		MarkProcessed(rec ledger.Record) error
	}
)

const timestampInterval = 60

// Processor runs jobs through every stage.
type Processor struct {
	downloader  Downloader
	transcriber Transcriber
	analyzer    Analyzer
	tagSource   TagSource
	renderer    Renderer
	notifier    Notifier
	ledger      Ledger
	logger      *slog.Logger
}

func NewProcessor(
	downloader Downloader,
	transcriber Transcriber,
	analyzer Analyzer,
	tagSource TagSource,
	renderer Renderer,
	notifier Notifier,
	store Ledger,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		downloader:  downloader,
		transcriber: transcriber,
		analyzer:    analyzer,
		tagSource:   tagSource,
		renderer:    renderer,
		notifier:    notifier,
		ledger:      store,
		logger:      logger,
	}
}

// IsJobFile reports whether path looks like a job file.
func IsJobFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".txt")
}

// Process runs one job end to end. Failures are written to the ledger as
// retryable error rows and notified; ErrAlreadyProcessed short-circuits
// without side effects.
func (p *Processor) Process(ctx context.Context, job Job) (*Outcome, error) {
	logger := p.logger.With(slog.String("job", job.Identifier))

	done, err := p.ledger.IsProcessed(job.Identifier)
	if err != nil {
		return nil, &StageError{Stage: StageRecord, Err: fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)}
	}
	if done {
		logger.Info("skipping already-processed job")
		return nil, ErrAlreadyProcessed
	}

	outcome, ref, stageErr := p.run(ctx, job, logger)
	if stageErr != nil {
		p.recordFailure(ctx, job, ref, stageErr, logger)
		return nil, stageErr
	}
	return outcome, nil
}

func (p *Processor) run(ctx context.Context, job Job, logger *slog.Logger) (*Outcome, videoref.Reference, *StageError) {
	ref, err := videoref.Resolve(job.Content)
	if err != nil {
		return nil, ref, &StageError{Stage: StageResolve, Err: err}
	}
	logger = logger.With(slog.String("video_id", ref.VideoID))
	logger.Info("processing video", slog.String("url", ref.URL))

	asset, err := p.downloader.Download(ctx, ref.URL, ref.VideoID)
	if err != nil {
		return nil, ref, &StageError{Stage: StageDownload, Err: err}
	}
	defer p.downloader.Cleanup(ref.VideoID)

	trans, err := p.transcriber.Acquire(ctx, asset.CaptionPath, asset.CaptionSource, asset.AudioPath)
	if err != nil {
		return nil, ref, &StageError{Stage: StageTranscribe, Err: err}
	}
	logger.Info("transcript acquired",
		slog.String("source", string(trans.Source)),
		slog.Int("segments", len(trans.Segments)))

	allowedTags, err := p.tagSource.AvailableTags()
	if err != nil {
		return nil, ref, &StageError{Stage: StageAnalyze, Err: err}
	}
	result, err := p.analyzer.Analyze(ctx, analysis.Request{
		Transcript:      trans.FullText(),
		VideoTitle:      asset.Title,
		Channel:         asset.Channel,
		DurationSeconds: asset.Duration,
		AllowedTags:     allowedTags,
	})
	if err != nil {
		return nil, ref, &StageError{Stage: StageAnalyze, Err: err}
	}

	rendered, err := p.renderer.CreateNote(notes.Input{
		VideoID:          ref.VideoID,
		URL:              ref.URL,
		Channel:          asset.Channel,
		Duration:         asset.Duration,
		UploadDate:       asset.UploadDate,
		Analysis:         result,
		Transcript:       trans.FormatWithTimestamps(timestampInterval),
		TranscriptSource: string(trans.Source),
		AudioPath:        asset.AudioPath,
	})
	if err != nil {
		return nil, ref, &StageError{Stage: StageRender, Err: err}
	}

	if err := p.ledger.MarkProcessed(ledger.Record{
		JobID:       job.Identifier,
		Hash:        ref.VideoID,
		AccountID:   job.AccountID,
		ProcessedAt: time.Now().UTC(),
		Status:      ledger.StatusSuccess,
		OutputPath:  rendered.Folder,
	}); err != nil {
		// Without a success row the job would repeat forever, so the
		// artifact stands but the run still fails.
		return nil, ref, &StageError{Stage: StageRecord, Err: err}
	}

	if p.notifier.Enabled() {
		p.notifier.Send(ctx, notify.SuccessMessage(notify.SuccessDetails{
			Title:            result.Title,
			Channel:          asset.Channel,
			Duration:         asset.Duration,
			Tags:             result.Tags,
			TranscriptSource: string(trans.Source),
			OutputFolder:     rendered.Folder,
			Summary:          result.Summary,
			AccountEmail:     job.AccountEmail,
		}))
	}

	logger.Info("job complete", slog.String("output", rendered.Folder))
	return &Outcome{
		VideoID:          ref.VideoID,
		NoteTitle:        result.Title,
		OutputFolder:     rendered.Folder,
		TranscriptSource: trans.Source,
	}, ref, nil
}

func (p *Processor) recordFailure(ctx context.Context, job Job, ref videoref.Reference, stageErr *StageError, logger *slog.Logger) {
	logger.Error("job failed",
		slog.String("stage", string(stageErr.Stage)),
		slog.Any("error", stageErr.Err))

	if err := p.ledger.MarkProcessed(ledger.Record{
		JobID:        job.Identifier,
		AccountID:    job.AccountID,
		ProcessedAt:  time.Now().UTC(),
		Status:       ledger.StatusError,
		ErrorMessage: stageErr.Error(),
	}); err != nil {
		logger.Error("failed to record job failure", slog.Any("error", err))
	}

	if p.notifier.Enabled() {
		p.notifier.Send(ctx, notify.ErrorMessage(notify.ErrorDetails{
			VideoID:      ref.VideoID,
			URL:          ref.URL,
			Message:      stageErr.Error(),
			AccountEmail: job.AccountEmail,
		}))
	}
}
