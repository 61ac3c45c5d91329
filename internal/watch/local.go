// Package watch feeds the pipeline from a local inbox directory using
// filesystem events.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"voxbox/internal/pipeline"
)

// JobProcessor runs one job; satisfied by pipeline.Processor.
type JobProcessor interface {
	Process(ctx context.Context, job pipeline.Job) (*pipeline.Outcome, error)
}

// LocalWatcher watches the inbox for new job files, debounces writes, and
// archives each file after a successful run. Jobs run one at a time on a
// single worker; the in-flight set only rejects duplicate events for a
// file that is already queued.
type LocalWatcher struct {
	inboxDir   string
	archiveDir string
	processor  JobProcessor
	debounce   time.Duration
	logger     *slog.Logger

	queue chan string
	fatal chan error

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewLocalWatcher(inboxDir, archiveDir string, processor JobProcessor, debounce time.Duration, logger *slog.Logger) *LocalWatcher {
	return &LocalWatcher{
		inboxDir:   inboxDir,
		archiveDir: archiveDir,
		processor:  processor,
		debounce:   debounce,
		logger:     logger,
		queue:      make(chan string, 256),
		fatal:      make(chan error, 1),
		inflight:   make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled or the ledger becomes unreadable;
// per-job failures stay in the inbox for retry, but an unanswerable
// duplicate check ends the run. Job files already present at startup are
// queued before event-driven handling begins.
func (w *LocalWatcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.inboxDir, w.archiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watch directory: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(w.inboxDir); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		w.worker(ctx)
	}()
	defer workers.Wait()

	w.logger.Info("watching inbox", slog.String("dir", w.inboxDir))
	w.drainExisting()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-w.fatal:
			return err
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
				w.enqueue(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			w.logger.Warn("filesystem watcher error", slog.Any("error", err))
		}
	}
}

func (w *LocalWatcher) drainExisting() {
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		w.logger.Warn("cannot scan inbox", slog.Any("error", err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.enqueue(filepath.Join(w.inboxDir, entry.Name()))
	}
}

func (w *LocalWatcher) enqueue(path string) {
	if !pipeline.IsJobFile(path) {
		return
	}
	w.mu.Lock()
	if _, busy := w.inflight[path]; busy {
		w.mu.Unlock()
		return
	}
	w.inflight[path] = struct{}{}
	w.mu.Unlock()

	select {
	case w.queue <- path:
	default:
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
		w.logger.Warn("job queue full, dropping event", slog.String("path", path))
	}
}

func (w *LocalWatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			err := w.handle(ctx, path)
			w.mu.Lock()
			delete(w.inflight, path)
			w.mu.Unlock()
			if err != nil {
				select {
				case w.fatal <- err:
				default:
				}
				return
			}
		}
	}
}

// handle waits out the debounce window so the writer finishes, then runs
// the job and archives the file on success. Failed files stay in the
// inbox for retry after the ledger records the error; a non-nil return
// means the ledger itself is unreachable and the watcher must stop.
func (w *LocalWatcher) handle(ctx context.Context, path string) error {
	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("cannot read job file", slog.String("path", path), slog.Any("error", err))
		}
		return nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	job := pipeline.Job{
		Identifier: "local:" + abs,
		Filename:   filepath.Base(path),
		Content:    string(content),
	}

	_, err = w.processor.Process(ctx, job)
	switch {
	case err == nil, errors.Is(err, pipeline.ErrAlreadyProcessed):
		w.archive(path)
	case errors.Is(err, pipeline.ErrLedgerUnavailable):
		return fmt.Errorf("process %s: %w", path, err)
	default:
		w.logger.Error("job failed, leaving file in inbox",
			slog.String("path", path), slog.Any("error", err))
	}
	return nil
}

func (w *LocalWatcher) archive(path string) {
	dst := filepath.Join(w.archiveDir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(w.archiveDir,
			fmt.Sprintf("%d_%s", time.Now().Unix(), filepath.Base(path)))
	}
	if err := os.Rename(path, dst); err != nil {
		w.logger.Warn("cannot archive job file",
			slog.String("path", path), slog.Any("error", err))
		return
	}
	w.logger.Info("archived job file", slog.String("path", dst))
}
