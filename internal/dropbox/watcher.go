package dropbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voxbox/internal/credentials"
	"voxbox/internal/pipeline"
)

// ErrCredentialExpired indicates refresh failed or a refreshed token was
// still rejected; the account needs re-authorization.
var ErrCredentialExpired = errors.New("dropbox credential expired")

// JobProcessor runs one job; satisfied by pipeline.Processor.
type JobProcessor interface {
	Process(ctx context.Context, job pipeline.Job) (*pipeline.Outcome, error)
}

const (
	inboxFolder   = "/Inbox"
	outboxFolder  = "/Outbox"
	archiveFolder = "/Archive"
	logsFolder    = "/Logs"
)

// Watcher polls every authorized account's /Inbox on an interval.
type Watcher struct {
	creds     *credentials.Store
	state     *StateStore
	processor JobProcessor
	allowed   []string
	interval  time.Duration
	logger    *slog.Logger

	// injection points for tests
	newClient func(accessToken string) *Client
	refresh   func(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

func NewWatcher(
	creds *credentials.Store,
	state *StateStore,
	auth *Auth,
	processor JobProcessor,
	allowed []string,
	interval time.Duration,
	logger *slog.Logger,
) *Watcher {
	return &Watcher{
		creds:     creds,
		state:     state,
		processor: processor,
		allowed:   allowed,
		interval:  interval,
		logger:    logger,
		newClient: NewClient,
		refresh: func(ctx context.Context, refreshToken string) (*TokenResponse, error) {
			return auth.RefreshAccessToken(ctx, refreshToken)
		},
	}
}

// Run polls immediately and then on every interval tick until ctx ends
// or the ledger becomes unreadable.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("polling dropbox accounts", slog.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.PollOnce(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.PollOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// PollOnce polls every account, isolating per-account failures so one
// broken credential cannot stall the rest. Only an unreachable ledger is
// returned; everything else waits for the next tick.
func (w *Watcher) PollOnce(ctx context.Context) error {
	accountIDs, err := w.creds.ListAccountIDs()
	if err != nil {
		w.logger.Error("cannot list dropbox accounts", slog.Any("error", err))
		return nil
	}
	for _, accountID := range accountIDs {
		if ctx.Err() != nil {
			return nil
		}
		if !w.accountAllowed(accountID) {
			continue
		}
		if err := w.pollAccount(ctx, accountID); err != nil {
			if errors.Is(err, pipeline.ErrLedgerUnavailable) {
				return err
			}
			w.logger.Error("account poll failed",
				slog.String("account", accountID), slog.Any("error", err))
		}
	}
	return nil
}

func (w *Watcher) accountAllowed(accountID string) bool {
	if len(w.allowed) == 0 {
		return true
	}
	for _, allowed := range w.allowed {
		if allowed == accountID {
			return true
		}
	}
	return false
}

// pollAccount runs one polling pass. An auth failure triggers exactly one
// token refresh and retry; a second failure defers to the next tick.
func (w *Watcher) pollAccount(ctx context.Context, accountID string) error {
	cred, err := w.creds.Load(accountID)
	if err != nil {
		return err
	}

	err = w.pollWithToken(ctx, cred)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsAuth() {
		return err
	}

	w.logger.Info("refreshing access token", slog.String("account", accountID))
	token, refreshErr := w.refresh(ctx, cred.RefreshToken)
	if refreshErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrCredentialExpired, accountID, refreshErr)
	}
	cred.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		cred.RefreshToken = token.RefreshToken
	}
	if err := w.creds.Save(cred); err != nil {
		return err
	}

	err = w.pollWithToken(ctx, cred)
	if errors.As(err, &apiErr) && apiErr.IsAuth() {
		return fmt.Errorf("%w: %s", ErrCredentialExpired, accountID)
	}
	return err
}

func (w *Watcher) pollWithToken(ctx context.Context, cred credentials.Credential) error {
	client := w.newClient(cred.AccessToken)
	logger := w.logger.With(slog.String("account", cred.AccountID))

	st, err := w.state.Load(cred.AccountID)
	if err != nil {
		return err
	}
	if !st.Initialized {
		if err := w.scaffold(ctx, client, logger); err != nil {
			return fmt.Errorf("scaffold app folder: %w", err)
		}
		st.Initialized = true
		if err := w.state.Save(st); err != nil {
			return err
		}
	}

	for {
		var page *ListFolderResult
		if st.Cursor == "" {
			page, err = client.ListFolder(ctx, inboxFolder)
		} else {
			page, err = client.ListFolderContinue(ctx, st.Cursor)
		}
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				if apiErr.IsPathNotFound() {
					// Inbox not created yet; nothing to do this tick.
					return nil
				}
				if st.Cursor != "" && strings.Contains(apiErr.Summary, "reset") {
					st.Cursor = ""
					if err := w.state.Save(st); err != nil {
						return err
					}
					continue
				}
			}
			return err
		}

		for _, entry := range page.Entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := w.handleEntry(ctx, client, cred, entry, logger); err != nil {
				return err
			}
		}

		// Persist the cursor per page so a crash never replays more
		// than one page of events.
		st.Cursor = page.Cursor
		if err := w.state.Save(st); err != nil {
			return err
		}
		if !page.HasMore {
			return nil
		}
	}
}

// scaffold creates the app folder layout plus starter files. Everything
// tolerates already-existing content so re-initialization is harmless.
func (w *Watcher) scaffold(ctx context.Context, client *Client, logger *slog.Logger) error {
	for _, folder := range []string{inboxFolder, outboxFolder, archiveFolder, logsFolder} {
		if err := client.CreateFolder(ctx, folder); err != nil && !isConflict(err) {
			return err
		}
	}
	starters := map[string]string{
		outboxFolder + "/tags.txt": "# One tag per line. Lowercase letters, digits, '-' and '_' only.\n" +
			"technology\nprogramming\nscience\n",
		"/README.md": "# VoxBox\n\nDrop a .txt file containing a YouTube link into /Inbox.\n" +
			"Finished notes appear in /Outbox; processed job files move to /Archive.\n",
	}
	for path, content := range starters {
		if err := client.UploadNew(ctx, path, []byte(content)); err != nil && !isConflict(err) {
			return err
		}
	}
	logger.Info("app folder scaffold created")
	return nil
}

func isConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsConflict()
}

// handleEntry processes one inbox file. Per-job failures are logged and
// left for retry; only an unreachable ledger propagates.
func (w *Watcher) handleEntry(ctx context.Context, client *Client, cred credentials.Credential, entry Entry, logger *slog.Logger) error {
	if !entry.IsFile() || !pipeline.IsJobFile(entry.Name) {
		return nil
	}
	content, err := client.Download(ctx, entry.PathLower)
	if err != nil {
		logger.Error("cannot download job file",
			slog.String("path", entry.PathLower), slog.Any("error", err))
		return nil
	}

	// Keyed on the provider file ID: re-uploading the same content as a
	// new file is a new job, but a recycled ID would collide.
	job := pipeline.Job{
		Identifier:   fmt.Sprintf("dropbox:%s:%s", cred.AccountID, entry.ID),
		Filename:     entry.Name,
		Content:      string(content),
		AccountID:    cred.AccountID,
		AccountEmail: cred.AccountEmail,
	}
	outcome, err := w.processor.Process(ctx, job)
	switch {
	case err == nil:
		if err := w.mirrorArtifact(ctx, client, outcome.OutputFolder); err != nil {
			logger.Error("cannot upload artifact",
				slog.String("folder", outcome.OutputFolder), slog.Any("error", err))
		}
		w.archiveEntry(ctx, client, entry, logger)
	case errors.Is(err, pipeline.ErrAlreadyProcessed):
		w.archiveEntry(ctx, client, entry, logger)
	case errors.Is(err, pipeline.ErrLedgerUnavailable):
		return fmt.Errorf("process %s: %w", entry.PathLower, err)
	default:
		logger.Error("job failed, leaving file in inbox",
			slog.String("path", entry.PathLower), slog.Any("error", err))
	}
	return nil
}

// mirrorArtifact uploads the rendered note folder to /Outbox.
func (w *Watcher) mirrorArtifact(ctx context.Context, client *Client, folder string) error {
	base := filepath.Base(folder)
	entries, err := os.ReadDir(folder)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(folder, entry.Name()))
		if err != nil {
			return err
		}
		remote := fmt.Sprintf("%s/%s/%s", outboxFolder, base, entry.Name())
		if err := client.Upload(ctx, remote, data); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) archiveEntry(ctx context.Context, client *Client, entry Entry, logger *slog.Logger) {
	dst := archiveFolder + "/" + entry.Name
	if err := client.Move(ctx, entry.PathLower, dst); err != nil {
		logger.Warn("cannot archive job file",
			slog.String("path", entry.PathLower), slog.Any("error", err))
		return
	}
	logger.Info("archived job file", slog.String("path", dst))
}
