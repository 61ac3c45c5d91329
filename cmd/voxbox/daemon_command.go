package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"voxbox/internal/config"
	"voxbox/internal/credentials"
	"voxbox/internal/dropbox"
	"voxbox/internal/logging"
	"voxbox/internal/oauth"
	"voxbox/internal/watch"
)

func newDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the watcher daemon until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}

			// A second daemon against the same data dir would fight over
			// the inbox and the ledger.
			lock := flock.New(filepath.Join(cfg.Paths.DataDir, "voxbox.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return errors.New("another voxbox daemon is already running")
			}
			defer lock.Unlock()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := buildServices(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			logger.Info("daemon starting", slog.String("mode", cfg.Mode))
			switch cfg.Mode {
			case config.ModeDropbox:
				err = runDropbox(ctx, cfg, svc, logger)
			default:
				err = runLocal(ctx, cfg, svc, logger)
			}
			if errors.Is(err, context.Canceled) {
				logger.Info("daemon stopped")
				return nil
			}
			return err
		},
	}
}

func runLocal(ctx context.Context, cfg *config.Config, svc *services, logger *slog.Logger) error {
	watcher := watch.NewLocalWatcher(
		cfg.Paths.InboxDir,
		cfg.Paths.ArchiveDir,
		svc.processor,
		time.Duration(cfg.Workflow.DebounceMilliseconds)*time.Millisecond,
		logging.WithComponent(logger, "watch"),
	)
	return watcher.Run(ctx)
}

func runDropbox(ctx context.Context, cfg *config.Config, svc *services, logger *slog.Logger) error {
	creds, err := credentials.NewStore(cfg.Paths.TokensDir)
	if err != nil {
		return err
	}
	state, err := dropbox.NewStateStore(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	auth := dropbox.NewAuth(cfg.Dropbox.AppKey, cfg.Dropbox.AppSecret)

	watcher := dropbox.NewWatcher(
		creds,
		state,
		auth,
		svc.processor,
		cfg.Dropbox.AllowedAccounts,
		time.Duration(cfg.PollInterval())*time.Second,
		logging.WithComponent(logger, "dropbox"),
	)
	authServer := oauth.NewServer(
		auth,
		creds,
		cfg.Dropbox.RedirectURI,
		cfg.Dropbox.OAuthBind,
		cfg.Dropbox.AllowedAccounts,
		logging.WithComponent(logger, "oauth"),
	)

	// The callback server runs alongside polling so new accounts can be
	// authorized without stopping the daemon.
	errCh := make(chan error, 2)
	go func() { errCh <- authServer.Run(ctx) }()
	go func() { errCh <- watcher.Run(ctx) }()
	return <-errCh
}
