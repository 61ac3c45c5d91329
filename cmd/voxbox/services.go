package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"voxbox/internal/analysis"
	"voxbox/internal/config"
	"voxbox/internal/ledger"
	"voxbox/internal/logging"
	"voxbox/internal/notes"
	"voxbox/internal/notify"
	"voxbox/internal/pipeline"
	"voxbox/internal/tags"
	"voxbox/internal/transcript"
	"voxbox/internal/transcript/whisper"
	"voxbox/internal/ytdlp"
)

// services bundles everything a processing command needs, plus the
// handles that must be closed on shutdown.
type services struct {
	processor *pipeline.Processor
	ledger    *ledger.Store
	gemini    *analysis.GeminiSummarizer
}

func (s *services) Close() {
	if s.gemini != nil {
		s.gemini.Close()
	}
	if s.ledger != nil {
		s.ledger.Close()
	}
}

// buildServices wires the full pipeline from configuration.
func buildServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	store, err := ledger.Open(cfg.Paths.LedgerPath)
	if err != nil {
		return nil, err
	}

	gemini, err := analysis.NewGeminiSummarizer(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		store.Close()
		return nil, err
	}
	engine := analysis.NewEngine(
		gemini,
		cfg.Gemini.MaxRetries,
		time.Duration(cfg.Gemini.RetryDelaySeconds)*time.Second,
		logging.WithComponent(logger, "analysis"),
	)

	downloader := ytdlp.NewDownloader(
		cfg.Download.Binary,
		cfg.Paths.TempDir,
		cfg.Download.AudioQuality,
		cfg.Download.CaptionLanguages,
		cfg.Download.Retries,
		logging.WithComponent(logger, "download"),
	)
	whisperSvc := whisper.NewService(cfg.Whisper.Binary, cfg.Whisper.Model,
		logging.WithComponent(logger, "whisper"))
	acquirer := transcript.NewAcquirer(whisperSvc, logging.WithComponent(logger, "transcript"))

	tagManager := tags.NewManager(filepath.Join(cfg.Paths.DataDir, "tags.txt"), cfg.Paths.OutboxDir)
	if err := tagManager.EnsureDefaults(); err != nil {
		gemini.Close()
		store.Close()
		return nil, err
	}

	processor := pipeline.NewProcessor(
		downloader,
		acquirer,
		engine,
		tagManager,
		notes.NewRenderer(cfg.Paths.OutboxDir),
		buildNotifier(cfg, logger),
		store,
		logging.WithComponent(logger, "pipeline"),
	)
	return &services{processor: processor, ledger: store, gemini: gemini}, nil
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) *notify.Manager {
	var providers []notify.Provider
	if tg := cfg.Notifications.Telegram; tg.Enabled {
		providers = append(providers, notify.NewTelegram(tg.BotToken, tg.ChatID))
	}
	if em := cfg.Notifications.Email; em.Enabled {
		providers = append(providers, notify.NewEmail(
			em.SMTPHost, em.SMTPPort, em.Username, em.Password, em.From, em.To))
	}
	return notify.NewManager(logging.WithComponent(logger, "notify"), providers...)
}
