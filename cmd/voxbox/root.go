package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"voxbox/internal/config"
	"voxbox/internal/logging"
)

var configFlag string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "voxbox",
		Short: "Turn YouTube links into Obsidian knowledge notes",
		Long: "VoxBox watches an inbox (a local folder or Dropbox app folders) for\n" +
			"text files containing YouTube links, downloads and transcribes each\n" +
			"video, summarizes it with Gemini, and writes an Obsidian-ready note.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to config.toml")

	root.AddCommand(
		newDaemonCommand(),
		newProcessCommand(),
		newAuthorizeCommand(),
		newLedgerCommand(),
		newConfigCommand(),
		newNotifyCommand(),
	)
	return root
}

// loadConfig resolves and validates configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger; daemons also log to a file under
// the configured log directory.
func newLogger(cfg *config.Config, daemon bool) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if daemon {
		opts.OutputPaths = []string{"stdout", filepath.Join(cfg.Paths.LogDir, "voxbox.log")}
	}
	return logging.New(opts)
}
