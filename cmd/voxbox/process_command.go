package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"voxbox/internal/config"
	"voxbox/internal/pipeline"
)

func newProcessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process <job-file>",
		Short: "Process a single job file immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if !pipeline.IsJobFile(path) {
				return fmt.Errorf("%s is not a .txt job file", path)
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			svc, err := buildServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			outcome, err := svc.processor.Process(cmd.Context(), pipeline.Job{
				Identifier: "local:" + path,
				Filename:   filepath.Base(path),
				Content:    string(content),
			})
			if errors.Is(err, pipeline.ErrAlreadyProcessed) {
				fmt.Fprintln(cmd.OutOrStdout(), "already processed, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "note written to %s\n", outcome.OutputFolder)
			return nil
		},
	}
}
