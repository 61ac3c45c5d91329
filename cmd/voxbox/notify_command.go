package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNotifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "notify [message]",
		Short: "Send a test notification through the configured providers",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}

			manager := buildNotifier(cfg, logger)
			if !manager.Enabled() {
				return errors.New("no notification providers are enabled")
			}

			message := "VoxBox test notification"
			if len(args) > 0 {
				message = strings.Join(args, " ")
			}
			manager.Send(cmd.Context(), message)
			fmt.Fprintln(cmd.OutOrStdout(), "notification dispatched; check provider logs for failures")
			return nil
		},
	}
}
