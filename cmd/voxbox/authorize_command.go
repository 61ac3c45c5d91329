package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voxbox/internal/credentials"
	"voxbox/internal/dropbox"
	"voxbox/internal/logging"
	"voxbox/internal/oauth"
)

func newAuthorizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Authorize a Dropbox account",
		Long: "Starts the local OAuth callback server, prints the consent URL to\n" +
			"open in a browser, and stores the resulting credential. Stop with\n" +
			"Ctrl-C once the browser confirms authorization.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Dropbox.AppKey == "" || cfg.Dropbox.AppSecret == "" {
				return fmt.Errorf("dropbox.app_key and dropbox.app_secret must be configured")
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}

			creds, err := credentials.NewStore(cfg.Paths.TokensDir)
			if err != nil {
				return err
			}
			server := oauth.NewServer(
				dropbox.NewAuth(cfg.Dropbox.AppKey, cfg.Dropbox.AppSecret),
				creds,
				cfg.Dropbox.RedirectURI,
				cfg.Dropbox.OAuthBind,
				cfg.Dropbox.AllowedAccounts,
				logging.WithComponent(logger, "oauth"),
			)
			authorizeURL, err := server.AuthorizeURL()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Open this URL in a browser to authorize:")
			fmt.Fprintln(cmd.OutOrStdout(), authorizeURL)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			err = server.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}
