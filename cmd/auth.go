package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize meetbot with Google and store the token",
		Long: `Run the Google authorization once and write the token file, so the bot can
be deployed where no browser is available. An existing valid token is kept
unless --force is given; an expired one is refreshed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateGoogle(); err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			manager, err := newCredentialManager(cfg, logger)
			if err != nil {
				return err
			}

			if force {
				if _, err := manager.Authorize(ctx); err != nil {
					return err
				}
			} else if _, err := manager.Credentials(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Google token stored in %s\n", cfg.Google.TokenPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Authorize again even if a valid token exists")
	addGoogleFlags(cmd)

	return cmd
}
