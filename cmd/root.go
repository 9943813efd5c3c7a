package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the meetbot application
var rootCmd = newRootCmd()

// version will be set by main
var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meetbot",
		Short: "Telegram bot that creates Google Meet spaces",
		Long: `meetbot is a Telegram bot that answers /meet with the join link of a new,
open Google Meet space and /meetc with the link of a restricted one.

Google credentials are kept in a token file next to the OAuth client secret.
The first command (or 'meetbot auth') starts the Google authorization.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to a TOML configuration file. Can also use MEETBOT_CONFIG env var.")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json. Can also use LOG_FORMAT env var.")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "meetbot version %s\n" .Version}}`)

	// If no subcommand is provided, run the bot
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
