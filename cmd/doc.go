// Package cmd implements the command-line interface for meetbot.
//
// This package provides the following commands:
//   - serve: Run the Telegram bot (default when no subcommand is given)
//   - auth: Run the Google authorization once and store the token
//   - version: Display version information
package cmd
