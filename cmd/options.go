package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/meetbot/internal/config"
	"github.com/teemow/meetbot/internal/google"
	"github.com/teemow/meetbot/internal/logging"
)

// addGoogleFlags registers the flags shared by every command that needs
// Google credentials.
func addGoogleFlags(cmd *cobra.Command) {
	cmd.Flags().String("client-secret", config.DefaultClientSecretPath, "Path to the Google OAuth client secret JSON. Can also use GOOGLE_CLIENT_SECRET_PATH env var.")
	cmd.Flags().String("token-path", config.DefaultTokenPath, "Path of the persisted Google token. Can also use GOOGLE_TOKEN_PATH env var.")
	cmd.Flags().String("auth-flow", config.AuthFlowLocalServer, "Authorization flow: local-server (browser redirect) or console (paste the code). Can also use MEETBOT_AUTH_FLOW env var.")
	cmd.Flags().Int("auth-port", 0, "Port of the local-server authorization redirect; 0 picks a free port. Can also use MEETBOT_AUTH_PORT env var.")
	cmd.Flags().Duration("auth-timeout", config.DefaultAuthTimeout, "How long the local-server flow waits for the browser. Can also use MEETBOT_AUTH_TIMEOUT env var.")
}

// loadConfig builds the configuration from the file, the environment and
// the flags that were set explicitly on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("MEETBOT_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with flags the user set explicitly. Flags left at
// their defaults never override the file or the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"telegram-token":         &cfg.Telegram.Token,
		"client-secret":          &cfg.Google.ClientSecretPath,
		"token-path":             &cfg.Google.TokenPath,
		"auth-flow":              &cfg.Google.AuthFlow,
		"restricted-access-type": &cfg.Google.RestrictedAccessType,
		"meet-endpoint":          &cfg.Google.Endpoint,
		"metrics-addr":           &cfg.Metrics.Addr,
		"log-format":             &cfg.Log.Format,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	intFlags := map[string]*int{
		"auth-port":    &cfg.Google.AuthPort,
		"poll-timeout": &cfg.Telegram.PollTimeout,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	durationFlags := map[string]*config.Duration{
		"auth-timeout":    &cfg.Google.AuthTimeout,
		"command-timeout": &cfg.Bot.CommandTimeout,
	}
	for name, dst := range durationFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetDuration(name)
		if err != nil {
			return err
		}
		dst.Duration = v
	}

	boolFlags := map[string]*bool{
		"metrics-enabled": &cfg.Metrics.Enabled,
		"telegram-debug":  &cfg.Telegram.Debug,
		"debug":           &cfg.Log.Debug,
	}
	for name, dst := range boolFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := logging.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Debug)
	slog.SetDefault(logger)
	return logger
}

// newCredentialProvider returns the interactive authorization configured for cfg.
func newCredentialProvider(cfg *config.Config, logger *slog.Logger) (google.CredentialProvider, error) {
	switch cfg.Google.AuthFlow {
	case config.AuthFlowLocalServer:
		return &google.LocalServerFlow{
			Port:        cfg.Google.AuthPort,
			Timeout:     cfg.Google.AuthTimeout.Duration,
			OpenBrowser: google.OpenBrowser,
			Logger:      logger,
		}, nil
	case config.AuthFlowConsole:
		return &google.ConsoleFlow{In: os.Stdin, Out: os.Stderr}, nil
	default:
		return nil, fmt.Errorf("unknown auth flow %q", cfg.Google.AuthFlow)
	}
}

// newCredentialManager loads the client secret and creates the manager.
func newCredentialManager(cfg *config.Config, logger *slog.Logger, opts ...func(*google.ManagerConfig)) (*google.Manager, error) {
	oauthConfig, err := google.LoadOAuthConfig(cfg.Google.ClientSecretPath)
	if err != nil {
		return nil, err
	}
	provider, err := newCredentialProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	managerConfig := google.ManagerConfig{
		TokenPath:   cfg.Google.TokenPath,
		OAuthConfig: oauthConfig,
		Provider:    provider,
		Logger:      logger,
	}
	for _, opt := range opts {
		opt(&managerConfig)
	}
	return google.NewManager(managerConfig)
}
