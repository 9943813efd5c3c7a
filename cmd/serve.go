package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/meetbot/internal/bot"
	"github.com/teemow/meetbot/internal/config"
	"github.com/teemow/meetbot/internal/google"
	"github.com/teemow/meetbot/internal/instrumentation"
	"github.com/teemow/meetbot/internal/meet"
	"github.com/teemow/meetbot/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Long: `Run the bot: poll Telegram for /meet and /meetc and answer each with the
join link of a newly created Google Meet space.

Configuration is read from the optional TOML file, then from environment
variables, then from the flags below; later sources win.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg, newLogger(cfg))
		},
	}

	cmd.Flags().String("telegram-token", "", "Telegram bot token. Can also use TELEGRAM_BOT_TOKEN env var.")
	cmd.Flags().Int("poll-timeout", config.DefaultPollTimeoutSeconds, "Telegram long polling timeout in seconds")
	cmd.Flags().Bool("telegram-debug", false, "Log every Telegram Bot API request (at debug level)")
	cmd.Flags().String("restricted-access-type", "", "Access type sent for /meetc: TRUSTED or RESTRICTED. Empty uses the server default. Can also use MEETBOT_RESTRICTED_ACCESS_TYPE env var.")
	cmd.Flags().String("meet-endpoint", "", "Override the Google Meet API base URL. Can also use MEETBOT_MEET_ENDPOINT env var.")
	cmd.Flags().Duration("command-timeout", 0, "Maximum time to handle one command; 0 disables the limit. Can also use MEETBOT_COMMAND_TIMEOUT env var.")
	cmd.Flags().Bool("metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	addGoogleFlags(cmd)

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during instrumentation shutdown", "error", err)
		}
	}()

	health := server.NewHealthChecker()

	if cfg.Metrics.Enabled {
		metricsServer, err := startMetricsServer(cfg.Metrics.Addr, health, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Error shutting down metrics server", "error", err)
			}
		}()
	}

	manager, err := newCredentialManager(cfg, logger, func(mc *google.ManagerConfig) {
		mc.Metrics = provider.Metrics()
	})
	if err != nil {
		return fmt.Errorf("failed to set up Google credentials: %w", err)
	}

	meetClient, err := meet.NewClient(meet.ClientConfig{
		Credentials:          manager,
		RestrictedAccessType: cfg.Google.RestrictedAccessType,
		Endpoint:             cfg.Google.Endpoint,
		Metrics:              provider.Metrics(),
		Logger:               logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create Meet client: %w", err)
	}

	transport, err := bot.NewTelegramTransport(bot.TelegramConfig{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout,
		Debug:       cfg.Telegram.Debug,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	b, err := bot.New(bot.Config{
		Transport:      transport,
		Creator:        meetClient,
		CommandTimeout: cfg.Bot.CommandTimeout.Duration,
		Metrics:        provider.Metrics(),
		Audit:          instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Google.TokenPath); os.IsNotExist(err) {
		logger.Warn("No Google token yet; the first command will start the authorization",
			"token_path", cfg.Google.TokenPath, "auth_flow", cfg.Google.AuthFlow)
	}

	health.SetReady(true)
	logger.Info("meetbot started", "version", version, "bot", transport.Username())

	err = b.Run(ctx)

	health.SetShuttingDown()
	logger.Info("meetbot stopped")
	return err
}

// startMetricsServer starts the metrics and health listener and waits until
// it accepts connections.
func startMetricsServer(addr string, health *server.HealthChecker, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:   addr,
		Health: health,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("Metrics server started", "addr", metricsServer.Addr())
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}
