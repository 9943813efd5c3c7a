package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/teemow/meetbot/internal/logging"
)

// TelegramConfig holds configuration for the Telegram transport.
type TelegramConfig struct {
	// Token is the bot token (required).
	Token string

	// Endpoint is the Bot API URL template; defaults to tgbotapi.APIEndpoint.
	Endpoint string

	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int

	// Debug logs every Bot API request at debug level.
	Debug bool

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// TelegramTransport receives commands through Bot API long polling.
type TelegramTransport struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *slog.Logger
	stopOnce    sync.Once
}

// NewTelegramTransport connects to the Bot API and verifies the token.
func NewTelegramTransport(cfg TelegramConfig) (*TelegramTransport, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(logging.Service("telegram"))

	if err := tgbotapi.SetLogger(logging.NewSlogAdapter(logger)); err != nil {
		return nil, fmt.Errorf("failed to set telegram logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	logger.Info("Authorized on telegram", "username", api.Self.UserName)

	return &TelegramTransport{
		api:         api,
		pollTimeout: cfg.PollTimeout,
		logger:      logger,
	}, nil
}

// Username returns the bot's user name.
func (t *TelegramTransport) Username() string {
	return t.api.Self.UserName
}

// Commands implements Transport.
func (t *TelegramTransport) Commands(ctx context.Context) (<-chan Command, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(u)

	out := make(chan Command)
	go func() {
		defer close(out)
		defer t.stop()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				cmd, ok := t.toCommand(update)
				if !ok {
					continue
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Reply implements Transport. The reply quotes the triggering message.
func (t *TelegramTransport) Reply(ctx context.Context, cmd Command, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(cmd.ChatID, text)
	msg.ReplyToMessageID = cmd.MessageID
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (t *TelegramTransport) stop() {
	t.stopOnce.Do(t.api.StopReceivingUpdates)
}

// toCommand extracts a command from update. Commands mentioning another bot
// ("/meet@otherbot") are skipped.
func (t *TelegramTransport) toCommand(update tgbotapi.Update) (Command, bool) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return Command{}, false
	}

	if _, mention, found := strings.Cut(msg.CommandWithAt(), "@"); found &&
		!strings.EqualFold(mention, t.api.Self.UserName) {
		return Command{}, false
	}

	cmd := Command{
		Name:      msg.Command(),
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}
	if msg.From != nil {
		cmd.User = msg.From.UserName
		if cmd.User == "" {
			cmd.User = fmt.Sprintf("id:%d", msg.From.ID)
		}
	}
	return cmd, true
}
