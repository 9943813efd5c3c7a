package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/teemow/meetbot/internal/google"
	"github.com/teemow/meetbot/internal/instrumentation"
	"github.com/teemow/meetbot/internal/logging"
	"github.com/teemow/meetbot/internal/meet"
)

// Chat commands understood by the bot.
const (
	CommandMeet       = "meet"
	CommandMeetClosed = "meetc"
)

// Reply prefixes.
const (
	createdPrefix = "Space created: "
	errorPrefix   = "An error occurred: "
)

// Command is a chat command addressed to the bot.
type Command struct {
	// Name is the command without the leading slash or bot mention.
	Name string

	ChatID    int64
	MessageID int

	// User identifies the sender for audit logging.
	User string
}

// Transport delivers commands and sends replies.
type Transport interface {
	// Commands streams incoming commands until ctx is done, then closes the
	// channel.
	Commands(ctx context.Context) (<-chan Command, error)

	// Reply answers cmd with a plain text message.
	Reply(ctx context.Context, cmd Command, text string) error
}

// SpaceCreator creates Meet spaces.
type SpaceCreator interface {
	CreateSpace(ctx context.Context, req meet.SpaceRequest) (*meet.Space, error)
}

// Config holds the bot dependencies.
type Config struct {
	Transport Transport
	Creator   SpaceCreator

	// CommandTimeout bounds a single command. Zero means no timeout.
	CommandTimeout time.Duration

	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Bot answers /meet and /meetc with the join link of a new space.
type Bot struct {
	transport      Transport
	creator        SpaceCreator
	commandTimeout time.Duration
	metrics        *instrumentation.Metrics
	audit          *instrumentation.AuditLogger
	logger         *slog.Logger
}

// New creates a bot.
func New(cfg Config) (*Bot, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Creator == nil {
		return nil, fmt.Errorf("space creator is required")
	}
	if cfg.CommandTimeout < 0 {
		return nil, fmt.Errorf("command timeout must not be negative")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Bot{
		transport:      cfg.Transport,
		creator:        cfg.Creator,
		commandTimeout: cfg.CommandTimeout,
		metrics:        cfg.Metrics,
		audit:          cfg.Audit,
		logger:         cfg.Logger,
	}, nil
}

// Run handles commands one at a time until ctx is canceled or the transport
// stops delivering.
func (b *Bot) Run(ctx context.Context) error {
	commands, err := b.transport.Commands(ctx)
	if err != nil {
		return fmt.Errorf("failed to receive commands: %w", err)
	}

	b.logger.Info("Bot started, waiting for commands")
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			b.Handle(ctx, cmd)
		}
	}
}

// Handle executes cmd and sends exactly one reply. Commands other than meet
// and meetc are ignored; the result reports whether cmd was handled.
func (b *Bot) Handle(ctx context.Context, cmd Command) bool {
	restricted, ok := isRestricted(cmd.Name)
	if !ok {
		b.logger.Debug("Ignoring unknown command", logging.Command(cmd.Name))
		return false
	}

	reply := b.createSpace(ctx, cmd, restricted)

	if err := b.transport.Reply(ctx, cmd, reply); err != nil {
		b.logger.Error("Failed to send reply",
			logging.Command(cmd.Name), logging.ChatID(cmd.ChatID), logging.Err(err))
	}
	return true
}

func (b *Bot) createSpace(ctx context.Context, cmd Command, restricted bool) string {
	if b.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.commandTimeout)
		defer cancel()
	}

	ctx, span := instrumentation.StartCommandSpan(ctx, cmd.Name, cmd.ChatID, restricted)
	defer span.End()

	invocation := instrumentation.NewCommandInvocation(cmd.Name, cmd.ChatID, restricted).
		WithUser(cmd.User).
		WithSpanContext(ctx)

	space, err := b.creator.CreateSpace(ctx, meet.SpaceRequest{Restricted: restricted})

	var uri string
	if err == nil {
		uri = space.MeetingURI
		instrumentation.SetSpanSuccess(span)
	} else {
		instrumentation.SetSpanError(span, err)
	}

	invocation.Complete(uri, err)
	b.metrics.RecordCommand(ctx, cmd.Name, invocation.Status(), invocation.Duration)
	b.audit.LogCommand(invocation)

	logger := b.logger.With(logging.Command(cmd.Name), logging.ChatID(cmd.ChatID), logging.Restricted(restricted))
	switch {
	case err == nil:
		logger.Info("Space created", "duration", invocation.Duration)
	case errors.Is(err, google.ErrAuthorization):
		logger.Error("Authorization failed", logging.Err(err))
	default:
		logger.Warn("Space creation failed", logging.Err(err))
	}

	return FormatResult(space, err)
}

// FormatResult renders the reply for a space creation result.
func FormatResult(space *meet.Space, err error) string {
	if err != nil {
		return errorPrefix + ErrorMessage(err)
	}
	return createdPrefix + space.MeetingURI
}

// ErrorMessage returns the text shown to the chat for err. Google API errors
// show the message returned by the server; transport errors drop the request
// method and URL.
func ErrorMessage(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func isRestricted(command string) (restricted, ok bool) {
	switch command {
	case CommandMeet:
		return false, true
	case CommandMeetClosed:
		return true, true
	default:
		return false, false
	}
}
