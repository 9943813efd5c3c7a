package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/meetbot/internal/logging"
)

// CommandInvocation captures one handled chat command for audit logging.
//
// User holds the chat user name and is treated as PII: it is only logged
// verbatim when the audit logger is configured with IncludePII.
type CommandInvocation struct {
	Command    string
	User       string
	ChatID     int64
	Restricted bool

	// MeetingURI is set when a space was created.
	MeetingURI string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewCommandInvocation creates a CommandInvocation with timing started.
// Call Complete when the command has been handled.
func NewCommandInvocation(command string, chatID int64, restricted bool) *CommandInvocation {
	return &CommandInvocation{
		Command:    command,
		ChatID:     chatID,
		Restricted: restricted,
		StartTime:  time.Now(),
	}
}

// WithUser sets the chat user who issued the command.
func (ci *CommandInvocation) WithUser(user string) *CommandInvocation {
	ci.User = user
	return ci
}

// WithSpanContext extracts trace context from the current span.
func (ci *CommandInvocation) WithSpanContext(ctx context.Context) *CommandInvocation {
	ci.TraceID = GetTraceID(ctx)
	ci.SpanID = GetSpanID(ctx)
	return ci
}

// Complete marks the invocation as finished and calculates the duration.
func (ci *CommandInvocation) Complete(meetingURI string, err error) *CommandInvocation {
	ci.Duration = time.Since(ci.StartTime)
	ci.MeetingURI = meetingURI
	ci.Success = err == nil
	if err != nil {
		ci.Error = err.Error()
	}
	return ci
}

// Status returns "success" or "error" based on the Success field.
func (ci *CommandInvocation) Status() string {
	if ci.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the slog attributes for the invocation. The user is
// hashed unless includePII is set.
func (ci *CommandInvocation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("command", ci.Command),
		slog.Int64("chat_id", ci.ChatID),
		slog.Bool("restricted", ci.Restricted),
		slog.Duration("duration", ci.Duration),
		slog.Bool("success", ci.Success),
	}

	if ci.User != "" {
		if includePII {
			attrs = append(attrs, slog.String("user", ci.User))
		} else {
			attrs = append(attrs, logging.UserHash(ci.User))
		}
	}
	if ci.MeetingURI != "" {
		attrs = append(attrs, slog.String("meeting_uri", ci.MeetingURI))
	}
	if ci.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ci.TraceID))
	}
	if ci.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ci.SpanID))
	}
	if ci.Error != "" {
		attrs = append(attrs, slog.String("error", ci.Error))
	}
	return attrs
}

// AuditLogger writes one structured entry per handled command.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given configuration.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogCommand logs a finished command invocation. Safe on a nil receiver.
func (al *AuditLogger) LogCommand(ci *CommandInvocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := ci.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ci.Success {
		al.logger.Info("command_executed", args...)
	} else {
		al.logger.Warn("command_failed", args...)
	}
}
