package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// SlogAdapter implements the printf-style logger expected by the Telegram
// bot library, so the library's internal messages land in the structured log
// at debug level instead of on stderr.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Printf logs a formatted message at debug level.
func (a *SlogAdapter) Printf(format string, v ...interface{}) {
	a.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Println logs the operands at debug level.
func (a *SlogAdapter) Println(v ...interface{}) {
	a.logger.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}
