// Package logging provides structured logging utilities for meetbot.
//
// All components log through log/slog. This package keeps attribute names
// consistent (command, chat_id, operation, status, error) and provides
// helpers that keep credentials and chat identities out of the log.
//
// # Usage Patterns
//
// Build the process logger once and pass it down:
//
//	logger := logging.NewLogger(os.Stderr, logging.FormatJSON, debug)
//	logger = logging.WithCommand(logger, "meet")
//	logger.Info("space created", logging.ChatID(chatID))
//
// Sanitize sensitive data before logging:
//
//	logger.Debug("token loaded", "access_token", logging.SanitizeToken(tok.AccessToken))
//
// # Security Considerations
//
//   - Chat user names are hashed via UserHash
//   - Tokens are never logged directly
package logging
