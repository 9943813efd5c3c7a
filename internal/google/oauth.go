package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/meetbot/internal/instrumentation"
	"github.com/teemow/meetbot/internal/logging"
)

var (
	// ErrAuthorization wraps every failure to produce usable credentials.
	ErrAuthorization = errors.New("authorization failed")

	// ErrNoToken is returned by FileTokenStore.Load when no token file exists.
	ErrNoToken = errors.New("no stored token")
)

// LoadOAuthConfig reads an OAuth client secret file as downloaded from the
// Google Cloud console ("installed" or "web" application) and returns a
// config requesting scopes, or DefaultOAuthScopes when none are given.
func LoadOAuthConfig(secretPath string, scopes ...string) (*oauth2.Config, error) {
	data, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file %s: %w", secretPath, err)
	}
	return conf, nil
}

// ManagerConfig holds configuration for the credential manager.
type ManagerConfig struct {
	// TokenPath is the token file location (required).
	TokenPath string

	// OAuthConfig identifies the client and endpoints (required).
	OAuthConfig *oauth2.Config

	// Provider runs the interactive authorization when no usable token
	// exists. Without one the manager can only use or refresh a stored token.
	Provider CredentialProvider

	// Metrics is optional.
	Metrics *instrumentation.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager hands out Google credentials backed by the token file. It refreshes
// expired tokens and falls back to interactive authorization, persisting
// every new token. Calls are serialized so the file is never written
// concurrently.
type Manager struct {
	mu       sync.Mutex
	conf     *oauth2.Config
	store    *FileTokenStore
	provider CredentialProvider
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

// NewManager creates a credential manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.TokenPath == "" {
		return nil, fmt.Errorf("token path is required")
	}
	if cfg.OAuthConfig == nil {
		return nil, fmt.Errorf("oauth config is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		conf:     cfg.OAuthConfig,
		store:    NewFileTokenStore(cfg.TokenPath, cfg.OAuthConfig),
		provider: cfg.Provider,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With(logging.Service("oauth")),
	}, nil
}

// Credentials returns a token source holding a currently valid token.
//
// A valid stored token is returned as is. An expired token with a refresh
// token is refreshed; if the refresh fails, or no token is stored, the
// credential provider is asked to authorize once. New tokens are persisted
// before they are returned. All failures wrap ErrAuthorization.
func (m *Manager) Credentials(ctx context.Context) (oauth2.TokenSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.store.Load()
	switch {
	case errors.Is(err, ErrNoToken):
		m.logger.Info("No stored token, starting authorization", "path", m.store.Path())
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrAuthorization, err)
	case tok.Valid():
		return oauth2.StaticTokenSource(tok), nil
	case tok.RefreshToken != "":
		refreshed, err := m.refresh(ctx, tok)
		if err == nil {
			return oauth2.StaticTokenSource(refreshed), nil
		}
		m.logger.Warn("Token refresh failed, starting authorization", logging.Err(err))
	default:
		m.logger.Info("Stored token expired without refresh token, starting authorization")
	}

	tok, err = m.authorize(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.StaticTokenSource(tok), nil
}

// Authorize runs the interactive authorization regardless of any stored
// token and persists the result.
func (m *Manager) Authorize(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authorize(ctx)
}

func (m *Manager) refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	// A zero access token forces the refresh even if the stored expiry is
	// missing.
	expired := *tok
	expired.AccessToken = ""

	refreshed, err := m.conf.TokenSource(ctx, &expired).Token()
	if err != nil {
		m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	m.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	if err := m.store.Save(refreshed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	m.logger.Debug("Token refreshed",
		"access_token", logging.SanitizeToken(refreshed.AccessToken), "expiry", refreshed.Expiry)
	return refreshed, nil
}

func (m *Manager) authorize(ctx context.Context) (*oauth2.Token, error) {
	if m.provider == nil {
		return nil, fmt.Errorf("%w: no valid token in %s and no interactive authorization available (run 'meetbot auth')",
			ErrAuthorization, m.store.Path())
	}

	tok, err := m.provider.Authorize(ctx, m.conf)
	if err != nil {
		m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	m.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

	if err := m.store.Save(tok); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	m.logger.Info("Authorization completed", "path", m.store.Path(),
		"access_token", logging.SanitizeToken(tok.AccessToken),
		"refresh_token", logging.SanitizeToken(tok.RefreshToken))
	return tok, nil
}
