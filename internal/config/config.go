package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/teemow/meetbot/internal/meet"
)

// Authorization flows for obtaining the first Google token.
const (
	AuthFlowLocalServer = "local-server"
	AuthFlowConsole     = "console"
)

// Defaults mirror the file names the Google console and the bot use.
const (
	DefaultClientSecretPath   = "client_secret.json"
	DefaultTokenPath          = "token.json"
	DefaultPollTimeoutSeconds = 60
	DefaultAuthTimeout        = 5 * time.Minute
	DefaultMetricsAddr        = ":9090"
)

// Config is the complete process configuration.
type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Google   GoogleConfig   `toml:"google"`
	Bot      BotConfig      `toml:"bot"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// TelegramConfig configures the chat transport.
type TelegramConfig struct {
	// Token is the bot token issued by BotFather.
	Token string `toml:"token"`

	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int `toml:"poll_timeout"`

	// Debug enables the bot library's request logging (at debug level).
	Debug bool `toml:"debug"`
}

// GoogleConfig configures credentials and the Meet API.
type GoogleConfig struct {
	// ClientSecretPath points at the OAuth client JSON downloaded from the
	// Google Cloud console.
	ClientSecretPath string `toml:"client_secret_path"`

	// TokenPath is where the authorized user token is persisted.
	TokenPath string `toml:"token_path"`

	// AuthFlow is "local-server" or "console".
	AuthFlow string `toml:"auth_flow"`

	// AuthPort is the loopback port for the local-server flow; 0 picks a free one.
	AuthPort int `toml:"auth_port"`

	// AuthTimeout bounds how long the local-server flow waits for the browser.
	AuthTimeout Duration `toml:"auth_timeout"`

	// RestrictedAccessType is sent for /meetc when set ("TRUSTED" or
	// "RESTRICTED"). Empty leaves the access type to the server default.
	RestrictedAccessType string `toml:"restricted_access_type"`

	// Endpoint overrides the Meet API base URL.
	Endpoint string `toml:"endpoint"`
}

// BotConfig configures command handling.
type BotConfig struct {
	// CommandTimeout bounds one command. Zero means no timeout.
	CommandTimeout Duration `toml:"command_timeout"`
}

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `toml:"format"`
	Debug  bool   `toml:"debug"`
}

// Duration is a time.Duration written as a Go duration string ("30s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{PollTimeout: DefaultPollTimeoutSeconds},
		Google: GoogleConfig{
			ClientSecretPath: DefaultClientSecretPath,
			TokenPath:        DefaultTokenPath,
			AuthFlow:         AuthFlowLocalServer,
			AuthTimeout:      Duration{DefaultAuthTimeout},
		},
		Metrics: MetricsConfig{Enabled: true, Addr: DefaultMetricsAddr},
		Log:     LogConfig{Format: "text"},
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path and the environment, in increasing order of precedence. Flags are
// applied on top by the caller.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, fmt.Errorf("unknown keys in %s:\n%s", path, strict.String())
			}
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Google.ClientSecretPath, "GOOGLE_CLIENT_SECRET_PATH")
	setString(&c.Google.TokenPath, "GOOGLE_TOKEN_PATH")
	setString(&c.Google.AuthFlow, "MEETBOT_AUTH_FLOW")
	setString(&c.Google.RestrictedAccessType, "MEETBOT_RESTRICTED_ACCESS_TYPE")
	setString(&c.Google.Endpoint, "MEETBOT_MEET_ENDPOINT")
	setString(&c.Metrics.Addr, "METRICS_ADDR")
	setString(&c.Log.Format, "LOG_FORMAT")

	if err := setInt(&c.Google.AuthPort, "MEETBOT_AUTH_PORT"); err != nil {
		return err
	}
	if err := setDuration(&c.Google.AuthTimeout, "MEETBOT_AUTH_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Bot.CommandTimeout, "MEETBOT_COMMAND_TIMEOUT"); err != nil {
		return err
	}
	return setBool(&c.Metrics.Enabled, "METRICS_ENABLED")
}

// Validate checks that everything needed to run the bot is present.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram bot token is required (--telegram-token or TELEGRAM_BOT_TOKEN)")
	}
	return c.ValidateGoogle()
}

// ValidateGoogle checks the Google part of the configuration only. The auth
// command needs no bot token.
func (c *Config) ValidateGoogle() error {
	if c.Google.ClientSecretPath == "" {
		return fmt.Errorf("google client secret path is required")
	}
	if c.Google.TokenPath == "" {
		return fmt.Errorf("google token path is required")
	}

	switch c.Google.AuthFlow {
	case AuthFlowLocalServer, AuthFlowConsole:
	default:
		return fmt.Errorf("invalid auth flow %q, must be one of: %s, %s", c.Google.AuthFlow, AuthFlowLocalServer, AuthFlowConsole)
	}

	if c.Google.AuthPort < 0 || c.Google.AuthPort > 65535 {
		return fmt.Errorf("invalid auth port %d", c.Google.AuthPort)
	}

	switch c.Google.RestrictedAccessType {
	case "", meet.AccessTypeTrusted, meet.AccessTypeRestricted:
	default:
		return fmt.Errorf("invalid restricted access type %q, must be one of: %s, %s",
			c.Google.RestrictedAccessType, meet.AccessTypeTrusted, meet.AccessTypeRestricted)
	}

	if c.Bot.CommandTimeout.Duration < 0 {
		return fmt.Errorf("command timeout must not be negative")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if err := dst.UnmarshalText([]byte(v)); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}
