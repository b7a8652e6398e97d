// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// OAuthConfig is the identity provider client configuration.
type OAuthConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	TokenURL     string   `env:"TOKEN_URL" envDefault:"https://login.microsoftonline.com/common/oauth2/v2.0/token"`
	RevokeURL    string   `env:"REVOKE_URL"`
	Scopes       []string `env:"SCOPES" envDefault:"offline_access,Mail.ReadWrite,Calendars.Read"`
}

// AssistantConfig is the language model client configuration.
type AssistantConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL" envDefault:"gpt-4o-mini"`
}

// Config holds the application configuration loaded from environment
// variables. All variables carry the AIDE_ prefix.
type Config struct {
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	DBPath        string `env:"DB_PATH" envDefault:"aide.db"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	PrincipalID   string `env:"PRINCIPAL_ID" envDefault:"primary"`
	GraphBaseURL  string `env:"GRAPH_BASE_URL" envDefault:"https://graph.microsoft.com/v1.0"`

	OAuth     OAuthConfig     `envPrefix:"OAUTH_"`
	Assistant AssistantConfig `envPrefix:"ASSISTANT_"`

	SchedulerTick  time.Duration `env:"SCHEDULER_TICK" envDefault:"1s"`
	RefreshBuffer  time.Duration `env:"REFRESH_BUFFER" envDefault:"5m"`
	OpTimeout      time.Duration `env:"OP_TIMEOUT" envDefault:"2m"`
	TriageLookback time.Duration `env:"TRIAGE_LOOKBACK" envDefault:"1h"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first without overriding variables
// already set in the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "AIDE_"})
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("AIDE_ENCRYPTION_KEY is required")
	}
	if c.SchedulerTick <= 0 {
		return fmt.Errorf("AIDE_SCHEDULER_TICK must be positive, got %s", c.SchedulerTick)
	}
	if c.RefreshBuffer < 0 {
		return fmt.Errorf("AIDE_REFRESH_BUFFER must not be negative, got %s", c.RefreshBuffer)
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("AIDE_OP_TIMEOUT must be positive, got %s", c.OpTimeout)
	}
	return nil
}

// HasOAuthClient returns true when the identity provider client is
// configured. Without it the app still serves the API, but refresh calls
// cannot succeed until the operator supplies credentials.
func (c *Config) HasOAuthClient() bool {
	return c.OAuth.ClientID != "" && c.OAuth.ClientSecret != ""
}
