// Package config reads the server's settings from environment variables.
//
// Everything the binary needs is an env var so the same image runs locally
// (a .env sourced into the shell) and in a container without flags or files.
// Load applies defaults and validates: a bad value is reported by name and
// main exits instead of starting half-configured.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// OAuthClient is one OAuth app registration. A provider is enabled only when
// both ID and Secret are set.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Enabled reports whether the client is configured.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Credentials is the optional single email/password account.
type Credentials struct {
	Email        string
	Password     string // plaintext, hashed at startup if PasswordHash is empty
	PasswordHash string
	Name         string
}

// Enabled reports whether a credential account is configured.
func (c Credentials) Enabled() bool {
	return c.Email != "" && (c.Password != "" || c.PasswordHash != "")
}

// Config is the fully resolved server configuration.
type Config struct {
	Port    int
	BaseURL string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	Google      OAuthClient
	GitHub      OAuthClient
	Credentials Credentials

	StaticDir string

	LogLevel  slog.Level
	LogFormat string
}

// Load builds a Config from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

// load takes the lookup function so tests can feed a map instead of the
// real environment.
func load(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		DBDriver:    strings.ToLower(get("DB_DRIVER", DriverSQLite)),
		DBPath:      get("DB_PATH", "data/tasks.db"),
		DatabaseURL: get("DATABASE_URL", ""),
		StaticDir:   get("STATIC_DIR", "web/static"),
		LogFormat:   strings.ToLower(get("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(get("PORT", "8080")); err != nil || cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: PORT must be a number between 1 and 65535, got %q", getenv("PORT"))
	}
	cfg.BaseURL = strings.TrimRight(get("BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")

	switch cfg.DBDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("config: DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return Config{}, fmt.Errorf("config: DB_DRIVER must be sqlite, postgres or memory, got %q", cfg.DBDriver)
	}

	// JWT_SECRET is the older name, still honoured.
	cfg.SessionSecret = get("SESSION_SECRET", get("JWT_SECRET", ""))
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("config: SESSION_SECRET is required (generate one with: openssl rand -hex 32)")
	}
	if len(cfg.SessionSecret) < 16 {
		return Config{}, errors.New("config: SESSION_SECRET must be at least 16 characters")
	}

	if cfg.SessionTTL, err = time.ParseDuration(get("SESSION_TTL", "720h")); err != nil || cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("config: SESSION_TTL must be a positive duration like 720h, got %q", getenv("SESSION_TTL"))
	}

	if v := get("COOKIE_SECURE", ""); v != "" {
		if cfg.CookieSecure, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("config: COOKIE_SECURE must be true or false, got %q", v)
		}
	} else {
		cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	}

	cfg.Google = OAuthClient{
		ClientID:     get("GOOGLE_CLIENT_ID", ""),
		ClientSecret: get("GOOGLE_CLIENT_SECRET", ""),
		CallbackURL:  get("GOOGLE_CALLBACK_URL", cfg.BaseURL+"/api/auth/callback/google"),
	}
	cfg.GitHub = OAuthClient{
		ClientID:     get("GITHUB_CLIENT_ID", ""),
		ClientSecret: get("GITHUB_CLIENT_SECRET", ""),
		CallbackURL:  get("GITHUB_CALLBACK_URL", cfg.BaseURL+"/api/auth/callback/github"),
	}
	cfg.Credentials = Credentials{
		Email:        get("CREDENTIALS_EMAIL", ""),
		Password:     getenv("CREDENTIALS_PASSWORD"),
		PasswordHash: get("CREDENTIALS_PASSWORD_HASH", ""),
		Name:         get("CREDENTIALS_NAME", "Test User"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("config: LOG_LEVEL must be debug, info, warn or error, got %q", getenv("LOG_LEVEL"))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}
