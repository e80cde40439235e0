// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Run modes
const (
	ModeAPI     = "api"
	ModeSweeper = "sweeper"
	ModeAll     = "all"
)

const defaultMappingCacheSize = 1024

// Error is a configuration problem that prevents startup.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

// Config holds the application configuration
type Config struct {
	RunMode     string `validate:"oneof=api sweeper all"`
	Environment string

	Host    string
	Port    int    `validate:"min=1,max=65535"`
	BaseURL string `validate:"url"`

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string `validate:"url"`

	LinkStateTTL       time.Duration `validate:"gt=0"`
	ProviderTimeout    time.Duration `validate:"gt=0"`
	NotifyTimeout      time.Duration `validate:"gt=0"`
	StateSweepInterval time.Duration `validate:"gte=0"`

	DatabaseURL string
	RedisURL    string

	TelegramBotToken string

	// Bot API. Routes under /api/v1/mappings are only served with a secret.
	BotAPISecret  string
	BotAPIClient  string
	BotAPIKey     string
	BotAPIKeyHash string
	BotTokenTTL   time.Duration `validate:"gt=0"`

	TokenEncryptionKey string

	MappingCacheSize int           `validate:"gte=0"`
	MappingCacheTTL  time.Duration `validate:"gte=0"`

	CORSAllowedOrigins []string

	LogLevel  string `validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	LogFormat string `validate:"omitempty,oneof=json text"`
}

// ServesAPI reports whether the HTTP server runs in this mode.
func (c *Config) ServesAPI() bool {
	return c.RunMode == ModeAPI || c.RunMode == ModeAll
}

// RunsSweeper reports whether the state sweeper runs in this mode.
func (c *Config) RunsSweeper() bool {
	return (c.RunMode == ModeSweeper || c.RunMode == ModeAll) && c.StateSweepInterval > 0
}

// BotAPIEnabled reports whether bot API tokens can be issued and checked.
func (c *Config) BotAPIEnabled() bool {
	return c.BotAPISecret != ""
}

// Load reads a .env file if one exists, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds and validates a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}

	// A shared database means other instances write mappings this process
	// cannot see, so the cache is opt-in there.
	cacheSize := defaultMappingCacheSize
	if e.str("DATABASE_URL", "") != "" {
		cacheSize = 0
	}

	cfg := &Config{
		RunMode:     strings.ToLower(e.str("RUN_MODE", ModeAll)),
		Environment: e.str("ENVIRONMENT", "dev"),

		Host:    e.str("HOST", "0.0.0.0"),
		Port:    e.int("PORT", 8080),
		BaseURL: strings.TrimRight(e.str("APP_BASE_URL", "http://localhost:8080"), "/"),

		GoogleClientID:     e.str("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: e.str("GOOGLE_CLIENT_SECRET", ""),

		LinkStateTTL:       e.duration("LINK_STATE_TTL", 10*time.Minute),
		ProviderTimeout:    e.duration("PROVIDER_TIMEOUT", 10*time.Second),
		NotifyTimeout:      e.duration("NOTIFY_TIMEOUT", 10*time.Second),
		StateSweepInterval: e.duration("STATE_SWEEP_INTERVAL", 5*time.Minute),

		DatabaseURL: e.str("DATABASE_URL", ""),
		RedisURL:    e.str("REDIS_URL", ""),

		TelegramBotToken: e.str("TELEGRAM_BOT_TOKEN", ""),

		BotAPISecret:  e.first("BOT_API_SECRET", "WEBHOOK_SECRET"),
		BotAPIClient:  e.str("BOT_API_CLIENT", "telegram-bot"),
		BotAPIKey:     e.str("BOT_API_KEY", ""),
		BotAPIKeyHash: e.str("BOT_API_KEY_HASH", ""),
		BotTokenTTL:   e.duration("BOT_TOKEN_TTL", time.Hour),

		TokenEncryptionKey: e.str("TOKEN_ENCRYPTION_KEY", ""),

		MappingCacheSize: e.int("MAPPING_CACHE_SIZE", cacheSize),
		MappingCacheTTL:  e.duration("MAPPING_CACHE_TTL", 5*time.Minute),

		CORSAllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", []string{"*"}),

		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", "text")),
	}
	cfg.GoogleRedirectURL = e.str("GOOGLE_REDIRECT_URI", cfg.BaseURL+"/oauth/callback")

	if e.err != nil {
		return nil, e.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and mode-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &Error{Key: verrs[0].Field(), Reason: fmt.Sprintf("failed %q check", verrs[0].Tag())}
		}
		return &Error{Key: "config", Reason: err.Error()}
	}

	if c.ServesAPI() {
		if c.GoogleClientID == "" {
			return &Error{Key: "GOOGLE_CLIENT_ID", Reason: "required"}
		}
		if c.GoogleClientSecret == "" {
			return &Error{Key: "GOOGLE_CLIENT_SECRET", Reason: "required"}
		}
	}

	if c.BotAPIEnabled() && c.BotAPIKey == "" && c.BotAPIKeyHash == "" {
		return &Error{Key: "BOT_API_KEY", Reason: "required when BOT_API_SECRET is set (or BOT_API_KEY_HASH)"}
	}

	return nil
}

// env reads typed values and keeps the first parse failure.
type env struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) first(keys ...string) string {
	for _, key := range keys {
		if v := e.str(key, ""); v != "" {
			return v
		}
	}
	return ""
}

func (e *env) int(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, "must be an integer")
		return def
	}
	return n
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, "must be a duration such as 30s or 10m")
		return def
	}
	return d
}

func (e *env) list(key string, def []string) []string {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *env) fail(key, reason string) {
	if e.err == nil {
		e.err = &Error{Key: key, Reason: reason}
	}
}
