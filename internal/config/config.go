// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"go-simpler.org/env"

	"wordloop/internal/words"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      int    `env:"PORT" default:"3000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	WordInterval time.Duration `env:"WORD_INTERVAL" default:"5s"`
	Words        string        `env:"WORDS" default:"cat,dog,mouse,horse,fox"`
	CatchUp      bool          `env:"CATCH_UP" default:"true"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" default:"10"`

	StaticCacheAge  time.Duration `env:"STATIC_CACHE_AGE" default:"5m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate is also called after command-line overrides are applied.
func (c *Config) Validate() error {
	if len(c.Vocabulary()) == 0 {
		return fmt.Errorf("WORDS: %w", words.ErrEmptyVocabulary)
	}
	if c.WordInterval <= 0 {
		return errors.New("WORD_INTERVAL must be positive")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func (c *Config) Vocabulary() []string {
	return words.Normalize(SplitList(c.Words))
}

func (c *Config) Origins() []string {
	return SplitList(c.AllowedOrigins)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) Address() string {
	return ":" + strconv.Itoa(c.Port)
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}
