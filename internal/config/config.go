// Package config loads runtime settings from the environment.
//
// Variables are read with the VESTING_ prefix. A .env file in the working
// directory, or the files passed to Load, supplies values the process
// environment does not set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/roach88/vesting/internal/auth"
)

// Prefix is prepended to every variable name.
const Prefix = "VESTING_"

// Config aggregates runtime configuration for the CLI.
type Config struct {
	// DB is the SQLite database path.
	DB string `env:"DB" envDefault:"vesting.db"`

	// KeyFile holds the caller's hex Ed25519 seed.
	KeyFile string `env:"KEY_FILE"`

	Logger LoggerConfig `envPrefix:"LOG_"`
	Token  TokenConfig  `envPrefix:"TOKEN_"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// TokenConfig configures caller tokens.
type TokenConfig struct {
	Issuer   string        `env:"ISSUER" envDefault:"vesting-cli"`
	Audience string        `env:"AUDIENCE" envDefault:"vesting"`
	TTL      time.Duration `env:"TTL" envDefault:"1m"`
}

// Auth returns the token settings in the form auth expects.
func (t TokenConfig) Auth() auth.Config {
	return auth.Config{Issuer: t.Issuer, Audience: t.Audience, TTL: t.TTL}
}

// Load reads configuration. Without arguments an optional ".env" is read;
// named files must exist. Process environment wins over file values.
func Load(files ...string) (*Config, error) {
	vars, err := readDotenv(files)
	if err != nil {
		return nil, err
	}
	for k, v := range env.ToMap(os.Environ()) {
		vars[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: Prefix, Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Token.TTL <= 0 {
		return nil, fmt.Errorf("invalid %sTOKEN_TTL: must be positive, got %s", Prefix, cfg.Token.TTL)
	}
	return cfg, nil
}

func readDotenv(files []string) (map[string]string, error) {
	if len(files) == 0 {
		vars, err := godotenv.Read(".env")
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read .env: %w", err)
		}
		return vars, nil
	}
	vars, err := godotenv.Read(files...)
	if err != nil {
		return nil, fmt.Errorf("read env files: %w", err)
	}
	return vars, nil
}
