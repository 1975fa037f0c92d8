package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/decorhub/storefront/config"
)

//nolint:gochecknoglobals // shared by every logger built here
var logLevel = new(slog.LevelVar)

// dotenvFiles are loaded in order when present. godotenv never overrides a
// variable that is already set, so the process environment wins, then
// .env.local, then .env.
var dotenvFiles = []string{".env.local", ".env"}

// InitLogger installs a JSON logger at info level as the slog default, so
// configuration errors are logged before configuration exists.
func InitLogger() *slog.Logger {
	return installLogger(os.Stdout, "json")
}

// ConfigureLogging applies the configured level and format and returns the
// new default logger.
func ConfigureLogging(cfg config.ObservabilityConfig) *slog.Logger {
	SetLogLevel(cfg.LogLevel)
	return installLogger(os.Stdout, cfg.LogFormat)
}

func installLogger(w io.Writer, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel changes the level of every logger built here. Unknown names
// mean info.
func SetLogLevel(name string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		lvl = slog.LevelInfo
	}
	logLevel.Set(lvl)
}

// LoadConfig reads optional dotenv files, then parses and sanitizes the
// environment.
func LoadConfig() (config.AppConfig, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.AppConfig{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[config.AppConfig]()
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}
