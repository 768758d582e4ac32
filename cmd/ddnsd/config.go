package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ddns "github.com/Travis-Britz/ddnsd"
)

type config struct {
	Listen        string `envconfig:"LISTEN" default:":8080"`
	MetricsListen string `envconfig:"METRICS_LISTEN"` // empty disables the metrics listener
	APIBase       string `envconfig:"CLOUDFLARE_API_BASE"`
	Development   bool   `envconfig:"DEV" default:"false"`
	Verbosity     int    `envconfig:"LOG_VERBOSITY" default:"0"`
}

// loadConfig reads the environment, after loading envFile into it when that file exists.
// Variables already set in the environment win over the file.
func loadConfig(envFile string) (config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return config{}, fmt.Errorf("unable to parse config: %w", err)
	}
	if cfg.APIBase == "" {
		cfg.APIBase = ddns.DefaultAPIBase
	}
	if cfg.Listen == "" {
		return config{}, errors.New("LISTEN cannot be empty")
	}
	if cfg.Verbosity < 0 {
		return config{}, fmt.Errorf("LOG_VERBOSITY must not be negative; got %d", cfg.Verbosity)
	}
	return cfg, nil
}

// newLogger builds a zap-backed logr.Logger. Verbosity n enables logr V(n) lines.
func newLogger(development bool, verbosity int) (logr.Logger, func(), error) {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("error building logger: %w", err)
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
