// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// LogConfig controls logger construction.
type LogConfig struct {
	Level             string `env:"LEVEL" envDefault:"info"`
	Encoding          string `env:"ENCODING" envDefault:"json"`
	Development       bool   `env:"DEVELOPMENT" envDefault:"false"`
	DisableCaller     bool   `env:"DISABLE_CALLER" envDefault:"false"`
	DisableStacktrace bool   `env:"DISABLE_STACKTRACE" envDefault:"true"`
	Sampling          bool   `env:"SAMPLING" envDefault:"false"`
}

// OutboxConfig controls settlement delivery.
type OutboxConfig struct {
	Workers     int           `env:"WORKERS" envDefault:"4"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	Backoff     time.Duration `env:"BACKOFF" envDefault:"500ms"`
}

// Config is the auctiond configuration. Every variable is prefixed AUCTION_.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"DB_PATH" envDefault:"auctions.db"`

	SweepSpec             string        `env:"SWEEP_SPEC" envDefault:"@every 1s"`
	EndingWindow          time.Duration `env:"ENDING_WINDOW" envDefault:"1m"`
	StartGrace            time.Duration `env:"START_GRACE" envDefault:"5m"`
	DefaultMaxBidsPerUser int           `env:"DEFAULT_MAX_BIDS_PER_USER" envDefault:"0"`
	FeeBasisPoints        int           `env:"FEE_BPS" envDefault:"250"`

	// LotterySeed seeds lottery draws and candle cutoffs. 0 uses crypto/rand.
	LotterySeed uint64 `env:"LOTTERY_SEED" envDefault:"0"`

	// SigningKeyPath points at a PEM encoded P-256 key. Empty generates an
	// ephemeral key at startup.
	SigningKeyPath string `env:"SIGNING_KEY_PATH"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Outbox OutboxConfig `envPrefix:"OUTBOX_"`
	Log    LogConfig    `envPrefix:"LOG_"`
}

const Prefix = "AUCTION_"

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	if c.FeeBasisPoints < 0 || c.FeeBasisPoints > 10000 {
		return fmt.Errorf("%sFEE_BPS must be within [0, 10000], got %d", Prefix, c.FeeBasisPoints)
	}
	if c.DefaultMaxBidsPerUser < 0 {
		return fmt.Errorf("%sDEFAULT_MAX_BIDS_PER_USER must not be negative", Prefix)
	}
	if c.EndingWindow < 0 || c.StartGrace < 0 {
		return fmt.Errorf("%sENDING_WINDOW and %sSTART_GRACE must not be negative", Prefix, Prefix)
	}
	if c.Outbox.Workers < 1 {
		return fmt.Errorf("%sOUTBOX_WORKERS must be at least 1", Prefix)
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("%sOUTBOX_MAX_ATTEMPTS must be at least 1", Prefix)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("%sLOG_ENCODING must be json or console, got %q", Prefix, c.Log.Encoding)
	}
	return nil
}
