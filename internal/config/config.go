// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - External errors must be wrapped via this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/leaguemaker/internal/domain/clock"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory persist queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of persist workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many event request ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// HalfDurationSeconds is the length of each half.
	HalfDurationSeconds int `koanf:"half_duration_seconds"`

	// TickIntervalMS is the wall-clock interval between clock ticks. One tick
	// advances every running clock by one second of match time.
	TickIntervalMS int `koanf:"tick_interval_ms"`

	// ClockMode is explicit (halves switch on request) or auto.
	ClockMode string `koanf:"clock_mode"`

	// MaxSessions caps concurrently open sessions; 0 means unlimited.
	MaxSessions int `koanf:"max_sessions"`

	// PersistRetries is the number of extra store attempts per snapshot.
	PersistRetries int `koanf:"persist_retries"`

	// PersistBackoffMS is the base delay between store attempts; it doubles
	// on every retry.
	PersistBackoffMS int `koanf:"persist_backoff_ms"`

	// StoreDriver selects the match record store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		HalfDurationSeconds: clock.DefaultHalfDuration,
		TickIntervalMS:      1000,
		ClockMode:           string(clock.ModeExplicit),
		MaxSessions:         0,
		PersistRetries:      3,
		PersistBackoffMS:    200,
		StoreDriver:         StoreMemory,
		SQLitePath:          "leaguemaker.db",
		ShutdownTimeoutMS:   10_000,
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.HalfDurationSeconds <= 0:
		return fmt.Errorf("%w: half_duration_seconds must be positive, got %d", ErrInvalidConfig, c.HalfDurationSeconds)
	case c.TickIntervalMS <= 0:
		return fmt.Errorf("%w: tick_interval_ms must be positive, got %d", ErrInvalidConfig, c.TickIntervalMS)
	case c.MaxSessions < 0:
		return fmt.Errorf("%w: max_sessions must not be negative, got %d", ErrInvalidConfig, c.MaxSessions)
	case c.PersistRetries < 0:
		return fmt.Errorf("%w: persist_retries must not be negative, got %d", ErrInvalidConfig, c.PersistRetries)
	case c.PersistBackoffMS < 0:
		return fmt.Errorf("%w: persist_backoff_ms must not be negative, got %d", ErrInvalidConfig, c.PersistBackoffMS)
	}
	if _, ok := clock.ParseMode(c.ClockMode); !ok {
		return fmt.Errorf("%w: clock_mode must be explicit or auto, got %q", ErrInvalidConfig, c.ClockMode)
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: store_driver must be memory or sqlite, got %q", ErrInvalidConfig, c.StoreDriver)
	}
	return nil
}

// Mode returns the parsed clock mode.
func (c *Config) Mode() clock.Mode {
	m, _ := clock.ParseMode(c.ClockMode)
	return m
}

// TickInterval returns TickIntervalMS as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// PersistBackoff returns PersistBackoffMS as a duration.
func (c *Config) PersistBackoff() time.Duration {
	return time.Duration(c.PersistBackoffMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutMS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}
