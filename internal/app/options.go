package service

import (
	"time"

	"github.com/okian/leaguemaker/internal/adapters/repository"
	"github.com/okian/leaguemaker/internal/config"
	"github.com/okian/leaguemaker/internal/domain/clock"
	"github.com/okian/leaguemaker/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of persist workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the persist queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the request id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore injects the match record store. Without it Start opens the
// store named by the configured driver.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithHalfDuration sets the half length, in seconds, of new sessions.
func WithHalfDuration(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.halfDuration = seconds
		}
	}
}

// WithClockMode sets the half transition mode of new sessions.
func WithClockMode(m clock.Mode) Option {
	return func(s *Service) {
		if m == clock.ModeExplicit || m == clock.ModeAuto {
			s.clockMode = m
		}
	}
}

// WithTickInterval sets the wall-clock interval between ticks. Zero
// disables the ticker; Tick can still be called directly.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.tickInterval = d
		}
	}
}

// WithMaxSessions caps concurrently open sessions; 0 means unlimited.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxSessions = n
		}
	}
}

// WithPersistRetries sets how often a failed save is retried.
func WithPersistRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.persistRetries = n
		}
	}
}

// WithPersistBackoff sets the first retry delay.
func WithPersistBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.persistBackoff = d
		}
	}
}

// WithConfig applies every service setting found in cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		for _, opt := range []Option{
			WithWorkerCount(cfg.WorkerCount),
			WithQueueSize(cfg.QueueSize),
			WithDedupeSize(cfg.DedupeSize),
			WithHalfDuration(cfg.HalfDurationSeconds),
			WithClockMode(cfg.Mode()),
			WithTickInterval(cfg.TickInterval()),
			WithMaxSessions(cfg.MaxSessions),
			WithPersistRetries(cfg.PersistRetries),
			WithPersistBackoff(cfg.PersistBackoff()),
		} {
			opt(s)
		}
		s.storeDriver = cfg.StoreDriver
		s.sqlitePath = cfg.SQLitePath
	}
}
