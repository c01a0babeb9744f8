// Package simulate plays generated matches against a running League Maker
// service over HTTP and checks that what the service reports matches what
// was played.
package simulate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default configuration constants.
const (
	DefaultBaseURL        = "http://localhost:9080"
	DefaultMatches        = 4
	DefaultEventsPerMatch = 24
	DefaultWorkers        = 2
	DefaultTimeout        = 10 * time.Second
	DefaultPersistWait    = 30 * time.Second
	DefaultResendRate     = 0.1
	DefaultSquadSize      = 8
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL        string        // Base URL of the service
	RunID          string        // Prefix for match and player ids; random when empty
	Matches        int           // Number of matches to play
	EventsPerMatch int           // Events recorded in each match
	SquadSize      int           // Players per side, one of whom is absent
	Workers        int           // Matches played concurrently
	Seed           uint64        // Generator seed; 0 picks one from the clock
	ResendRate     float64       // Share of events re-sent with the same request id
	Persist        bool          // Persist finished matches and check the stored records
	PersistWait    time.Duration // How long to wait for a stored record
	Timeout        time.Duration // HTTP request timeout
	OutputFile     string        // Where to write the generated scripts; empty skips it
	Verbose        bool          // Log every request
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Matches:        DefaultMatches,
		EventsPerMatch: DefaultEventsPerMatch,
		SquadSize:      DefaultSquadSize,
		Workers:        DefaultWorkers,
		ResendRate:     DefaultResendRate,
		Persist:        true,
		PersistWait:    DefaultPersistWait,
		Timeout:        DefaultTimeout,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Matches < 1:
		return fmt.Errorf("%w: matches must be positive, got %d", ErrInvalidConfig, c.Matches)
	case c.EventsPerMatch < 0:
		return fmt.Errorf("%w: events must not be negative, got %d", ErrInvalidConfig, c.EventsPerMatch)
	case c.SquadSize < 3:
		return fmt.Errorf("%w: squad size must be at least 3, got %d", ErrInvalidConfig, c.SquadSize)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.ResendRate < 0 || c.ResendRate > 1:
		return fmt.Errorf("%w: resend rate must be within [0,1], got %g", ErrInvalidConfig, c.ResendRate)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case c.Persist && c.PersistWait <= 0:
		return fmt.Errorf("%w: persist wait must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	MatchesPlayed    int
	MatchesVerified  int
	MatchesPersisted int
	EventsRecorded   int
	EventsDuplicate  int
	EventsFailed     int
	CareersChecked   int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
