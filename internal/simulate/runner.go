package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/leaguemaker/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

const recordPollInterval = 50 * time.Millisecond

type eventView struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Side            string `json:"side"`
	PlayerID        string `json:"player_id"`
	RelatedPlayerID string `json:"related_player_id"`
	Minute          int    `json:"minute"`
	Half            string `json:"half"`
}

type recordView struct {
	MatchID    string      `json:"match_id"`
	Score      Score       `json:"score"`
	FinalPhase string      `json:"final_phase"`
	Events     []eventView `json:"events"`
}

type eventResult struct {
	Status    string     `json:"status"`
	Duplicate bool       `json:"duplicate"`
	Event     *eventView `json:"event"`
	Score     Score      `json:"score"`
}

type counters struct {
	played, verified, persisted atomic.Int64
	recorded, duplicate, failed atomic.Int64
}

// Run plays cfg.Matches generated matches and verifies the service's view of
// each one. Verification failures are collected; the first transport or
// setup error aborts the affected match only.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.Validate(); err != nil {
		return stats, err
	}
	log := logger.Get().Named("simulate")
	gen := NewGenerator(&cfg)

	log.Info(ctx, "starting match simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("runID", gen.RunID()),
		logger.Int("matches", cfg.Matches),
		logger.Int("eventsPerMatch", cfg.EventsPerMatch),
		logger.Int("workers", cfg.Workers),
		logger.Bool("persist", cfg.Persist),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout, cfg.Verbose)
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	scripts := make([]Script, cfg.Matches)
	for i := range scripts {
		scripts[i] = gen.Script(i + 1)
	}
	if cfg.OutputFile != "" {
		if err := saveScripts(cfg.OutputFile, scripts); err != nil {
			log.Warn(ctx, "failed to save scripts", logger.Error(err))
		} else {
			log.Info(ctx, "scripts saved", logger.String("filename", cfg.OutputFile))
		}
	}

	var (
		c    counters
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	work := make(chan int, cfg.Workers)
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if err := playMatch(ctx, client, &cfg, &scripts[i], &c); err != nil {
					log.Error(ctx, "match failed", logger.String("match_id", scripts[i].MatchID), logger.Error(err))
					mu.Lock()
					errs = append(errs, fmt.Errorf("%s: %w", scripts[i].MatchID, err))
					mu.Unlock()
				}
			}
		}()
	}
dispatch:
	for i := range scripts {
		select {
		case <-ctx.Done():
			break dispatch
		case work <- i:
		}
	}
	close(work)
	wg.Wait()

	stats.MatchesPlayed = int(c.played.Load())
	stats.MatchesVerified = int(c.verified.Load())
	stats.MatchesPersisted = int(c.persisted.Load())
	stats.EventsRecorded = int(c.recorded.Load())
	stats.EventsDuplicate = int(c.duplicate.Load())
	stats.EventsFailed = int(c.failed.Load())

	if cfg.Persist && len(errs) == 0 {
		checked, err := verifyCareers(ctx, client, gen, scripts)
		stats.CareersChecked = checked
		if err != nil {
			errs = append(errs, err)
		}
		if err := verifyLeaderboard(ctx, client, gen, scripts); err != nil {
			errs = append(errs, err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, &stats)

	if err := errors.Join(errs...); err != nil {
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *Client) error {
	_, err := c.Do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK)
	return err
}

func playMatch(ctx context.Context, c *Client, cfg *Config, s *Script, n *counters) error {
	base := "/matches/" + s.MatchID
	clock := func(action string) error {
		_, err := c.Do(ctx, http.MethodPost, base+"/clock/"+action, nil, nil, http.StatusOK)
		return err
	}

	if _, err := c.Do(ctx, http.MethodPost, base+"/session", map[string]any{"roster": s.Roster}, nil, http.StatusCreated); err != nil {
		return err
	}
	if err := clock("start"); err != nil {
		return err
	}
	for i := range s.First {
		if err := recordStep(ctx, c, base, &s.First[i], n); err != nil {
			return err
		}
	}
	for _, action := range []string{"end-first-half", "second-half", "resume"} {
		if err := clock(action); err != nil {
			return err
		}
	}
	for i := range s.Second {
		if err := recordStep(ctx, c, base, &s.Second[i], n); err != nil {
			return err
		}
	}
	if err := clock("finish"); err != nil {
		return err
	}
	n.played.Add(1)

	if err := verifyMatch(ctx, c, base, s); err != nil {
		return err
	}
	n.verified.Add(1)

	if cfg.Persist {
		if err := persistMatch(ctx, c, cfg, s); err != nil {
			return err
		}
		n.persisted.Add(1)
	}
	_, err := c.Do(ctx, http.MethodDelete, base+"/session", nil, nil, http.StatusNoContent)
	return err
}

func recordStep(ctx context.Context, c *Client, base string, st *Step, n *counters) error {
	var res eventResult
	if _, err := c.Do(ctx, http.MethodPost, base+"/events", st, &res, http.StatusCreated); err != nil {
		n.failed.Add(1)
		return err
	}
	n.recorded.Add(1)
	if !st.Resend {
		return nil
	}
	var again eventResult
	if _, err := c.Do(ctx, http.MethodPost, base+"/events", st, &again, http.StatusOK); err != nil {
		n.failed.Add(1)
		return err
	}
	if !again.Duplicate || again.Score != res.Score {
		return fmt.Errorf("resent request %s was not treated as a duplicate", st.RequestID)
	}
	n.duplicate.Add(1)
	return nil
}

// saveScripts writes the generated scripts as JSON.
func saveScripts(filename string, scripts []Script) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(scripts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scripts: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsRecorded) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("matchesPlayed", stats.MatchesPlayed),
		logger.Int("matchesVerified", stats.MatchesVerified),
		logger.Int("matchesPersisted", stats.MatchesPersisted),
		logger.Int("eventsRecorded", stats.EventsRecorded),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("careersChecked", stats.CareersChecked),
		logger.Duration("duration", stats.Duration),
		logger.Float64("eventsPerSecond", eventsPerSecond),
	)
}
