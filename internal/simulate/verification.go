package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

const scorersLimit = 100

// ErrMismatch reports a difference between what was played and what the
// service returned.
var ErrMismatch = errors.New("simulation mismatch")

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMismatch, fmt.Sprintf(format, args...))
}

// verifyMatch checks the finished session: the score equals the one the
// script implies and the one recomputed from the listed events, and the
// descending listing is the exact reverse of the ascending one.
func verifyMatch(ctx context.Context, c *Client, base string, s *Script) error {
	var snap recordView
	if _, err := c.Do(ctx, http.MethodGet, base+"/snapshot", nil, &snap, http.StatusOK); err != nil {
		return err
	}
	want := s.Score()
	if snap.FinalPhase != "finished" {
		return mismatch("%s final phase is %q", s.MatchID, snap.FinalPhase)
	}
	if snap.Score != want {
		return mismatch("%s score %+v, want %+v", s.MatchID, snap.Score, want)
	}
	if got := tallyScore(snap.Events); got != snap.Score {
		return mismatch("%s score %+v disagrees with its events %+v", s.MatchID, snap.Score, got)
	}
	if len(snap.Events) != len(s.First)+len(s.Second) {
		return mismatch("%s has %d events, want %d", s.MatchID, len(snap.Events), len(s.First)+len(s.Second))
	}

	var asc, desc []eventView
	if _, err := c.Do(ctx, http.MethodGet, base+"/events?order=asc", nil, &asc, http.StatusOK); err != nil {
		return err
	}
	if _, err := c.Do(ctx, http.MethodGet, base+"/events?order=desc", nil, &desc, http.StatusOK); err != nil {
		return err
	}
	slices.Reverse(desc)
	if !slices.Equal(ids(asc), ids(desc)) {
		return mismatch("%s descending events are not the reverse of ascending", s.MatchID)
	}
	for i := 1; i < len(asc); i++ {
		if before(asc[i], asc[i-1]) {
			return mismatch("%s events out of order at %s", s.MatchID, asc[i].ID)
		}
	}
	return nil
}

// persistMatch queues the match and waits for the stored record.
func persistMatch(ctx context.Context, c *Client, cfg *Config, s *Script) error {
	if _, err := c.Do(ctx, http.MethodPost, "/matches/"+s.MatchID+"/persist", nil, nil, http.StatusAccepted); err != nil {
		return err
	}

	deadline := time.Now().Add(cfg.PersistWait)
	for {
		var rec recordView
		code, err := c.Do(ctx, http.MethodGet, "/records/"+s.MatchID, nil, &rec, http.StatusOK, http.StatusNotFound)
		if err != nil {
			return err
		}
		if code == http.StatusOK {
			if rec.Score != s.Score() {
				return mismatch("%s stored score %+v, want %+v", s.MatchID, rec.Score, s.Score())
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s was not stored within %s", s.MatchID, cfg.PersistWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(recordPollInterval):
		}
	}
}

// verifyCareers compares every rostered player's career with the tallies
// of the scripts. Players without events must have no career.
func verifyCareers(ctx context.Context, c *Client, gen *Generator, scripts []Script) (int, error) {
	tallies := map[string]*Tally{}
	for i := range scripts {
		scripts[i].Tallies(tallies)
	}

	checked := 0
	var errs []error
	for _, side := range []string{"home", "away"} {
		for n := 1; n <= gen.squadSize; n++ {
			id := gen.PlayerID(side, n)
			var got Tally
			code, err := c.Do(ctx, http.MethodGet, "/players/"+id+"/career", nil, &got, http.StatusOK, http.StatusNotFound)
			if err != nil {
				return checked, err
			}
			checked++
			want, ok := tallies[id]
			switch {
			case !ok && code == http.StatusNotFound:
			case !ok:
				errs = append(errs, mismatch("career of %s exists without events", id))
			case code == http.StatusNotFound:
				errs = append(errs, mismatch("career of %s is missing", id))
			case got != *want:
				errs = append(errs, mismatch("career of %s is %+v, want %+v", id, got, *want))
			}
		}
	}
	return checked, errors.Join(errs...)
}

// verifyLeaderboard checks the scorers ranking is ordered with shared ranks
// and agrees with the scripts for this run's players.
func verifyLeaderboard(ctx context.Context, c *Client, gen *Generator, scripts []Script) error {
	var entries []struct {
		Rank     int    `json:"rank"`
		PlayerID string `json:"player_id"`
		Goals    int    `json:"goals"`
	}
	path := fmt.Sprintf("/leaders/scorers?limit=%d", scorersLimit)
	if _, err := c.Do(ctx, http.MethodGet, path, nil, &entries, http.StatusOK); err != nil {
		return err
	}

	tallies := map[string]*Tally{}
	for i := range scripts {
		scripts[i].Tallies(tallies)
	}

	for i, e := range entries {
		if i > 0 {
			prev := entries[i-1]
			switch {
			case e.Goals > prev.Goals:
				return mismatch("scorers not sorted at rank %d", e.Rank)
			case e.Goals == prev.Goals && e.Rank != prev.Rank:
				return mismatch("tied scorers %s and %s have different ranks", prev.PlayerID, e.PlayerID)
			case e.Goals < prev.Goals && e.Rank != prev.Rank+1:
				return mismatch("rank gap after %s", prev.PlayerID)
			}
		}
		if !strings.HasPrefix(e.PlayerID, gen.RunID()+"-") {
			continue
		}
		if t, ok := tallies[e.PlayerID]; !ok || t.Goals != e.Goals {
			return mismatch("leaderboard has %d goals for %s", e.Goals, e.PlayerID)
		}
	}
	return nil
}

func tallyScore(events []eventView) Score {
	var sc Score
	for _, e := range events {
		if e.Type != "goal" {
			continue
		}
		if e.Side == "home" {
			sc.Home++
		} else {
			sc.Away++
		}
	}
	return sc
}

func ids(events []eventView) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func before(a, b eventView) bool {
	if a.Half != b.Half {
		return a.Half == "first"
	}
	return a.Minute < b.Minute
}
