// Package repository stores finished matches and answers career queries.
package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/types"
)

// MatchRecord is a stored snapshot of a finished match.
type MatchRecord struct {
	MatchID     string
	Score       model.Score
	FinalPhase  model.Phase
	Events      []model.Event // chronological
	TakenAt     time.Time
	PersistedAt time.Time
}

// Career totals a player's involvement across stored matches.
type Career struct {
	PlayerID   string `json:"player_id"`
	Matches    int    `json:"matches"`
	Goals      int    `json:"goals"`
	Assists    int    `json:"assists"`
	Cautions   int    `json:"cautions"`
	Dismissals int    `json:"dismissals"`
	SubbedOff  int    `json:"subbed_off"`
	SubbedOn   int    `json:"subbed_on"`
}

// Store provides read/write access to finished match records.
type Store interface {
	// Save stores snap, replacing any earlier record for the same match.
	Save(ctx context.Context, snap model.Snapshot) error

	// Get returns the record for matchID or ErrNotFound.
	Get(ctx context.Context, matchID string) (MatchRecord, error)

	// Career aggregates every stored event naming playerID.
	// Returns ErrNotFound if no stored match mentions the player.
	Career(ctx context.Context, playerID string) (Career, error)

	// TopScorers returns the top-n goal scorers, ties sharing a rank.
	TopScorers(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of stored matches.
	Count(ctx context.Context) int

	// Close releases the store.
	Close() error
}

func validateSnapshot(snap model.Snapshot) error { //nolint:gocritic // hugeParam: snapshots are values by contract
	if strings.TrimSpace(snap.MatchID) == "" {
		return model.Errorf("repository.save", ErrInvalidRecord, "empty match id")
	}
	if snap.FinalPhase != model.PhaseFinished {
		return model.Errorf("repository.save", ErrInvalidRecord, "match %s is %s, not finished", snap.MatchID, snap.FinalPhase)
	}
	return nil
}

func newRecord(snap model.Snapshot, now time.Time) MatchRecord { //nolint:gocritic // hugeParam: snapshots are values by contract
	return MatchRecord{
		MatchID:     snap.MatchID,
		Score:       snap.Score,
		FinalPhase:  snap.FinalPhase,
		Events:      slices.Clone(snap.Events),
		TakenAt:     snap.TakenAt,
		PersistedAt: now.UTC(),
	}
}

// tally adds the events naming c.PlayerID to c. It reports whether any did.
func (c *Career) tally(events []model.Event) bool {
	involved := false
	for _, e := range events {
		if !e.Involves(c.PlayerID) {
			continue
		}
		involved = true
		primary := e.PlayerID == c.PlayerID
		switch e.Type() {
		case model.EventGoal:
			if primary {
				c.Goals++
			} else {
				c.Assists++
			}
		case model.EventCaution:
			c.Cautions++
		case model.EventDismissal:
			c.Dismissals++
		case model.EventSubstitution:
			if primary {
				c.SubbedOff++
			} else {
				c.SubbedOn++
			}
		}
	}
	return involved
}

// rankScorers orders goal counts by goals desc then player id asc and keeps
// the first n, ties sharing a rank.
func rankScorers(goals map[string]int, n int) []types.Entry {
	entries := make([]types.Entry, 0, len(goals))
	for id, g := range goals {
		if g > 0 {
			entries = append(entries, types.Entry{PlayerID: id, Goals: g})
		}
	}
	sortEntries(entries)
	assignRanksWithTies(entries)
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func sortEntries(entries []types.Entry) {
	slices.SortFunc(entries, func(a, b types.Entry) int {
		if a.Goals != b.Goals {
			return b.Goals - a.Goals
		}
		return strings.Compare(a.PlayerID, b.PlayerID)
	})
}

// assignRanksWithTies gives equal goal counts the same rank; the next
// distinct count takes the next consecutive rank.
func assignRanksWithTies(entries []types.Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Goals != entries[i-1].Goals {
			rank++
		}
		entries[i].Rank = rank
	}
}
