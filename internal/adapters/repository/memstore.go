package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/types"
	"github.com/okian/leaguemaker/pkg/metrics"
)

// MemoryStore keeps match records in a map. It is the default store and
// the one used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]MatchRecord
	closed  bool
	opts    options
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]MatchRecord),
		opts:    defaultOptions(),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// Save implements Store.Save.
func (s *MemoryStore) Save(ctx context.Context, snap model.Snapshot) error { //nolint:gocritic // hugeParam: snapshots are values by contract
	start := time.Now()
	defer func() {
		metrics.RecordRepositorySaveLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateSnapshot(snap); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_record")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.records[snap.MatchID] = newRecord(snap, s.opts.now())
	s.updateMetrics()
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, matchID string) (MatchRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[matchID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return MatchRecord{}, ErrNotFound
	}
	rec.Events = slices.Clone(rec.Events)
	return rec, nil
}

// Career implements Store.Career.
func (s *MemoryStore) Career(ctx context.Context, playerID string) (Career, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Career{PlayerID: playerID}
	for _, rec := range s.records {
		if c.tally(rec.Events) {
			c.Matches++
		}
	}
	if c.Matches == 0 {
		return Career{}, ErrNotFound
	}
	return c, nil
}

// TopScorers implements Store.TopScorers.
func (s *MemoryStore) TopScorers(ctx context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	goals := make(map[string]int)
	for _, rec := range s.records {
		for _, e := range rec.Events {
			if e.IsGoal() {
				goals[e.PlayerID]++
			}
		}
	}
	return rankScorers(goals, n), nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// updateMetrics refreshes the record gauges (assumes lock is held).
func (s *MemoryStore) updateMetrics() {
	byType := map[model.EventType]int{
		model.EventGoal:         0,
		model.EventCaution:      0,
		model.EventDismissal:    0,
		model.EventSubstitution: 0,
	}
	for _, rec := range s.records {
		for _, e := range rec.Events {
			byType[e.Type()]++
		}
	}
	for t, n := range byType {
		metrics.UpdateRepositoryEventsByType(string(t), n)
	}
	metrics.UpdateRepositoryRecordsTotal(len(s.records))
}
