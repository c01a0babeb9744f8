package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/types"
	"github.com/okian/leaguemaker/pkg/metrics"
)

// matchRow is one stored match.
type matchRow struct {
	MatchID     string `gorm:"primaryKey"`
	HomeScore   int
	AwayScore   int
	FinalPhase  string
	TakenAt     time.Time
	PersistedAt time.Time
}

func (matchRow) TableName() string { return "match_records" }

// eventRow is one stored event. Position keeps chronological order.
type eventRow struct {
	MatchID         string `gorm:"primaryKey"`
	ID              string `gorm:"primaryKey"`
	Position        int
	Seq             uint64
	Type            string `gorm:"index"`
	Side            string
	PlayerID        string `gorm:"index"`
	RelatedPlayerID string `gorm:"index"`
	Reason          string
	Minute          int
	Half            string
}

func (eventRow) TableName() string { return "match_events" }

func toEventRow(matchID string, pos int, e model.Event) eventRow { //nolint:gocritic // hugeParam: events are values by contract
	v := types.FromEvent(e)
	return eventRow{
		MatchID:         matchID,
		ID:              v.ID,
		Position:        pos,
		Seq:             v.Seq,
		Type:            v.Type,
		Side:            v.Side,
		PlayerID:        v.PlayerID,
		RelatedPlayerID: v.RelatedPlayerID,
		Reason:          v.Reason,
		Minute:          v.Minute,
		Half:            v.Half,
	}
}

func (r eventRow) model() (model.Event, error) { //nolint:gocritic // hugeParam: row scan target
	return types.Event{
		ID:              r.ID,
		Type:            r.Type,
		Side:            r.Side,
		PlayerID:        r.PlayerID,
		RelatedPlayerID: r.RelatedPlayerID,
		Reason:          r.Reason,
		Minute:          r.Minute,
		Half:            r.Half,
		Seq:             r.Seq,
	}.Model()
}

func toModelEvents(rows []eventRow) ([]model.Event, error) {
	events := make([]model.Event, 0, len(rows))
	for _, row := range rows {
		e, err := row.model()
		if err != nil {
			return nil, fmt.Errorf("decode event %s/%s: %w", row.MatchID, row.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// SQLStore keeps match records in SQLite through gorm.
type SQLStore struct {
	db   *gorm.DB
	opts options
}

// OpenSQLite opens (creating when missing) the database at path and
// migrates the schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string, opts ...Option) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return NewSQLStore(db, opts...)
}

// NewSQLStore wraps an open gorm handle and runs migrations.
func NewSQLStore(db *gorm.DB, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{db: db, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&s.opts)
	}
	if err := db.AutoMigrate(&matchRow{}, &eventRow{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	s.updateMetrics(context.Background())
	return s, nil
}

// Save implements Store.Save. The match row is upserted and its events are
// replaced in one transaction.
func (s *SQLStore) Save(ctx context.Context, snap model.Snapshot) error { //nolint:gocritic // hugeParam: snapshots are values by contract
	start := time.Now()
	defer func() {
		metrics.RecordRepositorySaveLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := validateSnapshot(snap); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_record")
		return err
	}

	rec := newRecord(snap, s.opts.now())
	row := matchRow{
		MatchID:     rec.MatchID,
		HomeScore:   rec.Score.Home,
		AwayScore:   rec.Score.Away,
		FinalPhase:  string(rec.FinalPhase),
		TakenAt:     rec.TakenAt,
		PersistedAt: rec.PersistedAt,
	}
	events := make([]eventRow, 0, len(rec.Events))
	for i, e := range rec.Events {
		events = append(events, toEventRow(rec.MatchID, i, e))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"home_score", "away_score", "final_phase", "taken_at", "persisted_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("match_id = ?", rec.MatchID).Delete(&eventRow{}).Error; err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		return tx.CreateInBatches(events, 200).Error
	})
	if err != nil {
		metrics.RecordErrorByComponent("repository", "save_failed")
		return fmt.Errorf("save match %s: %w", rec.MatchID, err)
	}
	s.updateMetrics(ctx)
	return nil
}

// Get implements Store.Get.
func (s *SQLStore) Get(ctx context.Context, matchID string) (MatchRecord, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var row matchRow
	if err := s.db.WithContext(ctx).Where("match_id = ?", matchID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.RecordErrorByComponent("repository", "not_found")
			return MatchRecord{}, ErrNotFound
		}
		return MatchRecord{}, fmt.Errorf("get match %s: %w", matchID, err)
	}
	var rows []eventRow
	if err := s.db.WithContext(ctx).Where("match_id = ?", matchID).Order("position").Find(&rows).Error; err != nil {
		return MatchRecord{}, fmt.Errorf("get events of %s: %w", matchID, err)
	}
	events, err := toModelEvents(rows)
	if err != nil {
		return MatchRecord{}, err
	}
	return MatchRecord{
		MatchID:     row.MatchID,
		Score:       model.Score{Home: row.HomeScore, Away: row.AwayScore},
		FinalPhase:  model.Phase(row.FinalPhase),
		Events:      events,
		TakenAt:     row.TakenAt,
		PersistedAt: row.PersistedAt,
	}, nil
}

// Career implements Store.Career.
func (s *SQLStore) Career(ctx context.Context, playerID string) (Career, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var rows []eventRow
	if err := s.db.WithContext(ctx).
		Where("player_id = ? OR related_player_id = ?", playerID, playerID).
		Order("match_id").Order("position").
		Find(&rows).Error; err != nil {
		return Career{}, fmt.Errorf("career of %s: %w", playerID, err)
	}
	if len(rows) == 0 {
		return Career{}, ErrNotFound
	}

	c := Career{PlayerID: playerID}
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].MatchID == rows[i].MatchID {
			j++
		}
		events, err := toModelEvents(rows[i:j])
		if err != nil {
			return Career{}, err
		}
		if c.tally(events) {
			c.Matches++
		}
		i = j
	}
	return c, nil
}

// TopScorers implements Store.TopScorers.
func (s *SQLStore) TopScorers(ctx context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	var counts []struct {
		PlayerID string
		Goals    int
	}
	if err := s.db.WithContext(ctx).Model(&eventRow{}).
		Select("player_id, COUNT(*) AS goals").
		Where("type = ?", string(model.EventGoal)).
		Group("player_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("top scorers: %w", err)
	}
	goals := make(map[string]int, len(counts))
	for _, c := range counts {
		goals[c.PlayerID] = c.Goals
	}
	return rankScorers(goals, n), nil
}

// Count implements Store.Count.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int64
	if err := s.db.WithContext(ctx).Model(&matchRow{}).Count(&n).Error; err != nil {
		metrics.RecordErrorByComponent("repository", "count_failed")
		return 0
	}
	return int(n)
}

// Close implements Store.Close.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) updateMetrics(ctx context.Context) {
	metrics.UpdateRepositoryRecordsTotal(s.Count(ctx))

	var counts []struct {
		Type  string
		Total int
	}
	if err := s.db.WithContext(ctx).Model(&eventRow{}).
		Select("type, COUNT(*) AS total").
		Group("type").
		Scan(&counts).Error; err != nil {
		return
	}
	for _, c := range counts {
		metrics.UpdateRepositoryEventsByType(c.Type, c.Total)
	}
}
