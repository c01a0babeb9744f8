package service

import (
	"context"
	"errors"
	"fmt"

	eventqueue "github.com/okian/leaguemaker/internal/adapters/mq/queue"
	workerpool "github.com/okian/leaguemaker/internal/adapters/mq/worker"
	"github.com/okian/leaguemaker/internal/adapters/repository"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/types"
	"github.com/okian/leaguemaker/pkg/logger"
)

var _ workerpool.Acknowledger = (*Service)(nil)

// Persist queues the finished match's snapshot for storage. The session
// rejects edits and reset from here on; a failed store attempt releases it.
func (s *Service) Persist(ctx context.Context, matchID string) (eventqueue.Job, error) {
	const op = "service.persist"
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return eventqueue.Job{}, s.observe(model.WrapKind(op, model.ErrIllegalState, ErrNotStarted))
	}

	var job eventqueue.Job
	err := s.withSession(op, matchID, func(h *hosted) error {
		switch {
		case h.ctrl.Persisted():
			return model.Errorf(op, model.ErrIllegalState, "match %s already persisted", matchID)
		case h.ctrl.Frozen():
			return model.WrapKind(op, model.ErrIllegalState, ErrPersistPending)
		}
		snap := h.ctrl.Snapshot()
		if snap.FinalPhase != model.PhaseFinished {
			return model.Errorf(op, model.ErrIllegalState, "match %s is %s, finish it first", matchID, snap.FinalPhase)
		}

		var err error
		job, err = s.eventQueue.Enqueue(ctx, snap)
		if err != nil {
			if errors.Is(err, eventqueue.ErrQueueFull) {
				s.logger.Warn(ctx, "persist queue full", logger.String("match_id", matchID))
				return fmt.Errorf("%w: %w", ErrBackpressure, err)
			}
			return fmt.Errorf("enqueue %s: %w", matchID, err)
		}
		h.ctrl.Freeze()
		s.logger.Info(ctx, "snapshot queued",
			logger.String("match_id", matchID),
			logger.String("job_id", job.ID),
			logger.Int("events", len(snap.Events)),
		)
		return nil
	})
	return job, err
}

// Ack marks the session persisted once its snapshot is stored.
func (s *Service) Ack(ctx context.Context, job eventqueue.Job) { //nolint:gocritic // hugeParam: jobs are values by contract
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if h, ok := s.sessions[job.MatchID]; ok {
		h.ctrl.MarkPersisted()
	}
	s.logger.Info(ctx, "match persisted", logger.String("match_id", job.MatchID), logger.String("job_id", job.ID))
}

// Nack releases the session so the snapshot can be queued again.
func (s *Service) Nack(ctx context.Context, job eventqueue.Job, err error) { //nolint:gocritic // hugeParam: jobs are values by contract
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if h, ok := s.sessions[job.MatchID]; ok {
		h.ctrl.Thaw()
	}
	s.logger.Error(ctx, "match not persisted",
		logger.String("match_id", job.MatchID),
		logger.String("job_id", job.ID),
		logger.Error(err),
	)
}

// MatchRecord returns the stored record of a finished match.
func (s *Service) MatchRecord(ctx context.Context, matchID string) (repository.MatchRecord, error) {
	store, err := s.currentStore()
	if err != nil {
		return repository.MatchRecord{}, err
	}
	rec, err := store.Get(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.MatchRecord{}, s.observe(model.WrapKind("service.match_record", model.ErrNotFound, err))
	}
	return rec, err
}

// Career aggregates a player's stored events.
func (s *Service) Career(ctx context.Context, playerID string) (repository.Career, error) {
	store, err := s.currentStore()
	if err != nil {
		return repository.Career{}, err
	}
	c, err := store.Career(ctx, playerID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Career{}, s.observe(model.WrapKind("service.career", model.ErrNotFound, err))
	}
	return c, err
}

// TopScorers returns the top-n scorers across stored matches.
func (s *Service) TopScorers(ctx context.Context, n int) ([]types.Entry, error) {
	store, err := s.currentStore()
	if err != nil {
		return nil, err
	}
	entries, err := store.TopScorers(ctx, n)
	if errors.Is(err, repository.ErrInvalidLimit) {
		return nil, s.observe(model.WrapKind("service.top_scorers", model.ErrValidation, err))
	}
	return entries, err
}
