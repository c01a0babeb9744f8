// Package service hosts live match sessions and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/leaguemaker/internal/adapters/mq/queue"
	workerpool "github.com/okian/leaguemaker/internal/adapters/mq/worker"
	"github.com/okian/leaguemaker/internal/adapters/repository"
	"github.com/okian/leaguemaker/internal/config"
	"github.com/okian/leaguemaker/internal/domain/clock"
	"github.com/okian/leaguemaker/internal/domain/dedupe"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/internal/domain/session"
	"github.com/okian/leaguemaker/pkg/logger"
	"github.com/okian/leaguemaker/pkg/metrics"
)

// hosted is one open session and when it was opened.
type hosted struct {
	ctrl     *session.Controller
	openedAt time.Time
}

// Service owns one session controller per match and serializes every call
// to a session behind sessMu.
type Service struct {
	// mu guards the lifecycle fields below.
	mu sync.RWMutex

	// Core components
	store      repository.Store
	ownsStore  bool
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	halfDuration   int
	clockMode      clock.Mode
	tickInterval   time.Duration
	maxSessions    int
	persistRetries int
	persistBackoff time.Duration
	storeDriver    string
	sqlitePath     string

	// State
	started    bool
	stopCh     chan struct{}
	tickerDone chan struct{}

	sessMu   sync.Mutex
	sessions map[string]*hosted

	now    func() time.Time
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      1024,
		dedupeSize:     dedupe.DefaultMaxSize,
		halfDuration:   clock.DefaultHalfDuration,
		clockMode:      clock.ModeExplicit,
		tickInterval:   time.Second,
		persistRetries: 3,
		persistBackoff: 200 * time.Millisecond,
		storeDriver:    config.StoreMemory,
		sessions:       make(map[string]*hosted),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start opens the store, starts the persist workers and the clock ticker.
// Canceling ctx stops the ticker only; persist workers run until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting match service...")

	if s.store == nil {
		store, err := s.openStore()
		if err != nil {
			return fmt.Errorf("open %s store: %w", s.storeDriver, err)
		}
		s.store = store
		s.ownsStore = true
	}
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.store,
		workerpool.WithAcknowledger(s),
		workerpool.WithRetries(s.persistRetries),
		workerpool.WithBackoff(s.persistBackoff),
		workerpool.WithLogger(s.logger.Named("persist")),
	)
	// Queued snapshots outlive the caller's context; Stop drains them.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.stopCh = make(chan struct{})
	s.tickerDone = make(chan struct{})
	go s.runTicker(ctx, s.stopCh, s.tickerDone)

	s.started = true
	s.logger.Info(ctx, "match service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("clockMode", string(s.clockMode)),
		logger.Duration("tickInterval", s.tickInterval),
	)

	return nil
}

func (s *Service) openStore() (repository.Store, error) {
	switch s.storeDriver {
	case config.StoreSQLite:
		s.logger.Info(context.Background(), "using sqlite store", logger.String("path", s.sqlitePath))
		return repository.OpenSQLite(s.sqlitePath)
	case "", config.StoreMemory:
		s.logger.Info(context.Background(), "using memory store")
		return repository.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", s.storeDriver)
}

// Stop drains the persist queue and shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping match service...")

	close(s.stopCh)
	<-s.tickerDone

	// Workers call back into the service while draining; they only take
	// sessMu, which is free here.
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "persist workers did not drain", logger.Error(err))
	}

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "error closing store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "match service stopped")
}

// runTicker advances every open session once per tick interval.
func (s *Service) runTicker(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if s.tickInterval <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances the clock of every open session by one second and returns
// how many clocks moved.
func (s *Service) Tick(ctx context.Context) int {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	moved := 0
	for id, h := range s.sessions {
		before := h.ctrl.Clock().Phase()
		if !h.ctrl.Tick() {
			continue
		}
		moved++
		metrics.RecordClockTick()
		if after := h.ctrl.Clock().Phase(); after != before {
			metrics.RecordClockTransition("auto")
			s.logger.Info(ctx, "clock moved on",
				logger.String("match_id", id),
				logger.String("from", string(before)),
				logger.String("to", string(after)),
			)
		}
	}
	return moved
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) currentStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return nil, model.WrapKind("service.store", model.ErrIllegalState, ErrNotStarted)
	}
	return s.store, nil
}

// observe counts domain errors by kind and passes err through.
func (s *Service) observe(err error) error {
	if err == nil {
		return nil
	}
	switch kind := model.KindOf(err); {
	case errors.Is(kind, model.ErrValidation):
		metrics.RecordDomainError("validation")
	case errors.Is(kind, model.ErrInvalidEvent):
		metrics.RecordDomainError("invalid_event")
	case errors.Is(kind, model.ErrNotFound):
		metrics.RecordDomainError("not_found")
	case errors.Is(kind, model.ErrIllegalState):
		metrics.RecordDomainError("illegal_state")
	case errors.Is(kind, model.ErrScoreUnderflow):
		metrics.RecordDomainError("score_underflow")
	}
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	s.sessMu.Lock()
	open := len(s.sessions)
	pending := 0
	for _, h := range s.sessions {
		if h.ctrl.Frozen() {
			pending++
		}
	}
	s.sessMu.Unlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"dedupeEntries":   s.deduper.Size(),
		"openSessions":    open,
		"pendingPersists": pending,
		"maxSessions":     s.maxSessions,
		"clockMode":       string(s.clockMode),
		"halfDuration":    s.halfDuration,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stored := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["storedMatches"] = stored

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateRepositoryRecordsTotal(stored)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	metrics.UpdateSessionsOpen(open)

	return stats
}
