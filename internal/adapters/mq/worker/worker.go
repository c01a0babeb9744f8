// Package worker stores finished-match snapshots taken off the persist queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/leaguemaker/internal/adapters/mq/queue"
	"github.com/okian/leaguemaker/internal/domain/model"
	"github.com/okian/leaguemaker/pkg/logger"
	"github.com/okian/leaguemaker/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetries      = 3
	defaultBackoff      = 200 * time.Millisecond
	poolShutdownTimeout = 30 * time.Second
	workerStopTimeout   = 5 * time.Second
)

// Persist job outcomes reported to metrics.
const (
	OutcomeStored = "stored"
	OutcomeFailed = "failed"
)

// Saver writes a snapshot to the match record store.
type Saver interface {
	Save(ctx context.Context, snap model.Snapshot) error
}

// Acknowledger is told how each job ended.
type Acknowledger interface {
	Ack(ctx context.Context, job queue.Job)
	Nack(ctx context.Context, job queue.Job, err error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes persist jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	saver   Saver
	ack     Acknowledger
	name    string
	retries int
	backoff time.Duration
	active  *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		saver:    saver,
		ack:      nopAcknowledger{},
		name:     "worker",
		retries:  defaultRetries,
		backoff:  defaultBackoff,
		active:   &atomic.Int64{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) { //nolint:gocritic // hugeParam: jobs are values by contract
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() { metrics.UpdateWorkerActiveCount(int(w.active.Add(-1))) }()

	if err := w.save(ctx, job); err != nil {
		metrics.RecordPersistJob(OutcomeFailed)
		metrics.RecordErrorByComponent("worker", "persist_failed")
		w.logger.Error(ctx, "persist failed",
			logger.String("job_id", job.ID),
			logger.String("match_id", job.MatchID),
			logger.Error(err),
		)
		w.ack.Nack(ctx, job, err)
		return
	}
	metrics.RecordPersistJob(OutcomeStored)
	metrics.RecordPersistLatency(float64(time.Since(job.EnqueuedAt).Milliseconds()))
	w.logger.Debug(ctx, "match stored",
		logger.String("job_id", job.ID),
		logger.String("match_id", job.MatchID),
		logger.Int("events", len(job.Snapshot.Events)),
	)
	w.ack.Ack(ctx, job)
}

// save calls the saver, retrying with doubling backoff.
func (w *InMemoryWorker) save(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: jobs are values by contract
	delay := w.backoff
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			metrics.RecordPersistRetry()
			w.logger.Warn(ctx, "retrying persist",
				logger.String("match_id", job.MatchID),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", delay),
				logger.Error(err),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("persist %s: %w", job.MatchID, ctx.Err())
			case <-w.shutdown:
				timer.Stop()
				return fmt.Errorf("persist %s: %w (last error: %w)", job.MatchID, queue.ErrQueueClosed, err)
			case <-timer.C:
			}
			delay *= 2
		}
		if err = w.saver.Save(ctx, job.Snapshot); err == nil {
			return nil
		}
	}
	return fmt.Errorf("persist %s after %d attempts: %w", job.MatchID, w.retries+1, err)
}

type nopAcknowledger struct{}

func (nopAcknowledger) Ack(context.Context, queue.Job)         {}
func (nopAcknowledger) Nack(context.Context, queue.Job, error) {}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	cancel  context.CancelFunc
	logger  logger.Logger
}

// NewPool creates a new worker pool. opts apply to every worker.
func NewPool(workerCount int, queue Queue, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i)), withActiveCounter(&p.active)}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, saver, workerOpts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool. Canceling ctx abandons queued jobs;
// use Shutdown to drain them.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets the workers drain it. Workers still
// busy when ctx (or the pool timeout) expires have their saves canceled and
// get a bounded grace period to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
drain:
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			break drain
		}
	}
	if p.cancel != nil {
		defer p.cancel()
	}
	if !timedOut {
		return nil
	}

	p.logger.Warn(ctx, "worker drain timed out, canceling in-flight saves")
	if p.cancel != nil {
		p.cancel()
	}
	stopCtx, stop := context.WithTimeout(context.Background(), workerStopTimeout)
	defer stop()
	for i, w := range p.workers {
		if err := w.Shutdown(stopCtx); err != nil {
			p.logger.Error(ctx, "worker did not stop", logger.Int("worker_id", i), logger.Error(err))
		}
	}
	return fmt.Errorf("worker pool drain: %w", shutdownCtx.Err())
}
