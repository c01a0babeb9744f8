package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/leaguemaker/internal/adapters/mq/queue"
	worker "github.com/okian/leaguemaker/internal/adapters/mq/worker"
	model "github.com/okian/leaguemaker/internal/domain/model"
	logging "github.com/okian/leaguemaker/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(matchID string) queue.Job {
	job := queue.Job{
		ID:         "job-" + matchID,
		MatchID:    matchID,
		Snapshot:   model.Snapshot{MatchID: matchID, Score: model.Score{Home: 1}, FinalPhase: model.PhaseFinished},
		EnqueuedAt: time.Now(),
	}
	mq.jobs <- job
	return job
}

// blockingSaver never finishes a save on its own.
type blockingSaver struct {
	started chan struct{}
}

func (bs blockingSaver) Save(ctx context.Context, _ model.Snapshot) error { //nolint:gocritic // hugeParam: matches Saver
	select {
	case bs.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

type mockSaver struct {
	mu       sync.Mutex
	saved    map[string]model.Snapshot
	failures map[string]int // remaining failures per match
	calls    map[string]int
	err      error
}

func newMockSaver() *mockSaver {
	return &mockSaver{
		saved:    make(map[string]model.Snapshot),
		failures: make(map[string]int),
		calls:    make(map[string]int),
		err:      errors.New("store unavailable"),
	}
}

func (ms *mockSaver) Save(ctx context.Context, snap model.Snapshot) error { //nolint:gocritic // hugeParam: matches Saver
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.calls[snap.MatchID]++
	if n := ms.failures[snap.MatchID]; n != 0 {
		if n > 0 {
			ms.failures[snap.MatchID] = n - 1
		}
		return ms.err
	}
	ms.saved[snap.MatchID] = snap
	return nil
}

func (ms *mockSaver) failFor(matchID string, times int) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failures[matchID] = times
}

func (ms *mockSaver) callCount(matchID string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.calls[matchID]
}

func (ms *mockSaver) savedCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.saved)
}

type mockAck struct {
	mu     sync.Mutex
	acked  []string
	nacked map[string]error
}

func newMockAck() *mockAck {
	return &mockAck{nacked: make(map[string]error)}
}

func (ma *mockAck) Ack(ctx context.Context, job queue.Job) { //nolint:gocritic // hugeParam: matches Acknowledger
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.acked = append(ma.acked, job.MatchID)
}

func (ma *mockAck) Nack(ctx context.Context, job queue.Job, err error) { //nolint:gocritic // hugeParam: matches Acknowledger
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.nacked[job.MatchID] = err
}

func (ma *mockAck) counts() (int, int) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return len(ma.acked), len(ma.nacked)
}

func (ma *mockAck) nackErr(matchID string) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return ma.nacked[matchID]
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a worker with a saver and an acknowledger", t, func() {
		q := newMockQueue()
		saver := newMockSaver()
		ack := newMockAck()
		w := worker.NewInMemoryWorker(q, saver,
			worker.WithName("test-worker"),
			worker.WithAcknowledger(ack),
			worker.WithBackoff(time.Millisecond),
			worker.WithRetries(2),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is saved on the first attempt", func() {
			q.add("m1")

			convey.Convey("Then the snapshot is stored and acked", func() {
				convey.So(waitFor(func() bool { a, _ := ack.counts(); return a == 1 }), convey.ShouldBeTrue)
				convey.So(saver.savedCount(), convey.ShouldEqual, 1)
				convey.So(saver.callCount("m1"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the saver fails transiently", func() {
			saver.failFor("m2", 2)
			q.add("m2")

			convey.Convey("Then the job is retried until it succeeds", func() {
				convey.So(waitFor(func() bool { a, _ := ack.counts(); return a == 1 }), convey.ShouldBeTrue)
				convey.So(saver.callCount("m2"), convey.ShouldEqual, 3)
				_, nacked := ack.counts()
				convey.So(nacked, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the saver keeps failing", func() {
			saver.failFor("m3", -1)
			q.add("m3")

			convey.Convey("Then the job is nacked after the retries run out", func() {
				convey.So(waitFor(func() bool { _, n := ack.counts(); return n == 1 }), convey.ShouldBeTrue)
				convey.So(saver.callCount("m3"), convey.ShouldEqual, 3)
				convey.So(errors.Is(ack.nackErr("m3"), saver.err), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()

			convey.Convey("Then Run returns and shutdown is idempotent", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose queue is closed", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, newMockSaver())
		_ = q.Close()

		convey.Convey("When it runs", func() {
			finished := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(finished)
			}()

			convey.Convey("Then it exits on its own", func() {
				select {
				case <-finished:
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool of workers", t, func() {
		q := newMockQueue()
		saver := newMockSaver()
		ack := newMockAck()
		pool := worker.NewPool(3, q, saver, worker.WithAcknowledger(ack), worker.WithBackoff(time.Millisecond))

		convey.So(pool.Size(), convey.ShouldEqual, 3)

		convey.Convey("When jobs are queued and the pool shuts down", func() {
			pool.Start(context.Background())
			for _, id := range []string{"a", "b", "c", "d", "e"} {
				q.add(id)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued job is stored before shutdown returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(saver.savedCount(), convey.ShouldEqual, 5)
				acked, _ := ack.counts()
				convey.So(acked, convey.ShouldEqual, 5)
			})
		})
	})

	convey.Convey("Given a pool whose saver hangs until its context ends", t, func() {
		q := newMockQueue()
		ack := newMockAck()
		saver := blockingSaver{started: make(chan struct{}, 1)}
		pool := worker.NewPool(1, q, saver, worker.WithAcknowledger(ack), worker.WithRetries(0))
		pool.Start(context.Background())
		q.add("stuck")
		<-saver.started

		convey.Convey("When shutdown runs out of time", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			began := time.Now()
			err := pool.Shutdown(ctx)

			convey.Convey("Then the save is canceled and shutdown returns promptly", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
				convey.So(time.Since(began), convey.ShouldBeLessThan, 2*time.Second)
				convey.So(waitFor(func() bool { _, nacked := ack.counts(); return nacked == 1 }), convey.ShouldBeTrue)
				convey.So(errors.Is(ack.nackErr("stuck"), context.Canceled), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool created with a non-positive count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockSaver())

		convey.Convey("Then it falls back to one worker per CPU", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestWorkerWithRealQueue(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given the in-memory queue feeding a pool", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		saver := newMockSaver()
		pool := worker.NewPool(2, q, saver)
		pool.Start(context.Background())

		convey.Convey("When snapshots are enqueued", func() {
			for _, id := range []string{"x", "y", "z"} {
				_, err := q.Enqueue(context.Background(), model.Snapshot{MatchID: id, FinalPhase: model.PhaseFinished})
				convey.So(err, convey.ShouldBeNil)
			}
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then they are all persisted", func() {
				convey.So(saver.savedCount(), convey.ShouldEqual, 3)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerOptions(t *testing.T) {
	convey.Convey("Given invalid option values", t, func() {
		convey.Convey("Then they are ignored without panicking", func() {
			convey.So(func() {
				worker.NewInMemoryWorker(newMockQueue(), newMockSaver(),
					worker.WithName(""),
					worker.WithLogger(nil),
					worker.WithRetries(-1),
					worker.WithBackoff(-time.Second),
					worker.WithAcknowledger(nil),
				)
			}, convey.ShouldNotPanic)
		})
	})
}
