package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/backr/internal/adapters/ledger"
	"github.com/okian/backr/internal/adapters/mq/queue"
	"github.com/okian/backr/internal/adapters/mq/worker"
	"github.com/okian/backr/internal/domain/model"
	logging "github.com/okian/backr/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockStore treats every backing as PLEDGED unless told otherwise.
type mockStore struct {
	mu       sync.Mutex
	statuses map[string]model.BackingStatus
	updates  map[string]string // backing id -> ledger ref
	err      error
	getErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		statuses: make(map[string]model.BackingStatus),
		updates:  make(map[string]string),
	}
}

func (m *mockStore) GetBacking(_ context.Context, id string) (*model.Backing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	status, ok := m.statuses[id]
	if !ok {
		status = model.BackingPledged
	}
	return &model.Backing{ID: id, Status: status}, nil
}

func (m *mockStore) UpdateBackingStatus(_ context.Context, id string, from, to model.BackingStatus, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if from != model.BackingPledged || to != model.BackingLocked {
		return fmt.Errorf("unexpected transition %s -> %s", from, to)
	}
	m.statuses[id] = to
	m.updates[id] = ref
	return nil
}

func (m *mockStore) setStatus(id string, status model.BackingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
}

func (m *mockStore) ref(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.updates[id]
	return r, ok
}

type mockKeys struct {
	mu       sync.Mutex
	released []string
}

func (m *mockKeys) Unrecord(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, key)
}

func (m *mockKeys) list() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.released...)
}

func lockJob(n int) model.LockJob {
	return model.LockJob{
		JobID:          fmt.Sprintf("job-%d", n),
		IdempotencyKey: fmt.Sprintf("key-%d", n),
		BackingID:      fmt.Sprintf("b-%d", n),
		PartyID:        "alice::1",
		Amount:         "10",
		EnqueuedAt:     time.Now(),
	}
}

func TestPool(t *testing.T) {
	nop := logging.NewNop()

	convey.Convey("Given a worker pool over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		led := ledger.NewMockClient()
		store := newMockStore()
		keys := &mockKeys{}

		var doneMu sync.Mutex
		var finished []string
		pool := worker.NewPool(3, q, led, store, keys,
			worker.WithPoolLogger(nop),
			worker.WithPoolJobDone(func(_ context.Context, job model.LockJob) {
				doneMu.Lock()
				defer doneMu.Unlock()
				finished = append(finished, job.BackingID)
			}),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When jobs succeed", func() {
			for i := 0; i < 5; i++ {
				convey.So(q.Enqueue(ctx, lockJob(i)), convey.ShouldBeNil)
			}
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then every backing is locked with the ledger contract id", func() {
				for i := 0; i < 5; i++ {
					ref, ok := store.ref(fmt.Sprintf("b-%d", i))
					convey.So(ok, convey.ShouldBeTrue)
					convey.So(ref, convey.ShouldEqual, fmt.Sprintf("mock-job-%d", i))
				}
				convey.So(led.Locks(), convey.ShouldHaveLength, 5)
				convey.So(keys.list(), convey.ShouldBeEmpty)
				convey.So(pool.Stats().Processed, convey.ShouldEqual, 5)
				convey.So(pool.Stats().Workers, convey.ShouldEqual, 3)

				doneMu.Lock()
				defer doneMu.Unlock()
				convey.So(finished, convey.ShouldHaveLength, 5)
			})
		})

		convey.Convey("When the backing was locked after the job was queued", func() {
			store.setStatus("b-4", model.BackingLocked)
			convey.So(q.Enqueue(ctx, lockJob(4)), convey.ShouldBeNil)
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then the ledger is not called and the key is released", func() {
				convey.So(led.Locks(), convey.ShouldBeEmpty)
				convey.So(keys.list(), convey.ShouldResemble, []string{"key-4"})
				convey.So(pool.Stats().Processed, convey.ShouldEqual, 0)
				convey.So(pool.Stats().Failed, convey.ShouldEqual, 0)

				doneMu.Lock()
				defer doneMu.Unlock()
				convey.So(finished, convey.ShouldResemble, []string{"b-4"})
			})
		})

		convey.Convey("When the backing cannot be read", func() {
			store.getErr = errors.New("db down")
			convey.So(q.Enqueue(ctx, lockJob(5)), convey.ShouldBeNil)
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then nothing is locked and the job counts as failed", func() {
				convey.So(led.Locks(), convey.ShouldBeEmpty)
				convey.So(keys.list(), convey.ShouldResemble, []string{"key-5"})
				convey.So(pool.Stats().Failed, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the ledger fails", func() {
			led.SetFailure(ledger.ErrUnavailable)
			convey.So(q.Enqueue(ctx, lockJob(7)), convey.ShouldBeNil)
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then the backing is untouched and the key is released", func() {
				_, ok := store.ref("b-7")
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(keys.list(), convey.ShouldResemble, []string{"key-7"})
				convey.So(pool.Stats().Failed, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the store update fails after the ledger locked", func() {
			store.err = errors.New("db down")
			convey.So(q.Enqueue(ctx, lockJob(9)), convey.ShouldBeNil)
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then the key stays recorded so the lock is not repeated", func() {
				convey.So(led.Locks(), convey.ShouldHaveLength, 1)
				convey.So(keys.list(), convey.ShouldBeEmpty)
				convey.So(pool.Stats().Failed, convey.ShouldEqual, 1)
			})
		})
	})
}

func TestPoolLifecycle(t *testing.T) {
	nop := logging.NewNop()

	convey.Convey("Given a pool that was never started", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		pool := worker.NewPool(2, q, ledger.NewMockClient(), newMockStore(), &mockKeys{}, worker.WithPoolLogger(nop))

		convey.Convey("Shutdown closes the queue and returns immediately", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a pool created with a non-positive worker count", t, func() {
		q := queue.NewInMemoryQueue()
		pool := worker.NewPool(0, q, ledger.NewMockClient(), newMockStore(), &mockKeys{}, worker.WithPoolLogger(nop))

		convey.Convey("It sizes itself from the CPU count", func() {
			convey.So(pool.Stats().Workers, convey.ShouldBeGreaterThan, 0)
		})
	})

	convey.Convey("Given a single worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		w := worker.NewInMemoryWorker(q, ledger.NewMockClient(), newMockStore(), &mockKeys{},
			worker.WithName("solo"), worker.WithLogger(nop))
		go w.Run(context.Background())

		convey.Convey("Shutdown stops it even though the queue is open", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
		})
	})
}
