package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/trustmatch/internal/adapters/mq/queue"
	"github.com/okian/trustmatch/internal/adapters/mq/worker"
	"github.com/okian/trustmatch/internal/domain/model"
	logging "github.com/okian/trustmatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockProcessor struct {
	mu        sync.Mutex
	processed []string
	fail      map[string]error
	delay     time.Duration
	seen      chan string
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{fail: make(map[string]error), seen: make(chan string, 100)}
}

func (m *mockProcessor) ProcessActivity(ctx context.Context, e worker.Event) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	defer func() { m.seen <- e.EventID }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[e.EventID]; ok {
		return err
	}
	m.processed = append(m.processed, e.EventID)
	return nil
}

func (m *mockProcessor) done() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.processed...)
}

func (m *mockProcessor) wait(n int) bool {
	timeout := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-m.seen:
		case <-timeout:
			return false
		}
	}
	return true
}

func event(id string) model.Activity {
	return model.Activity{EventID: id, SubjectID: "u-" + id, Kind: model.KindLogin, At: time.Now()}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a queue", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		proc := newMockProcessor()
		w := worker.NewInMemoryWorker(q, proc, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When events are queued", func() {
			q.Enqueue(ctx, event("e1"))
			q.Enqueue(ctx, event("e2"))

			convey.Convey("Then each is handed to the processor in order", func() {
				convey.So(proc.wait(2), convey.ShouldBeTrue)
				convey.So(proc.done(), convey.ShouldResemble, []string{"e1", "e2"})
			})
		})

		convey.Convey("When the processor fails on one event", func() {
			proc.mu.Lock()
			proc.fail["bad"] = errors.New("store unavailable")
			proc.mu.Unlock()

			q.Enqueue(ctx, event("bad"))
			q.Enqueue(ctx, event("good"))

			convey.Convey("Then the worker keeps going", func() {
				convey.So(proc.wait(2), convey.ShouldBeTrue)
				convey.So(proc.done(), convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			cancel()

			convey.Convey("Then Run returns", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		convey.Convey("When created with a zero count", func() {
			pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockProcessor())

			convey.Convey("Then it sizes itself from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When three workers process a burst of events", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(100))
			proc := newMockProcessor()
			pool := worker.NewPool(3, q, proc, worker.WithLogger(logging.Nop()))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for i := 0; i < 30; i++ {
				q.Enqueue(ctx, event(fmt.Sprintf("e%02d", i)))
			}

			convey.Convey("Then every event is processed exactly once", func() {
				convey.So(proc.wait(30), convey.ShouldBeTrue)
				done := proc.done()
				convey.So(len(done), convey.ShouldEqual, 30)
				unique := make(map[string]struct{}, len(done))
				for _, id := range done {
					unique[id] = struct{}{}
				}
				convey.So(len(unique), convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When shut down with events still queued", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(100))
			proc := newMockProcessor()
			proc.delay = time.Millisecond
			pool := worker.NewPool(2, q, proc)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			for i := 0; i < 10; i++ {
				q.Enqueue(ctx, event(fmt.Sprintf("e%d", i)))
			}
			pool.Start(ctx)
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is closed and drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(len(proc.done()), convey.ShouldEqual, 10)
			})
		})
	})
}
