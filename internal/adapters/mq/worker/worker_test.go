package worker_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/hopguard/internal/adapters/mq/queue"
	worker "github.com/okian/hopguard/internal/adapters/mq/worker"
	"github.com/okian/hopguard/internal/domain/model"
	"github.com/okian/hopguard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type captureSink struct {
	mu   sync.Mutex
	recs []worker.Record
}

func (s *captureSink) Write(ctx context.Context, rec worker.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestAuditWorker(t *testing.T) {
	Convey("Given an audit worker over a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		sink := &captureSink{}
		w := worker.NewAuditWorker(q, sink, worker.WithName("audit-test"))

		Convey("When records are enqueued", func() {
			go w.Run(ctx)

			q.Enqueue(ctx, model.AuditRecord{Owner: "player-1", Outcome: "accepted"})
			q.Enqueue(ctx, model.AuditRecord{Owner: "player-2", Outcome: "rejected", Category: "implausible_replay"})

			Convey("Then the sink should receive them", func() {
				So(waitFor(func() bool { return sink.count() == 2 }, time.Second), ShouldBeTrue)
			})
		})

		Convey("When the worker is shut down", func() {
			go w.Run(ctx)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			Convey("Then shutdown should return promptly", func() {
				So(w.Shutdown(shutdownCtx), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of audit workers", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue()
		sink := &captureSink{}
		pool := worker.NewPool(3, q, sink)

		Convey("When records flow through the pool", func() {
			pool.Start(ctx)

			for i := 0; i < 20; i++ {
				q.Enqueue(ctx, model.AuditRecord{Owner: "player", Outcome: "accepted"})
			}

			Convey("Then every record should reach the sink once", func() {
				So(waitFor(func() bool { return sink.count() == 20 }, 2*time.Second), ShouldBeTrue)
				pool.Stop()
			})
		})

		Convey("When the pool is stopped idle", func() {
			pool.Start(ctx)

			Convey("Then stop should not hang", func() {
				done := make(chan struct{})
				go func() {
					pool.Stop()
					close(done)
				}()
				select {
				case <-done:
					So(true, ShouldBeTrue)
				case <-time.After(10 * time.Second):
					So("pool stop hung", ShouldBeEmpty)
				}
			})
		})
	})
}
