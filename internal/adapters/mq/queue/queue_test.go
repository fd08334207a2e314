package queue_test

import (
	"context"
	"testing"
	"time"

	queue "github.com/okian/hopguard/internal/adapters/mq/queue"
	"github.com/okian/hopguard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func record(owner string) model.AuditRecord {
	return model.AuditRecord{Owner: owner, Outcome: "accepted", At: time.Now()}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory audit queue", t, func() {
		Convey("When enqueueing a record", func() {
			q := queue.NewInMemoryQueue()
			ok := q.Enqueue(ctx, record("player-1"))

			Convey("Then it should be queued", func() {
				So(ok, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the queue is at capacity", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(2), queue.WithBufferSize(2))
			So(q.Enqueue(ctx, record("a")), ShouldBeTrue)
			So(q.Enqueue(ctx, record("b")), ShouldBeTrue)

			ok := q.Enqueue(ctx, record("c"))

			Convey("Then the overflow record should be dropped, not blocked on", func() {
				So(ok, ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When dequeuing records", func() {
			q := queue.NewInMemoryQueue()
			q.Enqueue(ctx, record("player-1"))
			q.Enqueue(ctx, record("player-2"))

			ch := q.Dequeue(ctx)

			Convey("Then they should arrive in order", func() {
				first := <-ch
				second := <-ch
				So(first.Owner, ShouldEqual, "player-1")
				So(second.Owner, ShouldEqual, "player-2")
			})
		})

		Convey("When the queue is closed", func() {
			q := queue.NewInMemoryQueue()
			q.Enqueue(ctx, record("player-1"))
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue should refuse new records", func() {
				So(q.Enqueue(ctx, record("late")), ShouldBeFalse)
				So(q.IsClosed(), ShouldBeTrue)
			})

			Convey("Then queued records should still drain", func() {
				ch := q.Dequeue(ctx)
				rec, ok := <-ch
				So(ok, ShouldBeTrue)
				So(rec.Owner, ShouldEqual, "player-1")

				_, ok = <-ch
				So(ok, ShouldBeFalse)
			})

			Convey("Then closing again should be a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
