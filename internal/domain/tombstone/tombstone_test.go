package tombstone_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	tombstone "github.com/okian/hopguard/internal/domain/tombstone"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemorySet(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new tombstone set", t, func() {
		Convey("When creating a set with default options", func() {
			s := tombstone.NewInMemorySet()

			Convey("Then it should start empty", func() {
				So(s, ShouldNotBeNil)
				So(s.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording session ids", func() {
			s := tombstone.NewInMemorySet()

			Convey("And the id is new", func() {
				seen := s.SeenAndRecord(ctx, "sid-1")

				Convey("Then it should return false and record the id", func() {
					So(seen, ShouldBeFalse)
					So(s.Size(), ShouldEqual, 1)
					So(s.Contains(ctx, "sid-1"), ShouldBeTrue)
				})
			})

			Convey("And the id was already recorded", func() {
				s.SeenAndRecord(ctx, "sid-1")
				seen := s.SeenAndRecord(ctx, "sid-1")

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(s.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When the set grows past its cap", func() {
			s := tombstone.NewInMemorySet(tombstone.WithMaxSize(3))
			for i := 0; i < 3; i++ {
				s.SeenAndRecord(ctx, fmt.Sprintf("sid-%d", i))
			}

			seen := s.SeenAndRecord(ctx, "sid-overflow")

			Convey("Then it should clear wholesale and record the new id", func() {
				So(seen, ShouldBeFalse)
				So(s.Size(), ShouldEqual, 1)
				So(s.Contains(ctx, "sid-overflow"), ShouldBeTrue)
				So(s.Contains(ctx, "sid-0"), ShouldBeFalse)
			})
		})

		Convey("When clearing the set", func() {
			s := tombstone.NewInMemorySet()
			s.SeenAndRecord(ctx, "sid-1")
			s.SeenAndRecord(ctx, "sid-2")
			s.Clear(ctx)

			Convey("Then it should be empty again", func() {
				So(s.Size(), ShouldEqual, 0)
				So(s.Contains(ctx, "sid-1"), ShouldBeFalse)
			})
		})

		Convey("When many goroutines record the same id", func() {
			s := tombstone.NewInMemorySet()
			const goroutines = 50

			var wg sync.WaitGroup
			newly := make(chan bool, goroutines)
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					newly <- !s.SeenAndRecord(ctx, "contested")
				}()
			}
			wg.Wait()
			close(newly)

			winners := 0
			for n := range newly {
				if n {
					winners++
				}
			}

			Convey("Then exactly one should record it", func() {
				So(winners, ShouldEqual, 1)
				So(s.Size(), ShouldEqual, 1)
			})
		})
	})
}
