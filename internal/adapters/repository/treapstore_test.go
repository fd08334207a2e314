package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	repository "github.com/okian/hopguard/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTreapStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a treap store", t, func() {
		store := repository.NewTreapStore(ctx)
		defer store.Close()

		Convey("When fetching an unknown player", func() {
			profile, err := store.GetOrCreate(ctx, "player-1")

			Convey("Then an empty profile should be created lazily", func() {
				So(err, ShouldBeNil)
				So(profile.UserID, ShouldEqual, "player-1")
				So(profile.Score, ShouldEqual, 0)
				So(profile.LastUpdated.IsZero(), ShouldBeTrue)
				So(store.Count(ctx), ShouldEqual, 1)
			})
		})

		Convey("When updating a player's best score", func() {
			now := time.Now()
			updated, prev, err := store.UpdateBest(ctx, "player-1", 100, now)

			Convey("Then the first write should land", func() {
				So(err, ShouldBeNil)
				So(updated, ShouldBeTrue)
				So(prev, ShouldEqual, 0)
			})

			Convey("And a higher score should replace it", func() {
				updated, prev, err := store.UpdateBest(ctx, "player-1", 150, now.Add(time.Second))
				So(err, ShouldBeNil)
				So(updated, ShouldBeTrue)
				So(prev, ShouldEqual, 100)

				profile, _ := store.GetOrCreate(ctx, "player-1")
				So(profile.Score, ShouldEqual, 150)
			})

			Convey("And an equal score should be refused", func() {
				updated, prev, err := store.UpdateBest(ctx, "player-1", 100, now.Add(time.Second))
				So(err, ShouldBeNil)
				So(updated, ShouldBeFalse)
				So(prev, ShouldEqual, 100)
			})

			Convey("And a lower score should be refused", func() {
				updated, prev, err := store.UpdateBest(ctx, "player-1", 50, now.Add(time.Second))
				So(err, ShouldBeNil)
				So(updated, ShouldBeFalse)
				So(prev, ShouldEqual, 100)

				profile, _ := store.GetOrCreate(ctx, "player-1")
				So(profile.Score, ShouldEqual, 100)
			})

			Convey("And a refused write should not move the last-updated clock", func() {
				before := store.LastUpdated(ctx)
				_, _, _ = store.UpdateBest(ctx, "player-1", 50, now.Add(time.Hour))
				So(store.LastUpdated(ctx).Equal(before), ShouldBeTrue)
			})
		})

		Convey("When ranking players", func() {
			now := time.Now()
			_, _, _ = store.UpdateBest(ctx, "alice", 300, now)
			_, _, _ = store.UpdateBest(ctx, "bob", 200, now)
			_, _, _ = store.UpdateBest(ctx, "carol", 200, now)
			_, _, _ = store.UpdateBest(ctx, "dave", 100, now)

			Convey("Then tied scores should share a rank", func() {
				bob, err := store.Rank(ctx, "bob")
				So(err, ShouldBeNil)
				So(bob.Rank, ShouldEqual, 2)

				carol, err := store.Rank(ctx, "carol")
				So(err, ShouldBeNil)
				So(carol.Rank, ShouldEqual, 2)

				dave, err := store.Rank(ctx, "dave")
				So(err, ShouldBeNil)
				So(dave.Rank, ShouldEqual, 3)
			})

			Convey("Then an unknown player should not rank", func() {
				_, err := store.Rank(ctx, "nobody")
				So(err, ShouldEqual, repository.ErrNotFound)
			})

			Convey("Then TopN should return the highest scores in order", func() {
				top, err := store.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 2)
				So(top[0].UserID, ShouldEqual, "alice")
				So(top[0].Score, ShouldEqual, 300)
				So(top[1].Score, ShouldEqual, 200)
			})

			Convey("Then TopN past the population should return everyone", func() {
				top, err := store.TopN(ctx, 50)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 4)
			})

			Convey("Then a non-positive limit should be rejected", func() {
				_, err := store.TopN(ctx, 0)
				So(err, ShouldEqual, repository.ErrInvalidLimit)
			})
		})

		Convey("When many goroutines race conditional updates", func() {
			const goroutines = 50
			now := time.Now()

			var wg sync.WaitGroup
			wins := make(chan int64, goroutines)
			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(score int64) {
					defer wg.Done()
					if updated, _, _ := store.UpdateBest(ctx, "racer", score, now); updated {
						wins <- score
					}
				}(int64(i + 1))
			}
			wg.Wait()
			close(wins)

			Convey("Then the stored best should be the maximum", func() {
				profile, err := store.GetOrCreate(ctx, "racer")
				So(err, ShouldBeNil)
				So(profile.Score, ShouldEqual, goroutines)
			})
		})

		Convey("When the leaderboard grows large", func() {
			now := time.Now()
			for i := 0; i < 500; i++ {
				_, _, _ = store.UpdateBest(ctx, fmt.Sprintf("player-%03d", i), int64(i), now)
			}

			Convey("Then ordering should hold at the top", func() {
				top, err := store.TopN(ctx, 3)
				So(err, ShouldBeNil)
				So(top[0].Score, ShouldEqual, 499)
				So(top[1].Score, ShouldEqual, 498)
				So(top[2].Score, ShouldEqual, 497)
			})
		})
	})
}
