package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	api "github.com/okian/hopguard/internal/adapters/http/api"
	"github.com/okian/hopguard/internal/adapters/repository"
	"github.com/okian/hopguard/internal/domain/model"
	"github.com/okian/hopguard/internal/domain/replay"
	"github.com/okian/hopguard/internal/domain/session"
	"github.com/okian/hopguard/internal/domain/submit"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeDeps struct {
	session      session.PlaySession
	sessionErr   error
	submitResult submit.Result
	submitErr    error
	profile      repository.Profile
	rank         repository.Entry
	rankErr      error
	entries      []repository.Entry
	updated      time.Time
	lastLimit    int
	lastOwner    string
}

func (f *fakeDeps) CreateSession(ctx context.Context, ownerID string) (session.PlaySession, error) {
	f.lastOwner = ownerID
	return f.session, f.sessionErr
}

func (f *fakeDeps) Submit(ctx context.Context, ownerID, sessionID string, r *model.GameReplay, claimedScore int64) (submit.Result, error) {
	f.lastOwner = ownerID
	return f.submitResult, f.submitErr
}

func (f *fakeDeps) Profile(ctx context.Context, ownerID string) (repository.Profile, error) {
	return f.profile, nil
}

func (f *fakeDeps) Rank(ctx context.Context, ownerID string) (repository.Entry, error) {
	return f.rank, f.rankErr
}

func (f *fakeDeps) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	f.lastLimit = n
	return f.entries, nil
}

func (f *fakeDeps) LeaderboardUpdatedAt(ctx context.Context) time.Time {
	return f.updated
}

type fakeStats struct{}

func (fakeStats) GetStats(ctx context.Context) (api.Stats, error) {
	return api.Stats{Players: 7, LiveSessions: 2}, nil
}

type fakeVerifier struct {
	userID string
	err    error
}

func (f *fakeVerifier) Verify(ctx context.Context, bearer string) (string, error) {
	return f.userID, f.err
}

func newTestServer(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	server := api.NewServer(deps, fakeStats{}, &fakeVerifier{userID: "player-1"}, 100)
	server.Register(context.Background(), mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, target, body string, authed bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorCode(rec *httptest.ResponseRecorder) string {
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp.Code
}

func TestSessionEndpoint(t *testing.T) {
	Convey("Given the session endpoint", t, func() {
		deps := &fakeDeps{session: session.PlaySession{
			ID:        "sid.abcdef",
			Owner:     "player-1",
			ExpiresAt: time.Now().Add(10 * time.Minute),
		}}
		mux := newTestServer(deps)

		Convey("When requesting a session with valid auth", func() {
			rec := doRequest(mux, http.MethodPost, "/session", "", true)

			Convey("Then a session should be issued for the caller", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastOwner, ShouldEqual, "player-1")

				var resp struct {
					SessionID string `json:"sessionId"`
					ExpiresAt string `json:"expiresAt"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.SessionID, ShouldEqual, "sid.abcdef")
				So(resp.ExpiresAt, ShouldNotBeEmpty)
			})
		})

		Convey("When requesting without credentials", func() {
			rec := doRequest(mux, http.MethodPost, "/session", "", false)

			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When using the wrong method", func() {
			rec := doRequest(mux, http.MethodGet, "/session", "", true)

			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestScoreSubmission(t *testing.T) {
	validBody := `{"score":200,"sessionId":"sid","replay":{"startTime":1,"endTime":2,"duration":1,"events":[]}}`

	Convey("Given the score endpoint", t, func() {
		Convey("When a submission is accepted", func() {
			deps := &fakeDeps{submitResult: submit.Result{
				Accepted:          true,
				NewHighScore:      200,
				PreviousHighScore: 100,
				Improvement:       100,
			}}
			mux := newTestServer(deps)

			rec := doRequest(mux, http.MethodPost, "/score", validBody, true)

			Convey("Then the outcome should be echoed back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Accepted     bool  `json:"accepted"`
					NewHighScore int64 `json:"newHighScore"`
					Improvement  int64 `json:"improvement"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Accepted, ShouldBeTrue)
				So(resp.NewHighScore, ShouldEqual, 200)
				So(resp.Improvement, ShouldEqual, 100)
			})
		})

		Convey("When the body is not JSON", func() {
			mux := newTestServer(&fakeDeps{})
			rec := doRequest(mux, http.MethodPost, "/score", "{not json", true)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(rec), ShouldEqual, "invalid_input")
		})

		Convey("When the session id is missing", func() {
			mux := newTestServer(&fakeDeps{})
			rec := doRequest(mux, http.MethodPost, "/score", `{"score":200,"replay":{}}`, true)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(rec), ShouldEqual, "invalid_input")
		})

		Convey("When the score is negative", func() {
			mux := newTestServer(&fakeDeps{})
			rec := doRequest(mux, http.MethodPost, "/score", `{"score":-5,"sessionId":"sid","replay":{}}`, true)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the session was already used", func() {
			deps := &fakeDeps{submitErr: session.ErrSessionExpired}
			mux := newTestServer(deps)

			rec := doRequest(mux, http.MethodPost, "/score", validBody, true)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(rec), ShouldEqual, "session_expired")
		})

		Convey("When the replay fails validation", func() {
			deps := &fakeDeps{submitErr: &submit.ValidationError{
				Check:  replay.CheckPhysics,
				Reason: replay.ReasonImplausible,
				Detail: "score 900 deviates 700 from expected 200 (tolerance 35)",
			}}
			mux := newTestServer(deps)

			rec := doRequest(mux, http.MethodPost, "/score", validBody, true)

			Convey("Then only the coarse category should leak", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(rec), ShouldEqual, "validation_failed")
				So(rec.Body.String(), ShouldNotContainSubstring, "physics")
				So(rec.Body.String(), ShouldNotContainSubstring, "deviates")
			})
		})

		Convey("When the player is inside the cooldown window", func() {
			deps := &fakeDeps{submitErr: &submit.RateLimitedError{RetryAfter: 20 * time.Second}}
			mux := newTestServer(deps)

			rec := doRequest(mux, http.MethodPost, "/score", validBody, true)

			Convey("Then it should respond 429 with a retry hint", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(rec), ShouldEqual, "rate_limited")
				So(rec.Header().Get("Retry-After"), ShouldEqual, "20")
			})
		})

		Convey("When persistence fails", func() {
			deps := &fakeDeps{submitErr: submit.ErrPersistence}
			mux := newTestServer(deps)

			rec := doRequest(mux, http.MethodPost, "/score", validBody, true)

			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			So(errorCode(rec), ShouldEqual, "persistence_error")
		})

		Convey("When unauthenticated", func() {
			mux := newTestServer(&fakeDeps{})
			rec := doRequest(mux, http.MethodPost, "/score", validBody, false)

			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestScoreRead(t *testing.T) {
	Convey("Given a stored profile", t, func() {
		deps := &fakeDeps{
			profile: repository.Profile{
				UserID:      "player-1",
				Score:       420,
				LastUpdated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			},
			rank: repository.Entry{Rank: 3, UserID: "player-1", Score: 420},
		}
		mux := newTestServer(deps)

		Convey("When reading the stored best", func() {
			rec := doRequest(mux, http.MethodGet, "/score", "", true)

			Convey("Then the profile should come back with its rank", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					UserID      string `json:"userId"`
					Score       int64  `json:"score"`
					Rank        int    `json:"rank"`
					LastUpdated string `json:"lastUpdated"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.UserID, ShouldEqual, "player-1")
				So(resp.Score, ShouldEqual, 420)
				So(resp.Rank, ShouldEqual, 3)
				So(resp.LastUpdated, ShouldEqual, "2025-06-01T12:00:00Z")
			})
		})

		Convey("When the player is not on the board yet", func() {
			deps.rank = repository.Entry{}
			deps.rankErr = repository.ErrNotFound
			rec := doRequest(mux, http.MethodGet, "/score", "", true)

			Convey("Then the rank should be omitted, not an error", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldNotContainSubstring, `"rank"`)
			})
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given a populated leaderboard", t, func() {
		deps := &fakeDeps{
			entries: []repository.Entry{
				{Rank: 1, UserID: "alice", Score: 300},
				{Rank: 2, UserID: "bob", Score: 200},
			},
			updated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}
		mux := newTestServer(deps)

		Convey("When fetching the default page", func() {
			rec := doRequest(mux, http.MethodGet, "/leaderboard", "", false)

			Convey("Then the entries and freshness stamp should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 10)

				var resp struct {
					Leaderboard []struct {
						Rank   int    `json:"rank"`
						Player string `json:"player"`
						Score  int64  `json:"score"`
					} `json:"leaderboard"`
					LastUpdated string `json:"lastUpdated"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(len(resp.Leaderboard), ShouldEqual, 2)
				So(resp.Leaderboard[0].Player, ShouldEqual, "alice")
				So(resp.LastUpdated, ShouldEqual, "2025-06-01T12:00:00Z")
			})
		})

		Convey("When asking for an explicit limit", func() {
			rec := doRequest(mux, http.MethodGet, "/leaderboard?limit=25", "", false)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 25)
		})

		Convey("When the limit exceeds the configured cap", func() {
			rec := doRequest(mux, http.MethodGet, "/leaderboard?limit=5000", "", false)

			Convey("Then it should be clamped, not rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 100)
			})
		})

		Convey("When the limit is not a number", func() {
			rec := doRequest(mux, http.MethodGet, "/leaderboard?limit=abc", "", false)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit is zero", func() {
			rec := doRequest(mux, http.MethodGet, "/leaderboard?limit=0", "", false)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the stats endpoint", t, func() {
		mux := newTestServer(&fakeDeps{})

		Convey("When fetching stats", func() {
			rec := doRequest(mux, http.MethodGet, "/stats", "", false)

			Convey("Then the snapshot should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Players      int `json:"players"`
					LiveSessions int `json:"liveSessions"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Players, ShouldEqual, 7)
				So(resp.LiveSessions, ShouldEqual, 2)
			})
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the health endpoint", t, func() {
		mux := newTestServer(&fakeDeps{})

		Convey("When probing liveness", func() {
			rec := doRequest(mux, http.MethodGet, "/healthz", "", false)

			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}
