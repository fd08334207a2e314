// Package repository defines the player profile store interface and errors.
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/hopguard/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then userID ASC (deterministic). The BST
// comparator treats "less" as "ranks earlier", so in-order traversal
// produces the leaderboard from best to worst. Scores are integers, so
// no fixed-point scaling is needed.

// record stores a player's best plus the time it was set.
type record struct {
	score       int64
	lastUpdated time.Time
}

// treap node
type node struct {
	id    string
	score int64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID)
// in the leaderboard (higher ranks first).
func less(aScore int64, aID string, bScore int64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore // higher score ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// scoreToPriority converts a score to a treap priority. Higher scores get
// higher priorities, keeping hot entries near the root.
func scoreToPriority(score int64) uint64 {
	const offset = uint64(1) << 63 // shift to make all values positive
	return uint64(score) + offset
}

func insert(n *node, id string, score int64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: scoreToPriority(score), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int64) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (highest scores first).
func collectTopN(n *node, limit int, records map[string]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	// Traverse left subtree first (higher scores, or same score with lower ID)
	collectTopN(n.left, limit, records, out)

	if len(*out) < limit {
		if rec, exists := records[n.id]; exists {
			*out = append(*out, Entry{UserID: n.id, Score: rec.score, LastUpdated: rec.lastUpdated})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// collectAll appends all entries in rank order (highest scores first).
func collectAll(n *node, byID map[string]record, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, Entry{UserID: n.id, Score: rec.score, LastUpdated: rec.lastUpdated})
	}
	collectAll(n.right, byID, out)
}

// TreapStore is the in-memory Store implementation. Correct for a single
// instance; a horizontally scaled deployment would put a shared database
// behind the same interface.
type TreapStore struct {
	mu          sync.RWMutex
	root        *node
	byID        map[string]record
	lastUpdated time.Time

	metricsInterval time.Duration

	// Background goroutine management
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:            make(map[string]record),
		metricsInterval: 5 * time.Second,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startMetricsUpdater(ctx)

	return s
}

// Close gracefully shuts down the background goroutines.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// GetOrCreate implements Store.GetOrCreate.
func (s *TreapStore) GetOrCreate(ctx context.Context, userID string) (Profile, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[userID]; ok {
		return Profile{UserID: userID, Score: rec.score, LastUpdated: rec.lastUpdated}, nil
	}

	// Lazily create an empty profile; zero LastUpdated keeps the first
	// submission outside any cooldown window.
	s.byID[userID] = record{}
	s.root = insert(s.root, userID, 0)
	return Profile{UserID: userID}, nil
}

// UpdateBest implements Store.UpdateBest with O(log n) expected time.
// The comparison and write happen under one lock, making the ratchet a
// conditional write rather than a read-then-write.
func (s *TreapStore) UpdateBest(ctx context.Context, userID string, score int64, ts time.Time) (bool, int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := int64(0)
	if old, ok := s.byID[userID]; ok {
		prev = old.score
		if score <= old.score { // not an improvement
			return false, prev, nil
		}
		s.root = deleteNode(s.root, userID, old.score)
	}
	s.byID[userID] = record{score: score, lastUpdated: ts}
	s.root = insert(s.root, userID, score)
	if ts.After(s.lastUpdated) {
		s.lastUpdated = ts
	}
	return true, prev, nil
}

// Rank returns the current rank and score for a player.
func (s *TreapStore) Rank(ctx context.Context, userID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[userID]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	allEntries := make([]Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &allEntries)
	sortEntries(allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		if entry.UserID == userID {
			return entry, nil
		}
	}

	return Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by score desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byID, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of players.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// LastUpdated returns the time of the most recent accepted write.
func (s *TreapStore) LastUpdated(ctx context.Context) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// startMetricsUpdater starts a background goroutine that updates repository metrics.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRepositoryRecordsTotal(s.Count(ctx))
			}
		}
	}()
}

// sortEntries sorts entries by score (descending) and userID (ascending) to match TopN logic.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// assignRanksWithTies assigns ranks with proper tie handling.
// Players with the same score get the same rank.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameScoreCount := 1
		for j := i + 1; j < len(entries) && entries[j].Score == entries[i].Score; j++ {
			entries[j].Rank = currentRank
			sameScoreCount++
		}

		currentRank++
		i += sameScoreCount - 1 // Skip the entries we just processed
	}
}
