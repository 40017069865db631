package service_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBus records everything published so tests can assert on fan-out.
type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		streamed:  make(map[string][][]byte),
	}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *fakeBus) publishedOn(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

// fakeLeaderboard is an in-memory domain.LeaderboardCache.
type fakeLeaderboard struct {
	mu     sync.Mutex
	scores map[string]int64
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{scores: make(map[string]int64)}
}

func (l *fakeLeaderboard) SetScore(ctx context.Context, userID string, balance int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scores[userID] = balance
	return nil
}

func (l *fakeLeaderboard) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.LeaderboardEntry, 0, len(l.scores))
	for id, bal := range l.scores {
		out = append(out, domain.LeaderboardEntry{UserID: id, Balance: bal})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Balance > out[j].Balance })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// fakeLocks hands out locks unconditionally unless held is set.
type fakeLocks struct {
	mu       sync.Mutex
	held     bool
	acquired int
}

func (l *fakeLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() {}, nil
}

// seedUser creates a user with the given balance directly in the store.
func seedUser(t *testing.T, s *memory.Store, id string, balance int64) {
	t.Helper()
	err := s.Create(context.Background(), domain.User{
		ID:        id,
		Username:  "user_" + id,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

// seedPrediction creates an open prediction directly in the store.
func seedPrediction(t *testing.T, s *memory.Store, id, ownerID string, deadline time.Time) {
	t.Helper()
	err := s.CreatePrediction(context.Background(), domain.Prediction{
		ID:        id,
		OwnerID:   ownerID,
		Title:     "test prediction " + id,
		Deadline:  deadline,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed prediction %s: %v", id, err)
	}
}
