package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/service"
	"github.com/oddsrow/oddsrow/internal/store/memory"
)

func newStakeEnv(t *testing.T, maxStake int64) (*service.StakeService, *memory.Store, *fakeBus, *fakeLeaderboard) {
	t.Helper()
	store := memory.NewStore()
	bus := newFakeBus()
	lb := newFakeLeaderboard()
	svc := service.NewStakeService(store, bus, store.Audit(), lb, maxStake, testLogger())
	return svc, store, bus, lb
}

func TestPlaceStake_DebitsAndRecords(t *testing.T) {
	svc, store, bus, lb := newStakeEnv(t, 0)
	ctx := context.Background()

	seedUser(t, store, "alice", 1000)
	seedPrediction(t, store, "p1", "alice", time.Now().Add(time.Hour))

	res, err := svc.PlaceStake(ctx, domain.StakeRequest{
		CallerID:     "alice",
		PredictionID: "p1",
		Stance:       true,
		Points:       300,
	})
	if err != nil {
		t.Fatalf("place stake: %v", err)
	}

	if res.Balance != 700 {
		t.Errorf("balance = %d, want 700", res.Balance)
	}
	if res.Vote.Points != 300 || !res.Vote.Stance {
		t.Errorf("vote = %+v, want 300 points on yes", res.Vote)
	}
	if res.Prediction.Stats.StakeCount != 1 || res.Prediction.Stats.YesPoints != 300 {
		t.Errorf("stats = %+v, want 1 stake / 300 yes points", res.Prediction.Stats)
	}

	if got := bus.publishedOn(domain.ChannelPredictions); got != 1 {
		t.Errorf("published %d snapshots, want 1", got)
	}
	if lb.scores["alice"] != 700 {
		t.Errorf("leaderboard score = %d, want 700", lb.scores["alice"])
	}

	entries, err := store.ListAudit(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != "stake_placed" {
		t.Errorf("audit = %+v, want one stake_placed entry", entries)
	}
}

func TestPlaceStake_Rejections(t *testing.T) {
	svc, store, _, _ := newStakeEnv(t, 500)
	ctx := context.Background()

	seedUser(t, store, "alice", 1000)
	seedUser(t, store, "bob", 100)
	seedPrediction(t, store, "p1", "alice", time.Now().Add(time.Hour))

	if _, err := svc.PlaceStake(ctx, domain.StakeRequest{CallerID: "alice", PredictionID: "p1", Points: 200, Stance: true}); err != nil {
		t.Fatalf("first stake: %v", err)
	}

	cases := []struct {
		name string
		req  domain.StakeRequest
		want error
	}{
		{"zero points", domain.StakeRequest{CallerID: "bob", PredictionID: "p1", Points: 0}, domain.ErrInvalidStake},
		{"negative points", domain.StakeRequest{CallerID: "bob", PredictionID: "p1", Points: -5}, domain.ErrInvalidStake},
		{"over max stake", domain.StakeRequest{CallerID: "bob", PredictionID: "p1", Points: 501}, domain.ErrInvalidStake},
		{"unknown prediction", domain.StakeRequest{CallerID: "bob", PredictionID: "nope", Points: 10}, domain.ErrNotFound},
		{"insufficient balance", domain.StakeRequest{CallerID: "bob", PredictionID: "p1", Points: 101}, domain.ErrInsufficientFunds},
		{"double vote", domain.StakeRequest{CallerID: "alice", PredictionID: "p1", Points: 10}, domain.ErrAlreadyVoted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceStake(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}

	// A rejected stake must not have touched the balance.
	u, err := store.GetByID(ctx, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if u.Balance != 100 {
		t.Errorf("bob balance = %d, want untouched 100", u.Balance)
	}
}

func TestPlaceStake_ClosedPrediction(t *testing.T) {
	svc, store, _, _ := newStakeEnv(t, 0)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	seedUser(t, store, "alice", 1000)
	seedUser(t, store, "bob", 1000)
	seedPrediction(t, store, "p1", "alice", past)

	if _, err := store.Resolve(ctx, domain.ResolveRequest{CallerID: "alice", PredictionID: "p1", Outcome: true}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err := svc.PlaceStake(ctx, domain.StakeRequest{CallerID: "bob", PredictionID: "p1", Points: 10, Stance: true})
	if !errors.Is(err, domain.ErrPredictionClosed) {
		t.Errorf("error = %v, want ErrPredictionClosed", err)
	}
}

func TestPlaceStake_ConcurrentSameUser_OneWins(t *testing.T) {
	svc, store, _, _ := newStakeEnv(t, 0)
	ctx := context.Background()

	seedUser(t, store, "alice", 1000)
	seedPrediction(t, store, "p1", "alice", time.Now().Add(time.Hour))

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PlaceStake(ctx, domain.StakeRequest{
				CallerID:     "alice",
				PredictionID: "p1",
				Stance:       i%2 == 0,
				Points:       100,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrAlreadyVoted) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d stakes succeeded, want exactly 1", succeeded)
	}

	u, _ := store.GetByID(ctx, "alice")
	if u.Balance != 900 {
		t.Errorf("balance = %d, want 900 (exactly one debit)", u.Balance)
	}
}

func TestPlaceStake_ConcurrentBalanceRace(t *testing.T) {
	svc, store, _, _ := newStakeEnv(t, 0)
	ctx := context.Background()

	// 1000 points, two 600-point stakes on different predictions: only one
	// can clear the balance check.
	seedUser(t, store, "alice", 1000)
	seedUser(t, store, "owner", 1)
	seedPrediction(t, store, "p1", "owner", time.Now().Add(time.Hour))
	seedPrediction(t, store, "p2", "owner", time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pid := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, pid string) {
			defer wg.Done()
			_, errs[i] = svc.PlaceStake(ctx, domain.StakeRequest{
				CallerID:     "alice",
				PredictionID: pid,
				Stance:       true,
				Points:       600,
			})
		}(i, pid)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d stakes succeeded, want exactly 1", succeeded)
	}

	u, _ := store.GetByID(ctx, "alice")
	if u.Balance != 400 {
		t.Errorf("balance = %d, want 400", u.Balance)
	}
}
