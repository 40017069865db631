package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/service"
	"github.com/oddsrow/oddsrow/internal/store/memory"
)

func newSettlementEnv(t *testing.T) (*service.SettlementService, *memory.Store, *fakeBus, *fakeLeaderboard) {
	t.Helper()
	store := memory.NewStore()
	bus := newFakeBus()
	lb := newFakeLeaderboard()
	svc := service.NewSettlementService(store, store, bus, store.Audit(), lb, nil, testLogger())
	return svc, store, bus, lb
}

// stake places a vote directly through the ledger.
func stake(t *testing.T, store *memory.Store, userID, predictionID string, stance bool, points int64) {
	t.Helper()
	_, err := store.PlaceStake(context.Background(), domain.StakeRequest{
		CallerID:     userID,
		PredictionID: predictionID,
		Stance:       stance,
		Points:       points,
	})
	if err != nil {
		t.Fatalf("stake %s on %s: %v", userID, predictionID, err)
	}
}

func TestResolve_ProportionalPayout(t *testing.T) {
	svc, store, bus, lb := newSettlementEnv(t)
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute)
	seedUser(t, store, "owner", 10)
	seedUser(t, store, "winner", 100)
	seedUser(t, store, "loser", 100)
	seedPrediction(t, store, "p1", "owner", deadline)

	// Stakes stay open until resolution, so placing them after the deadline
	// is fine.
	stake(t, store, "winner", "p1", true, 30)
	stake(t, store, "loser", "p1", false, 20)

	res, err := svc.Resolve(ctx, domain.ResolveRequest{CallerID: "owner", PredictionID: "p1", Outcome: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !res.Prediction.Resolved || res.Prediction.Outcome == nil || !*res.Prediction.Outcome {
		t.Errorf("prediction = %+v, want resolved yes", res.Prediction)
	}
	if res.Totals.WinnerPoints != 30 || res.Totals.LoserPoints != 20 {
		t.Errorf("totals = %+v, want 30/20", res.Totals)
	}

	// Winner staked 30 against a 20-point loser pool: 30 + 30*20/30 = 50.
	w, _ := store.GetByID(ctx, "winner")
	if w.Balance != 70+50 {
		t.Errorf("winner balance = %d, want 120", w.Balance)
	}
	if w.Made != 1 || w.Correct != 1 {
		t.Errorf("winner stats = %d/%d, want 1/1", w.Correct, w.Made)
	}

	l, _ := store.GetByID(ctx, "loser")
	if l.Balance != 80 {
		t.Errorf("loser balance = %d, want 80", l.Balance)
	}
	if l.Made != 1 || l.Correct != 0 {
		t.Errorf("loser stats = %d/%d, want 0/1", l.Correct, l.Made)
	}

	if got := bus.publishedOn(domain.ChannelSettlements); got != 1 {
		t.Errorf("published %d settlement snapshots, want 1", got)
	}
	if lb.scores["winner"] != 120 {
		t.Errorf("winner leaderboard score = %d, want 120", lb.scores["winner"])
	}

	entries, err := store.ListAudit(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Event != "prediction_resolved" {
		t.Errorf("audit = %+v, want one prediction_resolved entry", entries)
	}
}

func TestResolve_FlooringDestroysResidual(t *testing.T) {
	svc, store, _, _ := newSettlementEnv(t)
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute)
	seedUser(t, store, "owner", 10)
	seedUser(t, store, "w1", 100)
	seedUser(t, store, "w2", 100)
	seedUser(t, store, "loser", 100)
	seedPrediction(t, store, "p1", "owner", deadline)

	// Winner pool 3, loser pool 10: payouts floor to 1+3 and 2+6, leaving
	// one point destroyed.
	stake(t, store, "w1", "p1", true, 1)
	stake(t, store, "w2", "p1", true, 2)
	stake(t, store, "loser", "p1", false, 10)

	res, err := svc.Resolve(ctx, domain.ResolveRequest{CallerID: "owner", PredictionID: "p1", Outcome: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.Totals.Residual != 1 {
		t.Errorf("residual = %d, want 1", res.Totals.Residual)
	}

	w1, _ := store.GetByID(ctx, "w1")
	w2, _ := store.GetByID(ctx, "w2")
	if w1.Balance != 99+4 {
		t.Errorf("w1 balance = %d, want 103", w1.Balance)
	}
	if w2.Balance != 98+8 {
		t.Errorf("w2 balance = %d, want 106", w2.Balance)
	}

	// Total points across all accounts shrank by exactly the residual.
	total := w1.Balance + w2.Balance
	loser, _ := store.GetByID(ctx, "loser")
	owner, _ := store.GetByID(ctx, "owner")
	total += loser.Balance + owner.Balance
	if total != 100+100+100+10-1 {
		t.Errorf("system total = %d, want 309", total)
	}
}

func TestResolve_NoWinnersDestroysPool(t *testing.T) {
	svc, store, _, _ := newSettlementEnv(t)
	ctx := context.Background()

	deadline := time.Now().Add(-time.Minute)
	seedUser(t, store, "owner", 10)
	seedUser(t, store, "loser", 100)
	seedPrediction(t, store, "p1", "owner", deadline)

	stake(t, store, "loser", "p1", false, 40)

	res, err := svc.Resolve(ctx, domain.ResolveRequest{CallerID: "owner", PredictionID: "p1", Outcome: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.Totals.Distributed != 0 || res.Totals.Residual != 40 {
		t.Errorf("totals = %+v, want nothing distributed and 40 destroyed", res.Totals)
	}

	l, _ := store.GetByID(ctx, "loser")
	if l.Balance != 60 {
		t.Errorf("loser balance = %d, want 60", l.Balance)
	}
	if l.Made != 1 || l.Correct != 0 {
		t.Errorf("loser stats = %d/%d, want 0/1", l.Correct, l.Made)
	}
}

func TestResolve_Guards(t *testing.T) {
	svc, store, _, _ := newSettlementEnv(t)
	ctx := context.Background()

	seedUser(t, store, "owner", 10)
	seedUser(t, store, "stranger", 10)
	seedPrediction(t, store, "open", "owner", time.Now().Add(time.Hour))
	seedPrediction(t, store, "past", "owner", time.Now().Add(-time.Hour))

	cases := []struct {
		name string
		req  domain.ResolveRequest
		want error
	}{
		{"unknown prediction", domain.ResolveRequest{CallerID: "owner", PredictionID: "nope", Outcome: true}, domain.ErrNotFound},
		{"not owner", domain.ResolveRequest{CallerID: "stranger", PredictionID: "past", Outcome: true}, domain.ErrNotOwner},
		{"deadline not passed", domain.ResolveRequest{CallerID: "owner", PredictionID: "open", Outcome: true}, domain.ErrDeadlineNotPassed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Resolve(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestResolve_Idempotence(t *testing.T) {
	svc, store, _, _ := newSettlementEnv(t)
	ctx := context.Background()

	seedUser(t, store, "owner", 10)
	seedUser(t, store, "winner", 100)
	seedPrediction(t, store, "p1", "owner", time.Now().Add(-time.Minute))
	stake(t, store, "winner", "p1", true, 50)

	if _, err := svc.Resolve(ctx, domain.ResolveRequest{CallerID: "owner", PredictionID: "p1", Outcome: true}); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	_, err := svc.Resolve(ctx, domain.ResolveRequest{CallerID: "owner", PredictionID: "p1", Outcome: false})
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("second resolve error = %v, want ErrAlreadyResolved", err)
	}

	// The second attempt must not have credited anyone again.
	w, _ := store.GetByID(ctx, "winner")
	if w.Balance != 100 {
		t.Errorf("winner balance = %d, want 100 (stake returned once)", w.Balance)
	}
	if w.Made != 1 {
		t.Errorf("winner made = %d, want 1", w.Made)
	}
}
