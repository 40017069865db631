package domain

import "testing"

func vote(id, user string, stance bool, points int64) Vote {
	return Vote{ID: id, UserID: user, PredictionID: "p1", Stance: stance, Points: points}
}

func TestComputePayouts_ProportionalShare(t *testing.T) {
	// One winner staked 30 yes, one loser staked 20 no; outcome yes.
	// Winner gets 30 + floor(30/30*20) = 50.
	votes := []Vote{
		vote("v1", "alice", true, 30),
		vote("v2", "bob", false, 20),
	}

	payouts, totals := ComputePayouts(votes, true)

	if totals.WinnerPoints != 30 || totals.LoserPoints != 20 {
		t.Fatalf("totals = %+v, want winner 30 loser 20", totals)
	}
	if len(payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(payouts))
	}
	if !payouts[0].Won || payouts[0].Amount != 50 {
		t.Errorf("winner payout = %+v, want won with 50", payouts[0])
	}
	if payouts[1].Won || payouts[1].Amount != 0 {
		t.Errorf("loser payout = %+v, want lost with 0", payouts[1])
	}
	if totals.Residual != 0 {
		t.Errorf("residual = %d, want 0", totals.Residual)
	}
}

func TestComputePayouts_FlooringLeavesResidual(t *testing.T) {
	// Winner pool 3 (two winners: 1 and 2), loser pool 10.
	// Shares: floor(1*10/3)=3 and floor(2*10/3)=6; one point destroyed.
	votes := []Vote{
		vote("v1", "a", true, 1),
		vote("v2", "b", true, 2),
		vote("v3", "c", false, 10),
	}

	payouts, totals := ComputePayouts(votes, true)

	if payouts[0].Amount != 4 {
		t.Errorf("first winner = %d, want 4", payouts[0].Amount)
	}
	if payouts[1].Amount != 8 {
		t.Errorf("second winner = %d, want 8", payouts[1].Amount)
	}
	if totals.Residual != 1 {
		t.Errorf("residual = %d, want 1", totals.Residual)
	}
	if totals.Distributed+totals.Residual != totals.WinnerPoints+totals.LoserPoints {
		t.Errorf("points created or lost: distributed %d residual %d pools %d",
			totals.Distributed, totals.Residual, totals.WinnerPoints+totals.LoserPoints)
	}
}

func TestComputePayouts_NoWinners(t *testing.T) {
	// Everyone staked the wrong side: nothing is credited, the pool is gone.
	votes := []Vote{
		vote("v1", "a", false, 40),
		vote("v2", "b", false, 60),
	}

	payouts, totals := ComputePayouts(votes, true)

	for _, p := range payouts {
		if p.Won || p.Amount != 0 {
			t.Errorf("payout = %+v, want lost with 0", p)
		}
	}
	if totals.Distributed != 0 {
		t.Errorf("distributed = %d, want 0", totals.Distributed)
	}
	if totals.Residual != 100 {
		t.Errorf("residual = %d, want full loser pool 100", totals.Residual)
	}
}

func TestComputePayouts_EqualStakesDoubleOrNothing(t *testing.T) {
	// Equal pools with equal per-voter stakes: each winner roughly doubles,
	// losing at most one point to rounding.
	votes := []Vote{
		vote("v1", "a", true, 25),
		vote("v2", "b", true, 25),
		vote("v3", "c", false, 25),
		vote("v4", "d", false, 25),
	}

	payouts, _ := ComputePayouts(votes, true)
	for _, p := range payouts {
		if !p.Won {
			continue
		}
		if p.Amount < 2*p.Staked-1 || p.Amount > 2*p.Staked {
			t.Errorf("winner %s payout %d, want within [%d,%d]",
				p.UserID, p.Amount, 2*p.Staked-1, 2*p.Staked)
		}
	}
}

func TestComputePayouts_NeverCreatesPoints(t *testing.T) {
	cases := [][]Vote{
		{vote("v1", "a", true, 7), vote("v2", "b", false, 13)},
		{vote("v1", "a", true, 1), vote("v2", "b", true, 1), vote("v3", "c", false, 1)},
		{vote("v1", "a", false, 999)},
		{},
	}
	for i, votes := range cases {
		_, totals := ComputePayouts(votes, true)
		if totals.Distributed > totals.WinnerPoints+totals.LoserPoints {
			t.Errorf("case %d: distributed %d exceeds pool %d",
				i, totals.Distributed, totals.WinnerPoints+totals.LoserPoints)
		}
	}
}

func TestProjectStats(t *testing.T) {
	votes := []Vote{
		vote("v1", "a", true, 30),
		vote("v2", "b", false, 20),
		vote("v3", "c", true, 5),
	}

	s := ProjectStats(votes)

	want := PredictionStats{
		StakeCount: 3, TotalPoints: 55,
		YesCount: 2, NoCount: 1,
		YesPoints: 35, NoPoints: 20,
	}
	if s != want {
		t.Errorf("ProjectStats = %+v, want %+v", s, want)
	}
}

func TestProjectStats_Empty(t *testing.T) {
	if s := ProjectStats(nil); s != (PredictionStats{}) {
		t.Errorf("ProjectStats(nil) = %+v, want zero", s)
	}
}

func TestUserAccuracy(t *testing.T) {
	cases := []struct {
		made, correct int64
		want          float64
	}{
		{0, 0, 0},
		{4, 1, 25},
		{3, 3, 100},
	}
	for _, c := range cases {
		u := User{Made: c.made, Correct: c.correct}
		if got := u.Accuracy(); got != c.want {
			t.Errorf("Accuracy(%d/%d) = %v, want %v", c.correct, c.made, got, c.want)
		}
	}
}
