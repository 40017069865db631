package domain

// Payout is the settlement outcome for a single voter. Winners receive their
// stake back plus a proportional share of the loser pool; losers receive
// nothing (their stake was debited when the vote was placed).
type Payout struct {
	UserID string `json:"user_id"`
	VoteID string `json:"vote_id"`
	Staked int64  `json:"staked"`
	Amount int64  `json:"amount"`
	Won    bool   `json:"won"`
}

// SettlementTotals summarizes the pools on each side of a settled prediction.
// Residual is the part of the loser pool that integer flooring left
// undistributed; it is destroyed, not redistributed.
type SettlementTotals struct {
	WinnerPoints int64 `json:"winner_points"`
	LoserPoints  int64 `json:"loser_points"`
	Distributed  int64 `json:"distributed"`
	Residual     int64 `json:"residual"`
}

// ComputePayouts partitions the votes by the resolved outcome and computes
// every voter's payout. A winner with stake s receives
// s + floor(s * loserPool / winnerPool); integer division floors, so the sum
// of loser-pool shares can fall short of the pool by up to one point per
// winner. When nobody staked the winning side, no credits occur at all and
// the loser pool is destroyed.
func ComputePayouts(votes []Vote, outcome bool) ([]Payout, SettlementTotals) {
	var totals SettlementTotals
	for _, v := range votes {
		if v.Stance == outcome {
			totals.WinnerPoints += v.Points
		} else {
			totals.LoserPoints += v.Points
		}
	}

	payouts := make([]Payout, 0, len(votes))
	for _, v := range votes {
		p := Payout{
			UserID: v.UserID,
			VoteID: v.ID,
			Staked: v.Points,
			Won:    v.Stance == outcome,
		}
		if p.Won && totals.WinnerPoints > 0 {
			p.Amount = v.Points + v.Points*totals.LoserPoints/totals.WinnerPoints
			totals.Distributed += p.Amount
		}
		payouts = append(payouts, p)
	}

	if totals.WinnerPoints > 0 {
		totals.Residual = totals.WinnerPoints + totals.LoserPoints - totals.Distributed
	} else {
		totals.Residual = totals.LoserPoints
	}
	return payouts, totals
}
