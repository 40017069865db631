package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for feed queries.
type ListOpts struct {
	Limit    int
	Offset   int
	Category string
	Status   PredictionStatus
	Sort     string // "newest" (default) or "deadline"
}

// StakeRequest is the input to Ledger.PlaceStake. CallerID is a verified
// identity supplied by the authentication layer; the ledger trusts it.
type StakeRequest struct {
	CallerID     string
	PredictionID string
	Stance       bool
	Points       int64
}

// StakeResult reports the committed state after a successful stake.
type StakeResult struct {
	Vote       Vote       `json:"vote"`
	Balance    int64      `json:"balance"`
	Prediction Prediction `json:"prediction"`
}

// ResolveRequest is the input to Ledger.Resolve.
type ResolveRequest struct {
	CallerID     string
	PredictionID string
	Outcome      bool
}

// SettlementResult reports the committed state after a resolution.
type SettlementResult struct {
	Prediction Prediction       `json:"prediction"`
	Payouts    []Payout         `json:"payouts"`
	Totals     SettlementTotals `json:"totals"`
}

// Ledger is the transactional core: both operations run as a single atomic
// transaction against the backing store, with row-level exclusivity on the
// prediction and the affected user accounts so concurrent calls cannot both
// pass the balance, uniqueness, or resolved-flag checks. No partial write is
// ever observable; business-rule rejections surface as the sentinel errors
// in this package and are never retried.
type Ledger interface {
	// PlaceStake records a vote and debits the caller's balance. It fails
	// with ErrNotFound, ErrPredictionClosed, ErrAlreadyVoted,
	// ErrInsufficientFunds, or ErrInvalidStake.
	PlaceStake(ctx context.Context, req StakeRequest) (StakeResult, error)

	// Resolve transitions a prediction to resolved, credits winners their
	// stake plus a floored proportional share of the loser pool, and bumps
	// every voter's lifetime stats. It fails with ErrNotFound, ErrNotOwner,
	// ErrAlreadyResolved, or ErrDeadlineNotPassed.
	Resolve(ctx context.Context, req ResolveRequest) (SettlementResult, error)
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	TopByBalance(ctx context.Context, limit int) ([]User, error)
}

// PredictionStore persists predictions.
type PredictionStore interface {
	Create(ctx context.Context, p Prediction) error
	GetByID(ctx context.Context, id string) (Prediction, error)
	List(ctx context.Context, opts ListOpts) ([]Prediction, error)
	Count(ctx context.Context) (int64, error)
	// ListResolvable returns unresolved predictions whose deadline has
	// passed, for the sweeper.
	ListResolvable(ctx context.Context, now time.Time, limit int) ([]Prediction, error)
}

// VoteStore reads votes. Inserts happen only inside Ledger transactions.
type VoteStore interface {
	ListByPrediction(ctx context.Context, predictionID string) ([]Vote, error)
	ListByUser(ctx context.Context, userID string) ([]Vote, error)
	GetByUserAndPrediction(ctx context.Context, userID, predictionID string) (Vote, error)
}

// AuditEntry is a single append-only audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of ledger mutations.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, limit, offset int) ([]AuditEntry, error)
}
