package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// Ledger implements domain.Ledger. Every operation runs inside a single
// REPEATABLE READ transaction and locks the prediction row first, then the
// affected user rows, so the business-rule checks hold at commit time even
// under concurrent callers.
type Ledger struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the ledger's time source. Used in tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// PlaceStake validates and records a single stake atomically: it locks the
// prediction row (the serialization point against a concurrent Resolve),
// locks the caller's account row, checks the one-vote-per-prediction rule
// and the balance, inserts the immutable vote, debits the balance, and
// recomputes the prediction aggregates from the full vote set.
func (l *Ledger) PlaceStake(ctx context.Context, req domain.StakeRequest) (domain.StakeResult, error) {
	if req.Points <= 0 {
		return domain.StakeResult{}, domain.ErrInvalidStake
	}

	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: begin stake tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var resolved bool
	err = tx.QueryRow(ctx,
		`SELECT resolved FROM predictions WHERE id = $1 FOR UPDATE`,
		req.PredictionID,
	).Scan(&resolved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StakeResult{}, domain.ErrNotFound
		}
		return domain.StakeResult{}, fmt.Errorf("postgres: lock prediction %s: %w", req.PredictionID, err)
	}
	if resolved {
		return domain.StakeResult{}, domain.ErrPredictionClosed
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
		req.CallerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StakeResult{}, domain.ErrNotFound
		}
		return domain.StakeResult{}, fmt.Errorf("postgres: lock account %s: %w", req.CallerID, err)
	}

	var voted bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM votes WHERE user_id = $1 AND prediction_id = $2)`,
		req.CallerID, req.PredictionID,
	).Scan(&voted)
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: check existing vote: %w", err)
	}
	if voted {
		return domain.StakeResult{}, domain.ErrAlreadyVoted
	}

	if balance < req.Points {
		return domain.StakeResult{}, domain.ErrInsufficientFunds
	}

	v := domain.Vote{
		ID:           uuid.New().String(),
		UserID:       req.CallerID,
		PredictionID: req.PredictionID,
		Stance:       req.Stance,
		Points:       req.Points,
		CreatedAt:    l.now(),
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO votes (id, user_id, prediction_id, stance, points, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.UserID, v.PredictionID, v.Stance, v.Points, v.CreatedAt,
	)
	if err != nil {
		// The unique constraint is the backstop for the existence check.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.StakeResult{}, domain.ErrAlreadyVoted
		}
		return domain.StakeResult{}, fmt.Errorf("postgres: insert vote: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = balance - $2 WHERE id = $1`,
		req.CallerID, req.Points,
	)
	if err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: debit balance: %w", err)
	}

	if err := recomputeStats(ctx, tx, req.PredictionID); err != nil {
		return domain.StakeResult{}, err
	}

	p, err := getPredictionTx(ctx, tx, req.PredictionID)
	if err != nil {
		return domain.StakeResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StakeResult{}, fmt.Errorf("postgres: commit stake tx: %w", err)
	}

	return domain.StakeResult{
		Vote:       v,
		Balance:    balance - req.Points,
		Prediction: p,
	}, nil
}

// Resolve closes a prediction and redistributes the loser pool to winners in
// one transaction. The prediction row is locked before the resolved-flag
// check so two concurrent resolve calls cannot both pass it; credits and
// lifetime-stat increments either all commit or none do.
func (l *Ledger) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.SettlementResult, error) {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("postgres: begin resolve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		ownerID  string
		deadline time.Time
		resolved bool
	)
	err = tx.QueryRow(ctx,
		`SELECT owner_id, deadline, resolved FROM predictions WHERE id = $1 FOR UPDATE`,
		req.PredictionID,
	).Scan(&ownerID, &deadline, &resolved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SettlementResult{}, domain.ErrNotFound
		}
		return domain.SettlementResult{}, fmt.Errorf("postgres: lock prediction %s: %w", req.PredictionID, err)
	}

	switch {
	case ownerID != req.CallerID:
		return domain.SettlementResult{}, domain.ErrNotOwner
	case resolved:
		return domain.SettlementResult{}, domain.ErrAlreadyResolved
	case l.now().Before(deadline):
		return domain.SettlementResult{}, domain.ErrDeadlineNotPassed
	}

	resolvedAt := l.now()
	_, err = tx.Exec(ctx,
		`UPDATE predictions SET resolved = TRUE, outcome = $2, resolved_at = $3 WHERE id = $1`,
		req.PredictionID, req.Outcome, resolvedAt,
	)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("postgres: mark resolved: %w", err)
	}

	votes, err := listVotesTx(ctx, tx, req.PredictionID)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	payouts, totals := domain.ComputePayouts(votes, req.Outcome)

	if len(payouts) > 0 {
		batch := &pgx.Batch{}
		for _, p := range payouts {
			correct := int64(0)
			if p.Won {
				correct = 1
			}
			batch.Queue(
				`UPDATE users
				 SET balance = balance + $2,
				     predictions_made = predictions_made + 1,
				     predictions_correct = predictions_correct + $3
				 WHERE id = $1`,
				p.UserID, p.Amount, correct,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range payouts {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return domain.SettlementResult{}, fmt.Errorf("postgres: settle voter: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return domain.SettlementResult{}, fmt.Errorf("postgres: close settle batch: %w", err)
		}
	}

	p, err := getPredictionTx(ctx, tx, req.PredictionID)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("postgres: commit resolve tx: %w", err)
	}

	return domain.SettlementResult{
		Prediction: p,
		Payouts:    payouts,
		Totals:     totals,
	}, nil
}

// recomputeStats rebuilds the prediction aggregates from the committed vote
// set inside the caller's transaction. Recomputation from source rather than
// incremental patching keeps the counters correct under concurrent writers;
// it mirrors domain.ProjectStats.
func recomputeStats(ctx context.Context, tx pgx.Tx, predictionID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE predictions p SET
			stake_count  = s.cnt,
			total_points = s.total,
			yes_count    = s.yes_cnt,
			no_count     = s.no_cnt,
			yes_points   = s.yes_pts,
			no_points    = s.no_pts
		 FROM (
			SELECT
				COUNT(*)                                          AS cnt,
				COALESCE(SUM(points), 0)                          AS total,
				COUNT(*)    FILTER (WHERE stance)                 AS yes_cnt,
				COUNT(*)    FILTER (WHERE NOT stance)             AS no_cnt,
				COALESCE(SUM(points) FILTER (WHERE stance), 0)    AS yes_pts,
				COALESCE(SUM(points) FILTER (WHERE NOT stance), 0) AS no_pts
			FROM votes WHERE prediction_id = $1
		 ) s
		 WHERE p.id = $1`,
		predictionID,
	)
	if err != nil {
		return fmt.Errorf("postgres: recompute stats for %s: %w", predictionID, err)
	}
	return nil
}

func listVotesTx(ctx context.Context, tx pgx.Tx, predictionID string) ([]domain.Vote, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, user_id, prediction_id, stance, points, created_at
		 FROM votes WHERE prediction_id = $1 ORDER BY created_at`,
		predictionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes for %s: %w", predictionID, err)
	}
	defer rows.Close()

	return scanVotes(rows)
}

func getPredictionTx(ctx context.Context, tx pgx.Tx, id string) (domain.Prediction, error) {
	p, err := scanPrediction(tx.QueryRow(ctx,
		`SELECT `+predictionCols+` FROM predictions WHERE id = $1`, id))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("postgres: reload prediction %s: %w", id, err)
	}
	return p, nil
}

// Compile-time interface check.
var _ domain.Ledger = (*Ledger)(nil)
