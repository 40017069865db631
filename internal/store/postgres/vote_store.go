package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// VoteStore implements the read side of domain.VoteStore. Vote inserts happen
// only inside Ledger transactions; votes are immutable afterwards.
type VoteStore struct {
	pool *pgxpool.Pool
}

// NewVoteStore creates a new VoteStore backed by the given connection pool.
func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

const voteCols = `id, user_id, prediction_id, stance, points, created_at`

func scanVotes(rows pgx.Rows) ([]domain.Vote, error) {
	var out []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.ID, &v.UserID, &v.PredictionID, &v.Stance, &v.Points, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan vote: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListByPrediction returns all votes for a prediction in placement order.
func (s *VoteStore) ListByPrediction(ctx context.Context, predictionID string) ([]domain.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+voteCols+` FROM votes WHERE prediction_id = $1 ORDER BY created_at`,
		predictionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes by prediction %s: %w", predictionID, err)
	}
	defer rows.Close()
	return scanVotes(rows)
}

// ListByUser returns a user's votes, newest first.
func (s *VoteStore) ListByUser(ctx context.Context, userID string) ([]domain.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+voteCols+` FROM votes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list votes by user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanVotes(rows)
}

// GetByUserAndPrediction returns the single vote a user placed on a
// prediction, or domain.ErrNotFound.
func (s *VoteStore) GetByUserAndPrediction(ctx context.Context, userID, predictionID string) (domain.Vote, error) {
	var v domain.Vote
	err := s.pool.QueryRow(ctx,
		`SELECT `+voteCols+` FROM votes WHERE user_id = $1 AND prediction_id = $2`,
		userID, predictionID,
	).Scan(&v.ID, &v.UserID, &v.PredictionID, &v.Stance, &v.Points, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vote{}, domain.ErrNotFound
		}
		return domain.Vote{}, fmt.Errorf("postgres: get vote: %w", err)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.VoteStore = (*VoteStore)(nil)
