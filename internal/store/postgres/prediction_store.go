package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a new PredictionStore backed by the given pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

const predictionCols = `id, owner_id, title, detail, category, deadline,
	resolved, outcome, stake_count, total_points,
	yes_count, no_count, yes_points, no_points,
	created_at, resolved_at`

// scanPrediction scans a single prediction row.
func scanPrediction(row pgx.Row) (domain.Prediction, error) {
	var p domain.Prediction
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Detail, &p.Category, &p.Deadline,
		&p.Resolved, &p.Outcome,
		&p.Stats.StakeCount, &p.Stats.TotalPoints,
		&p.Stats.YesCount, &p.Stats.NoCount,
		&p.Stats.YesPoints, &p.Stats.NoPoints,
		&p.CreatedAt, &p.ResolvedAt,
	)
	if err != nil {
		return domain.Prediction{}, err
	}
	return p, nil
}

// Create inserts a new, unresolved prediction.
func (s *PredictionStore) Create(ctx context.Context, p domain.Prediction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO predictions (id, owner_id, title, detail, category, deadline, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OwnerID, p.Title, p.Detail, p.Category, p.Deadline, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create prediction %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a prediction by its primary key.
func (s *PredictionStore) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	p, err := scanPrediction(s.pool.QueryRow(ctx,
		`SELECT `+predictionCols+` FROM predictions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prediction{}, domain.ErrNotFound
		}
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction %s: %w", id, err)
	}
	return p, nil
}

// List returns predictions for the feed with filtering and pagination.
func (s *PredictionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionCols + ` FROM predictions WHERE 1=1`
	args := []any{}
	argIdx := 1

	switch opts.Status {
	case domain.PredictionStatusOpen:
		query += " AND NOT resolved"
	case domain.PredictionStatusResolved:
		query += " AND resolved"
	}
	if opts.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, opts.Category)
		argIdx++
	}

	if opts.Sort == "deadline" {
		query += " ORDER BY deadline ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list predictions rows: %w", err)
	}
	return out, nil
}

// Count returns the total number of predictions.
func (s *PredictionStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM predictions").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count predictions: %w", err)
	}
	return count, nil
}

// ListResolvable returns unresolved predictions whose deadline has passed.
func (s *PredictionStore) ListResolvable(ctx context.Context, now time.Time, limit int) ([]domain.Prediction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+predictionCols+` FROM predictions
		 WHERE NOT resolved AND deadline <= $1
		 ORDER BY deadline ASC LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolvable predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolvable prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
