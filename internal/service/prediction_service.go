package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oddsrow/oddsrow/internal/domain"
)

// Bounds on user-supplied prediction fields.
const (
	maxTitleLen  = 200
	maxDetailLen = 2000
)

// CreatePredictionRequest carries the caller-supplied fields for a new
// prediction.
type CreatePredictionRequest struct {
	OwnerID  string
	Title    string
	Detail   string
	Category string
	Deadline time.Time
}

// PredictionService handles prediction creation and feed reads.
type PredictionService struct {
	predictions domain.PredictionStore
	votes       domain.VoteStore
	audit       domain.AuditStore
	now         func() time.Time
	logger      *slog.Logger
}

// NewPredictionService creates a PredictionService.
func NewPredictionService(
	predictions domain.PredictionStore,
	votes domain.VoteStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *PredictionService {
	return &PredictionService{
		predictions: predictions,
		votes:       votes,
		audit:       audit,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock overrides the service clock, for tests.
func (s *PredictionService) WithClock(now func() time.Time) *PredictionService {
	s.now = now
	return s
}

// Create validates and persists a new open prediction.
func (s *PredictionService) Create(ctx context.Context, req CreatePredictionRequest) (domain.Prediction, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTitleLen {
		return domain.Prediction{}, validationErrorf("title must be 1-%d characters", maxTitleLen)
	}
	if len(req.Detail) > maxDetailLen {
		return domain.Prediction{}, validationErrorf("detail must be at most %d characters", maxDetailLen)
	}
	now := s.now().UTC()
	if !req.Deadline.After(now) {
		return domain.Prediction{}, validationErrorf("deadline must be in the future")
	}

	p := domain.Prediction{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		Title:     title,
		Detail:    strings.TrimSpace(req.Detail),
		Category:  strings.ToLower(strings.TrimSpace(req.Category)),
		Deadline:  req.Deadline.UTC(),
		CreatedAt: now,
	}
	if err := s.predictions.Create(ctx, p); err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: create: %w", err)
	}

	if err := s.audit.Log(ctx, "prediction_created", map[string]any{
		"prediction_id": p.ID,
		"owner_id":      p.OwnerID,
		"title":         p.Title,
		"deadline":      p.Deadline,
	}); err != nil {
		s.logger.WarnContext(ctx, "prediction_service: audit log failed",
			slog.String("prediction_id", p.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "prediction_service: prediction created",
		slog.String("prediction_id", p.ID),
		slog.String("owner_id", p.OwnerID),
		slog.Time("deadline", p.Deadline),
	)

	return p, nil
}

// Get retrieves a single prediction by ID.
func (s *PredictionService) Get(ctx context.Context, id string) (domain.Prediction, error) {
	p, err := s.predictions.GetByID(ctx, id)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("prediction_service: get %q: %w", id, err)
	}
	return p, nil
}

// Votes returns the committed votes for a prediction, newest first.
func (s *PredictionService) Votes(ctx context.Context, predictionID string) ([]domain.Vote, error) {
	if _, err := s.predictions.GetByID(ctx, predictionID); err != nil {
		return nil, fmt.Errorf("prediction_service: get %q: %w", predictionID, err)
	}
	votes, err := s.votes.ListByPrediction(ctx, predictionID)
	if err != nil {
		return nil, fmt.Errorf("prediction_service: list votes for %q: %w", predictionID, err)
	}
	return votes, nil
}

// List returns a page of the prediction feed.
func (s *PredictionService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	preds, err := s.predictions.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("prediction_service: list: %w", err)
	}
	return preds, nil
}

// Count returns the total number of predictions.
func (s *PredictionService) Count(ctx context.Context) (int64, error) {
	count, err := s.predictions.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("prediction_service: count: %w", err)
	}
	return count, nil
}
