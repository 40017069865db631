package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/metrics"
)

// StakeService wraps the transactional ledger with the side effects a
// committed stake triggers: snapshot broadcast, audit logging, leaderboard
// upkeep. All side effects are best-effort; the ledger commit is the only
// thing that can fail a stake.
type StakeService struct {
	ledger      domain.Ledger
	bus         domain.SignalBus
	audit       domain.AuditStore
	leaderboard domain.LeaderboardCache
	maxStake    int64
	logger      *slog.Logger
}

// NewStakeService creates a StakeService. maxStake of 0 disables the
// per-stake cap.
func NewStakeService(
	ledger domain.Ledger,
	bus domain.SignalBus,
	audit domain.AuditStore,
	leaderboard domain.LeaderboardCache,
	maxStake int64,
	logger *slog.Logger,
) *StakeService {
	return &StakeService{
		ledger:      ledger,
		bus:         bus,
		audit:       audit,
		leaderboard: leaderboard,
		maxStake:    maxStake,
		logger:      logger,
	}
}

// PlaceStake validates the request, commits it through the ledger, and fans
// out the committed snapshot.
func (s *StakeService) PlaceStake(ctx context.Context, req domain.StakeRequest) (domain.StakeResult, error) {
	if req.Points <= 0 {
		metrics.StakeRejections.WithLabelValues("invalid_stake").Inc()
		return domain.StakeResult{}, domain.ErrInvalidStake
	}
	if s.maxStake > 0 && req.Points > s.maxStake {
		metrics.StakeRejections.WithLabelValues("invalid_stake").Inc()
		return domain.StakeResult{}, fmt.Errorf("%w: exceeds maximum of %d", domain.ErrInvalidStake, s.maxStake)
	}

	start := time.Now()
	res, err := s.ledger.PlaceStake(ctx, req)
	if err != nil {
		metrics.StakeRejections.WithLabelValues(rejectionReason(err)).Inc()
		return domain.StakeResult{}, fmt.Errorf("stake_service: place stake: %w", err)
	}
	metrics.LedgerTxDuration.WithLabelValues("place_stake").Observe(time.Since(start).Seconds())
	metrics.StakesTotal.WithLabelValues(metrics.StanceLabel(req.Stance)).Inc()
	metrics.StakePoints.WithLabelValues(metrics.StanceLabel(req.Stance)).Add(float64(req.Points))

	s.broadcast(ctx, res)

	if err := s.audit.Log(ctx, "stake_placed", map[string]any{
		"user_id":       req.CallerID,
		"prediction_id": req.PredictionID,
		"stance":        req.Stance,
		"points":        req.Points,
		"balance_after": res.Balance,
	}); err != nil {
		s.logger.WarnContext(ctx, "stake_service: audit log failed",
			slog.String("prediction_id", req.PredictionID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.leaderboard.SetScore(ctx, req.CallerID, res.Balance); err != nil {
		s.logger.WarnContext(ctx, "stake_service: leaderboard update failed",
			slog.String("user_id", req.CallerID),
			slog.String("error", err.Error()),
		)
		// Non-fatal: the leaderboard rebuilds from the store on read misses.
	}

	s.logger.InfoContext(ctx, "stake_service: stake placed",
		slog.String("user_id", req.CallerID),
		slog.String("prediction_id", req.PredictionID),
		slog.Bool("stance", req.Stance),
		slog.Int64("points", req.Points),
	)

	return res, nil
}

// broadcast publishes the post-stake snapshot to live subscribers and the
// durable stream.
func (s *StakeService) broadcast(ctx context.Context, res domain.StakeResult) {
	snap := domain.PredictionSnapshot{
		Type:       "stake_placed",
		Prediction: res.Prediction,
		At:         time.Now().UTC(),
	}
	payload := snap.Encode()

	if err := s.bus.Publish(ctx, domain.ChannelPredictions, payload); err != nil {
		s.logger.WarnContext(ctx, "stake_service: snapshot publish failed",
			slog.String("prediction_id", res.Prediction.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamPredictions, payload); err != nil {
		s.logger.WarnContext(ctx, "stake_service: stream append failed",
			slog.String("prediction_id", res.Prediction.ID),
			slog.String("error", err.Error()),
		)
	}
}

// rejectionReason maps a ledger error to its metrics label.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPredictionClosed):
		return "closed"
	case errors.Is(err, domain.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInvalidStake):
		return "invalid_stake"
	default:
		return "error"
	}
}
