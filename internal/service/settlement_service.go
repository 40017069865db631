package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/metrics"
	"github.com/oddsrow/oddsrow/internal/notify"
)

// SettlementService drives prediction resolution: the ledger transaction plus
// the fan-out a committed settlement triggers (snapshot broadcast, audit
// trail, leaderboard refresh for every credited winner, operator
// notification).
type SettlementService struct {
	ledger      domain.Ledger
	users       domain.UserStore
	bus         domain.SignalBus
	audit       domain.AuditStore
	leaderboard domain.LeaderboardCache
	notifier    *notify.Notifier
	logger      *slog.Logger
}

// NewSettlementService creates a SettlementService. notifier may be nil when
// no notification channels are configured.
func NewSettlementService(
	ledger domain.Ledger,
	users domain.UserStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	leaderboard domain.LeaderboardCache,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		ledger:      ledger,
		users:       users,
		bus:         bus,
		audit:       audit,
		leaderboard: leaderboard,
		notifier:    notifier,
		logger:      logger,
	}
}

// Resolve settles a prediction to the given outcome and fans out the result.
func (s *SettlementService) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.SettlementResult, error) {
	start := time.Now()
	res, err := s.ledger.Resolve(ctx, req)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("settlement_service: resolve: %w", err)
	}
	metrics.LedgerTxDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	metrics.SettlementsTotal.WithLabelValues(metrics.StanceLabel(req.Outcome)).Inc()
	metrics.PointsDestroyed.Add(float64(res.Totals.Residual))

	s.broadcast(ctx, res)

	if err := s.audit.Log(ctx, "prediction_resolved", map[string]any{
		"prediction_id": req.PredictionID,
		"resolver_id":   req.CallerID,
		"outcome":       req.Outcome,
		"winner_points": res.Totals.WinnerPoints,
		"loser_points":  res.Totals.LoserPoints,
		"distributed":   res.Totals.Distributed,
		"residual":      res.Totals.Residual,
	}); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("prediction_id", req.PredictionID),
			slog.String("error", err.Error()),
		)
	}

	s.refreshLeaderboard(ctx, res)

	if s.notifier != nil {
		outcome := "NO"
		if req.Outcome {
			outcome = "YES"
		}
		msg := fmt.Sprintf("%q resolved %s: %d pts redistributed to %d winners",
			res.Prediction.Title, outcome, res.Totals.LoserPoints-res.Totals.Residual, countWinners(res.Payouts))
		if err := s.notifier.Notify(ctx, "prediction_resolved", "Prediction resolved", msg); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: notify failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "settlement_service: prediction resolved",
		slog.String("prediction_id", req.PredictionID),
		slog.Bool("outcome", req.Outcome),
		slog.Int64("winner_points", res.Totals.WinnerPoints),
		slog.Int64("loser_points", res.Totals.LoserPoints),
		slog.Int64("residual", res.Totals.Residual),
	)

	return res, nil
}

// broadcast publishes the settlement snapshot on both channels and the
// durable stream.
func (s *SettlementService) broadcast(ctx context.Context, res domain.SettlementResult) {
	snap := domain.PredictionSnapshot{
		Type:       "resolved",
		Prediction: res.Prediction,
		Totals:     &res.Totals,
		At:         time.Now().UTC(),
	}
	payload := snap.Encode()

	for _, ch := range []string{domain.ChannelPredictions, domain.ChannelSettlements} {
		if err := s.bus.Publish(ctx, ch, payload); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: snapshot publish failed",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.bus.StreamAppend(ctx, domain.StreamPredictions, payload); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: stream append failed",
			slog.String("error", err.Error()),
		)
	}
}

// refreshLeaderboard re-reads every credited winner and pushes their new
// balance into the leaderboard projection.
func (s *SettlementService) refreshLeaderboard(ctx context.Context, res domain.SettlementResult) {
	for _, p := range res.Payouts {
		if !p.Won || p.Amount == 0 {
			continue
		}
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "settlement_service: winner reload failed",
				slog.String("user_id", p.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.leaderboard.SetScore(ctx, u.ID, u.Balance); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: leaderboard update failed",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func countWinners(payouts []domain.Payout) int {
	n := 0
	for _, p := range payouts {
		if p.Won {
			n++
		}
	}
	return n
}
