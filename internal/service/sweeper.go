package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/metrics"
	"github.com/oddsrow/oddsrow/internal/notify"
)

// sweepLockKey guards the scan so only one instance sweeps at a time.
const sweepLockKey = "sweep:resolvable"

// sweepBatchSize bounds a single scan.
const sweepBatchSize = 100

// Sweeper periodically scans for unresolved predictions whose deadline has
// passed and nudges their owners to resolve them. Resolution itself stays an
// owner decision; the sweeper only announces that it is now possible.
type Sweeper struct {
	predictions domain.PredictionStore
	locks       domain.LockManager
	notifier    *notify.Notifier
	interval    time.Duration
	lockTTL     time.Duration
	now         func() time.Time
	logger      *slog.Logger

	notified map[string]bool
}

// NewSweeper creates a Sweeper. notifier may be nil.
func NewSweeper(
	predictions domain.PredictionStore,
	locks domain.LockManager,
	notifier *notify.Notifier,
	interval, lockTTL time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		predictions: predictions,
		locks:       locks,
		notifier:    notifier,
		interval:    interval,
		lockTTL:     lockTTL,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "sweeper")),
		notified:    make(map[string]bool),
	}
}

// WithClock overrides the sweeper clock, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started",
		slog.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// SweepOnce performs a single scan under the distributed lock. Another
// instance holding the lock is not an error.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, sweepLockKey, s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			metrics.SweepRuns.WithLabelValues("skipped").Inc()
			s.logger.DebugContext(ctx, "sweep skipped, lock held elsewhere")
			return nil
		}
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("sweeper: acquire lock: %w", err)
	}
	defer unlock()

	resolvable, err := s.predictions.ListResolvable(ctx, s.now().UTC(), sweepBatchSize)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("sweeper: list resolvable: %w", err)
	}

	fresh := 0
	for _, p := range resolvable {
		if s.notified[p.ID] {
			continue
		}
		s.notified[p.ID] = true
		fresh++

		s.logger.InfoContext(ctx, "prediction awaiting resolution",
			slog.String("prediction_id", p.ID),
			slog.String("owner_id", p.OwnerID),
			slog.Time("deadline", p.Deadline),
		)

		if s.notifier != nil {
			msg := fmt.Sprintf("%q passed its deadline with %d stakes (%d pts) and can now be resolved by its owner.",
				p.Title, p.Stats.StakeCount, p.Stats.TotalPoints)
			if err := s.notifier.Notify(ctx, "prediction_resolvable", "Prediction awaiting resolution", msg); err != nil {
				s.logger.WarnContext(ctx, "sweeper: notify failed",
					slog.String("prediction_id", p.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	// Entries that dropped out of the resolvable set have been resolved;
	// forget them so the map tracks only outstanding predictions. A
	// truncated listing may omit still-open predictions, so pruning waits
	// for a full view.
	if len(resolvable) < sweepBatchSize {
		current := make(map[string]bool, len(resolvable))
		for _, p := range resolvable {
			current[p.ID] = true
		}
		for id := range s.notified {
			if !current[id] {
				delete(s.notified, id)
			}
		}
	}

	metrics.SweepRuns.WithLabelValues("ok").Inc()
	if fresh > 0 {
		s.logger.InfoContext(ctx, "sweep complete",
			slog.Int("resolvable", len(resolvable)),
			slog.Int("newly_flagged", fresh),
		)
	}
	return nil
}
