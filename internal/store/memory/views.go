package memory

import (
	"context"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// PredictionView adapts Store to domain.PredictionStore. The method sets of
// the store interfaces overlap by name, so the prediction and audit sides are
// exposed through views over the same underlying state.
type PredictionView struct {
	s *Store
}

// Predictions returns the store's domain.PredictionStore view.
func (s *Store) Predictions() *PredictionView {
	return &PredictionView{s: s}
}

func (v *PredictionView) Create(ctx context.Context, p domain.Prediction) error {
	return v.s.CreatePrediction(ctx, p)
}

func (v *PredictionView) GetByID(ctx context.Context, id string) (domain.Prediction, error) {
	return v.s.GetPrediction(ctx, id)
}

func (v *PredictionView) List(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	return v.s.List(ctx, opts)
}

func (v *PredictionView) Count(ctx context.Context) (int64, error) {
	return v.s.Count(ctx)
}

func (v *PredictionView) ListResolvable(ctx context.Context, now time.Time, limit int) ([]domain.Prediction, error) {
	return v.s.ListResolvable(ctx, now, limit)
}

// AuditView adapts Store to domain.AuditStore.
type AuditView struct {
	s *Store
}

// Audit returns the store's domain.AuditStore view.
func (s *Store) Audit() *AuditView {
	return &AuditView{s: s}
}

func (v *AuditView) Log(ctx context.Context, event string, detail map[string]any) error {
	return v.s.Log(ctx, event, detail)
}

func (v *AuditView) List(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	return v.s.ListAudit(ctx, limit, offset)
}

// Compile-time interface checks.
var (
	_ domain.PredictionStore = (*PredictionView)(nil)
	_ domain.AuditStore      = (*AuditView)(nil)
)
