// Package memory provides in-memory implementations of the domain stores and
// the ledger. A single mutex serializes ledger mutations, giving the same
// atomicity guarantees the Postgres implementation gets from transactions
// and row locks. Used by tests and by local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// Store is an in-memory implementation of domain.Ledger, domain.UserStore,
// domain.PredictionStore, domain.VoteStore, and domain.AuditStore.
type Store struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	byUsername  map[string]string
	predictions map[string]*domain.Prediction
	votes       map[string][]domain.Vote // predictionID -> votes in placement order
	audit       []domain.AuditEntry
	now         func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]*domain.User),
		byUsername:  make(map[string]string),
		predictions: make(map[string]*domain.Prediction),
		votes:       make(map[string][]domain.Vote),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the store's time source. Used in tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// --- domain.Ledger ---

// PlaceStake mirrors the Postgres ledger: all checks and writes happen under
// one lock, and the prediction aggregates are recomputed from the full vote
// set before returning.
func (s *Store) PlaceStake(ctx context.Context, req domain.StakeRequest) (domain.StakeResult, error) {
	if req.Points <= 0 {
		return domain.StakeResult{}, domain.ErrInvalidStake
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.predictions[req.PredictionID]
	if !ok {
		return domain.StakeResult{}, domain.ErrNotFound
	}
	if p.Resolved {
		return domain.StakeResult{}, domain.ErrPredictionClosed
	}

	u, ok := s.users[req.CallerID]
	if !ok {
		return domain.StakeResult{}, domain.ErrNotFound
	}

	for _, v := range s.votes[req.PredictionID] {
		if v.UserID == req.CallerID {
			return domain.StakeResult{}, domain.ErrAlreadyVoted
		}
	}

	if u.Balance < req.Points {
		return domain.StakeResult{}, domain.ErrInsufficientFunds
	}

	v := domain.Vote{
		ID:           uuid.New().String(),
		UserID:       req.CallerID,
		PredictionID: req.PredictionID,
		Stance:       req.Stance,
		Points:       req.Points,
		CreatedAt:    s.now(),
	}
	s.votes[req.PredictionID] = append(s.votes[req.PredictionID], v)
	u.Balance -= req.Points
	p.Stats = domain.ProjectStats(s.votes[req.PredictionID])

	return domain.StakeResult{
		Vote:       v,
		Balance:    u.Balance,
		Prediction: *p,
	}, nil
}

// Resolve mirrors the Postgres ledger's settlement transaction.
func (s *Store) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.SettlementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.predictions[req.PredictionID]
	if !ok {
		return domain.SettlementResult{}, domain.ErrNotFound
	}

	switch {
	case p.OwnerID != req.CallerID:
		return domain.SettlementResult{}, domain.ErrNotOwner
	case p.Resolved:
		return domain.SettlementResult{}, domain.ErrAlreadyResolved
	case s.now().Before(p.Deadline):
		return domain.SettlementResult{}, domain.ErrDeadlineNotPassed
	}

	outcome := req.Outcome
	resolvedAt := s.now()
	p.Resolved = true
	p.Outcome = &outcome
	p.ResolvedAt = &resolvedAt

	payouts, totals := domain.ComputePayouts(s.votes[req.PredictionID], outcome)
	for _, pay := range payouts {
		u := s.users[pay.UserID]
		if u == nil {
			continue
		}
		u.Balance += pay.Amount
		u.Made++
		if pay.Won {
			u.Correct++
		}
	}

	return domain.SettlementResult{
		Prediction: *p,
		Payouts:    payouts,
		Totals:     totals,
	}, nil
}

// --- domain.UserStore ---

func (s *Store) Create(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[u.Username]; exists {
		return domain.ErrAlreadyExists
	}
	cp := u
	s.users[u.ID] = &cp
	s.byUsername[u.Username] = u.ID
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return *u, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return *s.users[id], nil
}

func (s *Store) TopByBalance(ctx context.Context, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- domain.PredictionStore ---

func (s *Store) CreatePrediction(ctx context.Context, p domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.predictions[p.ID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := p
	s.predictions[p.ID] = &cp
	return nil
}

func (s *Store) GetPrediction(ctx context.Context, id string) (domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.predictions[id]
	if !ok {
		return domain.Prediction{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *Store) List(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Prediction
	for _, p := range s.predictions {
		if opts.Status == domain.PredictionStatusOpen && p.Resolved {
			continue
		}
		if opts.Status == domain.PredictionStatusResolved && !p.Resolved {
			continue
		}
		if opts.Category != "" && p.Category != opts.Category {
			continue
		}
		out = append(out, *p)
	}

	if opts.Sort == "deadline" {
		sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.predictions)), nil
}

func (s *Store) ListResolvable(ctx context.Context, now time.Time, limit int) ([]domain.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Prediction
	for _, p := range s.predictions {
		if !p.Resolved && !now.Before(p.Deadline) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- domain.VoteStore ---

func (s *Store) ListByPrediction(ctx context.Context, predictionID string) ([]domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Vote(nil), s.votes[predictionID]...), nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Vote
	for _, votes := range s.votes {
		for _, v := range votes {
			if v.UserID == userID {
				out = append(out, v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetByUserAndPrediction(ctx context.Context, userID, predictionID string) (domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.votes[predictionID] {
		if v.UserID == userID {
			return v, nil
		}
	}
	return domain.Vote{}, domain.ErrNotFound
}

// --- domain.AuditStore ---

func (s *Store) Log(ctx context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, domain.AuditEntry{
		ID:        int64(len(s.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]domain.AuditEntry(nil), s.audit...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.Ledger    = (*Store)(nil)
	_ domain.UserStore = (*Store)(nil)
	_ domain.VoteStore = (*Store)(nil)
)
