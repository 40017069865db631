package domain

import "time"

// Prediction is a binary-outcome proposition users stake points on. Its
// lifecycle is open -> resolved; the resolved flag flips exactly once and
// never reverts, and Outcome is set iff Resolved is true.
type Prediction struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Title      string     `json:"title"`
	Detail     string     `json:"detail,omitempty"`
	Category   string     `json:"category,omitempty"`
	Deadline   time.Time  `json:"deadline"`
	Resolved   bool       `json:"resolved"`
	Outcome    *bool      `json:"outcome,omitempty"`
	Stats      PredictionStats `json:"stats"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// PredictionStats are the aggregate vote counters for a prediction. They are
// derived values, recomputed from the committed vote set after every ledger
// mutation rather than patched incrementally.
type PredictionStats struct {
	StakeCount  int64 `json:"stake_count"`
	TotalPoints int64 `json:"total_points"`
	YesCount    int64 `json:"yes_count"`
	NoCount     int64 `json:"no_count"`
	YesPoints   int64 `json:"yes_points"`
	NoPoints    int64 `json:"no_points"`
}

// PredictionStatus filters feed listings.
type PredictionStatus string

const (
	PredictionStatusAny      PredictionStatus = ""
	PredictionStatusOpen     PredictionStatus = "open"
	PredictionStatusResolved PredictionStatus = "resolved"
)

// ProjectStats recomputes the aggregate counters from a full vote set.
// It is the single source of truth for what the counters mean; the SQL
// recompute in the Postgres ledger mirrors it exactly.
func ProjectStats(votes []Vote) PredictionStats {
	var s PredictionStats
	for _, v := range votes {
		s.StakeCount++
		s.TotalPoints += v.Points
		if v.Stance {
			s.YesCount++
			s.YesPoints += v.Points
		} else {
			s.NoCount++
			s.NoPoints += v.Points
		}
	}
	return s
}
