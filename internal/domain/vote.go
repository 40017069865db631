package domain

import "time"

// Vote is a user's immutable point stake on one side of a prediction. At most
// one vote exists per (user, prediction) pair. Votes are never edited or
// deleted, even after settlement; they are the audit record payouts are
// computed from.
type Vote struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	PredictionID string    `json:"prediction_id"`
	Stance       bool      `json:"stance"`
	Points       int64     `json:"points"`
	CreatedAt    time.Time `json:"created_at"`
}
