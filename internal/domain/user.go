package domain

import "time"

// User is a platform account with a point balance and lifetime prediction
// statistics. The balance is mutated only through the Ledger: staking debits
// it, settlement credits it. It never goes negative at a committed state.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Balance      int64     `json:"balance"`
	Made         int64     `json:"predictions_made"`
	Correct      int64     `json:"predictions_correct"`
	CreatedAt    time.Time `json:"created_at"`
}

// Accuracy returns the lifetime percentage of correct predictions,
// 0 when the user has never had a prediction settle.
func (u User) Accuracy() float64 {
	if u.Made == 0 {
		return 0
	}
	return float64(u.Correct) / float64(u.Made) * 100
}

// Profile is the public read projection of a user, with the derived
// accuracy included for leaderboard and profile rendering.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Balance   int64     `json:"balance"`
	Made      int64     `json:"predictions_made"`
	Correct   int64     `json:"predictions_correct"`
	Accuracy  float64   `json:"accuracy_percent"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileOf builds the read projection for a user.
func ProfileOf(u User) Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Balance:   u.Balance,
		Made:      u.Made,
		Correct:   u.Correct,
		Accuracy:  u.Accuracy(),
		CreatedAt: u.CreatedAt,
	}
}
