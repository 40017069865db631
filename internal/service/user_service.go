package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oddsrow/oddsrow/internal/domain"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// LeaderboardRow is one rendered leaderboard entry.
type LeaderboardRow struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
}

// UserService handles registration, login, profiles, and the leaderboard.
type UserService struct {
	users           domain.UserStore
	votes           domain.VoteStore
	sessions        domain.SessionStore
	leaderboard     domain.LeaderboardCache
	startingBalance int64
	sessionTTL      time.Duration
	logger          *slog.Logger
}

// NewUserService creates a UserService. startingBalance is granted to every
// new account.
func NewUserService(
	users domain.UserStore,
	votes domain.VoteStore,
	sessions domain.SessionStore,
	leaderboard domain.LeaderboardCache,
	startingBalance int64,
	sessionTTL time.Duration,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:           users,
		votes:           votes,
		sessions:        sessions,
		leaderboard:     leaderboard,
		startingBalance: startingBalance,
		sessionTTL:      sessionTTL,
		logger:          logger,
	}
}

// Register creates a new account with the configured starting balance and
// returns its public profile. Invalid input fails with a *ValidationError;
// a taken username fails with a wrapped domain.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, password string) (domain.Profile, error) {
	if !usernameRe.MatchString(username) {
		return domain.Profile{}, validationErrorf("username must be 3-32 characters of letters, digits, or underscore")
	}
	if len(password) < 8 {
		return domain.Profile{}, validationErrorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("user_service: hash password: %w", err)
	}

	u := domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Balance:      s.startingBalance,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return domain.Profile{}, fmt.Errorf("user_service: create %q: %w", username, err)
	}

	if err := s.leaderboard.SetScore(ctx, u.ID, u.Balance); err != nil {
		s.logger.WarnContext(ctx, "user_service: leaderboard seed failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user_service: user registered",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)

	return domain.ProfileOf(u), nil
}

// Login verifies the credentials and issues an opaque session token. Wrong
// username and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (string, domain.Profile, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.Profile{}, domain.ErrUnauthorized
		}
		return "", domain.Profile{}, fmt.Errorf("user_service: login %q: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", domain.Profile{}, domain.ErrUnauthorized
	}

	token, err := s.sessions.Create(ctx, u.ID, s.sessionTTL)
	if err != nil {
		return "", domain.Profile{}, fmt.Errorf("user_service: create session: %w", err)
	}

	s.logger.InfoContext(ctx, "user_service: user logged in",
		slog.String("user_id", u.ID),
	)

	return token, domain.ProfileOf(u), nil
}

// Logout revokes the session token. Revoking an unknown token is a no-op.
func (s *UserService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("user_service: logout: %w", err)
	}
	return nil
}

// Profile returns the public projection of a user.
func (s *UserService) Profile(ctx context.Context, id string) (domain.Profile, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("user_service: profile %q: %w", id, err)
	}
	return domain.ProfileOf(u), nil
}

// Votes returns the user's committed votes, newest first.
func (s *UserService) Votes(ctx context.Context, userID string) ([]domain.Vote, error) {
	votes, err := s.votes.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user_service: votes for %q: %w", userID, err)
	}
	return votes, nil
}

// Leaderboard returns the top n users by balance. It reads the cached
// projection first and falls back to the store when the cache is empty or
// unavailable.
func (s *UserService) Leaderboard(ctx context.Context, n int) ([]LeaderboardRow, error) {
	if n <= 0 || n > 100 {
		n = 10
	}

	entries, err := s.leaderboard.Top(ctx, n)
	if err != nil || len(entries) == 0 {
		if err != nil {
			s.logger.WarnContext(ctx, "user_service: leaderboard cache read failed",
				slog.String("error", err.Error()),
			)
		}
		return s.leaderboardFromStore(ctx, n)
	}

	rows := make([]LeaderboardRow, 0, len(entries))
	for i, e := range entries {
		u, err := s.users.GetByID(ctx, e.UserID)
		if err != nil {
			// Stale cache entry; rebuild from the store.
			return s.leaderboardFromStore(ctx, n)
		}
		rows = append(rows, LeaderboardRow{
			Rank:     i + 1,
			UserID:   u.ID,
			Username: u.Username,
			Balance:  e.Balance,
		})
	}
	return rows, nil
}

// leaderboardFromStore reads the top balances straight from the user store
// and back-fills the cache.
func (s *UserService) leaderboardFromStore(ctx context.Context, n int) ([]LeaderboardRow, error) {
	users, err := s.users.TopByBalance(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("user_service: leaderboard: %w", err)
	}

	rows := make([]LeaderboardRow, 0, len(users))
	for i, u := range users {
		rows = append(rows, LeaderboardRow{
			Rank:     i + 1,
			UserID:   u.ID,
			Username: u.Username,
			Balance:  u.Balance,
		})
		if err := s.leaderboard.SetScore(ctx, u.ID, u.Balance); err != nil {
			s.logger.WarnContext(ctx, "user_service: leaderboard backfill failed",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return rows, nil
}
