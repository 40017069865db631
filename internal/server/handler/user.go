package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/server/middleware"
	"github.com/oddsrow/oddsrow/internal/service"
)

// UserService defines the account methods the user handler requires.
type UserService interface {
	Register(ctx context.Context, username, password string) (domain.Profile, error)
	Login(ctx context.Context, username, password string) (string, domain.Profile, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, id string) (domain.Profile, error)
	Votes(ctx context.Context, userID string) ([]domain.Vote, error)
	Leaderboard(ctx context.Context, n int) ([]service.LeaderboardRow, error)
}

// UserHandler serves account and profile endpoints.
type UserHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// credentialsRequest is the register/login body.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates a new account.
// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	profile, err := h.users.Register(r.Context(), strings.TrimSpace(body.Username), body.Password)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, profile)
}

// Login verifies credentials and issues a session token.
// POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	token, profile, err := h.users.Login(r.Context(), strings.TrimSpace(body.Username), body.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"profile": profile,
	})
}

// Logout revokes the caller's session token.
// POST /api/users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.users.Logout(r.Context(), token); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: logout failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the caller's own profile.
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.users.Profile(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// MyVotes returns the caller's vote history.
// GET /api/users/me/votes
func (h *UserHandler) MyVotes(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	votes, err := h.users.Votes(r.Context(), caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

// GetProfile returns a public profile by user ID.
// GET /api/users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	profile, err := h.users.Profile(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// bearerToken extracts a Bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
