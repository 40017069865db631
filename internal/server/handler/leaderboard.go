package handler

import (
	"log/slog"
	"net/http"
	"strconv"
)

// LeaderboardHandler serves the balance leaderboard.
type LeaderboardHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(users UserService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{users: users, logger: logger}
}

// Top returns the top users by balance.
// GET /api/leaderboard?limit=10
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	n := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	rows, err := h.users.Leaderboard(r.Context(), n)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}
