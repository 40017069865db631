package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/server/middleware"
)

// StakeService defines the stake entry point the handler needs.
type StakeService interface {
	PlaceStake(ctx context.Context, req domain.StakeRequest) (domain.StakeResult, error)
}

// StakeHandler serves the stake endpoint.
type StakeHandler struct {
	stakes StakeService
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler.
func NewStakeHandler(stakes StakeService, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{stakes: stakes, logger: logger}
}

// placeStakeRequest is the POST /api/predictions/{id}/stake body.
type placeStakeRequest struct {
	Stance *bool `json:"stance"`
	Points int64 `json:"points"`
}

// Place stakes points on a prediction for the authenticated caller.
// POST /api/predictions/{id}/stake
func (h *StakeHandler) Place(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	var body placeStakeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Stance == nil {
		writeError(w, http.StatusBadRequest, "stance is required")
		return
	}

	res, err := h.stakes.PlaceStake(r.Context(), domain.StakeRequest{
		CallerID:     caller,
		PredictionID: id,
		Stance:       *body.Stance,
		Points:       body.Points,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}
