package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oddsrow/oddsrow/internal/domain"
	"github.com/oddsrow/oddsrow/internal/server/middleware"
	"github.com/oddsrow/oddsrow/internal/service"
)

// PredictionService defines the methods the prediction handler requires from
// the service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type PredictionService interface {
	Create(ctx context.Context, req service.CreatePredictionRequest) (domain.Prediction, error)
	Get(ctx context.Context, id string) (domain.Prediction, error)
	Votes(ctx context.Context, predictionID string) ([]domain.Vote, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Prediction, error)
	Count(ctx context.Context) (int64, error)
}

// SettlementService defines the resolve entry point the handler needs.
type SettlementService interface {
	Resolve(ctx context.Context, req domain.ResolveRequest) (domain.SettlementResult, error)
}

// PredictionHandler serves prediction feed and lifecycle endpoints.
type PredictionHandler struct {
	predictions PredictionService
	settlements SettlementService
	logger      *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(predictions PredictionService, settlements SettlementService, logger *slog.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictions: predictions,
		settlements: settlements,
		logger:      logger,
	}
}

// createPredictionRequest is the POST /api/predictions body.
type createPredictionRequest struct {
	Title    string    `json:"title"`
	Detail   string    `json:"detail"`
	Category string    `json:"category"`
	Deadline time.Time `json:"deadline"`
}

// resolveRequest is the POST /api/predictions/{id}/resolve body.
type resolveRequest struct {
	Outcome *bool `json:"outcome"`
}

// listPredictionsResponse wraps the feed output with metadata.
type listPredictionsResponse struct {
	Predictions []domain.Prediction `json:"predictions"`
	Total       int64               `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

// Create creates a new open prediction owned by the caller.
// POST /api/predictions
func (h *PredictionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerID(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body createPredictionRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	p, err := h.predictions.Create(r.Context(), service.CreatePredictionRequest{
		OwnerID:  caller,
		Title:    body.Title,
		Detail:   body.Detail,
		Category: body.Category,
		Deadline: body.Deadline,
	})
	if err != nil {
		h.logger.InfoContext(r.Context(), "handler: create prediction rejected",
			slog.String("error", err.Error()),
		)
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// List returns a page of the prediction feed.
// GET /api/predictions?status=open&category=sports&sort=deadline&limit=20&offset=0
func (h *PredictionHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	preds, err := h.predictions.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list predictions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	total, err := h.predictions.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count predictions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count predictions")
		return
	}

	writeJSON(w, http.StatusOK, listPredictionsResponse{
		Predictions: preds,
		Total:       total,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	})
}

// Get returns a single prediction by ID.
// GET /api/predictions/{id}
func (h *PredictionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	p, err := h.predictions.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// Votes returns the committed votes on a prediction.
// GET /api/predictions/{id}/votes
func (h *PredictionHandler) Votes(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing prediction id")
		return
	}

	votes, err := h.predictions.Votes(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"votes": votes})
}

// Resolve settles a prediction to the supplied outcome. Only the owner may
// call it, and only after the deadline.
// POST /api/predictions/{id}/resolve
func (h *PredictionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
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

	var body resolveRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Outcome == nil {
		writeError(w, http.StatusBadRequest, "outcome is required")
		return
	}

	res, err := h.settlements.Resolve(r.Context(), domain.ResolveRequest{
		CallerID:     caller,
		PredictionID: id,
		Outcome:      *body.Outcome,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
