package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/oddsrow/oddsrow/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the domain sentinel errors onto HTTP status codes.
// Unrecognized errors become an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, "already voted on this prediction")
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "prediction already resolved")
	case errors.Is(err, domain.ErrPredictionClosed):
		writeError(w, http.StatusConflict, "prediction is closed to stakes")
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient point balance")
	case errors.Is(err, domain.ErrInvalidStake):
		writeError(w, http.StatusBadRequest, "stake must be a positive point amount")
	case errors.Is(err, domain.ErrDeadlineNotPassed):
		writeError(w, http.StatusConflict, "resolution deadline has not passed")
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "only the owner can resolve this prediction")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes the request body into dst, limiting it to 1 MiB.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// parseListOpts extracts pagination and feed filters from the query string.
// Defaults: limit=20 (max 100), offset=0, any status, newest first.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 20
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	var status domain.PredictionStatus
	switch strings.ToLower(q.Get("status")) {
	case "open":
		status = domain.PredictionStatusOpen
	case "resolved":
		status = domain.PredictionStatusResolved
	}

	sort := "newest"
	if q.Get("sort") == "deadline" {
		sort = "deadline"
	}

	return domain.ListOpts{
		Limit:    limit,
		Offset:   offset,
		Category: strings.ToLower(strings.TrimSpace(q.Get("category"))),
		Status:   status,
		Sort:     sort,
	}
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
