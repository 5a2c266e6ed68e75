package locality

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/landtitle/titling-backend/internal/logger"
)

// Handler serves the locality HTTP surface. Normalizer may be nil, in which
// case the admin routes are not mounted.
type Handler struct {
	Catalogue    *Catalogue
	Autocomplete *Autocomplete
	Checker      *BoundaryChecker
	Normalizer   *Normalizer

	// StoreTimeout bounds every store round-trip made for a request.
	StoreTimeout time.Duration

	// SearchMiddleware wraps the autocomplete route only (rate limiting).
	SearchMiddleware []func(http.Handler) http.Handler

	Log *slog.Logger
}

func (h *Handler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return logger.L()
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.StoreTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.StoreTimeout)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	var se *StoreError
	switch {
	case errors.As(err, &ve):
		writeJSONStatus(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, ErrBoundaryUnavailable):
		h.log().Error("locality_boundary_unavailable", "path", r.URL.Path)
		writeJSONStatus(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	case errors.Is(err, ErrNormalizationInProgress):
		writeJSONStatus(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		h.log().Warn("locality_store_timeout", "path", r.URL.Path, "err", err)
		writeJSONStatus(w, http.StatusGatewayTimeout, errorBody{Error: "store timeout"})
	case errors.As(err, &se):
		h.log().Error("locality_store_failed", "path", r.URL.Path, "op", se.Op, "err", se.Err)
		writeJSONStatus(w, http.StatusBadGateway, errorBody{Error: "store unavailable"})
	default:
		h.log().Error("locality_request_failed", "path", r.URL.Path, "err", err)
		writeJSONStatus(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// Suggest handles GET /localities/{type}?q=&limit=.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	t, err := ParseLocalityType(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, &ValidationError{Field: "limit", Reason: "must be an integer"})
			return
		}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	names, err := h.Autocomplete.Search(ctx, t, r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, names)
}

// ListAll handles GET /localities/{type}/all.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	t, err := ParseLocalityType(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	recs, err := h.Catalogue.ListByType(ctx, t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, recs)
}

type boundaryCheckRequest struct {
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

// CheckBoundary handles POST /localities/boundary/check.
func (h *Handler) CheckBoundary(w http.ResponseWriter, r *http.Request) {
	var req boundaryCheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		h.writeError(w, r, &ValidationError{Field: "body", Reason: "must be a JSON object"})
		return
	}
	if req.Longitude == nil {
		h.writeError(w, r, &ValidationError{Field: "longitude", Reason: "is required"})
		return
	}
	if req.Latitude == nil {
		h.writeError(w, r, &ValidationError{Field: "latitude", Reason: "is required"})
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	within, err := h.Checker.IsWithinBoundary(ctx, *req.Longitude, *req.Latitude)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]bool{"within": within})
}

type normalizeResponse struct {
	BatchResult
	FailedIDs []string `json:"failed_ids"`
}

// Normalize handles POST /admin/localities/normalize. Per-record failures do
// not change the status; they are listed in failed_ids.
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	// The pass outlives StoreTimeout; it is bounded only by the client.
	res, err := h.Normalizer.NormalizeBatch(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, normalizeResponse{BatchResult: res, FailedIDs: res.FailedIDs()})
}
