// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/batch"
	"github.com/dea-madrid/address-validation/internal/engine"
	"github.com/dea-madrid/address-validation/internal/geo"
	"github.com/dea-madrid/address-validation/internal/metrics"
	"github.com/dea-madrid/address-validation/internal/registry"
	"github.com/dea-madrid/address-validation/internal/store"
)

// Validator resolves one address. Satisfied by *engine.Engine.
type Validator interface {
	Validate(q engine.Query) (*engine.Result, error)
}

// BatchRunner executes a validation run. Satisfied by *batch.Runner.
type BatchRunner interface {
	Run(ctx context.Context, recordIDs []string, concurrency int) (*batch.Summary, error)
}

// Rebuilder refreshes the street registry. Satisfied by a closure
// over *registry.Registry and its source.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Handler serves the validation API. Metrics may be nil.
type Handler struct {
	Validator Validator
	Runner    BatchRunner
	Store     store.Store
	Registry  *registry.Registry
	Rebuilder Rebuilder
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Warn("response encode failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case eris.Is(err, engine.ErrEmptyQuery), eris.Is(err, geo.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case eris.Is(err, registry.ErrUnavailable):
		return http.StatusServiceUnavailable
	case eris.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
