package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/engine"
)

// Validate resolves a single submitted address synchronously.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var q engine.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Validator.Validate(q)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.ValidationErrors.Inc()
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.Log.Error("validation failed", zap.Error(err))
		}
		h.writeError(w, status, err.Error())
		return
	}

	if h.Metrics != nil {
		h.Metrics.ValidationsTotal.
			WithLabelValues(string(result.OverallStatus), string(result.MatchType)).Inc()
		h.Metrics.ValidationDuration.Observe(result.Duration.Seconds())
	}
	h.writeJSON(w, http.StatusOK, result)
}
