package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// GetValidation returns the stored validation state of one record.
func (h *Handler) GetValidation(w http.ResponseWriter, r *http.Request) {
	recordID := mux.Vars(r)["id"]

	state, err := h.Store.Get(r.Context(), recordID)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.Log.Error("record lookup failed", zap.String("recordId", recordID), zap.Error(err))
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// GetStats returns aggregate validation statistics.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats(r.Context())
	if err != nil {
		h.Log.Error("stats query failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// RebuildRegistry refreshes the street registry snapshot from its
// source. Queries keep running against the old snapshot meanwhile.
func (h *Handler) RebuildRegistry(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.Rebuilder.Rebuild(r.Context()); err != nil {
		if h.Metrics != nil {
			h.Metrics.RegistryRebuilds.WithLabelValues("error").Inc()
		}
		h.Log.Error("registry rebuild failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	streets, addresses := h.Registry.Size()
	if h.Metrics != nil {
		h.Metrics.RegistryRebuilds.WithLabelValues("success").Inc()
		h.Metrics.RegistryRebuildTime.Observe(time.Since(start).Seconds())
		h.Metrics.RegistryStreets.Set(float64(streets))
		h.Metrics.RegistryAddresses.Set(float64(addresses))
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"streets":   streets,
		"addresses": addresses,
	})
}

// Health reports readiness. The service is ready once the registry
// holds a snapshot.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	if !h.Registry.Ready() {
		h.writeError(w, http.StatusServiceUnavailable, "registry not loaded")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
