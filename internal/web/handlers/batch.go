package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type batchRequest struct {
	RecordIDs   []string `json:"recordIds"`
	Concurrency int      `json:"concurrency,omitempty"`
}

// RunBatch validates a set of installation records and returns the
// run summary once every record has been processed.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// No explicit ids means "re-run whatever is flagged pending".
	if len(req.RecordIDs) == 0 {
		ids, err := h.Store.ListPending(r.Context(), 0)
		if err != nil {
			h.Log.Error("pending lookup failed", zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		req.RecordIDs = ids
	}

	summary, err := h.Runner.Run(r.Context(), req.RecordIDs, req.Concurrency)
	if err != nil {
		// The summary still covers the chunks that completed.
		h.Log.Warn("batch run interrupted", zap.Error(err))
	}
	if h.Metrics != nil && summary != nil {
		h.Metrics.BatchRecords.WithLabelValues("successful").Add(float64(summary.Successful))
		h.Metrics.BatchRecords.WithLabelValues("failed").Add(float64(summary.Failed))
		h.Metrics.BatchSize.Observe(float64(summary.Processed))
		h.Metrics.BatchDuration.Observe(summary.Duration.Seconds())
	}
	h.writeJSON(w, http.StatusOK, summary)
}
