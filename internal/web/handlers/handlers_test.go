package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/batch"
	"github.com/dea-madrid/address-validation/internal/engine"
	"github.com/dea-madrid/address-validation/internal/registry"
	"github.com/dea-madrid/address-validation/internal/store"
)

type stubValidator struct {
	result *engine.Result
	err    error
}

func (s *stubValidator) Validate(engine.Query) (*engine.Result, error) {
	return s.result, s.err
}

type stubRunner struct {
	summary *batch.Summary
	gotIDs  []string
}

func (s *stubRunner) Run(_ context.Context, ids []string, _ int) (*batch.Summary, error) {
	s.gotIDs = ids
	s.summary.Processed = len(ids)
	return s.summary, nil
}

func loadedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(zap.NewNop())
	require.NoError(t, reg.Load(&registry.Dataset{
		Streets: []registry.StreetRecord{
			{ID: 1, Class: "PASEO", Name: "De la Chopera", NameNormalized: "DE LA CHOPERA"},
		},
	}))
	return reg
}

func newHandler(t *testing.T) *Handler {
	t.Helper()
	return &Handler{
		Validator: &stubValidator{result: &engine.Result{
			Confidence:    0.93,
			OverallStatus: engine.StatusValid,
		}},
		Runner:   &stubRunner{summary: &batch.Summary{RunID: "run-1"}},
		Store:    store.NewMemory(nil),
		Registry: loadedRegistry(t),
		Log:      zap.NewNop(),
	}
}

func TestValidateEndpoint(t *testing.T) {
	h := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate",
		strings.NewReader(`{"streetType":"PASEO","streetName":"De la Chopera"}`))
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, engine.StatusValid, res.OverallStatus)
	assert.InEpsilon(t, 0.93, res.Confidence, 1e-9)
}

func TestValidateRejectsMalformedBody(t *testing.T) {
	h := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.Validate(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty query", engine.ErrEmptyQuery, http.StatusBadRequest},
		{"registry unavailable", registry.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t)
			h.Validator = &stubValidator{err: tt.err}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/validate",
				strings.NewReader(`{"streetName":""}`))
			rec := httptest.NewRecorder()
			h.Validate(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRunBatchEndpoint(t *testing.T) {
	h := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches",
		strings.NewReader(`{"recordIds":["id1","id2"],"concurrency":2}`))
	rec := httptest.NewRecorder()
	h.RunBatch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summary batch.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 2, summary.Processed)
}

func TestRunBatchDefaultsToPendingRecords(t *testing.T) {
	h := newHandler(t)
	require.NoError(t, h.Store.Upsert(context.Background(), store.Outcome{
		RecordID: "rec-retry",
		Err:      "registry unavailable",
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches",
		strings.NewReader(`{"recordIds":[]}`))
	rec := httptest.NewRecorder()
	h.RunBatch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	runner := h.Runner.(*stubRunner)
	assert.Equal(t, []string{"rec-retry"}, runner.gotIDs)
}

func TestGetValidationNotFound(t *testing.T) {
	h := newHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/rec-404/validation", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "rec-404"})
	rec := httptest.NewRecorder()
	h.GetValidation(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetValidationReturnsStoredState(t *testing.T) {
	h := newHandler(t)
	require.NoError(t, h.Store.Upsert(context.Background(), store.Outcome{
		RecordID: "rec-1",
		Result:   &engine.Result{Confidence: 0.9, OverallStatus: engine.StatusValid},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/rec-1/validation", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "rec-1"})
	rec := httptest.NewRecorder()
	h.GetValidation(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var state store.RecordState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, engine.StatusValid, state.OverallStatus)
}

func TestHealthReflectsRegistryReadiness(t *testing.T) {
	h := newHandler(t)
	h.Registry = registry.New(zap.NewNop())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.Registry = loadedRegistry(t)
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
