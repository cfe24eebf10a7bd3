package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oxidecast/config"
	"oxidecast/journal"
	"oxidecast/ml"
	"oxidecast/registry"
)

type fakePredictor struct {
	predictions registry.Predictions
	err         error
	calls       int
}

func (f *fakePredictor) PredictAll(ctx context.Context, sample []float64) (registry.Predictions, error) {
	f.calls++
	return f.predictions, f.err
}

func (f *fakePredictor) Labels() []string { return registry.Oxides }
func (f *fakePredictor) NumFeatures() int { return 3 }

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (f *fakeRecorder) Record(ctx context.Context, entry journal.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

// constantRegistry returns a registry whose four models all predict value
// for samples of n features.
func constantRegistry(t *testing.T, value float64, n int) *registry.Registry {
	t.Helper()
	entries := make([]registry.Entry, 0, len(registry.Oxides))
	for _, oxide := range registry.Oxides {
		scaler, err := ml.NewIdentityScaler(n)
		require.NoError(t, err)
		model, err := ml.NewConstantRegressor(value, n)
		require.NoError(t, err)
		entries = append(entries, registry.Entry{Oxide: oxide, Scaler: scaler, Model: model})
	}
	r, err := registry.New(entries...)
	require.NoError(t, err)
	return r
}

func serve(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	return payload
}

func TestPredictReturnsAllOxides(t *testing.T) {
	h := NewHandler(constantRegistry(t, 42.0, 3))

	w := serve(h, http.MethodPost, "/predict", `{"sample":[1.0,2.0,3.0]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"predictions":{"CaO":42.0,"SiO2":42.0,"Al2O3":42.0,"Fe2O3":42.0}}`, w.Body.String())
}

func TestPredictKeysInCanonicalOrder(t *testing.T) {
	h := NewHandler(constantRegistry(t, 1.5, 2))

	w := serve(h, http.MethodPost, "/predict", `{"sample":[0,0]}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	ca := strings.Index(body, `"CaO"`)
	si := strings.Index(body, `"SiO2"`)
	al := strings.Index(body, `"Al2O3"`)
	fe := strings.Index(body, `"Fe2O3"`)
	assert.True(t, ca < si && si < al && al < fe, body)
}

func TestPredictRoundsToTwoDecimals(t *testing.T) {
	h := NewHandler(constantRegistry(t, 12.3456, 1))

	w := serve(h, http.MethodPost, "/predict", `{"sample":[7]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Predictions map[string]float64 `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 4)
	for _, oxide := range registry.Oxides {
		assert.Equal(t, 12.35, resp.Predictions[oxide], oxide)
	}
}

func TestPredictIsIdempotent(t *testing.T) {
	h := NewHandler(constantRegistry(t, 3.14159, 3))

	first := serve(h, http.MethodPost, "/predict", `{"sample":[1,2,3]}`)
	second := serve(h, http.MethodPost, "/predict", `{"sample":[1,2,3]}`)

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestPredictDimensionMismatch(t *testing.T) {
	h := NewHandler(constantRegistry(t, 42.0, 3))

	w := serve(h, http.MethodPost, "/predict", `{"sample":[1.0,2.0]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	payload := decodeBody(t, w)
	assert.Contains(t, payload, "error")
	assert.NotContains(t, payload, "predictions")
	assert.Contains(t, string(payload["error"]), "expected 3 features, got 2")
}

func TestPredictRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "sample=1,2,3"},
		{"missing sample", `{}`},
		{"empty sample", `{"sample":[]}`},
		{"null sample", `{"sample":null}`},
		{"string element", `{"sample":[1.0,"abc",3.0]}`},
		{"null element", `{"sample":[1.0,null,3.0]}`},
		{"object element", `{"sample":[{"v":1}]}`},
		{"sample not a list", `{"sample":5}`},
		{"trailing data", `{"sample":[1,2,3]} {"sample":[1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePredictor{}
			h := NewHandler(fake)

			w := serve(h, http.MethodPost, "/predict", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			payload := decodeBody(t, w)
			assert.Contains(t, payload, "error")
			assert.NotContains(t, payload, "predictions")
			assert.Zero(t, fake.calls, "predictor must not run on a rejected body")
		})
	}
}

func TestPredictModelFailure(t *testing.T) {
	fake := &fakePredictor{err: &registry.PredictionError{Oxide: registry.SiO2, Err: errors.New("boom")}}
	h := NewHandler(fake)

	w := serve(h, http.MethodPost, "/predict", `{"sample":[1,2,3]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	payload := decodeBody(t, w)
	assert.NotContains(t, payload, "predictions")
	var msg string
	require.NoError(t, json.Unmarshal(payload["error"], &msg))
	assert.Equal(t, "predict SiO2: boom", msg)
}

func TestPredictLegacyErrorsAnswer200(t *testing.T) {
	fake := &fakePredictor{err: &registry.PredictionError{Oxide: registry.CaO, Err: errors.New("boom")}}
	h := NewHandler(fake, WithLegacyErrors(true))

	w := serve(h, http.MethodPost, "/predict", `{"sample":[1,2,3]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"error":"predict CaO: boom"}`, w.Body.String())

	w = serve(h, http.MethodPost, "/predict", `{"sample":"nope"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeBody(t, w), "error")
}

func TestPredictWithoutModels(t *testing.T) {
	h := NewHandler(nil)

	w := serve(h, http.MethodPost, "/predict", `{"sample":[1,2,3]}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, decodeBody(t, w), "error")
}

func TestPredictMethodNotAllowed(t *testing.T) {
	h := NewHandler(constantRegistry(t, 1, 1))

	w := serve(h, http.MethodGet, "/predict", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPredictRecordsJournal(t *testing.T) {
	rec := &fakeRecorder{}
	h := NewHandler(constantRegistry(t, 42.0, 2), WithJournal(rec))

	serve(h, http.MethodPost, "/predict", `{"sample":[1,2]}`)
	serve(h, http.MethodPost, "/predict", `{"sample":[1]}`)

	require.Len(t, rec.entries, 2)
	ok := rec.entries[0]
	assert.Equal(t, http.StatusOK, ok.Status)
	assert.Equal(t, []float64{1, 2}, ok.Sample)
	assert.Equal(t, 42.0, ok.Predictions["Fe2O3"])
	assert.Empty(t, ok.Error)

	failed := rec.entries[1]
	assert.Equal(t, http.StatusUnprocessableEntity, failed.Status)
	assert.Nil(t, failed.Predictions)
	assert.Contains(t, failed.Error, "expected 2 features, got 1")
}

func TestHealth(t *testing.T) {
	w := serve(NewHandler(constantRegistry(t, 1, 4)), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","oxides":{"CaO":4,"SiO2":4,"Al2O3":4,"Fe2O3":4}}`, w.Body.String())

	w = serve(NewHandler(nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}

func TestServerRejectsOversizedBody(t *testing.T) {
	cfg := config.Default().Server
	cfg.MaxBodyBytes = 16
	fake := &fakePredictor{}
	srv := NewServer(cfg, NewHandler(fake), nil, false)

	req := httptest.NewRequest(http.MethodPost, "/predict",
		strings.NewReader(`{"sample":[1.0,2.0,3.0,4.0,5.0,6.0,7.0,8.0]}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, fake.calls)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&SchemaError{Msg: "bad"}, http.StatusBadRequest},
		{&SchemaError{Err: &http.MaxBytesError{Limit: 1}}, http.StatusRequestEntityTooLarge},
		{&ml.DimensionError{Expected: 3, Got: 2}, http.StatusUnprocessableEntity},
		{&registry.PredictionError{Oxide: registry.CaO, Err: &ml.DimensionError{Expected: 3, Got: 2}}, http.StatusUnprocessableEntity},
		{errModelUnavailable, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusServiceUnavailable},
		{&registry.PredictionError{Oxide: registry.CaO, Err: ml.ErrNonFinite}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
