package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"oxidecast/journal"
	"oxidecast/registry"
)

// Predictor runs every oxide model on one sample.
type Predictor interface {
	PredictAll(ctx context.Context, sample []float64) (registry.Predictions, error)
	Labels() []string
	NumFeatures() int
}

// Recorder persists served requests.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// PredictRequest is the body of POST /predict. Elements are pointers so that
// null entries are rejected instead of decoding as zero.
type PredictRequest struct {
	Sample []*float64 `json:"sample" validate:"required,min=1"`
}

type PredictResponse struct {
	Predictions registry.Predictions `json:"predictions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each loaded oxide to the feature count its model expects.
type HealthResponse struct {
	Status string         `json:"status"`
	Oxides map[string]int `json:"oxides,omitempty"`
}

type Handler struct {
	predictor    Predictor
	journal      Recorder
	logger       *zap.Logger
	legacyErrors bool
	validate     *validator.Validate
}

type HandlerOption func(*Handler)

func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithJournal(r Recorder) HandlerOption {
	return func(h *Handler) { h.journal = r }
}

// WithLegacyErrors answers every failure with status 200, leaving the
// {"error": ...} body as the only failure signal.
func WithLegacyErrors(enabled bool) HandlerOption {
	return func(h *Handler) { h.legacyErrors = enabled }
}

func NewHandler(predictor Predictor, opts ...HandlerOption) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	h := &Handler{
		predictor: predictor,
		logger:    zap.NewNop(),
		validate:  v,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sample, err := h.decodeSample(r)
	if err != nil {
		h.fail(w, r, sample, err)
		return
	}
	if h.predictor == nil {
		h.fail(w, r, sample, errModelUnavailable)
		return
	}

	predictions, err := h.predictor.PredictAll(ctx, sample)
	if err != nil {
		h.fail(w, r, sample, err)
		return
	}

	h.logger.Debug("prediction served",
		zap.String("request_id", GetRequestID(ctx)),
		zap.Int("features", len(sample)))
	h.record(ctx, journal.Entry{
		RequestID:   GetRequestID(ctx),
		Sample:      sample,
		Predictions: predictions.Map(),
		Status:      http.StatusOK,
	})
	h.respondJSON(w, http.StatusOK, PredictResponse{Predictions: predictions})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.predictor == nil {
		h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	oxides := make(map[string]int)
	for _, oxide := range h.predictor.Labels() {
		oxides[oxide] = h.predictor.NumFeatures()
	}
	h.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Oxides: oxides})
}

func (h *Handler) decodeSample(r *http.Request) ([]float64, error) {
	dec := json.NewDecoder(r.Body)
	var req PredictRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Msg: "request body is empty"}
		}
		return nil, &SchemaError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, &SchemaError{Err: err}
		}
		return nil, &SchemaError{Msg: "unexpected data after the JSON object"}
	}
	if err := h.validate.Struct(req); err != nil {
		return nil, &SchemaError{Msg: describeValidation(err)}
	}

	sample := make([]float64, len(req.Sample))
	for i, v := range req.Sample {
		if v == nil {
			return nil, &SchemaError{Msg: fmt.Sprintf("sample[%d] must be a number, got null", i)}
		}
		sample[i] = *v
	}
	return sample, nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s needs at least %s value(s)", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// fail logs err, records it and answers with {"error": ...}. No partial
// predictions are ever written.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, sample []float64, err error) {
	ctx := r.Context()
	status := statusFor(err)
	kind := errorKind(status)

	fields := []zap.Field{
		zap.String("request_id", GetRequestID(ctx)),
		zap.String("kind", kind),
		zap.Int("status", status),
		zap.Error(err),
	}
	var predErr *registry.PredictionError
	if errors.As(err, &predErr) {
		fields = append(fields, zap.String("oxide", predErr.Oxide))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("prediction failed", fields...)
	} else {
		h.logger.Warn("prediction rejected", fields...)
	}
	predictFailures.WithLabelValues(kind).Inc()

	h.record(ctx, journal.Entry{
		RequestID: GetRequestID(ctx),
		Sample:    sample,
		Error:     err.Error(),
		Status:    status,
	})

	if h.legacyErrors {
		status = http.StatusOK
	}
	h.respondJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handler) record(ctx context.Context, entry journal.Entry) {
	if h.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.journal.Record(ctx, entry); err != nil {
		h.logger.Warn("journal write failed", zap.String("request_id", entry.RequestID), zap.Error(err))
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", zap.Error(err))
	}
}
