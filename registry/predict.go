package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"oxidecast/ml"
)

var tracer = otel.Tracer("oxidecast/registry")

// Prediction is one oxide's rounded value.
type Prediction struct {
	Oxide string
	Value float64
}

// Predictions holds one value per oxide in canonical order. It encodes as a
// JSON object keyed by oxide, preserving that order.
type Predictions []Prediction

func (p Predictions) Get(oxide string) (float64, bool) {
	for _, pred := range p {
		if pred.Oxide == oxide {
			return pred.Value, true
		}
	}
	return 0, false
}

func (p Predictions) Map() map[string]float64 {
	out := make(map[string]float64, len(p))
	for _, pred := range p {
		out[pred.Oxide] = pred.Value
	}
	return out
}

func (p Predictions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, pred := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(pred.Oxide)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(pred.Value, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PredictionError carries the oxide whose step failed.
type PredictionError struct {
	Oxide string
	Err   error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predict %s: %v", e.Oxide, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Round rounds to two decimals the way Python's round(v, 2) does: the exact
// binary value is rounded, with ties going to even.
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Predict scales sample and runs the model, returning the rounded value.
func (e Entry) Predict(sample []float64) (float64, error) {
	if len(sample) != e.Scaler.NumFeatures() {
		return 0, &ml.DimensionError{Expected: e.Scaler.NumFeatures(), Got: len(sample)}
	}
	scaled, err := e.Scaler.Transform(sample)
	if err != nil {
		return 0, fmt.Errorf("scale: %w", err)
	}
	y, err := e.Model.Predict(scaled)
	if err != nil {
		return 0, fmt.Errorf("model: %w", err)
	}
	y = Round(y)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("model: %w", ml.ErrNonFinite)
	}
	return y, nil
}

// PredictAll runs every oxide on sample. Either all four values are returned
// or the first failure in canonical order, never a partial result.
func (r *Registry) PredictAll(ctx context.Context, sample []float64) (Predictions, error) {
	ctx, span := tracer.Start(ctx, "registry.PredictAll")
	defer span.End()
	span.SetAttributes(attribute.Int("sample.length", len(sample)))

	if err := ml.CheckFinite(sample); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("sample: %w", err)
	}
	if len(sample) != r.numFeatures {
		err := &ml.DimensionError{Expected: r.numFeatures, Got: len(sample)}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	values := make([]float64, len(Oxides))
	errs := make([]error, len(Oxides))
	var g errgroup.Group
	for i, oxide := range Oxides {
		i, oxide := i, oxide
		g.Go(func() error {
			values[i], errs[i] = r.predictOne(ctx, oxide, sample)
			return nil
		})
	}
	_ = g.Wait()

	for i, oxide := range Oxides {
		if errs[i] != nil {
			err := &PredictionError{Oxide: oxide, Err: errs[i]}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	out := make(Predictions, len(Oxides))
	for i, oxide := range Oxides {
		out[i] = Prediction{Oxide: oxide, Value: values[i]}
	}
	return out, nil
}

// predictOne runs on its own goroutine, out of reach of the HTTP recovery
// middleware, so a panicking model is turned into ErrModelPanic here.
func (r *Registry) predictOne(ctx context.Context, oxide string, sample []float64) (value float64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	_, span := tracer.Start(ctx, "registry.predict",
		trace.WithAttributes(attribute.String("oxide", oxide)))
	defer span.End()
	defer func() {
		if p := recover(); p != nil {
			predictionsTotal.WithLabelValues(oxide, "error").Inc()
			err = fmt.Errorf("%w: %v", ErrModelPanic, p)
			span.SetStatus(codes.Error, err.Error())
			value = 0
		}
	}()

	entry, err := r.Get(oxide)
	if err != nil {
		predictionsTotal.WithLabelValues(oxide, "error").Inc()
		return 0, err
	}

	start := time.Now()
	value, err = entry.Predict(sample)
	predictionDuration.WithLabelValues(oxide).Observe(time.Since(start).Seconds())
	if err != nil {
		predictionsTotal.WithLabelValues(oxide, "error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	predictionsTotal.WithLabelValues(oxide, "ok").Inc()
	span.SetAttributes(attribute.Float64("prediction", value))
	return value, nil
}
