package http

import (
	"context"
	"errors"
	"net/http"

	"oxidecast/ml"
	"oxidecast/registry"
)

// errModelUnavailable is returned when no registry is wired into the handler.
var errModelUnavailable = errors.New("models not loaded")

// SchemaError is a request body that does not match {"sample": [number, ...]}.
type SchemaError struct {
	Msg string
	Err error
}

func (e *SchemaError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return "invalid request: " + e.Err.Error()
	}
	return "invalid request: " + e.Msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// statusFor maps a failure to its HTTP status.
//
//	schema              400
//	body too large      413
//	dimension mismatch  422
//	models unavailable  503
//	anything else       500
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var schema *SchemaError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &schema):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errModelUnavailable), errors.Is(err, registry.ErrUnknownOxide),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorKind is the low-cardinality label used in logs and metrics.
func errorKind(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "schema"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusUnprocessableEntity:
		return "dimension_mismatch"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "model"
	}
}
