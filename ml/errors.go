package ml

import (
	"errors"
	"fmt"
)

var (
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
	ErrNonFinite         = errors.New("non-finite value")
	ErrUnsupportedKind   = errors.New("unsupported artifact kind")
	ErrInvalidArtifact   = errors.New("invalid artifact")
)

// DimensionError reports a sample whose length differs from the fitted feature count.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("expected %d features, got %d", e.Expected, e.Got)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

func invalidArtifact(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArtifact, fmt.Sprintf(format, args...))
}
