package ml

// Scaler is a fitted feature transform applied to a raw sample before inference.
type Scaler interface {
	Transform(features []float64) ([]float64, error)
	NumFeatures() int
	Kind() string
}

// Regressor maps a scaled feature vector to a single numeric prediction.
type Regressor interface {
	Predict(features []float64) (float64, error)
	NumFeatures() int
	Kind() string
}

func checkDimension(features []float64, expected int) error {
	if len(features) != expected {
		return &DimensionError{Expected: expected, Got: len(features)}
	}
	return nil
}
