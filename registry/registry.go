// Package registry holds the fitted scaler and model for each oxide and runs
// predictions across all of them.
//
// A Registry is built once, before the server accepts traffic, and is never
// mutated afterwards. Concurrent readers need no synchronization.
package registry

import (
	"errors"
	"fmt"

	"oxidecast/ml"
)

const (
	CaO   = "CaO"
	SiO2  = "SiO2"
	Al2O3 = "Al2O3"
	Fe2O3 = "Fe2O3"
)

// Oxides lists the supported labels in canonical order. Results and error
// reporting follow this order.
var Oxides = []string{CaO, SiO2, Al2O3, Fe2O3}

var (
	ErrUnknownOxide = errors.New("unknown oxide")
	ErrIncomplete   = errors.New("registry incomplete")
	ErrIncompatible = errors.New("incompatible model and scaler")
	ErrModelPanic   = errors.New("model panicked")
)

func IsOxide(label string) bool {
	for _, oxide := range Oxides {
		if oxide == label {
			return true
		}
	}
	return false
}

// Entry pairs a fitted scaler with the model trained on its output.
type Entry struct {
	Oxide  string
	Scaler ml.Scaler
	Model  ml.Regressor
}

// Source locates the artifacts for one oxide on disk.
type Source struct {
	Oxide      string
	ModelPath  string
	ScalerPath string
}

type Registry struct {
	entries     map[string]Entry
	numFeatures int
}

// New validates entries and builds a registry. Every oxide must appear exactly
// once, and all scalers and models must agree on the feature count.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, entry := range entries {
		if !IsOxide(entry.Oxide) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOxide, entry.Oxide)
		}
		if _, dup := r.entries[entry.Oxide]; dup {
			return nil, fmt.Errorf("duplicate entry for %s", entry.Oxide)
		}
		if entry.Scaler == nil || entry.Model == nil {
			return nil, fmt.Errorf("%w: %s needs both a scaler and a model", ErrIncomplete, entry.Oxide)
		}
		if entry.Scaler.NumFeatures() != entry.Model.NumFeatures() {
			return nil, fmt.Errorf("%w: %s scaler expects %d features, model expects %d",
				ErrIncompatible, entry.Oxide, entry.Scaler.NumFeatures(), entry.Model.NumFeatures())
		}
		if r.numFeatures == 0 {
			r.numFeatures = entry.Scaler.NumFeatures()
		} else if entry.Scaler.NumFeatures() != r.numFeatures {
			return nil, fmt.Errorf("%w: %s expects %d features, other oxides expect %d",
				ErrIncompatible, entry.Oxide, entry.Scaler.NumFeatures(), r.numFeatures)
		}
		r.entries[entry.Oxide] = entry
	}
	for _, oxide := range Oxides {
		if _, ok := r.entries[oxide]; !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrIncomplete, oxide)
		}
	}
	return r, nil
}

// Load deserializes every source and builds the registry. Any failure is
// returned as is; callers treat it as fatal.
func Load(sources []Source) (*Registry, error) {
	entries := make([]Entry, 0, len(sources))
	for _, src := range sources {
		scaler, err := ml.LoadScaler(src.ScalerPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Oxide, err)
		}
		model, err := ml.LoadRegressor(src.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Oxide, err)
		}
		entries = append(entries, Entry{Oxide: src.Oxide, Scaler: scaler, Model: model})
	}
	return New(entries...)
}

func (r *Registry) Get(oxide string) (Entry, error) {
	entry, ok := r.entries[oxide]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownOxide, oxide)
	}
	return entry, nil
}

// Labels returns the oxides in canonical order.
func (r *Registry) Labels() []string {
	return append([]string(nil), Oxides...)
}

// NumFeatures is the sample length every entry was fitted on.
func (r *Registry) NumFeatures() int {
	return r.numFeatures
}
