package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"oxidecast/config"
	"oxidecast/registry"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:          "evaluate_model <holdout.csv>",
		Short:        "Score the configured models against measured oxide values",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			reg, err := registry.Load(cfg.Models.Sources())
			if err != nil {
				return fmt.Errorf("load models: %w", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			set, err := readHoldout(f, reg.NumFeatures())
			if err != nil {
				return err
			}
			scores, err := evaluate(cmd.Context(), reg, set)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d samples\n", len(set.samples))
			for _, s := range scores {
				fmt.Fprintf(out, "%-6s mae=%.4f rmse=%.4f r2=%.4f\n", s.Oxide, s.MAE, s.RMSE, s.R2)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml when present)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// holdout is a labelled evaluation set. measured[i] holds the measured
// values for samples[i] in registry.Oxides order.
type holdout struct {
	samples  [][]float64
	measured [][]float64
}

// readHoldout parses rows of numFeatures feature columns followed by one
// measured column per oxide. A header row is optional; when present its
// oxide columns are matched by name.
func readHoldout(r io.Reader, numFeatures int) (*holdout, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = numFeatures + len(registry.Oxides)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read holdout: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("holdout set is empty")
	}

	featureCols, oxideCols := positionalColumns(numFeatures)
	if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
		featureCols, oxideCols, err = headerColumns(records[0])
		if err != nil {
			return nil, err
		}
		records = records[1:]
	}

	set := &holdout{}
	for i, rec := range records {
		sample, err := parseColumns(rec, featureCols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		measured, err := parseColumns(rec, oxideCols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		set.samples = append(set.samples, sample)
		set.measured = append(set.measured, measured)
	}
	if len(set.samples) == 0 {
		return nil, errors.New("holdout set has a header but no rows")
	}
	return set, nil
}

func positionalColumns(numFeatures int) (features, oxides []int) {
	for i := 0; i < numFeatures; i++ {
		features = append(features, i)
	}
	for i := range registry.Oxides {
		oxides = append(oxides, numFeatures+i)
	}
	return features, oxides
}

func headerColumns(header []string) (features, oxides []int, err error) {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		byName[strings.TrimSpace(name)] = i
	}
	isOxide := make(map[int]bool, len(registry.Oxides))
	for _, oxide := range registry.Oxides {
		col, ok := byName[oxide]
		if !ok {
			return nil, nil, fmt.Errorf("header has no %s column", oxide)
		}
		oxides = append(oxides, col)
		isOxide[col] = true
	}
	for i := range header {
		if !isOxide[i] {
			features = append(features, i)
		}
	}
	return features, oxides, nil
}

func parseColumns(rec []string, cols []int) ([]float64, error) {
	values := make([]float64, len(cols))
	for i, col := range cols {
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %q is not a number", col+1, rec[col])
		}
		values[i] = v
	}
	return values, nil
}

// score is the error of one oxide model over the holdout set.
type score struct {
	Oxide string
	MAE   float64
	RMSE  float64
	R2    float64
}

func evaluate(ctx context.Context, reg *registry.Registry, set *holdout) ([]score, error) {
	n := len(set.samples)
	predicted := make([][]float64, len(registry.Oxides))
	measured := make([][]float64, len(registry.Oxides))
	for j := range registry.Oxides {
		predicted[j] = make([]float64, n)
		measured[j] = make([]float64, n)
	}

	for i, sample := range set.samples {
		predictions, err := reg.PredictAll(ctx, sample)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		for j, oxide := range registry.Oxides {
			v, _ := predictions.Get(oxide)
			predicted[j][i] = v
			measured[j][i] = set.measured[i][j]
		}
	}

	scores := make([]score, len(registry.Oxides))
	for j, oxide := range registry.Oxides {
		scores[j] = score{
			Oxide: oxide,
			MAE:   floats.Distance(predicted[j], measured[j], 1) / float64(n),
			RMSE:  floats.Distance(predicted[j], measured[j], 2) / math.Sqrt(float64(n)),
			R2:    stat.RSquaredFrom(predicted[j], measured[j], nil),
		}
	}
	return scores, nil
}
