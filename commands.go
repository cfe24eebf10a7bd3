package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	qhttp "oxidecast/http"
	"oxidecast/journal"
	"oxidecast/registry"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load every model and scaler and report what was found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Load(a.cfg.Models.Sources())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, oxide := range reg.Labels() {
				entry, err := reg.Get(oxide)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-6s scaler=%-16s model=%-18s features=%d\n",
					oxide, entry.Scaler.Kind(), entry.Model.Kind(), entry.Model.NumFeatures())
			}
			fmt.Fprintf(out, "ok: %d oxides, %d features\n", len(reg.Labels()), reg.NumFeatures())
			return nil
		},
	}
}

func (a *app) predictCmd() *cobra.Command {
	var csvSample string
	cmd := &cobra.Command{
		Use:   "predict [--sample f1,f2,...] [-- f1 f2 ...]",
		Short: "Predict one sample given as feature values",
		Example: `  oxidecast predict --sample -1.5,2,0.25
  oxidecast predict -- -1.5 2 0.25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvSample != "" {
				if len(args) > 0 {
					return errors.New("give the sample either with --sample or as arguments, not both")
				}
				args = strings.Split(csvSample, ",")
			}
			if len(args) == 0 {
				return errors.New("no sample given")
			}
			sample, err := parseSample(args)
			if err != nil {
				return err
			}
			reg, err := registry.Load(a.cfg.Models.Sources())
			if err != nil {
				return err
			}
			predictions, err := reg.PredictAll(cmd.Context(), sample)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(qhttp.PredictResponse{Predictions: predictions})
		},
	}
	cmd.Flags().StringVarP(&csvSample, "sample", "s", "", "comma-separated feature values; negative values are allowed")
	return cmd
}

func (a *app) journalCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recently served predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(a.cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to print")
	return cmd
}

func parseSample(args []string) ([]float64, error) {
	sample := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %q is not a number", i, arg)
		}
		sample[i] = v
	}
	return sample, nil
}
