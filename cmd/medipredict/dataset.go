package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skufu/medipredict/internal/dataset"
)

func newPreprocessCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Convert the raw disease/symptom table into a binary training table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := dataset.PreprocessFile(in)
			if err != nil {
				return err
			}
			if err := t.WriteFile(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s with %d symptoms and %d rows\n", out, len(t.Symptoms), len(t.Rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "data/dataset.csv", "Raw dataset with Disease and Symptom_N columns")
	cmd.Flags().StringVar(&out, "out", "data/Training.csv", "Output training table")
	return cmd
}

func newEvaluateCmd(g *globalFlags) *cobra.Command {
	var (
		data    string
		asJSON  bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every model against a training table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := dataset.LoadTraining(data)
			if err != nil {
				return err
			}
			a, err := g.artifacts(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			evals, err := dataset.Evaluate(cmd.Context(), a, t)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(evals)
			}
			if verbose {
				for _, ev := range evals {
					if err := dataset.WriteReport(w, ev); err != nil {
						return err
					}
					fmt.Fprintln(w)
				}
			}
			return dataset.WriteSummary(w, evals)
		},
	}
	cmd.Flags().StringVar(&data, "data", "data/Training.csv", "Training table to score against")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print evaluations as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print per-class scores and confusion matrices")
	return cmd
}
