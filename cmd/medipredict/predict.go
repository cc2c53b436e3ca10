package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skufu/medipredict/internal/predict"
	"github.com/Skufu/medipredict/internal/report"
)

func newPredictCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "predict SYMPTOM...",
		Short: "Predict a disease from at least three symptoms",
		Example: `  medipredict predict itching skin_rash "nodal skin eruptions"
  medipredict predict --json fever cough headache`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := predict.CheckSymptoms(args); err != nil {
				return err
			}
			p, err := g.predictor(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Predict(cmd.Context(), args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printResult(w io.Writer, res *predict.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Prediction:\t%s (%.2f%%)\n", res.PrimaryPrediction, res.Confidence)
	fmt.Fprintf(tw, "Risk:\t%s (severity score %g)\n", res.RiskLevel, res.SeverityScore)
	fmt.Fprintf(tw, "Model agreement:\t%d/3 (rf=%s, nb=%s, svm=%s)\n",
		res.ModelAgreement, res.RFPrediction, res.NBPrediction, res.SVMPrediction)
	for i, c := range res.Top3Predictions {
		fmt.Fprintf(tw, "  %d.\t%s\t%.2f%%\n", i+1, c.Disease, c.Confidence)
	}
	fmt.Fprintf(tw, "Description:\t%s\n", res.Description)
	if len(res.Precautions) > 0 {
		fmt.Fprintf(tw, "Precautions:\t%s\n", strings.Join(res.Precautions, "; "))
	}
	if len(res.UnrecognizedSymptoms) > 0 {
		fmt.Fprintf(tw, "Ignored:\t%s\n", strings.Join(res.UnrecognizedSymptoms, ", "))
	}
	return tw.Flush()
}

func newSymptomsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "symptoms",
		Short: "List the symptoms the models know",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.artifacts(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			for _, name := range a.Vocabulary.DisplayNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newReportCmd(g *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report --out FILE SYMPTOM...",
		Short: "Write a PDF report for a prediction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := predict.CheckSymptoms(args); err != nil {
				return err
			}
			p, err := g.predictor(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Predict(cmd.Context(), args)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := report.Write(f, res, time.Now()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, res.PrimaryPrediction)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", report.FileName, "Output PDF path")
	return cmd
}
