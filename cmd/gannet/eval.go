package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gannet-bio/gannet/internal/dataset"
	"github.com/gannet-bio/gannet/internal/metrics"
	"github.com/gannet-bio/gannet/internal/pipeline"
	"github.com/gannet-bio/gannet/internal/predict"
	"github.com/gannet-bio/gannet/internal/window"
)

func newEvalCmd(verbose *bool) *cobra.Command {
	var (
		data            string
		partition       string
		batchSize       int
		savePredictions bool
		positional      int
		output          string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run stored windows through a predictor and report metrics",
		Long: `Streams a partition's windows through a predictor, reassembles the
per-window output into per-base prediction tracks, and prints the confusion
matrix report. The built-in predictor is the label oracle, which replays the
stored labels as probability-1 output; it verifies the pipeline's round trip
and the report arithmetic against a dataset.`,
		Example: `  gannet eval --data eval.duckdb --partition test
  gannet eval --data eval.duckdb --partition test --save-predictions`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := dataset.Open(data)
			if err != nil {
				return err
			}
			defer store.Close()

			evaluator := pipeline.NewEvaluator(predict.LabelPredictor{}, batchSize)
			evaluator.SetLogger(logger)
			if savePredictions {
				evaluator.SetPredictionSink(store)
			}
			if positional > 0 {
				evaluator.SetPositionalResolution(positional)
			}

			result, err := evaluator.Evaluate(store, window.Partition(partition))
			if err != nil {
				return err
			}

			for _, f := range result.Failures {
				fmt.Fprintf(os.Stderr, "reassembly failed: %v\n", f.Err)
			}

			out := os.Stdout
			if output != "" {
				out, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("create report file: %w", err)
				}
				defer out.Close()
			}
			report := metrics.NewReportWriter(out)
			if err := report.WriteSummary(result.Matrix); err != nil {
				return err
			}
			if result.Positional != nil {
				return report.WritePositional(result.Positional)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "dataset path (DuckDB)")
	cmd.Flags().StringVarP(&partition, "partition", "p", string(window.Test), "partition to evaluate: train, val, test")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", viper.GetInt("eval.batch_size"), "prediction batch size")
	cmd.Flags().BoolVar(&savePredictions, "save-predictions", false, "persist reassembled prediction tracks to the dataset")
	cmd.Flags().IntVar(&positional, "positional", 0, "report per-offset accuracy in buckets of N bases (0 = off)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "report file (default: stdout)")
	cmd.MarkFlagRequired("data")

	return cmd
}
