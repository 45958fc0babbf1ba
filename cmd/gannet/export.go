package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gannet-bio/gannet/internal/dataset"
	"github.com/gannet-bio/gannet/internal/encode"
	"github.com/gannet-bio/gannet/internal/gene"
	"github.com/gannet-bio/gannet/internal/pipeline"
	"github.com/gannet-bio/gannet/internal/window"
)

func newExportCmd(verbose *bool) *cobra.Command {
	var (
		input        string
		data         string
		poolSize     int
		chunkSize    int
		valFraction  float64
		testOnly     bool
		keepErrors   bool
		predictPhase bool
		workers      int
		classWeights string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Encode and window annotated sequences into a dataset",
		Example: `  gannet export --input sequences.yaml --data train.duckdb
  gannet export --input sequences.yaml --data eval.duckdb --test-only
  gannet export --input sequences.yaml --data train.duckdb --pool-size 10 --chunk-size 2000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg := window.DefaultConfig(poolSize, chunkSize)
			cfg.ValFraction = valFraction
			cfg.TestOnly = testOnly
			if classWeights != "" {
				if cfg.ClassWeights, err = parseClassWeights(classWeights); err != nil {
					return err
				}
			}
			for prev, row := range viper.GetStringMapString("export.transition_weights") {
				if err := applyTransitionWeight(&cfg, prev, row); err != nil {
					return err
				}
			}

			windower, err := window.NewWindower(cfg)
			if err != nil {
				return err
			}

			src, err := gene.OpenFile(input)
			if err != nil {
				return err
			}
			defer src.Close()

			store, err := dataset.Open(data)
			if err != nil {
				return err
			}
			defer store.Close()

			encoder := encode.NewEncoder()
			encoder.SetEncodePhase(predictPhase)
			encoder.SetLogger(logger)

			exporter := pipeline.NewExporter(encoder, windower, store)
			exporter.SetWorkers(workers)
			exporter.SetKeepErrors(keepErrors)
			exporter.SetLogger(logger)

			summary, err := exporter.Export(src)
			if err != nil {
				return err
			}

			for _, skip := range summary.Skipped {
				fmt.Printf("skipped %s: %v\n", skip.SeqID, skip.Err)
			}
			fmt.Printf("exported %d windows from %d sequences (%d skipped)\n",
				summary.Windows, summary.Sequences, len(summary.Skipped))
			for p, n := range summary.PerPartition {
				fmt.Printf("  %s: %d windows\n", p, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "annotated sequence file (YAML)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "output dataset path (DuckDB)")
	cmd.Flags().IntVar(&poolSize, "pool-size", viper.GetInt("export.pool_size"), "bases per label step")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", viper.GetInt("export.chunk_size"), "steps per window")
	cmd.Flags().Float64Var(&valFraction, "val-fraction", viper.GetFloat64("export.val_fraction"), "fraction of sequences assigned to validation")
	cmd.Flags().BoolVar(&testOnly, "test-only", false, "write all windows to the test partition")
	cmd.Flags().BoolVar(&keepErrors, "keep-errors", false, "keep windows whose sample weights are all zero")
	cmd.Flags().BoolVar(&predictPhase, "predict-phase", false, "encode the reading-frame channel")
	cmd.Flags().IntVar(&workers, "workers", 0, "encoding workers (0 = one per CPU)")
	cmd.Flags().StringVar(&classWeights, "class-weights", "", "comma-separated per-class weights: ig,utr,exon,intron")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("data")

	return cmd
}

func parseClassWeights(s string) ([gene.NumClasses]float32, error) {
	var out [gene.NumClasses]float32
	parts := strings.Split(s, ",")
	if len(parts) != gene.NumClasses {
		return out, fmt.Errorf("class weights need %d values, got %d", gene.NumClasses, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return out, fmt.Errorf("class weight %q: %w", p, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// applyTransitionWeight fills one row of the transition table from config,
// e.g. export.transition_weights.ig: "1,2,1,1" scales steps entering each
// class from intergenic.
func applyTransitionWeight(cfg *window.Config, prevName, row string) error {
	prev, err := gene.ParseClass(prevName)
	if err != nil {
		return fmt.Errorf("transition weights: %w", err)
	}
	weights, err := parseClassWeights(row)
	if err != nil {
		return fmt.Errorf("transition weights for %s: %w", prevName, err)
	}
	cfg.TransitionWeights[prev] = weights
	return nil
}
