package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "gannet",
		Short: "Encode annotated genomes into training windows and evaluate predictions",
		Long: `gannet turns annotated genomic sequences into fixed-length numeric
windows for training a per-base classifier, and reassembles per-window model
output back into per-base predictions with confusion-matrix metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// defaults must exist before subcommand flags read them
	viper.SetDefault("export.pool_size", 10)
	viper.SetDefault("export.chunk_size", 2000)
	viper.SetDefault("export.val_fraction", 0.2)
	viper.SetDefault("eval.batch_size", 32)

	cmd.AddCommand(newExportCmd(&verbose))
	cmd.AddCommand(newEvalCmd(&verbose))
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gannet version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// initConfig loads ~/.gannet.yaml when present. Flags override config values.
func initConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	viper.AddConfigPath(home)
	viper.SetConfigName(".gannet")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// newLogger builds the CLI logger: development config when verbose, else
// production with warnings and up.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
