package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gannet-bio/gannet/internal/gene"
)

// configKeys maps every settable key to a parser that validates and coerces
// its value. Transition-weight rows are handled separately since the key
// carries a class name.
var configKeys = map[string]func(string) (any, error){
	"export.pool_size":    parsePositiveInt,
	"export.chunk_size":   parsePositiveInt,
	"export.val_fraction": parseFraction,
	"eval.batch_size":     parsePositiveInt,
}

const transitionWeightPrefix = "export.transition_weights."

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gannet configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.gannet.yaml.",
		Example: `  gannet config                                      # show all config
  gannet config set export.pool_size 10              # bases per label step
  gannet config set export.transition_weights.ig 1,2,1,1
  gannet config get export.chunk_size`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set one of the known configuration keys: " + strings.Join(knownConfigKeys(), ", ") +
			", or a transition-weight row " + transitionWeightPrefix + "<class>.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

func runConfigShow() error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Println("# No configuration set. Config file: ~/.gannet.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigSet(key, value string) error {
	parsed, err := parseConfigValue(key, value)
	if err != nil {
		return err
	}
	viper.Set(key, parsed)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".gannet.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %v in %s\n", key, parsed, cfgFile)
	return nil
}

func runConfigGet(key string) error {
	if err := validateConfigKey(key); err != nil {
		return err
	}
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(val)
	return nil
}

// parseConfigValue validates a key and coerces its value to the type the
// pipeline consumes, so ~/.gannet.yaml never carries a misspelled key or a
// string where the windower expects a number.
func parseConfigValue(key, value string) (any, error) {
	if parse, ok := configKeys[key]; ok {
		return parse(value)
	}
	if cls, ok := strings.CutPrefix(key, transitionWeightPrefix); ok {
		if _, err := gene.ParseClass(cls); err != nil {
			return nil, fmt.Errorf("transition weights: %w", err)
		}
		if _, err := parseClassWeights(value); err != nil {
			return nil, fmt.Errorf("transition weights for %s: %w", cls, err)
		}
		return value, nil
	}
	return nil, fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(knownConfigKeys(), ", "))
}

func validateConfigKey(key string) error {
	if _, ok := configKeys[key]; ok {
		return nil
	}
	if cls, ok := strings.CutPrefix(key, transitionWeightPrefix); ok {
		_, err := gene.ParseClass(cls)
		return err
	}
	return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(knownConfigKeys(), ", "))
}

func knownConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parsePositiveInt(s string) (any, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%q is not a positive integer", s)
	}
	return n, nil
}

func parseFraction(s string) (any, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f >= 1 {
		return nil, fmt.Errorf("%q is not a fraction in [0, 1)", s)
	}
	return f, nil
}
