package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seqlab/mutcal/internal/config"
)

const (
	appName = "mutcal"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Evaluate and recalibrate predicted mutation-type probabilities",
		Version: version,
		Long: `mutcal evaluates predicted mutation-type probability distributions against
observed genomic mutations: it fits a multiclass calibration map
(temperature / vector / Dirichlet scaling), reports NLL and calibration
error before and after recalibration, and produces k-mer and regional
correlation diagnostics.`,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML configuration file (built-in defaults when empty)")
	rootCmd.PersistentFlags().String("input", "", "tab-separated evaluation table")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newEvaluateCmd())
	rootCmd.AddCommand(newKmerCmd())
	rootCmd.AddCommand(newRegionalCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

// setup resolves the shared flags: logging level, configuration and the
// input table path.
func setup(cmd *cobra.Command) (*config.Config, string, error) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := loader.LoadFromFile(path); err != nil {
			return nil, "", err
		}
	} else if err := loader.LoadDefault(); err != nil {
		return nil, "", err
	}
	cfg, err := loader.Config()
	if err != nil {
		return nil, "", err
	}

	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		return nil, "", errMissingInput
	}
	return cfg, input, nil
}
