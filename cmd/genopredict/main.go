// Command genopredict builds a genomic relationship matrix, evaluates
// GBLUP-family models under CV0, CV00 and CV1, and writes the prediction
// tables in the challenge submission layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emilybillow27-sudo/genopredict/config"
	"github.com/emilybillow27-sudo/genopredict/pkg/log"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "genopredict",
	Short: "Genomic prediction of unobserved trials",
	Long: `genopredict predicts trait values of wheat accessions in focal trials
from a marker-based relationship matrix.

Configuration is read from --config (YAML) and then from GENOPREDICT_*
environment variables, e.g. GENOPREDICT_MODEL_KIND=gblup.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if logFormat != "" {
			cfg.Logging.Format = logFormat
		}
		opts := cfg.LogOptions()
		opts.Output = cmd.ErrOrStderr()
		return log.SetupLogger(opts)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "genopredict", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override logging.format (json, console)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(grmCmd)
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
