package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/askiada/go-labflow/internal/config"
)

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:           "labflow",
	Short:         "Lab automation pipeline engine",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "", "Path to the engine configuration (YAML)")

	rootCmd.AddCommand(validateCmd, orderCmd, drawCmd, runCmd)
}

// loadConfig reads the configuration and installs its logger as the default one.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := cfg.Logger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	return cfg, logger, nil
}
