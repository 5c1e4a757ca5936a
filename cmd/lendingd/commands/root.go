package commands

import (
	"fmt"
	"os"

	"chainlend-backend/internal/config"
	"chainlend-backend/internal/infrastructure/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lendingd",
	Short: "Collateralized P2P lending ledger",
	Long: `lendingd serves the lending ledger over HTTP, migrates its schema and
publishes manual price rounds for the redis price source.

Configuration comes from environment variables, optionally layered over a
YAML file given by --config or CONFIG_FILE.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		if err := os.Setenv("CONFIG_FILE", cfgFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		Development: cfg.LogDev,
	})
}
