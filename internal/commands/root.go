// Package commands wires the CLI surface: flag parsing, configuration
// loading, and dispatch into the synchronization engine and dataset
// readers.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"marketsync/internal/config"
	"marketsync/internal/util"
)

var configPath string

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "marketsync",
	Short: "EODHD market data synchronization",
	Long: `marketsync keeps a local library of daily market data in sync with the
EODHD API: OHLCV bars as typed CSV datasets plus raw split and dividend
histories, with incremental updates, a persistent audit trail, and a
run history database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the terminal error, if any.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default config/marketsync.yaml)")
}

// loadConfig resolves the configuration for a command run: .env file,
// then the YAML file, then environment overrides. It also installs the
// process-wide logger.
func loadConfig() (*config.Config, error) {
	// Optional; a missing .env is the common case outside development.
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv("MARKETSYNC_CONFIG")
	}
	if path == "" {
		path = "config/marketsync.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}
