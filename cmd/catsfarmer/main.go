package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qtosh1/cats-farmer/internal/config"
	"github.com/qtosh1/cats-farmer/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "catsfarmer",
	Short: "Cats Gang mini-app farmer",
	Long: `catsfarmer logs Telegram accounts into the Cats Gang mini-app and
completes their link and channel tasks on a fixed cycle.

Configuration comes from the environment and an optional .env file.
Run without arguments to start farming every session in SESSIONS_DIR.`,
	SilenceUsage: true,
	RunE:         runFarm,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Farm every session in SESSIONS_DIR",
	RunE:  runFarm,
}

func init() {
	rootCmd.AddCommand(runCmd, loginCmd, sessionsCmd, walletCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the root logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
