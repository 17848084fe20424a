package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"stationmeteo-server/internal/config"
	"stationmeteo-server/internal/logging"
)

const appName = "stationmeteo"

// Default version is "dev" if not set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Weather station aggregation and retrieval service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSimulateCmd())
	return root
}

// setup loads the optional dotenv file, then config and logger.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	var envFile string
	if f := cmd.Flag("env-file"); f != nil {
		envFile = f.Value.String()
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config error: %w", err)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
