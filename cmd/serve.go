package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"stationmeteo-server/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live poller and MQTT subscriber",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			logger.Info("starting",
				"version", version,
				"env", cfg.AppEnv,
				"log_level", cfg.LogLevel.String(),
			)

			if err := app.Run(cmd.Context(), cfg, version, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("run failed", "err", err)
				return err
			}
			logger.Info("shutting down")
			return nil
		},
	}
}
