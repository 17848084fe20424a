package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stationmeteo-server/internal/modules/weather/synthetic"
	"stationmeteo-server/internal/mqtt"
)

type simulateOptions struct {
	interval time.Duration
	count    int
	seed     uint64
	clientID string
}

func newSimulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish synthetic station telemetry to the MQTT topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if !cfg.MQTTEnabled() {
				return errors.New("MQTT_BROKER is required for simulate")
			}
			if opts.interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", opts.interval)
			}

			pub := mqtt.NewPublisher(mqtt.Options{
				Broker:   cfg.MQTTBroker,
				Port:     cfg.MQTTPort,
				ClientID: opts.clientID,
				Topic:    cfg.MQTTTopic,
			}, logger)
			defer pub.Disconnect()

			ctx := cmd.Context()
			connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err = pub.Connect(connectCtx)
			cancel()
			if err != nil {
				return err
			}

			gen := synthetic.New(opts.seed)
			ticker := time.NewTicker(opts.interval)
			defer ticker.Stop()

			for sent := 0; opts.count == 0 || sent < opts.count; sent++ {
				t := gen.Telemetry(time.Now().UTC())
				if err := pub.PublishTelemetry(ctx, t); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logger.Warn("publish failed", "error", err)
				} else {
					logger.Info("published reading", "timestamp", t.Timestamp, "temperature_c", *t.Temperature)
				}
				if opts.count != 0 && sent+1 == opts.count {
					break
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&opts.interval, "interval", 5*time.Second, "delay between readings")
	cmd.Flags().IntVar(&opts.count, "count", 0, "readings to publish (0 runs until interrupted)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "generator seed")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "stationmeteo-simulator", "MQTT client id")
	return cmd
}
