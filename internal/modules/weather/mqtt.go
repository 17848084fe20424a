package weather

import (
	"context"
	"log/slog"
	"time"

	"stationmeteo-server/internal/metrics"
	"stationmeteo-server/internal/modules/weather/types"
	"stationmeteo-server/internal/mqtt"
)

type readingInserter interface {
	Insert(ctx context.Context, r types.Reading) error
}

type pushSink interface {
	OnPush(reading types.Reading) bool
}

const insertTimeout = 5 * time.Second

// registerMQTTHandler stores each pushed telemetry message and offers it to
// the reconciler. A reading that cannot be stored is not offered.
func registerMQTTHandler(subscriber mqtt.MQTTSubscriber, store readingInserter, sink pushSink, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(telemetry types.Telemetry) error {
		reading := telemetry.Reading()
		logger.Debug("processing telemetry message", "timestamp", reading.Timestamp)

		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()
		if err := store.Insert(ctx, reading); err != nil {
			logger.Error("failed to insert reading",
				"timestamp", reading.Timestamp,
				"error", err,
			)
			return err
		}
		metrics.IngestedReadings.WithLabelValues("mqtt").Inc()

		accepted := sink.OnPush(reading)
		logger.Debug("successfully stored telemetry",
			"timestamp", reading.Timestamp,
			"live", accepted,
		)
		return nil
	})
}
