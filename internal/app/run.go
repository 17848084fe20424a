package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"stationmeteo-server/internal/cache"
	"stationmeteo-server/internal/config"
	db "stationmeteo-server/internal/db"
	httpapi "stationmeteo-server/internal/httpapi"
	"stationmeteo-server/internal/migrate"
	weather "stationmeteo-server/internal/modules/weather"
	"stationmeteo-server/internal/modules/weather/export"
	weatherviews "stationmeteo-server/internal/modules/weather/views"
	"stationmeteo-server/internal/mqtt"
	"stationmeteo-server/internal/tracing"
)

const (
	serviceName     = "stationmeteo-server"
	shutdownTimeout = 10 * time.Second
)

// Run serves the API until ctx is cancelled, then shuts everything down.
func Run(ctx context.Context, cfg config.Config, version string, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbLogSQL", cfg.LogSQL,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"pollInterval", cfg.PollInterval.String(),
		"cacheDriver", cfg.CacheDriver,
		"exportStore", cfg.ExportStore,
		"otlpEndpoint", cfg.OTLPEndpoint,
	)

	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, serviceName, version, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("tracing shutdown", "error", err)
		}
	}()

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()
	if _, err := migrate.Run(ctx, dbConn, logger); err != nil {
		return err
	}
	logger.Info("database ready")

	if err := weatherviews.LoadTemplates(); err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	aggCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if aggCache != nil {
		defer func() { _ = aggCache.Close() }()
	}

	artifacts, err := openArtifactStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// The handler must be set before Connect so messages queued on the broker
	// right after CONNACK are not lost.
	var subscriber *mqtt.Subscriber
	deps := weather.Deps{
		DB:           dbConn,
		Cache:        aggCache,
		CacheTTL:     cfg.CacheTTL,
		Artifacts:    artifacts,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}
	if cfg.MQTTEnabled() {
		subscriber = mqtt.NewSubscriber(mqtt.Options{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, logger)
		deps.Subscriber = subscriber
	} else {
		logger.Info("mqtt disabled, live reading is poll-only")
	}

	var mqttReady httpapi.ReadyChecker
	if subscriber != nil {
		mqttReady = subscriber
	}
	mux := httpapi.NewMux(dbConn, mqttReady, logger)
	feature := weather.RegisterFeature(mux, deps)
	srv := httpapi.NewServer(cfg, mux, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return feature.Run(gctx)
	})

	if subscriber != nil {
		g.Go(func() error {
			// paho keeps retrying in the background; the service stays up on
			// polling alone until the broker is reachable.
			if err := subscriber.Connect(gctx); err != nil && gctx.Err() == nil {
				logger.Warn("mqtt connection failed (continuing without push)", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if subscriber != nil {
			logger.Info("mqtt disconnecting")
			subscriber.Disconnect()
		}
		logger.Info("http shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Cache, error) {
	c, err := cache.New(cfg.CacheDriver, cfg.CacheAddrs)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		// a cold cache only costs latency
		logger.Warn("aggregate cache unreachable at startup", "driver", cfg.CacheDriver, "error", err)
	} else {
		logger.Info("aggregate cache ready", "driver", cfg.CacheDriver, "ttl", cfg.CacheTTL.String())
	}
	return c, nil
}

func openArtifactStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (export.ArtifactStore, error) {
	switch cfg.ExportStore {
	case "minio":
		return export.NewMinioStore(ctx, export.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			URLExpiry: cfg.ExportURLExpiry,
		}, logger)
	default:
		return export.NewLocalStore(cfg.ExportDir, cfg.ExportBaseURL)
	}
}
