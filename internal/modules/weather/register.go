package weather

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"stationmeteo-server/internal/cache"
	"stationmeteo-server/internal/modules/weather/controller"
	"stationmeteo-server/internal/modules/weather/export"
	"stationmeteo-server/internal/modules/weather/live"
	"stationmeteo-server/internal/modules/weather/repository"
	"stationmeteo-server/internal/modules/weather/service"
	"stationmeteo-server/internal/mqtt"
)

// Deps are the process-level resources the feature is built on. Cache and
// Subscriber may be nil.
type Deps struct {
	DB           *sql.DB
	Cache        cache.Cache
	CacheTTL     time.Duration
	Artifacts    export.ArtifactStore
	Subscriber   mqtt.MQTTSubscriber
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Feature is the wired weather module. Run starts its background poller.
type Feature struct {
	Service    *service.Service
	Exporter   *export.Generator
	Reconciler *live.Reconciler
	poller     *live.Poller
}

// RegisterFeature builds the weather module on d and registers its routes.
func RegisterFeature(mux *http.ServeMux, d Deps) *Feature {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	readings := repository.NewRepository(d.DB)
	artifacts := repository.NewArtifactRepository(d.DB)

	var opts []service.Option
	if d.Cache != nil {
		opts = append(opts, service.WithCache(d.Cache, d.CacheTTL))
	}
	svc := service.NewService(readings, logger, opts...)
	gen := export.NewGenerator(svc, d.Artifacts, logger, export.WithRecorder(artifacts))
	reconciler := live.NewReconciler(logger)

	if d.Subscriber != nil {
		registerMQTTHandler(d.Subscriber, readings, reconciler, logger)
	}

	cd := controller.Deps{
		Service:  svc,
		Exporter: gen,
		Live:     reconciler,
		Store:    readings,
		History:  artifacts,
		Logger:   logger,
	}
	if opener, ok := d.Artifacts.(controller.ArtifactOpener); ok {
		cd.Artifacts = opener
	}
	controller.NewWeatherController(cd).RegisterRoutes(mux)

	return &Feature{
		Service:    svc,
		Exporter:   gen,
		Reconciler: reconciler,
		poller:     live.NewPoller(readings, reconciler, d.PollInterval, logger),
	}
}

// Run polls the reading store until ctx is done. The first poll runs
// immediately so the current reading is populated at startup.
func (f *Feature) Run(ctx context.Context) error {
	return f.poller.Run(ctx)
}
