package controller

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"stationmeteo-server/internal/modules/weather/live"
	"stationmeteo-server/internal/modules/weather/types"
)

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Retriever answers historical and summary queries.
type Retriever interface {
	Retrieve(ctx context.Context, filter types.Filter, pageIndex, pageSize int) (types.Page, error)
	ET0Summary(ctx context.Context) (types.ET0Summary, error)
	ET0Series(ctx context.Context, hours int) ([]types.ET0Point, error)
}

type Exporter interface {
	Export(ctx context.Context, filter types.Filter, format types.Format) (types.ExportArtifact, error)
}

// LiveFeed is the reconciler surface used by the current, ingest and
// websocket handlers.
type LiveFeed interface {
	Snapshot() live.Snapshot
	Subscribe(buffer int) (<-chan types.LiveReading, func())
	OnPush(reading types.Reading) bool
}

type ReadingWriter interface {
	Insert(ctx context.Context, r types.Reading) error
}

// ArtifactOpener serves locally stored exports.
type ArtifactOpener interface {
	Open(name string) (*os.File, error)
}

type ArtifactLister interface {
	Recent(ctx context.Context, limit int) ([]types.ExportArtifact, error)
}

// Deps wires the controller. Artifacts and History may be nil, in which case
// their routes are not registered.
type Deps struct {
	Service   Retriever
	Exporter  Exporter
	Live      LiveFeed
	Store     ReadingWriter
	Artifacts ArtifactOpener
	History   ArtifactLister
	Logger    *slog.Logger
}

type weatherControllerImpl struct {
	service   Retriever
	exporter  Exporter
	live      LiveFeed
	store     ReadingWriter
	artifacts ArtifactOpener
	history   ArtifactLister
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

func NewWeatherController(d Deps) WeatherController {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &weatherControllerImpl{
		service:   d.Service,
		exporter:  d.Exporter,
		live:      d.Live,
		store:     d.Store,
		artifacts: d.Artifacts,
		history:   d.History,
		logger:    logger.With("component", "weather.controller"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleDashboard)
	mux.HandleFunc("GET /api/v1/current", c.handleCurrent)
	mux.HandleFunc("GET /api/v1/historical", c.handleHistorical)
	mux.HandleFunc("POST /api/v1/export", c.handleExport)
	mux.HandleFunc("POST /api/v1/readings", c.handleIngest)
	mux.HandleFunc("GET /api/v1/et0", c.handleET0Series)
	mux.HandleFunc("GET /api/v1/et0/summary", c.handleET0Summary)
	mux.HandleFunc("GET /ws/weather-updates", c.handleLiveUpdates)
	if c.artifacts != nil {
		mux.HandleFunc("GET /api/v1/exports/{name}", c.handleDownload)
	}
	if c.history != nil {
		mux.HandleFunc("GET /api/v1/exports", c.handleRecentExports)
	}
}
