package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stationmeteo-server/internal/config"
)

// NewMux returns the mux with the operational routes registered. Feature
// modules add their own routes to it. mqtt may be nil.
func NewMux(db Pinger, mqtt ReadyChecker, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, mqtt, logger)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// NewServer wraps handler with request logging. WriteTimeout is left unset so
// websocket streams are not cut off.
func NewServer(cfg config.Config, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(logger, handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
