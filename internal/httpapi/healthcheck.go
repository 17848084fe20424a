package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"stationmeteo-server/internal/utils"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ReadyChecker reports whether an optional dependency is usable.
type ReadyChecker interface {
	Ready() bool
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db     Pinger
	mqtt   ReadyChecker
	logger *slog.Logger
}

// NewHealthchecker reports liveness from the database ping. The MQTT state is
// informational only, since the service keeps working on polling alone; a nil
// mqtt reports "disabled".
func NewHealthchecker(db Pinger, mqtt ReadyChecker, logger *slog.Logger) healthchecker {
	return &healthcheckerImpl{db: db, mqtt: mqtt, logger: logger}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "failed to check database connectivity")
		return
	}
	mqttState := "disabled"
	if h.mqtt != nil {
		mqttState = "disconnected"
		if h.mqtt.Ready() {
			mqttState = "subscribed"
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "mqtt": mqttState})
}

func registerHealthcheck(mux *http.ServeMux, db Pinger, mqtt ReadyChecker, logger *slog.Logger) {
	healthchecker := NewHealthchecker(db, mqtt, logger)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
