package controller

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"time"

	"stationmeteo-server/internal/metrics"
	"stationmeteo-server/internal/modules/weather/export"
	"stationmeteo-server/internal/modules/weather/service"
	"stationmeteo-server/internal/modules/weather/types"
	"stationmeteo-server/internal/modules/weather/views"
	"stationmeteo-server/internal/utils"
)

const (
	statusOK        = "ok"
	statusNoReading = "no_reading"
)

type currentResponse struct {
	Status      string             `json:"status"`
	Reading     *types.LiveReading `json:"reading,omitempty"`
	PollError   string             `json:"pollError,omitempty"`
	PollErrorAt *time.Time         `json:"pollErrorAt,omitempty"`
}

func (c *weatherControllerImpl) handleCurrent(w http.ResponseWriter, r *http.Request) {
	snap := c.live.Snapshot()
	resp := currentResponse{Status: statusNoReading, Reading: snap.Current}
	if snap.Current != nil {
		resp.Status = statusOK
	}
	if snap.PollError != nil {
		resp.PollError = snap.PollError.Error()
		at := snap.PollErrorAt
		resp.PollErrorAt = &at
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (c *weatherControllerImpl) handleHistorical(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q.Get("startDate"), q.Get("endDate"), q.Get("granularity"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	// range and granularity are reported ahead of paging errors
	if err := filter.Validate(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pageIndex, pageSize, err := parsePaging(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := c.service.Retrieve(r.Context(), filter, pageIndex, pageSize)
	if err != nil {
		utils.WriteDomainError(w, c.logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, page)
}

func (c *weatherControllerImpl) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, format, err := req.parse()
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	artifact, err := c.exporter.Export(r.Context(), filter, format)
	if err != nil {
		utils.WriteDomainError(w, c.logger, err)
		return
	}
	c.logger.Info("export generated", "id", artifact.ID, "format", artifact.Format)
	utils.WriteJSON(w, http.StatusCreated, artifact)
}

func (c *weatherControllerImpl) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !export.ValidName(name) {
		utils.WriteError(w, http.StatusNotFound, "export not found")
		return
	}
	f, err := c.artifacts.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			utils.WriteError(w, http.StatusNotFound, "export not found")
			return
		}
		c.logger.Error("open export failed", "name", name, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to open export")
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Error("close export failed", "name", name, "error", err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		c.logger.Error("stat export failed", "name", name, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to open export")
		return
	}
	format := types.Format(path.Ext(name)[1:])
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (c *weatherControllerImpl) handleRecentExports(w http.ResponseWriter, r *http.Request) {
	limit, err := parseRecentLimit(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	artifacts, err := c.history.Recent(r.Context(), limit)
	if err != nil {
		c.logger.Error("list exports failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}
	if artifacts == nil {
		artifacts = []types.ExportArtifact{}
	}
	utils.WriteJSON(w, http.StatusOK, artifacts)
}

func (c *weatherControllerImpl) handleIngest(w http.ResponseWriter, r *http.Request) {
	var t types.Telemetry
	if err := utils.DecodeJSON(w, r, &t); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := t.Validate(); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	reading := t.Reading()
	if err := c.store.Insert(r.Context(), reading); err != nil {
		utils.WriteDomainError(w, c.logger, &types.ReadingStoreError{Op: "insert", Err: err})
		return
	}
	metrics.IngestedReadings.WithLabelValues("http").Inc()
	accepted := c.live.OnPush(reading)
	c.logger.Debug("reading ingested", "timestamp", reading.Timestamp, "live", accepted)
	utils.WriteJSON(w, http.StatusCreated, reading)
}

func (c *weatherControllerImpl) handleET0Series(w http.ResponseWriter, r *http.Request) {
	hours, err := parseET0Hours(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	points, err := c.service.ET0Series(r.Context(), hours)
	if err != nil {
		utils.WriteDomainError(w, c.logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, points)
}

func (c *weatherControllerImpl) handleET0Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.service.ET0Summary(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoET0Data) {
			utils.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.WriteDomainError(w, c.logger, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

func (c *weatherControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := c.live.Snapshot()
	data := views.DashboardData{Current: snap.Current}
	if snap.PollError != nil {
		data.PollError = snap.PollError.Error()
	}

	summary, err := c.service.ET0Summary(r.Context())
	switch {
	case err == nil:
		data.ET0 = &summary
	case errors.Is(err, service.ErrNoET0Data):
	default:
		c.logger.Warn("dashboard: et0 summary failed", "error", err)
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, &data); err != nil {
		c.logger.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		c.logger.Error("dashboard: write response failed", "error", err)
	}
}
