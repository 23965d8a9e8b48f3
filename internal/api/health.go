package api

import (
	"context"
	"net/http"
	"time"

	"github.com/snarg/whisper-remote/internal/watch"
)

// HealthChecker is satisfied by *database.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionChecker is satisfied by *mqttclient.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// WatcherStatusFunc reports the directory watcher's state.
type WatcherStatusFunc func() watch.Status

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Watcher       *watch.Status     `json:"watcher,omitempty"`
}

type HealthHandler struct {
	db        HealthChecker
	mqtt      ConnectionChecker
	watcher   WatcherStatusFunc
	version   string
	startTime time.Time
}

func NewHealthHandler(db HealthChecker, mqtt ConnectionChecker, watcher WatcherStatusFunc, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		watcher:   watcher,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Database check
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	// File watcher check
	if h.watcher != nil {
		ws := h.watcher()
		checks["file_watcher"] = ws.Status
		resp.Watcher = &ws
	}

	WriteJSON(w, httpStatus, resp)
}
