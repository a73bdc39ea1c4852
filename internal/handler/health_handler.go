// internal/handler/health_handler.go

package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

// ConnectivityChecker reports whether a collaborator is reachable.
type ConnectivityChecker interface {
	Health(ctx context.Context) error
}

// mqttStatus matches the MQTT client's connection probe.
type mqttStatus interface {
	IsConnected() bool
}

type HealthHandler struct {
	db   ConnectivityChecker
	mqtt mqttStatus
	log  *zap.Logger
}

func NewHealthHandler(db ConnectivityChecker, mqtt mqttStatus, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, mqtt: mqtt, log: log}
}

// Check handles GET /health. Degraded collaborators turn the status to
// "degraded" with a 503 so load balancers rotate the instance out.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}
	resp.Services.Database = h.db.Health(ctx) == nil
	resp.Services.MQTT = h.mqtt == nil || h.mqtt.IsConnected()

	status := http.StatusOK
	if !resp.Services.Database || !resp.Services.MQTT {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, resp)
}
