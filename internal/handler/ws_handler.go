// internal/handler/ws_handler.go

package handler

import (
	"net/http"

	"go.uber.org/zap"

	"vitalwatch/internal/apperrors"
	"vitalwatch/internal/middleware"
	"vitalwatch/internal/websocket"
)

type WebsocketHandler struct {
	registry *websocket.Registry
	log      *zap.Logger
}

func NewWebsocketHandler(registry *websocket.Registry, log *zap.Logger) *WebsocketHandler {
	return &WebsocketHandler{registry: registry, log: log}
}

// Serve upgrades GET /ws into a registered live connection.
func (h *WebsocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondError(w, h.log, apperrors.Unauthorized("no verified caller"))
		return
	}

	websocket.ServeWs(h.registry, identity, w, r, h.log)
}
