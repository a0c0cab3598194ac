package handler

import (
	"net/http"

	"pld/internal/alerts"
	"pld/pkg/logger"

	"github.com/gorilla/websocket"
)

type AlertsHandler struct {
	hub      *alerts.Hub
	upgrader websocket.Upgrader
	logger   logger.Logger
}

func NewAlertsHandler(hub *alerts.Hub, log logger.Logger) *AlertsHandler {
	return &AlertsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from a different origin in deployment;
			// auth happens at the token layer before the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream handles GET /api/v1/alerts/stream, upgrading the connection and
// attaching it to the alert hub.
func (h *AlertsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	h.hub.Subscribe(conn)
}
