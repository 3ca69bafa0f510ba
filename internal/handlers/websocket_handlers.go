package handlers

import (
	"net/http"

	ws "session-tracker/internal/websocket"
	"session-tracker/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWebSocketHandlers(hub *ws.Hub) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade connection to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	// Register with the hub and start client pumps
	if _, err := h.hub.Attach(conn); err != nil {
		logger.Error("Error attaching connection: %v", err)
	}
}
