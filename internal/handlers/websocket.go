package handlers

import (
	"net/http"

	"counselmeet/internal/config"
	"counselmeet/internal/websocket"
	"counselmeet/pkg/logger"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
}

func NewWebSocketHandler(hub *websocket.Hub, wsCfg config.WebSocketConfig, cors config.CORSConfig) *WebSocketHandler {
	allowed := make(map[string]bool, len(cors.AllowedOrigins))
	for _, origin := range cors.AllowedOrigins {
		allowed[origin] = true
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  wsCfg.ReadBufferSize,
			WriteBufferSize: wsCfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				if !wsCfg.CheckOrigin || allowed["*"] {
					return true
				}
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin
				return origin == "" || allowed[origin]
			},
		},
	}
}

// HandlePresence upgrades an authenticated request to the presence channel
func (h *WebSocketHandler) HandlePresence(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger.WithField("error", err.Error()).Warn("Failed to upgrade WebSocket connection")
		return
	}

	client := websocket.NewClient(conn, h.hub, p.UserID, p.Role)
	client.IP = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	if !h.hub.Register(client) {
		conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	logger.LogUserAction(p.UserID, "websocket_connected", map[string]interface{}{
		"ip":         client.IP,
		"user_agent": client.UserAgent,
		"client_id":  client.ID,
	})

	go client.WritePump()
	go client.ReadPump()
}
