package handlers

import (
	"net/http"
	"time"

	"counselmeet/internal/config"
	"counselmeet/internal/websocket"
	"counselmeet/pkg/database"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	app     config.AppConfig
	driver  string
	hub     *websocket.Hub
	started time.Time
}

func NewHealthHandler(app config.AppConfig, driver string, hub *websocket.Hub) *HealthHandler {
	return &HealthHandler{app: app, driver: driver, hub: hub, started: time.Now()}
}

// Health reports liveness plus the store and presence status. It answers
// 503 when the configured database cannot be reached.
func (h *HealthHandler) Health(c *gin.Context) {
	store := map[string]interface{}{"status": "connected", "driver": h.driver}
	if h.driver == config.StoreMongo {
		store = database.HealthCheck(c.Request.Context())
		store["driver"] = h.driver
	}

	status, code := "ok", http.StatusOK
	if store["status"] != "connected" {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":   status,
		"service":  h.app.Name,
		"version":  h.app.Version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"database": store,
		"presence": h.hub.GetStats(),
	})
}
