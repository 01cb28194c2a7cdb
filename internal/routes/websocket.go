package routes

import (
	"counselmeet/internal/handlers"
	"counselmeet/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupWebSocketRoutes(router *gin.Engine, d Dependencies) {
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.Config.Server.WebSocket, d.Config.Server.CORS)

	router.GET("/ws", middleware.WebSocketAuth(d.Tokens), wsHandler.HandlePresence)
}
