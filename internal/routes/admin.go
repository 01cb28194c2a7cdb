package routes

import (
	"counselmeet/internal/handlers"
	"counselmeet/internal/middleware"
	"counselmeet/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupAdminRoutes mounts the admin API under an authenticated group
func SetupAdminRoutes(parent *gin.RouterGroup, adminHandler *handlers.AdminHandler) {
	admin := parent.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.Use(middleware.AdminActivityLogger())
	{
		admin.POST("/reconcile", adminHandler.Reconcile)
		admin.GET("/realtime", adminHandler.GetRealtimeStats)
		admin.GET("/presence/:id", adminHandler.GetOnlineStatus)
		admin.GET("/counselors/:id", adminHandler.GetCounselorStats)
	}
}
