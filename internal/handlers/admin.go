package handlers

import (
	"errors"
	"net/http"

	"counselmeet/internal/repository"
	"counselmeet/internal/services"
	"counselmeet/internal/utils"
	"counselmeet/internal/websocket"
	"counselmeet/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	reconciler *services.Reconciler
	counselors repository.CounselorRepository
	hub        *websocket.Hub
}

func NewAdminHandler(reconciler *services.Reconciler, counselors repository.CounselorRepository, hub *websocket.Hub) *AdminHandler {
	return &AdminHandler{
		reconciler: reconciler,
		counselors: counselors,
		hub:        hub,
	}
}

// Reconcile runs one reconciler pass immediately
func (h *AdminHandler) Reconcile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	report := h.reconciler.Tick(c.Request.Context())

	logger.LogAdminAction(p.UserID, "reconcile", "meetings", map[string]interface{}{
		"grace_resolved":   report.GraceResolved,
		"overdue_resolved": report.OverdueResolved,
		"expired":          report.Expired,
		"failed":           report.Failed,
	})
	utils.SuccessResponseWithMessage(c, "Reconciliation completed", report)
}

// GetCounselorStats returns a counselor's full record including counters
func (h *AdminHandler) GetCounselorStats(c *gin.Context) {
	counselor, err := h.counselors.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Counselor not found")
			return
		}
		ServiceErrorResponse(c, err, "get counselor")
		return
	}
	utils.SuccessResponse(c, counselor)
}

// GetRealtimeStats reports presence channel activity
func (h *AdminHandler) GetRealtimeStats(c *gin.Context) {
	utils.SuccessResponse(c, gin.H{
		"presence":     h.hub.GetStats(),
		"online_users": h.hub.GetOnlineUsers(),
	})
}

// GetOnlineStatus tells whether a user currently holds a presence connection
func (h *AdminHandler) GetOnlineStatus(c *gin.Context) {
	userID := c.Param("id")
	utils.SuccessResponse(c, gin.H{
		"user_id": userID,
		"online":  h.hub.IsUserOnline(userID),
	})
}
