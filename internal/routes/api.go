package routes

import (
	"counselmeet/internal/config"
	"counselmeet/internal/handlers"
	"counselmeet/internal/middleware"
	"counselmeet/internal/models"
	"counselmeet/internal/repository"
	"counselmeet/internal/services"
	"counselmeet/internal/websocket"

	"github.com/gin-gonic/gin"
)

// Dependencies is everything the HTTP layer needs
type Dependencies struct {
	Config      *config.Config
	Tokens      middleware.TokenValidator
	RateLimiter *middleware.RateLimiter
	Meetings    *services.MeetingService
	Ratings     *services.RatingService
	Reconciler  *services.Reconciler
	Counselors  repository.CounselorRepository
	Hub         *websocket.Hub
}

func SetupRoutes(router *gin.Engine, d Dependencies) {
	cfg := d.Config

	// Initialize handlers with dependencies
	meetingHandler := handlers.NewMeetingHandler(d.Meetings)
	ratingHandler := handlers.NewRatingHandler(d.Ratings)
	adminHandler := handlers.NewAdminHandler(d.Reconciler, d.Counselors, d.Hub)
	healthHandler := handlers.NewHealthHandler(cfg.App, cfg.Database.Driver, d.Hub)

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORS))
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	if d.RateLimiter != nil {
		router.Use(middleware.RateLimit(cfg.Security.RateLimit, d.RateLimiter))
	}

	// Health check
	router.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.JWTAuth(d.Tokens))
	{
		meetings := v1.Group("/meetings")
		{
			meetings.POST("", meetingHandler.CreateMeeting)
			meetings.GET("", meetingHandler.ListMeetings)
			meetings.GET("/:id", meetingHandler.GetMeeting)

			// Booking
			meetings.POST("/:id/assign", middleware.RequireRole(models.RoleAdmin), meetingHandler.AssignCounselor)
			meetings.POST("/:id/select-time", meetingHandler.SelectTime)
			meetings.POST("/:id/accept", meetingHandler.AcceptMeeting)
			meetings.POST("/:id/cancel", meetingHandler.CancelMeeting)

			// Outcomes
			meetings.POST("/:id/no-show", meetingHandler.ReportNoShow)
			meetings.POST("/:id/complete", meetingHandler.CompleteMeeting)
			meetings.POST("/:id/rating", ratingHandler.SubmitRating)

			// Attendance
			meetings.POST("/:id/join", meetingHandler.JoinMeeting)
			meetings.POST("/:id/leave", meetingHandler.LeaveMeeting)
			meetings.GET("/:id/token", meetingHandler.GetMeetingToken)
		}

		v1.GET("/counselors/:id/slots", meetingHandler.GetAvailableSlots)
		v1.GET("/history", ratingHandler.GetHistory)

		SetupAdminRoutes(v1, adminHandler)
	}

	SetupWebSocketRoutes(router, d)
}
