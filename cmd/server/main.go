package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"counselmeet/internal/clock"
	"counselmeet/internal/config"
	"counselmeet/internal/middleware"
	"counselmeet/internal/repository"
	"counselmeet/internal/routes"
	"counselmeet/internal/services"
	"counselmeet/internal/utils"
	"counselmeet/internal/websocket"
	"counselmeet/pkg/database"
	"counselmeet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg := config.Load()
	cfg.ApplyEnvironmentOverrides()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize logger
	logger.Init(logger.Config{
		Level:       logger.ParseLevel(cfg.Logging.Level),
		Format:      logger.LogFormat(cfg.Logging.Format),
		Output:      cfg.Logging.Output,
		Development: cfg.App.Debug,
	})
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	policy := cfg.Meetings
	clk := clock.Real()
	notifications := services.NewNotificationService(policy.NotifyTimeout,
		services.LogDispatcher{},
		services.PushDispatcher{Publisher: hub},
	)
	ratings := services.NewRatingService(stores, clk)
	meetings := services.NewMeetingService(services.MeetingServiceDeps{
		Stores:   stores,
		Slots:    services.NewSlotService(stores.Meetings, stores.Counselors, policy.SlotInterval, policy.MinAdvanceNotice),
		Ratings:  ratings,
		Video:    services.NewVideoProvisioner(cfg.Video, policy.JoinLeadTime),
		Notifier: notifications,
		Presence: hub,
		Clock:    clk,
		Policy:   policy,
	})
	reconciler := services.NewReconciler(meetings, policy.ReconcileInterval, policy.OverdueAfter, policy.ReconcileBatchSize)
	reconciler.Start()

	limiter := middleware.NewRateLimiter(cfg.Security.RateLimit.Requests, cfg.Security.RateLimit.Window)
	limiter.StartCleanup()

	// Initialize Gin router
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	routes.SetupRoutes(router, routes.Dependencies{
		Config:      cfg,
		Tokens:      utils.NewTokenIssuer(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, time.Duration(cfg.Security.JWT.ExpiryHour)*time.Hour),
		RateLimiter: limiter,
		Meetings:    meetings,
		Ratings:     ratings,
		Reconciler:  reconciler,
		Counselors:  stores.Counselors,
		Hub:         hub,
	})

	srv := &http.Server{
		Addr:           net.JoinHostPort(cfg.Server.HTTP.Host, cfg.Server.HTTP.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.HTTP.ReadTimeout,
		WriteTimeout:   cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:    cfg.Server.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.Server.HTTP.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("server starting on %s (store=%s, video=%s)", srv.Addr, cfg.Database.Driver, cfg.Video.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "HTTP server shutdown", nil)
	}

	reconciler.Stop()
	limiter.Stop()
	stopHub()
	notifications.Wait()

	if cfg.Database.Driver == config.StoreMongo {
		if err := database.Disconnect(shutdownCtx); err != nil {
			logger.LogError(err, "MongoDB disconnect", nil)
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config) (repository.Stores, error) {
	if cfg.Database.Driver == config.StoreMemory {
		logger.Warnf("using the in-memory store; data is lost on restart")
		return repository.NewMemory(), nil
	}

	db, err := database.InitMongoDB(cfg.Database.MongoDB)
	if err != nil {
		return repository.Stores{}, err
	}
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return repository.Stores{}, err
	}
	return repository.NewMongo(db, cfg.Database.MongoDB.OperationTimeout), nil
}
