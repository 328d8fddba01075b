package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BizNestAI/bizzy-sub000/internal/api/handlers"
	"github.com/BizNestAI/bizzy-sub000/internal/api/middleware"
	"github.com/BizNestAI/bizzy-sub000/internal/api/routes"
	"github.com/BizNestAI/bizzy-sub000/internal/domain/calendar"
	"github.com/BizNestAI/bizzy-sub000/internal/domain/events"
	"github.com/BizNestAI/bizzy-sub000/internal/infrastructure/cache"
	"github.com/BizNestAI/bizzy-sub000/internal/infrastructure/persistence/connection"
	"github.com/BizNestAI/bizzy-sub000/internal/infrastructure/persistence/migrations"
	"github.com/BizNestAI/bizzy-sub000/internal/infrastructure/persistence/sessions"
	"github.com/BizNestAI/bizzy-sub000/internal/infrastructure/scheduler"
	"github.com/BizNestAI/bizzy-sub000/pkg/config"
	"github.com/BizNestAI/bizzy-sub000/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// @title           Business Calendar API
// @version         1.0
// @description     Calendar views, event reconciliation and drag rescheduling for the business dashboard.
// @host      localhost:8000
// @BasePath

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("") // Empty string will make it search in default locations
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	log := logger.NewLoggerWithConfig(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	log.Info("Configuration loaded successfully",
		zap.String("mode", cfg.Server.Mode),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("session_store", cfg.Calendar.SessionStore),
		zap.Bool("fallback_allowed", cfg.Calendar.FallbackAllowed),
		zap.Bool("demo_mode", cfg.Calendar.DemoMode),
	)

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	if err := middleware.RegisterValidators(); err != nil {
		log.Fatal("Failed to register request validators", zap.Error(err))
	}

	// Connect to database
	db, err := connection.NewDatabase(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run database migrations
	if err := migrations.AutoMigrate(db, log.Logger); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Redis carries session state (when selected) and change broadcasts.
	var redisClient *cache.RedisClient
	redisClient, err = cache.NewRedisClient(cache.NewConfigFromEnv(cfg))
	if err != nil {
		if cfg.Calendar.SessionStore == "redis" {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Warn("Redis unavailable, calendar changes will not be broadcast", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	store, snapshots, err := newSessionStore(cfg, db, redisClient)
	if err != nil {
		log.Fatal("Failed to initialize session store", zap.Error(err))
	}

	blueprints := calendar.DefaultBlueprints
	if cfg.Calendar.BlueprintsFile != "" {
		blueprints, err = calendar.LoadBlueprints(cfg.Calendar.BlueprintsFile)
		if err != nil {
			log.Fatal("Failed to load mock blueprints", zap.Error(err))
		}
		log.Info("Loaded mock blueprints",
			zap.String("file", cfg.Calendar.BlueprintsFile),
			zap.Int("count", len(blueprints)))
	}

	// Initialize calendar engine
	synth := calendar.NewSynthesizer(blueprints, calendar.NewHashGenerator(cfg.Calendar.MockSeed))
	reconciler := calendar.NewReconciler(
		calendar.NewRepository(db.DB),
		store,
		synth,
		calendar.ReconcilerConfig{
			FallbackAllowed: cfg.Calendar.FallbackAllowed,
			DemoMode:        cfg.Calendar.DemoMode,
		},
		log.Logger,
	)

	var publisher calendar.ChangePublisher
	if redisClient != nil {
		publisher = redisClient
	}
	calendarService := calendar.NewService(reconciler, publisher, calendar.Settings{
		WeekStart: calendar.ParseWeekday(cfg.Calendar.WeekStart),
		Layout: calendar.LayoutConfig{
			HourHeight:   cfg.Calendar.HourHeight,
			DayStartHour: cfg.Calendar.DayStartHour,
			DayEndHour:   cfg.Calendar.DayEndHour,
			MinHeight:    cfg.Calendar.MinEventHeight,
			Gap:          cfg.Calendar.LayoutGap,
		},
		DragTimeout: cfg.Calendar.DragTimeout,
	}, log.Logger)

	// Initialize and start the scheduler
	var purger scheduler.Purger
	if snapshots != nil {
		purger = snapshots
	}
	reaper, err := scheduler.NewScheduler(calendarService, purger, cfg.Calendar.ReaperSchedule, log)
	if err != nil {
		log.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	reaper.Start()
	defer reaper.Stop()

	ctx, stopListening := context.WithCancel(context.Background())
	defer stopListening()
	if redisClient != nil {
		go func() {
			err := redisClient.SubscribeToCalendarChanges(ctx, func(change events.CalendarChange) error {
				log.Debug("Calendar change",
					zap.String("action", change.Action),
					zap.String("business_id", change.BusinessID),
					zap.String("event_id", change.EventID))
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Calendar change listener stopped", zap.Error(err))
			}
		}()
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware(log))
	router.Use(middleware.CollectMetrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORS.AllowedOrigins,
		AllowMethods: cfg.CORS.AllowedMethods,
		AllowHeaders: append(cfg.CORS.AllowedHeaders,
			"Accept-Encoding",
			"Content-Type",
			middleware.BusinessHeader,
			handlers.ClientHeader,
		),
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Encoding",
			"Content-Disposition",
		},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	// Add Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check routes (no /api prefix as these are system endpoints)
	if redisClient != nil {
		routes.SetupHealthRoutes(router, db, redisClient)
	} else {
		routes.SetupHealthRoutes(router, db, nil)
	}

	calendarHandler := handlers.NewCalendarHandler(calendarService, log)
	routes.NewCalendarRoutes(calendarHandler).RegisterRoutes(router)
	log.Info("Registered calendar routes at /api/calendar")

	// Start server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info(fmt.Sprintf("Server starting on port %d", cfg.Server.Port))

		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.HTTPSCertFile, cfg.Server.HTTPSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("Shutting down server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited properly")
}

// newSessionStore picks the session state backend. The snapshot store is
// returned separately so the scheduler can purge it.
func newSessionStore(cfg *config.Config, db *connection.Database, redisClient *cache.RedisClient) (calendar.SessionStore, *sessions.SnapshotStore, error) {
	switch cfg.Calendar.SessionStore {
	case "redis":
		if redisClient == nil {
			return nil, nil, errors.New("redis session store selected but redis is unavailable")
		}
		return cache.NewSessionStore(redisClient, cfg.Calendar.SessionTTL), nil, nil
	case "postgres", "database":
		snapshots := sessions.NewSnapshotStore(db.DB, cfg.Calendar.SessionTTL)
		return snapshots, snapshots, nil
	case "memory":
		return calendar.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Calendar.SessionStore)
	}
}
