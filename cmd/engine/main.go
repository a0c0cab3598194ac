// ==============================================================================
// COMPLIANCE ENGINE - cmd/engine/main.go
// ==============================================================================
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pld/internal/accumulation"
	"pld/internal/alerts"
	"pld/internal/handler"
	"pld/internal/metrics"
	"pld/internal/middleware"
	"pld/internal/operation"
	"pld/internal/pipeline"
	"pld/internal/repository/postgres"
	"pld/internal/scheduler"
	"pld/internal/scoring"
	"pld/internal/uma"
	"pld/pkg/cache"
	"pld/pkg/config"
	"pld/pkg/logger"
	"pld/pkg/validator"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("pld-engine")

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	redisCache := cache.NewFromClient(redisClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The active catalog is loaded once at startup. Publishing a new
	// catalog version requires a restart; engines never see a partially
	// validated catalog.
	catalogRepo := postgres.NewCatalogRepository(db)
	cat, err := catalogRepo.LoadLatest(ctx)
	if err != nil {
		log.Fatal("Failed to load catalog", map[string]interface{}{"error": err.Error()})
	}

	unitValueRepo := postgres.NewUnitValueRepository(db)
	umaService := uma.NewService(unitValueRepo, redisCache, cfg.Engine.UnitValueCacheTTL, log)
	if unitValue, err := umaService.CurrentUnitValue(ctx, time.Now().UTC()); err != nil {
		// Thresholds fall back to the unit values published with the
		// catalog itself.
		log.Warn("No unit value for current fiscal year, using catalog values", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		cat.ApplyUnitValue(unitValue)
	}

	log.Info("Catalog loaded", map[string]interface{}{
		"version":    cat.Version,
		"activities": cat.Activities(),
	})

	operationRepo := postgres.NewOperationRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	engine := scoring.NewEngine(cat)
	monitor := accumulation.NewMonitorWithBreakpoints(cat, accumulation.Breakpoints{
		Progress: cfg.Engine.ProgressBreakpoint,
		Alert:    cfg.Engine.AlertBreakpoint,
	})
	hub := alerts.NewHub(log)

	pipelineService := pipeline.NewService(operationRepo, auditRepo, log)
	operationService := operation.NewService(operationRepo, auditRepo, engine, monitor, cat, hub, log)

	sweeper := scheduler.NewSweeper(
		operationRepo,
		monitor,
		pipelineService,
		hub,
		redisCache,
		cfg.Engine.AccumulationCacheTTL,
		cfg.Engine.SweepInterval,
		log,
	)
	if cfg.Engine.SweepEnabled {
		sweeper.Start()
		defer sweeper.Stop()
	}

	v := validator.New()
	operationHandler := handler.NewOperationHandler(operationService, pipelineService, auditRepo, v, log)
	accumulationHandler := handler.NewAccumulationHandler(operationService, sweeper, log)
	catalogHandler := handler.NewCatalogHandler(cat, log)
	alertsHandler := handler.NewAlertsHandler(hub, log)
	systemHandler := handler.NewSystemHandler(db, cat, log)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	loggingMiddleware := middleware.NewLoggingMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(redisClient, 100, time.Minute)

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.CorrelationID)
	router.Use(middleware.SecurityHeaders)
	router.Use(metrics.Middleware)
	router.Use(loggingMiddleware.Log)
	router.Use(middleware.BodyLimit(1 << 20))

	router.HandleFunc("/health", systemHandler.Health).Methods("GET")
	router.HandleFunc("/ready", systemHandler.Ready).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Authentication runs first so the rate limiter can key on the actor
	// identity instead of the shared client IP.
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)
	api.Use(rateLimiter.Limit)

	api.HandleFunc("/operations", operationHandler.Ingest).Methods("POST")
	api.HandleFunc("/operations", operationHandler.List).Methods("GET")
	api.HandleFunc("/operations/{id}", operationHandler.Get).Methods("GET")
	api.HandleFunc("/operations/{id}/audit", operationHandler.Audit).Methods("GET")

	officer := middleware.RequireRole(middleware.RoleComplianceOfficer)
	api.Handle("/operations/{id}/review", officer(http.HandlerFunc(operationHandler.MarkReviewed))).Methods("POST")
	api.Handle("/operations/{id}/escalate", officer(http.HandlerFunc(operationHandler.Escalate))).Methods("POST")

	admin := middleware.RequireRole(middleware.RoleAdmin)
	api.Handle("/operations/{id}/report", admin(http.HandlerFunc(operationHandler.MarkReported))).Methods("POST")

	api.HandleFunc("/clients/{rfc}/accumulation", accumulationHandler.ClientAccumulation).Methods("GET")
	api.HandleFunc("/accumulations", accumulationHandler.ListAccumulations).Methods("GET")
	api.HandleFunc("/summary", accumulationHandler.Summary).Methods("GET")

	api.HandleFunc("/catalog/activities", catalogHandler.ListActivities).Methods("GET")
	api.HandleFunc("/catalog/activities/{type}", catalogHandler.GetActivity).Methods("GET")

	api.HandleFunc("/alerts/stream", alertsHandler.Stream).Methods("GET")

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Compliance engine listening", map[string]interface{}{
			"addr":            server.Addr,
			"catalog_version": cat.Version,
			"sweep_enabled":   cfg.Engine.SweepEnabled,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down", nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
