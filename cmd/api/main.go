package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tutorhub/internal/api"
	"tutorhub/internal/config"
	"tutorhub/internal/httpmiddleware"
	"tutorhub/internal/notify"
	"tutorhub/internal/profile"
	"tutorhub/internal/scheduling"
	"tutorhub/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	sessions, profiles, err := buildStores(cfg, db, err)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisTimeout)

	clock, err := scheduling.NewClock(cfg.CanonicalTZ)
	if err != nil {
		return err
	}

	var notifier notify.Notifier
	switch {
	case cfg.NotifyWebhook != "":
		notifier = notify.NewWebhook(cfg.NotifyWebhook)
	case cfg.NotifyBackend == "memory":
		notifier = notify.NewMemory()
	default:
		notifier = notify.NewRedis(redisClient.Client, "tutorhub:notifications")
	}

	conflicts := scheduling.NewConflictChecker(sessions)
	machine := scheduling.NewMachine(sessions, profiles, notifier, clock, cfg.TrainingPoints)
	registrar := scheduling.NewRegistrar(sessions, conflicts, machine, notifier, clock)
	service := scheduling.NewService(sessions, conflicts, registrar, machine, notifier, clock)
	sweeper := scheduling.NewSweeper(sessions, machine, clock, cfg.NoShowGrace)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	handler := api.New(service, sweeper, profiles, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	handler.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// buildStores picks the session and profile stores for this deployment.
// The sweeper process always works against Postgres, so serving from
// in-memory stores would split the two processes onto different data;
// that mode is allowed in dev only, and a prod boot without a reachable
// database fails instead.
func buildStores(cfg config.App, db *store.DB, connErr error) (scheduling.Repository, profile.Store, error) {
	if connErr != nil {
		if !cfg.Dev() {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", connErr)
		}
		log.Printf("warning: db not reachable, using in-memory stores (dev only): %v", connErr)
		return scheduling.NewMemoryRepository(), profile.NewMemoryStore(), nil
	}
	return scheduling.NewPostgresRepository(db.Client), profile.NewPostgresStore(db.Client), nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
