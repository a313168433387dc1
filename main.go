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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/threads/agent"
	"github.com/xiaot623/threads/api"
	"github.com/xiaot623/threads/auth"
	"github.com/xiaot623/threads/config"
	"github.com/xiaot623/threads/hub"
	"github.com/xiaot623/threads/policy"
	"github.com/xiaot623/threads/ratelimit"
	"github.com/xiaot623/threads/service"
	"github.com/xiaot623/threads/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting thread service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL, store.Options{
		InactivityThreshold: cfg.InactivityThreshold,
	})
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize rate limiter
	limiter := ratelimit.New(ratelimit.Config{
		PerMinute:         cfg.RateLimitPerMinute,
		PerHour:           cfg.RateLimitPerHour,
		MaxActiveSessions: cfg.MaxActiveSessions,
	})

	// Initialize admission policy
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize responder
	var responder agent.Responder
	if cfg.ResponderURL != "" {
		responder = agent.NewClient(cfg.ResponderURL, cfg.ResponderTimeout)
		log.Printf("Responder: %s", cfg.ResponderURL)
	} else {
		responder = agent.NewMockResponder()
		log.Printf("WARN: no responder configured, using mock")
	}

	// Initialize message fanout
	h := hub.New()

	// Initialize service
	svc := service.New(db, limiter, policyEngine, responder, h, cfg)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	svc.StartSweeper(sweepCtx)

	// Initialize handler
	handler := api.NewHandler(svc, auth.NewStaticValidator(cfg.APIKeys), h)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down thread service...")
	stopSweep()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Thread service stopped")
}
