package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chatopsmvp/chatops-be/internal/api/middleware"
	"github.com/chatopsmvp/chatops-be/internal/config"
	"github.com/chatopsmvp/chatops-be/internal/logging"
	"github.com/chatopsmvp/chatops-be/internal/relay"
	"github.com/chatopsmvp/chatops-be/internal/ws"
)

func main() {
	// Load environment variables
	godotenv.Load()

	cfg := config.Load()
	log := logging.Init(cfg.LogLevel)
	defer log.Sync()

	// Resolve the provider once at startup.
	selection := relay.Select(cfg)
	log.Infow("provider selected", "provider", selection.Name)

	chatHandler := relay.NewHandler(selection, cfg.APITimeout, cfg.StreamTimeout, log)
	wsHandler := ws.NewChatHandler(selection, cfg.APITimeout, cfg.StreamTimeout, cfg.RateLimitPerMinute, cfg.CORSAllowOrigins, log)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(log))
	router.Use(middleware.CORS(cfg.CORSAllowOrigins))
	router.Use(middleware.PerIP(cfg.RateLimitPerMinute))

	started := time.Now()

	// Health check
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"provider": chatHandler.Provider(),
			"uptime":   time.Since(started).Round(time.Second).String(),
		})
	})

	router.POST("/api/v1/chat", chatHandler.HandleChat)

	// WebSocket chat route
	router.GET("/ws/chat", wsHandler.HandleChat)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting",
			"port", cfg.Port,
			"provider", selection.Name,
			"rate_limit_per_minute", cfg.RateLimitPerMinute,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
