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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/licenseguard/licenseguard/internal/config"
	"github.com/licenseguard/licenseguard/internal/database"
	"github.com/licenseguard/licenseguard/internal/handlers"
	"github.com/licenseguard/licenseguard/internal/logger"
	"github.com/licenseguard/licenseguard/internal/repositories"
	"github.com/licenseguard/licenseguard/internal/services"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("failed to create postgres pool", zap.Error(err))
	}
	defer postgresPool.Close()

	if err := database.Migrate(ctx, postgresPool); err != nil {
		zl.Fatal("failed to migrate schema", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zl.Fatal("failed to create redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// Wire repositories and services
	accountRepo := repositories.NewPostgresAccountRepository(postgresPool)
	deviceRepo := repositories.NewPostgresDeviceRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)

	registry := services.NewRegistryService(accountRepo, deviceRepo, cfg.MaxDevices, cfg.StorageTimeout, zl)
	sessions := services.NewSessionService(sessionRepo, accountRepo, cfg.JWTSecret, cfg.SessionValidity, cfg.StorageTimeout, zl)

	handler := handlers.NewHandler(registry, sessions, zl)

	// Initialize HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	// Health check endpoints
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler.Routes(router)

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		zl.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	zl.Info("starting server", zap.String("port", cfg.ServerPort))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		zl.Fatal("server error", zap.Error(err))
	}

	zl.Info("server stopped gracefully")
}
