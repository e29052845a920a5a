package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	internalhttp "github.com/HariBote1110/serveye/internal/api/http"
	"github.com/HariBote1110/serveye/internal/auth"
	"github.com/HariBote1110/serveye/internal/db"
	"github.com/HariBote1110/serveye/internal/gateway"
	"github.com/HariBote1110/serveye/internal/notify"
	"github.com/HariBote1110/serveye/internal/tokens"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Serveye Server", "version", AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := buildTokenStore(ctx)
	if err != nil {
		slog.Error("Failed to set up token store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	tokenRegistry := tokens.NewRegistry(store)
	tokenRegistry.Load(ctx)

	authService, err := auth.NewService(
		auth.Config{Secret: config.Auth.JWTSecret, ExpiryHours: config.Auth.ExpiryHours},
		config.Auth.OperatorUsername,
		config.Auth.OperatorPassword,
	)
	if err != nil {
		slog.Error("Failed to set up operator auth", "error", err)
		os.Exit(1)
	}

	gw := gateway.New(gateway.Config{
		HeartbeatInterval: time.Duration(config.Gateway.HeartbeatIntervalSeconds) * time.Second,
		RequestTimeout:    time.Duration(config.Gateway.RequestTimeoutSeconds) * time.Second,
	}, tokenRegistry, notify.FromConfig(config.Notify.WebhookURL))
	go gw.Start(ctx)

	services := &internalhttp.Services{
		AuthService:   authService,
		TokenRegistry: tokenRegistry,
		Gateway:       gw,
		JWTSecret:     config.Auth.JWTSecret,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down servers...")

	var wg sync.WaitGroup
	shutdownTimeout := 10 * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		gw.Stop()
		slog.Info("Session gateway stopped")
	}()

	wg.Wait()
	slog.Info("Shutdown complete")
}

// buildTokenStore picks the configured backing store. The returned
// cleanup closes whatever the store holds open.
func buildTokenStore(ctx context.Context) (tokens.Store, func(), error) {
	switch config.Tokens.Store {
	case "", "file":
		path := config.Tokens.FilePath
		if path == "" {
			path = "tokens.json"
		}
		slog.Info("Using file token store", "path", path)
		return tokens.NewFileStore(path), func() {}, nil

	case "postgres":
		if config.Tokens.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("tokens.database_url is required for the postgres store")
		}
		if err := db.RunMigrations(config.Tokens.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		pool, err := db.Connect(ctx, config.Tokens.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using postgres token store")
		return tokens.NewPostgresStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown token store: %s", config.Tokens.Store)
	}
}
