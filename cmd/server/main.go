package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/auth"
	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/kv"
	"github.com/JTTrickZ/hexgame-main/internal/lobby"
	"github.com/JTTrickZ/hexgame-main/internal/middleware"
	"github.com/JTTrickZ/hexgame-main/internal/player"
	"github.com/JTTrickZ/hexgame-main/internal/room"
	"github.com/JTTrickZ/hexgame-main/internal/server"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
	"github.com/JTTrickZ/hexgame-main/internal/shared/logger"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := config.Init(); err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	logger.Init()

	cfg := config.GlobalConfig
	log := slog.With("component", "main")

	// The signal context doubles as the lifetime of every room loop.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kv.Connect()
	if err != nil {
		log.Error("Failed to connect to KV store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	authService := auth.NewService(cfg.Auth.TokenSecret)

	playerRepo := player.NewRepository(store)
	playerService := player.NewService(playerRepo, authService, cfg.Game.PlayerColors, slog.Default())

	gameRepo := game.NewRepository(store, slog.Default())
	gameService := game.NewService(gameRepo, cfg.Game, slog.Default())

	lobbyRepo := lobby.NewRepository(store)

	hub := room.NewHub(ctx, cfg, store, gameService, lobbyRepo, playerService)

	routes := server.NewRoutes(store, playerService, gameService, hub, cfg.Server.StaticDir, slog.Default())
	mux := routes.Setup()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:           cfg.RateLimit.Enabled,
		TrustProxy:        cfg.RateLimit.TrustProxy,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
	})
	corsMiddleware := middleware.NewCORS()
	handler := corsMiddleware.Middleware(rateLimiter.Middleware(mux))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Error("Server failed", "error", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		}
	}

	hub.Shutdown()
	log.Info("Server stopped")
}
