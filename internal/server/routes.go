package server

import (
	"log/slog"
	"net/http"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	gameHandlers "github.com/JTTrickZ/hexgame-main/internal/game/handlers"
	"github.com/JTTrickZ/hexgame-main/internal/kv"
	lobbyHandlers "github.com/JTTrickZ/hexgame-main/internal/lobby/handlers"
	"github.com/JTTrickZ/hexgame-main/internal/player"
	playerHandlers "github.com/JTTrickZ/hexgame-main/internal/player/handlers"
	"github.com/JTTrickZ/hexgame-main/internal/room"
	serverHandlers "github.com/JTTrickZ/hexgame-main/internal/server/handlers"
)

type Routes struct {
	store         kv.Store
	playerService *player.Service
	gameService   *game.Service
	hub           *room.Hub
	staticDir     string
	logger        *slog.Logger
}

func NewRoutes(store kv.Store, playerService *player.Service, gameService *game.Service, hub *room.Hub, staticDir string, logger *slog.Logger) *Routes {
	return &Routes{
		store:         store,
		playerService: playerService,
		gameService:   gameService,
		hub:           hub,
		staticDir:     staticDir,
		logger:        logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.store, r.hub)
	registerHandler := playerHandlers.NewRegisterHandler(r.playerService)
	colorHandler := playerHandlers.NewColorHandler(r.playerService)
	joinHandler := lobbyHandlers.NewJoinHandler(r.playerService, r.hub)
	historyHandler := gameHandlers.NewHistoryHandler(r.gameService)

	// API endpoints
	mux.Handle("/health", healthHandler)
	mux.Handle("/api/register", registerHandler)
	mux.Handle("/api/player/color", colorHandler)
	mux.Handle("/api/lobby/join", joinHandler)
	mux.Handle("/api/history", historyHandler)

	// Realtime endpoint
	mux.HandleFunc("/ws/{roomId}", r.hub.ServeWS)

	// Client bundle
	mux.Handle("/", http.FileServer(http.Dir(r.staticDir)))

	logger.Info("Routes configured successfully",
		"api_endpoints", []string{"/api/register", "/api/player/color", "/api/lobby/join", "/api/history"},
		"realtime_endpoints", []string{"/ws/{roomId}"},
		"health_endpoint", "/health",
		"static_dir", r.staticDir,
	)

	return mux
}
