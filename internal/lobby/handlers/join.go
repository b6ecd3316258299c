package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JTTrickZ/hexgame-main/internal/player"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
	"github.com/JTTrickZ/hexgame-main/internal/shared/response"
)

type JoinRequest struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
}

type JoinResponse struct {
	LobbyID string `json:"lobbyId"`
}

// Matchmaker finds or creates the lobby a joining player should dial.
type Matchmaker interface {
	FindOrCreateLobby(ctx context.Context) (string, error)
}

type JoinHandler struct {
	players    *player.Service
	matchmaker Matchmaker
}

func NewJoinHandler(players *player.Service, matchmaker Matchmaker) *JoinHandler {
	return &JoinHandler{players: players, matchmaker: matchmaker}
}

func (h *JoinHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "lobby_join")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
		return
	}

	if req.PlayerID == "" || !h.players.VerifyToken(req.PlayerID, req.Token) {
		response.Error(w, r, logger, errors.Unauthorized("invalid token"))
		return
	}

	lobbyID, err := h.matchmaker.FindOrCreateLobby(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	logger.Info("Player matched into lobby", "player_id", req.PlayerID, "lobby_id", lobbyID)
	response.Success(w, http.StatusOK, JoinResponse{LobbyID: lobbyID})
}
