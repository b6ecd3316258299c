package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JTTrickZ/hexgame-main/internal/player"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
	"github.com/JTTrickZ/hexgame-main/internal/shared/response"
)

type ColorRequest struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
	Color    string `json:"color"`
}

type ColorHandler struct {
	service *player.Service
}

func NewColorHandler(service *player.Service) *ColorHandler {
	return &ColorHandler{service: service}
}

func (h *ColorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "player_color")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB
	var req ColorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
		return
	}

	if err := h.service.ChangeColor(ctx, req.PlayerID, req.Token, req.Color); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]bool{"ok": true})
}
