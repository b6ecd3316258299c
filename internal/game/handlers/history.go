package handlers

import (
	"log/slog"
	"net/http"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
	"github.com/JTTrickZ/hexgame-main/internal/shared/response"
)

// HistoryResponse carries a game's full event log. The field is named
// clicks because captures and start picks are the bulk of it.
type HistoryResponse struct {
	Clicks []game.Event `json:"clicks"`
}

type HistoryHandler struct {
	service *game.Service
}

func NewHistoryHandler(service *game.Service) *HistoryHandler {
	return &HistoryHandler{service: service}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "history")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	// The parameter kept its historical name; the value is a game id.
	gameID := r.URL.Query().Get("lobbyId")
	if gameID == "" {
		response.Error(w, r, logger, errors.Validation("lobbyId is required"))
		return
	}

	g, err := h.service.GetGame(ctx, gameID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if g == nil {
		response.Error(w, r, logger, errors.NotFoundf("game %s not found", gameID))
		return
	}

	events, err := h.service.Events(ctx, gameID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	if events == nil {
		events = []game.Event{}
	}

	response.Success(w, http.StatusOK, HistoryResponse{Clicks: events})
}
