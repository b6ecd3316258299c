package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JTTrickZ/hexgame-main/internal/player"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
	"github.com/JTTrickZ/hexgame-main/internal/shared/response"
)

type RegisterRequest struct {
	Username string `json:"username"`
}

type RegisterHandler struct {
	service *player.Service
}

func NewRegisterHandler(service *player.Service) *RegisterHandler {
	return &RegisterHandler{service: service}
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "register")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid JSON in request body", err))
		return
	}

	registration, err := h.service.Register(ctx, req.Username)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, registration)
}
