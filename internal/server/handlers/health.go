package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/kv"
	"github.com/JTTrickZ/hexgame-main/internal/shared/response"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	KV        string `json:"kv"`
	Rooms     int    `json:"rooms"`
}

// RoomCounter reports how many room loops the instance is running.
type RoomCounter interface {
	RoomCount() int
}

type HealthHandler struct {
	store kv.Store
	rooms RoomCounter
}

func NewHealthHandler(store kv.Store, rooms RoomCounter) *HealthHandler {
	return &HealthHandler{store: store, rooms: rooms}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	kvStatus := "disconnected"
	if err := h.store.Ping(r.Context()); err == nil {
		kvStatus = "connected"
	} else {
		logger.Warn("KV ping failed", "error", err)
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		KV:        kvStatus,
		Rooms:     h.rooms.RoomCount(),
	}

	response.Success(w, http.StatusOK, resp)
}
