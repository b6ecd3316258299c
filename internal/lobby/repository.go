package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/kv"

	"github.com/google/uuid"
)

type Repository struct {
	store kv.Store
}

func NewRepository(store kv.Store) *Repository {
	logger := slog.With("component", "lobby_repository", "operation", "init")
	logger.Debug("Initializing lobby repository")
	return &Repository{store: store}
}

// Create opens a new active lobby.
func (r *Repository) Create(ctx context.Context) (*Lobby, error) {
	logger := slog.With("component", "lobby_repository", "operation", "create")

	now := time.Now().UnixMilli()
	l := &Lobby{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Status:    StatusActive,
	}

	fields := map[string]string{
		fieldCreatedAt: strconv.FormatInt(l.CreatedAt, 10),
		fieldStatus:    string(l.Status),
	}
	if err := r.store.HashSet(ctx, kv.LobbyDataKey(l.ID), fields); err != nil {
		logger.Error("Failed to store lobby", "error", err)
		return nil, fmt.Errorf("failed to store lobby: %w", err)
	}

	if err := r.store.SortedAdd(ctx, kv.ActiveLobbiesKey, float64(now), l.ID); err != nil {
		logger.Error("Failed to index lobby", "error", err)
		return nil, fmt.Errorf("failed to index lobby: %w", err)
	}

	logger.Info("Lobby created", "lobby_id", l.ID)
	return l, nil
}

// Get returns the stored lobby, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, lobbyID string) (*Lobby, error) {
	fields, err := r.store.HashGetAll(ctx, kv.LobbyDataKey(lobbyID))
	if err != nil {
		return nil, fmt.Errorf("failed to read lobby: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	createdAt, _ := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	startTime, _ := strconv.ParseInt(fields[fieldStartTime], 10, 64)
	return &Lobby{
		ID:        lobbyID,
		CreatedAt: createdAt,
		Status:    Status(fields[fieldStatus]),
		StartTime: startTime,
	}, nil
}

// Close marks the lobby closed and drops it from the active index.
func (r *Repository) Close(ctx context.Context, lobbyID string) error {
	logger := slog.With(
		"component", "lobby_repository",
		"operation", "close",
		"lobby_id", lobbyID,
	)

	err := r.store.HashSet(ctx, kv.LobbyDataKey(lobbyID), map[string]string{fieldStatus: string(StatusClosed)})
	if err != nil {
		logger.Error("Failed to close lobby", "error", err)
		return fmt.Errorf("failed to close lobby: %w", err)
	}
	if err := r.store.SortedRem(ctx, kv.ActiveLobbiesKey, lobbyID); err != nil {
		logger.Error("Failed to deindex lobby", "error", err)
		return fmt.Errorf("failed to deindex lobby: %w", err)
	}

	logger.Info("Lobby closed")
	return nil
}

// SetStartTime records the kickoff timestamp chosen by the countdown.
func (r *Repository) SetStartTime(ctx context.Context, lobbyID string, ts int64) error {
	err := r.store.HashSet(ctx, kv.LobbyDataKey(lobbyID), map[string]string{
		fieldStartTime: strconv.FormatInt(ts, 10),
	})
	if err != nil {
		return fmt.Errorf("failed to set lobby start time: %w", err)
	}
	return nil
}

// AddPlayer admits a player to the lobby's presence set.
func (r *Repository) AddPlayer(ctx context.Context, lobbyID, playerID string) error {
	if err := r.store.SetAdd(ctx, kv.LobbyPlayersKey(lobbyID), playerID); err != nil {
		return fmt.Errorf("failed to add lobby player: %w", err)
	}
	return nil
}

// RemovePlayer drops a player from the lobby's presence set.
func (r *Repository) RemovePlayer(ctx context.Context, lobbyID, playerID string) error {
	if err := r.store.SetRem(ctx, kv.LobbyPlayersKey(lobbyID), playerID); err != nil {
		return fmt.Errorf("failed to remove lobby player: %w", err)
	}
	return nil
}

// Players lists the ids currently admitted to the lobby.
func (r *Repository) Players(ctx context.Context, lobbyID string) ([]string, error) {
	players, err := r.store.SetMembers(ctx, kv.LobbyPlayersKey(lobbyID))
	if err != nil {
		return nil, fmt.Errorf("failed to list lobby players: %w", err)
	}
	return players, nil
}

// PlayerCount returns the size of the lobby's presence set.
func (r *Repository) PlayerCount(ctx context.Context, lobbyID string) (int64, error) {
	n, err := r.store.SetCard(ctx, kv.LobbyPlayersKey(lobbyID))
	if err != nil {
		return 0, fmt.Errorf("failed to count lobby players: %w", err)
	}
	return n, nil
}

// FindOpen returns the oldest active lobby with room for another player,
// or empty when every lobby is full or closed.
func (r *Repository) FindOpen(ctx context.Context, capacity int) (string, error) {
	ids, err := r.store.SortedRange(ctx, kv.ActiveLobbiesKey, 0, -1)
	if err != nil {
		return "", fmt.Errorf("failed to scan active lobbies: %w", err)
	}

	for _, id := range ids {
		l, err := r.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if l == nil || l.Status != StatusActive {
			continue
		}
		n, err := r.PlayerCount(ctx, id)
		if err != nil {
			return "", err
		}
		if n < int64(capacity) {
			return id, nil
		}
	}

	return "", nil
}
