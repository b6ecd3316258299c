package player

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/kv"

	"github.com/google/uuid"
)

type Repository struct {
	store kv.Store
}

func NewRepository(store kv.Store) *Repository {
	logger := slog.With("component", "player_repository", "operation", "init")
	logger.Debug("Initializing player repository")
	return &Repository{store: store}
}

// Create stores a new player profile and marks it active.
func (r *Repository) Create(ctx context.Context, username, color string) (*Player, error) {
	logger := slog.With(
		"component", "player_repository",
		"operation", "create",
		"username", username,
	)
	logger.Info("Creating new player")

	now := time.Now().UnixMilli()
	p := &Player{
		ID:        uuid.NewString(),
		Username:  username,
		Color:     color,
		CreatedAt: now,
	}

	fields := map[string]string{
		fieldUsername:  p.Username,
		fieldColor:     p.Color,
		fieldCreatedAt: strconv.FormatInt(p.CreatedAt, 10),
	}
	if err := r.store.HashSet(ctx, kv.PlayerDataKey(p.ID), fields); err != nil {
		logger.Error("Failed to store player", "error", err)
		return nil, fmt.Errorf("failed to store player: %w", err)
	}

	if err := r.store.SortedAdd(ctx, kv.ActivePlayersKey, float64(now), p.ID); err != nil {
		logger.Error("Failed to mark player active", "error", err)
		return nil, fmt.Errorf("failed to mark player active: %w", err)
	}

	logger.Info("Player created successfully", "player_id", p.ID)
	return p, nil
}

// Get returns the stored profile, or nil when the player does not exist.
func (r *Repository) Get(ctx context.Context, playerID string) (*Player, error) {
	logger := slog.With(
		"component", "player_repository",
		"operation", "get",
		"player_id", playerID,
	)

	fields, err := r.store.HashGetAll(ctx, kv.PlayerDataKey(playerID))
	if err != nil {
		logger.Error("Failed to read player", "error", err)
		return nil, fmt.Errorf("failed to read player: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	createdAt, _ := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	return &Player{
		ID:        playerID,
		Username:  fields[fieldUsername],
		Color:     fields[fieldColor],
		CreatedAt: createdAt,
	}, nil
}

// FindByUsername scans the active-player index for a case-insensitive
// username match. The key layout carries no username index, so this is a
// linear scan; registration volume is low enough that it has never been
// worth a second index.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*Player, error) {
	logger := slog.With(
		"component", "player_repository",
		"operation", "find_by_username",
		"username", username,
	)

	ids, err := r.store.SortedRange(ctx, kv.ActivePlayersKey, 0, -1)
	if err != nil {
		logger.Error("Failed to scan active players", "error", err)
		return nil, fmt.Errorf("failed to scan active players: %w", err)
	}

	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil && strings.EqualFold(p.Username, username) {
			logger.Debug("Found player by username", "player_id", p.ID)
			return p, nil
		}
	}

	return nil, nil
}

// SetColor overwrites the stored color.
func (r *Repository) SetColor(ctx context.Context, playerID, color string) error {
	logger := slog.With(
		"component", "player_repository",
		"operation", "set_color",
		"player_id", playerID,
	)

	err := r.store.HashSet(ctx, kv.PlayerDataKey(playerID), map[string]string{fieldColor: color})
	if err != nil {
		logger.Error("Failed to set color", "error", err)
		return fmt.Errorf("failed to set color: %w", err)
	}

	logger.Debug("Player color updated", "color", color)
	return nil
}

// Touch refreshes the player's last-active score.
func (r *Repository) Touch(ctx context.Context, playerID string) error {
	now := float64(time.Now().UnixMilli())
	if err := r.store.SortedAdd(ctx, kv.ActivePlayersKey, now, playerID); err != nil {
		return fmt.Errorf("failed to touch player: %w", err)
	}
	return nil
}

// SetSession records the player's current session id with a TTL. Writing
// a new session id implicitly evicts the previous one.
func (r *Repository) SetSession(ctx context.Context, playerID, sessionID string, ttl time.Duration) error {
	if err := r.store.Set(ctx, kv.PlayerSessionKey(playerID), sessionID, ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// GetSession returns the player's current session id, if any.
func (r *Repository) GetSession(ctx context.Context, playerID string) (string, bool, error) {
	sessionID, ok, err := r.store.Get(ctx, kv.PlayerSessionKey(playerID))
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	return sessionID, ok, nil
}

// ClearSession drops the player's session mapping.
func (r *Repository) ClearSession(ctx context.Context, playerID string) error {
	if err := r.store.Del(ctx, kv.PlayerSessionKey(playerID)); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
