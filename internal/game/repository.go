package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/kv"
)

type Repository struct {
	store  kv.Store
	logger *slog.Logger
}

func NewRepository(store kv.Store, logger *slog.Logger) *Repository {
	logger.Debug("Initializing game repository")

	return &Repository{
		store:  store,
		logger: logger,
	}
}

// Create writes a new active game under the given id. The id is the room
// id allocated by matchmaking, which is what keeps one room per game.
func (r *Repository) Create(ctx context.Context, gameID string, startPlayers []StartPlayer, lobbyStartTime, terrainSeed int64) (*Game, error) {
	logger := r.logger.With(
		"component", "game_repository",
		"operation", "create_game",
		"game_id", gameID,
		"players", len(startPlayers),
	)
	logger.Info("Creating new game")

	now := time.Now().UnixMilli()
	g := &Game{
		ID:             gameID,
		CreatedAt:      now,
		Status:         StatusActive,
		StartPlayers:   startPlayers,
		LobbyStartTime: lobbyStartTime,
		TerrainSeed:    terrainSeed,
	}

	snapshot, err := json.Marshal(startPlayers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode start players: %w", err)
	}

	fields := map[string]string{
		fieldCreatedAt:      strconv.FormatInt(now, 10),
		fieldStatus:         string(StatusActive),
		fieldStartPlayers:   string(snapshot),
		fieldLobbyStartTime: strconv.FormatInt(lobbyStartTime, 10),
		fieldTerrainSeed:    strconv.FormatInt(terrainSeed, 10),
	}
	if err := r.store.HashSet(ctx, kv.GameDataKey(gameID), fields); err != nil {
		logger.Error("Failed to store game", "error", err)
		return nil, fmt.Errorf("failed to store game: %w", err)
	}

	for _, sp := range startPlayers {
		if err := r.store.SetAdd(ctx, kv.GamePlayersKey(gameID), sp.PlayerID); err != nil {
			logger.Error("Failed to add game player", "error", err)
			return nil, fmt.Errorf("failed to add game player: %w", err)
		}
	}

	if err := r.store.SortedAdd(ctx, kv.ActiveGamesKey, float64(now), gameID); err != nil {
		logger.Error("Failed to index game", "error", err)
		return nil, fmt.Errorf("failed to index game: %w", err)
	}

	logger.Info("Game created successfully")
	return g, nil
}

// Get returns the stored game, or nil when it does not exist.
func (r *Repository) Get(ctx context.Context, gameID string) (*Game, error) {
	fields, err := r.store.HashGetAll(ctx, kv.GameDataKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to read game: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	createdAt, _ := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	lobbyStartTime, _ := strconv.ParseInt(fields[fieldLobbyStartTime], 10, 64)
	terrainSeed, _ := strconv.ParseInt(fields[fieldTerrainSeed], 10, 64)

	var startPlayers []StartPlayer
	if raw := fields[fieldStartPlayers]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &startPlayers); err != nil {
			return nil, fmt.Errorf("failed to decode start players: %w", err)
		}
	}

	return &Game{
		ID:             gameID,
		CreatedAt:      createdAt,
		Status:         Status(fields[fieldStatus]),
		StartPlayers:   startPlayers,
		LobbyStartTime: lobbyStartTime,
		TerrainSeed:    terrainSeed,
	}, nil
}

// Close marks the game closed and drops it from the active index.
// Joining a closed game fails at admission.
func (r *Repository) Close(ctx context.Context, gameID string) error {
	logger := r.logger.With(
		"component", "game_repository",
		"operation", "close_game",
		"game_id", gameID,
	)

	err := r.store.HashSet(ctx, kv.GameDataKey(gameID), map[string]string{fieldStatus: string(StatusClosed)})
	if err != nil {
		logger.Error("Failed to close game", "error", err)
		return fmt.Errorf("failed to close game: %w", err)
	}
	if err := r.store.SortedRem(ctx, kv.ActiveGamesKey, gameID); err != nil {
		logger.Error("Failed to deindex game", "error", err)
		return fmt.Errorf("failed to deindex game: %w", err)
	}

	logger.Info("Game closed")
	return nil
}

// Exists reports whether a game row is present without decoding it.
func (r *Repository) Exists(ctx context.Context, gameID string) (bool, error) {
	ok, err := r.store.Exists(ctx, kv.GameDataKey(gameID))
	if err != nil {
		return false, fmt.Errorf("failed to check game: %w", err)
	}
	return ok, nil
}

// Players lists the ids participating in the game.
func (r *Repository) Players(ctx context.Context, gameID string) ([]string, error) {
	players, err := r.store.SetMembers(ctx, kv.GamePlayersKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to list game players: %w", err)
	}
	return players, nil
}

// SetHex overwrites the full tile. Callers that need to keep terrain or
// upgrades across an ownership transfer must read first; this operation
// deliberately does not merge.
func (r *Repository) SetHex(ctx context.Context, gameID string, c hexgrid.Coord, h Hex) error {
	value, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to encode hex: %w", err)
	}
	err = r.store.HashSet(ctx, kv.GameHexesKey(gameID), map[string]string{c.Key(): string(value)})
	if err != nil {
		return fmt.Errorf("failed to store hex: %w", err)
	}
	return nil
}

// SetHexes overwrites many tiles in one round trip. Used for terrain
// at game creation.
func (r *Repository) SetHexes(ctx context.Context, gameID string, hexes map[hexgrid.Coord]Hex) error {
	if len(hexes) == 0 {
		return nil
	}

	fields := make(map[string]string, len(hexes))
	for c, h := range hexes {
		value, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("failed to encode hex %s: %w", c.Key(), err)
		}
		fields[c.Key()] = string(value)
	}
	if err := r.store.HashSet(ctx, kv.GameHexesKey(gameID), fields); err != nil {
		return fmt.Errorf("failed to store hexes: %w", err)
	}
	return nil
}

// GetHex returns the tile at c, or nil when it has never been written.
func (r *Repository) GetHex(ctx context.Context, gameID string, c hexgrid.Coord) (*Hex, error) {
	raw, ok, err := r.store.HashGet(ctx, kv.GameHexesKey(gameID), c.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to read hex: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var h Hex
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("failed to decode hex %s: %w", c.Key(), err)
	}
	return &h, nil
}

// AllHexes loads the full tile map for a game.
func (r *Repository) AllHexes(ctx context.Context, gameID string) (map[hexgrid.Coord]Hex, error) {
	fields, err := r.store.HashGetAll(ctx, kv.GameHexesKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to read hexes: %w", err)
	}

	hexes := make(map[hexgrid.Coord]Hex, len(fields))
	for field, raw := range fields {
		c, err := hexgrid.ParseKey(field)
		if err != nil {
			return nil, fmt.Errorf("corrupt hex field: %w", err)
		}
		var h Hex
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			return nil, fmt.Errorf("failed to decode hex %s: %w", field, err)
		}
		hexes[c] = h
	}
	return hexes, nil
}

// ReadPoints returns the raw stored economy, or nil on first touch.
func (r *Repository) ReadPoints(ctx context.Context, gameID, playerID string) (*PlayerPoints, error) {
	raw, ok, err := r.store.HashGet(ctx, kv.GamePointsKey(gameID), playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read points: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var pts PlayerPoints
	if err := json.Unmarshal([]byte(raw), &pts); err != nil {
		return nil, fmt.Errorf("failed to decode points: %w", err)
	}
	return &pts, nil
}

// WritePoints stores the economy verbatim. Clamping happens above.
func (r *Repository) WritePoints(ctx context.Context, gameID, playerID string, pts PlayerPoints) error {
	value, err := json.Marshal(pts)
	if err != nil {
		return fmt.Errorf("failed to encode points: %w", err)
	}
	err = r.store.HashSet(ctx, kv.GamePointsKey(gameID), map[string]string{playerID: string(value)})
	if err != nil {
		return fmt.Errorf("failed to store points: %w", err)
	}
	return nil
}

// PushEvent prepends an event and trims the log to the newest limit
// entries.
func (r *Repository) PushEvent(ctx context.Context, e Event, limit int64) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	key := kv.GameEventsKey(e.GameID)
	if err := r.store.ListPush(ctx, key, string(value)); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	if err := r.store.ListTrim(ctx, key, 0, limit-1); err != nil {
		return fmt.Errorf("failed to trim events: %w", err)
	}
	return nil
}

// Events returns the log in chronological order (the list is stored
// newest first).
func (r *Repository) Events(ctx context.Context, gameID string) ([]Event, error) {
	raw, err := r.store.ListRange(ctx, kv.GameEventsKey(gameID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e Event
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// EventCount returns the current log length.
func (r *Repository) EventCount(ctx context.Context, gameID string) (int64, error) {
	n, err := r.store.ListLen(ctx, kv.GameEventsKey(gameID))
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
