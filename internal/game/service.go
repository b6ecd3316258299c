package game

import (
	"context"
	"log/slog"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
)

// Cap bonuses per owned structure and tile.
const (
	bankCapBonus = 50
	tileCapBonus = 5
)

// Economy is the authoritative points view sent in pointsUpdate messages.
type Economy struct {
	PlayerID  string `json:"playerId"`
	Points    int    `json:"points"`
	Tiles     int    `json:"tiles"`
	MaxPoints int    `json:"maxPoints"`
}

// Service implements the game data semantics on top of the raw
// repository: point caps, clamping, event limits, terrain queries.
type Service struct {
	repo   *Repository
	cfg    config.GameConfig
	logger *slog.Logger
}

func NewService(repo *Repository, cfg config.GameConfig, logger *slog.Logger) *Service {
	logger.Debug("Initializing game service")

	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Service) CreateGame(ctx context.Context, gameID string, startPlayers []StartPlayer, lobbyStartTime, terrainSeed int64) (*Game, error) {
	return s.repo.Create(ctx, gameID, startPlayers, lobbyStartTime, terrainSeed)
}

func (s *Service) GetGame(ctx context.Context, gameID string) (*Game, error) {
	return s.repo.Get(ctx, gameID)
}

func (s *Service) Exists(ctx context.Context, gameID string) (bool, error) {
	return s.repo.Exists(ctx, gameID)
}

func (s *Service) CloseGame(ctx context.Context, gameID string) error {
	return s.repo.Close(ctx, gameID)
}

func (s *Service) Players(ctx context.Context, gameID string) ([]string, error) {
	return s.repo.Players(ctx, gameID)
}

func (s *Service) SetHex(ctx context.Context, gameID string, c hexgrid.Coord, h Hex) error {
	return s.repo.SetHex(ctx, gameID, c, h)
}

func (s *Service) SetHexes(ctx context.Context, gameID string, hexes map[hexgrid.Coord]Hex) error {
	return s.repo.SetHexes(ctx, gameID, hexes)
}

func (s *Service) GetHex(ctx context.Context, gameID string, c hexgrid.Coord) (*Hex, error) {
	return s.repo.GetHex(ctx, gameID, c)
}

func (s *Service) AllHexes(ctx context.Context, gameID string) (map[hexgrid.Coord]Hex, error) {
	return s.repo.AllHexes(ctx, gameID)
}

// SetHexUpgrade installs an upgrade on an existing tile, preserving its
// owner, color, terrain and capture metadata.
func (s *Service) SetHexUpgrade(ctx context.Context, gameID string, c hexgrid.Coord, upgrade Upgrade) error {
	h, err := s.repo.GetHex(ctx, gameID, c)
	if err != nil {
		return err
	}
	if h == nil {
		return errors.NotFoundf("no hex at %s", c.Key())
	}

	h.Upgrade = upgrade
	return s.repo.SetHex(ctx, gameID, c, *h)
}

// CalculateMaxPoints scans the tile map and returns the cap along with
// the tile and bank counts that produced it. This is the single source of
// truth for caps; stored maxPoints values are overlays of this number.
func (s *Service) CalculateMaxPoints(ctx context.Context, gameID, playerID string) (maxPoints, tiles, banks int, err error) {
	hexes, err := s.repo.AllHexes(ctx, gameID)
	if err != nil {
		return 0, 0, 0, err
	}
	maxPoints, tiles, banks = MaxPointsFor(hexes, playerID, s.cfg.StartingMaxPoints)
	return maxPoints, tiles, banks, nil
}

// GetPlayerPoints returns the player's economy, initializing it on first
// touch and overlaying a freshly computed cap so the returned value is
// never stale.
func (s *Service) GetPlayerPoints(ctx context.Context, gameID, playerID string) (*PlayerPoints, error) {
	pts, err := s.repo.ReadPoints(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}

	if pts == nil {
		pts = &PlayerPoints{
			Points:     s.cfg.StartingPoints,
			MaxPoints:  s.cfg.StartingMaxPoints,
			LastUpdate: time.Now().UnixMilli(),
		}
		if err := s.repo.WritePoints(ctx, gameID, playerID, *pts); err != nil {
			return nil, err
		}
		return pts, nil
	}

	maxPoints, _, _, err := s.CalculateMaxPoints(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}
	pts.MaxPoints = maxPoints
	return pts, nil
}

// UpdatePlayerPoints writes a new points value clamped to [0, cap],
// preserving the start position.
func (s *Service) UpdatePlayerPoints(ctx context.Context, gameID, playerID string, points int) (*PlayerPoints, error) {
	current, err := s.GetPlayerPoints(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}

	next := PlayerPoints{
		Points:     clamp(points, 0, current.MaxPoints),
		MaxPoints:  current.MaxPoints,
		StartQ:     current.StartQ,
		StartR:     current.StartR,
		LastUpdate: time.Now().UnixMilli(),
	}
	if err := s.repo.WritePoints(ctx, gameID, playerID, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// UpdateStartPosition records the start pick, preserving points.
func (s *Service) UpdateStartPosition(ctx context.Context, gameID, playerID string, c hexgrid.Coord) error {
	current, err := s.GetPlayerPoints(ctx, gameID, playerID)
	if err != nil {
		return err
	}

	q, r := c.Q, c.R
	current.StartQ = &q
	current.StartR = &r
	current.LastUpdate = time.Now().UnixMilli()
	return s.repo.WritePoints(ctx, gameID, playerID, *current)
}

// PlayerUpgradeCounts tallies the player's built structures under
// normalized lowercase plural keys: banks, forts, cities.
func (s *Service) PlayerUpgradeCounts(ctx context.Context, gameID, playerID string) (map[string]int, error) {
	hexes, err := s.repo.AllHexes(ctx, gameID)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{"banks": 0, "forts": 0, "cities": 0}
	for _, h := range hexes {
		if h.PlayerID != playerID {
			continue
		}
		switch h.Upgrade {
		case UpgradeBank:
			counts["banks"]++
		case UpgradeFort:
			counts["forts"]++
		case UpgradeCity:
			counts["cities"]++
		}
	}
	return counts, nil
}

// StoredPoints returns the raw stored balance, falling back to the
// starting allowance before first touch. Defender strength reads this
// without forcing a cap recalculation.
func (s *Service) StoredPoints(ctx context.Context, gameID, playerID string) (int, error) {
	pts, err := s.repo.ReadPoints(ctx, gameID, playerID)
	if err != nil {
		return 0, err
	}
	if pts == nil {
		return s.cfg.StartingPoints, nil
	}
	return pts.Points, nil
}

// AccrueIncome credits every listed player with one tick of income,
// clamped to a cap computed from a single shared tile snapshot.
func (s *Service) AccrueIncome(ctx context.Context, gameID string, playerIDs []string, income int) error {
	hexes, err := s.repo.AllHexes(ctx, gameID)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for _, playerID := range playerIDs {
		pts, err := s.repo.ReadPoints(ctx, gameID, playerID)
		if err != nil {
			return err
		}
		if pts == nil {
			pts = &PlayerPoints{Points: s.cfg.StartingPoints}
		}

		maxPoints, _, _ := MaxPointsFor(hexes, playerID, s.cfg.StartingMaxPoints)
		pts.Points = clamp(pts.Points+income, 0, maxPoints)
		pts.MaxPoints = maxPoints
		pts.LastUpdate = now
		if err := s.repo.WritePoints(ctx, gameID, playerID, *pts); err != nil {
			return err
		}
	}
	return nil
}

// EconomyOf builds the pointsUpdate view for a player.
func (s *Service) EconomyOf(ctx context.Context, gameID, playerID string) (*Economy, error) {
	pts, err := s.repo.ReadPoints(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}

	maxPoints, tiles, _, err := s.CalculateMaxPoints(ctx, gameID, playerID)
	if err != nil {
		return nil, err
	}

	points := s.cfg.StartingPoints
	if pts != nil {
		points = pts.Points
	}

	return &Economy{
		PlayerID:  playerID,
		Points:    clamp(points, 0, maxPoints),
		Tiles:     tiles,
		MaxPoints: maxPoints,
	}, nil
}

// SaveEvent appends to the capped event log. A zero timestamp is filled
// with the current time.
func (s *Service) SaveEvent(ctx context.Context, e Event) error {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	return s.repo.PushEvent(ctx, e, int64(s.cfg.EventLogLimit))
}

func (s *Service) Events(ctx context.Context, gameID string) ([]Event, error) {
	return s.repo.Events(ctx, gameID)
}

func (s *Service) EventCount(ctx context.Context, gameID string) (int64, error) {
	return s.repo.EventCount(ctx, gameID)
}

// MaxPointsFor computes the cap from a tile snapshot.
func MaxPointsFor(hexes map[hexgrid.Coord]Hex, playerID string, startingMaxPoints int) (maxPoints, tiles, banks int) {
	for _, h := range hexes {
		if h.PlayerID != playerID {
			continue
		}
		tiles++
		if h.Upgrade == UpgradeBank {
			banks++
		}
	}
	return startingMaxPoints + bankCapBonus*banks + tileCapBonus*tiles, tiles, banks
}

// CountTiles returns the number of tiles owned by the player in a snapshot.
func CountTiles(hexes map[hexgrid.Coord]Hex, playerID string) int {
	n := 0
	for _, h := range hexes {
		if h.PlayerID == playerID {
			n++
		}
	}
	return n
}

// IsAdjacentToRiver reports whether any of the six neighbors of c is a
// river tile.
func IsAdjacentToRiver(hexes map[hexgrid.Coord]Hex, c hexgrid.Coord) bool {
	for _, n := range c.Neighbors() {
		if h, ok := hexes[n]; ok && h.Terrain == TerrainRiver {
			return true
		}
	}
	return false
}

// PlayerHasRiverAccess reports whether the player owns at least one tile
// adjacent to a river.
func PlayerHasRiverAccess(hexes map[hexgrid.Coord]Hex, playerID string) bool {
	for c, h := range hexes {
		if h.PlayerID != playerID {
			continue
		}
		if IsAdjacentToRiver(hexes, c) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
