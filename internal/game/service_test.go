package game

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/kv"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
)

func newTestService(cfg config.GameConfig) *Service {
	if cfg.StartingPoints == 0 {
		cfg.StartingPoints = 200
	}
	if cfg.StartingMaxPoints == 0 {
		cfg.StartingMaxPoints = 200
	}
	if cfg.EventLogLimit == 0 {
		cfg.EventLogLimit = 10000
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(NewRepository(kv.NewMemory(), logger), cfg, logger)
}

func TestGameLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	roster := []StartPlayer{
		{PlayerID: "p1", Username: "alice", Color: "#e74c3c"},
		{PlayerID: "p2", Username: "bob", Color: "#3498db"},
	}

	created, err := svc.CreateGame(ctx, "game-1", roster, 5000, 42)
	if err != nil {
		t.Fatalf("CreateGame returned error: %v", err)
	}
	if created.Status != StatusActive {
		t.Errorf("new game status = %q, want active", created.Status)
	}

	loaded, err := svc.GetGame(ctx, "game-1")
	if err != nil {
		t.Fatalf("GetGame returned error: %v", err)
	}
	if loaded == nil {
		t.Fatal("GetGame returned nil for a stored game")
	}
	if loaded.LobbyStartTime != 5000 {
		t.Errorf("lobbyStartTime = %d, want 5000", loaded.LobbyStartTime)
	}
	if loaded.TerrainSeed != 42 {
		t.Errorf("terrainSeed = %d, want 42", loaded.TerrainSeed)
	}
	if len(loaded.StartPlayers) != 2 || loaded.StartPlayers[0].Username != "alice" {
		t.Errorf("start players not preserved: %+v", loaded.StartPlayers)
	}

	players, err := svc.Players(ctx, "game-1")
	if err != nil {
		t.Fatalf("Players returned error: %v", err)
	}
	if len(players) != 2 {
		t.Errorf("player set size = %d, want 2", len(players))
	}

	if missing, _ := svc.GetGame(ctx, "nope"); missing != nil {
		t.Error("GetGame returned a game for an unknown id")
	}

	if err := svc.CloseGame(ctx, "game-1"); err != nil {
		t.Fatalf("CloseGame returned error: %v", err)
	}
	loaded, _ = svc.GetGame(ctx, "game-1")
	if loaded.Status != StatusClosed {
		t.Errorf("status after close = %q, want closed", loaded.Status)
	}
}

func TestSetHexOverwritesWholeTile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})
	c := hexgrid.Coord{Q: 1, R: -2}

	first := Hex{PlayerID: "p1", Color: "#e74c3c", Upgrade: UpgradeBank, Terrain: TerrainRiver, CaptureTime: 100}
	if err := svc.SetHex(ctx, "g", c, first); err != nil {
		t.Fatalf("SetHex returned error: %v", err)
	}

	// A full overwrite drops the upgrade unless the caller carried it over.
	second := Hex{PlayerID: "p2", Color: "#3498db", Terrain: TerrainRiver, CaptureTime: 200}
	if err := svc.SetHex(ctx, "g", c, second); err != nil {
		t.Fatalf("SetHex returned error: %v", err)
	}

	got, err := svc.GetHex(ctx, "g", c)
	if err != nil {
		t.Fatalf("GetHex returned error: %v", err)
	}
	if got.PlayerID != "p2" || got.Upgrade != UpgradeNone || got.Terrain != TerrainRiver {
		t.Errorf("stored hex = %+v, want full overwrite with terrain carried by caller", got)
	}

	if missing, _ := svc.GetHex(ctx, "g", hexgrid.Coord{Q: 9, R: 9}); missing != nil {
		t.Error("GetHex returned a tile that was never written")
	}
}

func TestSetHexUpgradePreservesOwnership(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})
	c := hexgrid.Coord{Q: 0, R: 0}

	original := Hex{PlayerID: "p1", Color: "#e74c3c", CaptureTime: 42, IsStart: true}
	if err := svc.SetHex(ctx, "g", c, original); err != nil {
		t.Fatalf("SetHex returned error: %v", err)
	}

	if err := svc.SetHexUpgrade(ctx, "g", c, UpgradeFort); err != nil {
		t.Fatalf("SetHexUpgrade returned error: %v", err)
	}

	got, _ := svc.GetHex(ctx, "g", c)
	if got.Upgrade != UpgradeFort {
		t.Errorf("upgrade = %q, want fort", got.Upgrade)
	}
	if got.PlayerID != "p1" || got.Color != "#e74c3c" || got.CaptureTime != 42 || !got.IsStart {
		t.Errorf("SetHexUpgrade did not preserve the rest of the tile: %+v", got)
	}

	err := svc.SetHexUpgrade(ctx, "g", hexgrid.Coord{Q: 5, R: 5}, UpgradeBank)
	if errors.GetType(err) != errors.ErrorTypeNotFound {
		t.Errorf("upgrading a missing hex: error type = %v, want not_found", errors.GetType(err))
	}
}

func TestCalculateMaxPoints(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	tiles := []struct {
		c hexgrid.Coord
		h Hex
	}{
		{hexgrid.Coord{Q: 0, R: 0}, Hex{PlayerID: "p1", Upgrade: UpgradeBank}},
		{hexgrid.Coord{Q: 1, R: 0}, Hex{PlayerID: "p1", Upgrade: UpgradeBank}},
		{hexgrid.Coord{Q: 2, R: 0}, Hex{PlayerID: "p1", Upgrade: UpgradeFort}},
		{hexgrid.Coord{Q: 3, R: 0}, Hex{PlayerID: "p1"}},
		{hexgrid.Coord{Q: 4, R: 0}, Hex{PlayerID: "p2", Upgrade: UpgradeBank}},
		{hexgrid.Coord{Q: 5, R: 0}, Hex{Terrain: TerrainMountain}},
	}
	for _, tile := range tiles {
		if err := svc.SetHex(ctx, "g", tile.c, tile.h); err != nil {
			t.Fatalf("SetHex returned error: %v", err)
		}
	}

	maxPoints, ownedTiles, banks, err := svc.CalculateMaxPoints(ctx, "g", "p1")
	if err != nil {
		t.Fatalf("CalculateMaxPoints returned error: %v", err)
	}
	if ownedTiles != 4 || banks != 2 {
		t.Errorf("tiles/banks = %d/%d, want 4/2", ownedTiles, banks)
	}
	// 200 + 50*2 banks + 5*4 tiles.
	if maxPoints != 320 {
		t.Errorf("maxPoints = %d, want 320", maxPoints)
	}

	maxPoints, ownedTiles, banks, _ = svc.CalculateMaxPoints(ctx, "g", "ghost")
	if maxPoints != 200 || ownedTiles != 0 || banks != 0 {
		t.Errorf("empty player cap = (%d, %d, %d), want starting values", maxPoints, ownedTiles, banks)
	}
}

func TestGetPlayerPointsInitializesAndOverlaysCap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	pts, err := svc.GetPlayerPoints(ctx, "g", "p1")
	if err != nil {
		t.Fatalf("GetPlayerPoints returned error: %v", err)
	}
	if pts.Points != 200 || pts.MaxPoints != 200 {
		t.Errorf("first touch = (%d, %d), want starting economy", pts.Points, pts.MaxPoints)
	}
	if pts.StartQ != nil || pts.StartR != nil {
		t.Error("start position set before the start pick")
	}

	// The init persisted: a raw read now hits.
	raw, err := svc.repo.ReadPoints(ctx, "g", "p1")
	if err != nil || raw == nil {
		t.Fatalf("points were not persisted on first touch: %v", err)
	}

	// One owned tile lifts the cap, and reads see it without a write.
	_ = svc.SetHex(ctx, "g", hexgrid.Coord{Q: 0, R: 0}, Hex{PlayerID: "p1", IsStart: true})
	pts, _ = svc.GetPlayerPoints(ctx, "g", "p1")
	if pts.MaxPoints != 205 {
		t.Errorf("cap after one tile = %d, want 205", pts.MaxPoints)
	}
}

func TestUpdatePlayerPointsClampsAndPreservesStart(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	_ = svc.SetHex(ctx, "g", hexgrid.Coord{Q: 0, R: 0}, Hex{PlayerID: "p1"})
	if err := svc.UpdateStartPosition(ctx, "g", "p1", hexgrid.Coord{Q: 0, R: 0}); err != nil {
		t.Fatalf("UpdateStartPosition returned error: %v", err)
	}

	pts, err := svc.UpdatePlayerPoints(ctx, "g", "p1", 9999)
	if err != nil {
		t.Fatalf("UpdatePlayerPoints returned error: %v", err)
	}
	if pts.Points != 205 {
		t.Errorf("over-cap write clamped to %d, want 205", pts.Points)
	}

	pts, _ = svc.UpdatePlayerPoints(ctx, "g", "p1", -50)
	if pts.Points != 0 {
		t.Errorf("negative write clamped to %d, want 0", pts.Points)
	}

	if pts.StartQ == nil || pts.StartR == nil || *pts.StartQ != 0 || *pts.StartR != 0 {
		t.Errorf("start position not preserved across writes: %+v", pts)
	}

	// Exactly at the cap is accepted unchanged.
	pts, _ = svc.UpdatePlayerPoints(ctx, "g", "p1", 205)
	if pts.Points != 205 {
		t.Errorf("at-cap write = %d, want 205", pts.Points)
	}
}

func TestEventLogOrderAndCap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{EventLogLimit: 5})

	for i := 1; i <= 8; i++ {
		e := Event{
			GameID:    "g",
			PlayerID:  "p1",
			Q:         i,
			EventType: EventCapture,
			Timestamp: int64(i),
		}
		if err := svc.SaveEvent(ctx, e); err != nil {
			t.Fatalf("SaveEvent returned error: %v", err)
		}
	}

	n, err := svc.EventCount(ctx, "g")
	if err != nil {
		t.Fatalf("EventCount returned error: %v", err)
	}
	if n != 5 {
		t.Errorf("EventCount = %d, want trim to 5", n)
	}

	events, err := svc.Events(ctx, "g")
	if err != nil {
		t.Fatalf("Events returned error: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("Events length = %d, want 5", len(events))
	}
	for i, e := range events {
		if want := i + 4; e.Q != want {
			t.Errorf("events[%d].Q = %d, want %d (chronological, oldest trimmed)", i, e.Q, want)
		}
	}
}

func TestRiverQueries(t *testing.T) {
	hexes := map[hexgrid.Coord]Hex{
		{Q: 0, R: 0}:  {Terrain: TerrainRiver},
		{Q: 1, R: 0}:  {PlayerID: "p1", Color: "#e74c3c"},
		{Q: 5, R: 5}:  {PlayerID: "p2", Color: "#3498db"},
		{Q: -1, R: 0}: {Terrain: TerrainMountain},
	}

	if !IsAdjacentToRiver(hexes, hexgrid.Coord{Q: 1, R: 0}) {
		t.Error("tile next to a river not reported adjacent")
	}
	if IsAdjacentToRiver(hexes, hexgrid.Coord{Q: 5, R: 5}) {
		t.Error("remote tile reported river-adjacent")
	}
	// Standing on the river is not the same as being next to it.
	if IsAdjacentToRiver(hexes, hexgrid.Coord{Q: 0, R: 0}) {
		t.Error("river tile itself reported river-adjacent")
	}

	if !PlayerHasRiverAccess(hexes, "p1") {
		t.Error("p1 owns a river-adjacent tile but has no access")
	}
	if PlayerHasRiverAccess(hexes, "p2") {
		t.Error("p2 reported river access without a river-adjacent tile")
	}
}

func TestAccrueIncomeClampsAtCap(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	// p1 owns one tile: cap 205. p2 has never touched the game.
	_ = svc.SetHex(ctx, "g", hexgrid.Coord{Q: 0, R: 0}, Hex{PlayerID: "p1"})
	if _, err := svc.UpdatePlayerPoints(ctx, "g", "p1", 203); err != nil {
		t.Fatalf("UpdatePlayerPoints returned error: %v", err)
	}

	if err := svc.AccrueIncome(ctx, "g", []string{"p1", "p2"}, 10); err != nil {
		t.Fatalf("AccrueIncome returned error: %v", err)
	}

	pts, _ := svc.GetPlayerPoints(ctx, "g", "p1")
	if pts.Points != 205 {
		t.Errorf("p1 points = %d, want clamped to 205", pts.Points)
	}

	// First income tick initializes p2 from the starting allowance, and
	// the starting cap of 200 absorbs the overflow immediately.
	pts, _ = svc.GetPlayerPoints(ctx, "g", "p2")
	if pts.Points != 200 {
		t.Errorf("p2 points = %d, want 200", pts.Points)
	}
}

func TestPlayerUpgradeCountsNormalizesKeys(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	tiles := map[hexgrid.Coord]Hex{
		{Q: 0, R: 0}: {PlayerID: "p1", Upgrade: UpgradeBank},
		{Q: 1, R: 0}: {PlayerID: "p1", Upgrade: UpgradeBank},
		{Q: 2, R: 0}: {PlayerID: "p1", Upgrade: UpgradeCity},
		{Q: 3, R: 0}: {PlayerID: "p1", Upgrade: UpgradeFort},
		{Q: 4, R: 0}: {PlayerID: "p1"},
		{Q: 5, R: 0}: {PlayerID: "p2", Upgrade: UpgradeCity},
	}
	if err := svc.SetHexes(ctx, "g", tiles); err != nil {
		t.Fatalf("SetHexes returned error: %v", err)
	}

	counts, err := svc.PlayerUpgradeCounts(ctx, "g", "p1")
	if err != nil {
		t.Fatalf("PlayerUpgradeCounts returned error: %v", err)
	}
	// "city" pluralizes to "cities", not "citys".
	want := map[string]int{"banks": 2, "forts": 1, "cities": 1}
	for key, n := range want {
		if counts[key] != n {
			t.Errorf("counts[%q] = %d, want %d", key, counts[key], n)
		}
	}
	if len(counts) != 3 {
		t.Errorf("counts has %d keys, want exactly banks/forts/cities", len(counts))
	}
}

func TestStoredPointsFallsBackToStartingAllowance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	points, err := svc.StoredPoints(ctx, "g", "ghost")
	if err != nil {
		t.Fatalf("StoredPoints returned error: %v", err)
	}
	if points != 200 {
		t.Errorf("untouched player points = %d, want 200", points)
	}

	_, _ = svc.UpdatePlayerPoints(ctx, "g", "p1", 150)
	points, _ = svc.StoredPoints(ctx, "g", "p1")
	if points != 150 {
		t.Errorf("stored points = %d, want 150", points)
	}
}

func TestSetHexesBulkWrite(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	tiles := map[hexgrid.Coord]Hex{
		{Q: 0, R: 0}: {Terrain: TerrainMountain},
		{Q: 1, R: 0}: {Terrain: TerrainRiver},
		{Q: 2, R: 0}: {Terrain: TerrainRiver},
	}
	if err := svc.SetHexes(ctx, "g", tiles); err != nil {
		t.Fatalf("SetHexes returned error: %v", err)
	}

	hexes, err := svc.AllHexes(ctx, "g")
	if err != nil {
		t.Fatalf("AllHexes returned error: %v", err)
	}
	if len(hexes) != 3 {
		t.Fatalf("stored %d tiles, want 3", len(hexes))
	}
	if hexes[hexgrid.Coord{Q: 1, R: 0}].Terrain != TerrainRiver {
		t.Errorf("tile (1,0) = %+v, want river", hexes[hexgrid.Coord{Q: 1, R: 0}])
	}
}

func TestEconomyOf(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(config.GameConfig{})

	_ = svc.SetHex(ctx, "g", hexgrid.Coord{Q: 0, R: 0}, Hex{PlayerID: "p1"})
	_ = svc.SetHex(ctx, "g", hexgrid.Coord{Q: 1, R: 0}, Hex{PlayerID: "p1", Upgrade: UpgradeBank})

	eco, err := svc.EconomyOf(ctx, "g", "p1")
	if err != nil {
		t.Fatalf("EconomyOf returned error: %v", err)
	}
	if eco.PlayerID != "p1" {
		t.Errorf("playerId = %q, want p1", eco.PlayerID)
	}
	if eco.Tiles != 2 {
		t.Errorf("tiles = %d, want 2", eco.Tiles)
	}
	// 200 + 50 bank + 5*2 tiles.
	if eco.MaxPoints != 260 {
		t.Errorf("maxPoints = %d, want 260", eco.MaxPoints)
	}
	// Points were never touched, so the starting value applies.
	if eco.Points != 200 {
		t.Errorf("points = %d, want 200", eco.Points)
	}
}
