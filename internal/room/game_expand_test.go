package room

import (
	"testing"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
)

func expandConfig() config.GameConfig {
	return config.GameConfig{AutoCaptureThreshold: 3}
}

// ring builds n owned neighbors around the origin.
func ring(owner string, n int) map[hexgrid.Coord]game.Hex {
	hexes := make(map[hexgrid.Coord]game.Hex)
	origin := hexgrid.Coord{}
	for i, c := range origin.Neighbors() {
		if i >= n {
			break
		}
		hexes[c] = game.Hex{PlayerID: owner}
	}
	return hexes
}

func planFor(t *testing.T, hexes map[hexgrid.Coord]game.Hex, c hexgrid.Coord) (autoCapture, bool) {
	t.Helper()
	for _, capture := range planAutoCaptures(expandConfig(), hexes) {
		if capture.coord == c {
			return capture, true
		}
	}
	return autoCapture{}, false
}

func TestPlanCapturesUnownedTileAtThreshold(t *testing.T) {
	hexes := ring("a", 3)

	capture, ok := planFor(t, hexes, hexgrid.Coord{})
	if !ok {
		t.Fatal("three surrounding tiles should flip an empty cell")
	}
	if capture.owner != "a" || capture.prevOwner != "" {
		t.Errorf("capture = %+v, want owner a with no previous owner", capture)
	}
}

func TestPlanBelowThresholdDoesNothing(t *testing.T) {
	hexes := ring("a", 2)

	if _, ok := planFor(t, hexes, hexgrid.Coord{}); ok {
		t.Error("two surrounding tiles must not flip a cell")
	}
}

func TestPlanTieBlocksCapture(t *testing.T) {
	origin := hexgrid.Coord{}
	neighbors := origin.Neighbors()

	hexes := make(map[hexgrid.Coord]game.Hex)
	for i := 0; i < 3; i++ {
		hexes[neighbors[i]] = game.Hex{PlayerID: "a"}
	}
	for i := 3; i < 6; i++ {
		hexes[neighbors[i]] = game.Hex{PlayerID: "b"}
	}

	if _, ok := planFor(t, hexes, origin); ok {
		t.Error("a 3-3 tie must not flip the cell")
	}
}

func TestPlanSkipsCurrentOwner(t *testing.T) {
	hexes := ring("a", 3)
	hexes[hexgrid.Coord{}] = game.Hex{PlayerID: "a"}

	if _, ok := planFor(t, hexes, hexgrid.Coord{}); ok {
		t.Error("the majority holder's own tile must not re-flip")
	}
}

func TestPlanOwnedTileNeedsEnclosure(t *testing.T) {
	// Majority pressure alone (3 or even 5 neighbors) cannot take a tile
	// someone holds; full enclosure can.
	hexes := ring("a", 5)
	hexes[hexgrid.Coord{}] = game.Hex{PlayerID: "b"}

	if _, ok := planFor(t, hexes, hexgrid.Coord{}); ok {
		t.Fatal("a held tile with an open side must not flip")
	}

	hexes = ring("a", 6)
	hexes[hexgrid.Coord{}] = game.Hex{PlayerID: "b"}

	capture, ok := planFor(t, hexes, hexgrid.Coord{})
	if !ok {
		t.Fatal("a fully enclosed tile should flip")
	}
	if capture.owner != "a" || capture.prevOwner != "b" {
		t.Errorf("capture = %+v, want a taking over from b", capture)
	}
}

func TestPlanOwnedTileFlipsViaRiverRoute(t *testing.T) {
	// Five of six neighbors belong to the attacker and the open corridor
	// is a river both sides touch.
	origin := hexgrid.Coord{}
	neighbors := origin.Neighbors()

	hexes := make(map[hexgrid.Coord]game.Hex)
	for i := 0; i < 5; i++ {
		hexes[neighbors[i]] = game.Hex{PlayerID: "a"}
	}
	hexes[neighbors[5]] = game.Hex{Terrain: game.TerrainRiver}
	hexes[origin] = game.Hex{PlayerID: "b"}

	capture, ok := planFor(t, hexes, origin)
	if !ok {
		t.Fatal("river route should allow taking the held tile")
	}
	if capture.prevOwner != "b" {
		t.Errorf("prevOwner = %q, want b", capture.prevOwner)
	}
}

func TestPlanFortShieldsTargetAndNeighbors(t *testing.T) {
	// A defender fort on the target blocks the flip.
	hexes := ring("a", 6)
	hexes[hexgrid.Coord{}] = game.Hex{PlayerID: "b", Upgrade: game.UpgradeFort}
	if _, ok := planFor(t, hexes, hexgrid.Coord{}); ok {
		t.Error("a fort on the target must block auto-capture")
	}

	// A foreign fort beside an empty target blocks it too.
	hexes = ring("a", 3)
	neighbors := (hexgrid.Coord{}).Neighbors()
	hexes[neighbors[5]] = game.Hex{PlayerID: "b", Upgrade: game.UpgradeFort}
	if _, ok := planFor(t, hexes, hexgrid.Coord{}); ok {
		t.Error("a foreign fort beside the target must block auto-capture")
	}

	// The majority holder's own fort does not block.
	hexes = ring("a", 3)
	hexes[neighbors[0]] = game.Hex{PlayerID: "a", Upgrade: game.UpgradeFort}
	if _, ok := planFor(t, hexes, hexgrid.Coord{}); !ok {
		t.Error("the capturing player's own fort must not block the flip")
	}
}

func TestPlanNeverFlipsTerrain(t *testing.T) {
	for _, terrain := range []game.Terrain{game.TerrainMountain, game.TerrainRiver} {
		hexes := ring("a", 6)
		hexes[hexgrid.Coord{}] = game.Hex{Terrain: terrain}

		if _, ok := planFor(t, hexes, hexgrid.Coord{}); ok {
			t.Errorf("%s must never flip", terrain)
		}
	}
}

func TestPlanIsDeterministicallyOrdered(t *testing.T) {
	// Two independent pockets; the plan must come out sorted by (q, r).
	hexes := make(map[hexgrid.Coord]game.Hex)
	for _, base := range []hexgrid.Coord{{Q: 10, R: 10}, {Q: -10, R: -10}} {
		for i, n := range base.Neighbors() {
			if i >= 3 {
				break
			}
			hexes[n] = game.Hex{PlayerID: "a"}
		}
	}

	plan := planAutoCaptures(expandConfig(), hexes)
	for i := 1; i < len(plan); i++ {
		prev, cur := plan[i-1].coord, plan[i].coord
		if cur.Q < prev.Q || (cur.Q == prev.Q && cur.R < prev.R) {
			t.Fatalf("plan out of order: %v before %v", prev, cur)
		}
	}
	if len(plan) == 0 {
		t.Fatal("expected at least one planned capture")
	}
}
