package room

import (
	"sort"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
)

// autoCapture is one planned ownership transfer from the expansion scan.
type autoCapture struct {
	coord     hexgrid.Coord
	owner     string
	prevOwner string
}

// planAutoCaptures runs the majority-pressure scan over a snapshot and
// returns the captures to apply, in coordinate order. Every decision is
// made against the snapshot, so captures in the same pass never feed
// each other (snapshot-then-mutate).
func planAutoCaptures(cfg config.GameConfig, hexes map[hexgrid.Coord]game.Hex) []autoCapture {
	// Candidates: every written cell plus the ring around owned ones.
	candidates := make(map[hexgrid.Coord]bool, len(hexes)*2)
	for c, h := range hexes {
		candidates[c] = true
		if h.PlayerID == "" {
			continue
		}
		for _, n := range c.Neighbors() {
			candidates[n] = true
		}
	}

	ordered := make([]hexgrid.Coord, 0, len(candidates))
	for c := range candidates {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Q != ordered[j].Q {
			return ordered[i].Q < ordered[j].Q
		}
		return ordered[i].R < ordered[j].R
	})

	var plan []autoCapture
	for _, c := range ordered {
		if capture, ok := evaluateTarget(cfg, hexes, c); ok {
			plan = append(plan, capture)
		}
	}
	return plan
}

// evaluateTarget decides whether majority pressure flips one cell.
func evaluateTarget(cfg config.GameConfig, hexes map[hexgrid.Coord]game.Hex, c hexgrid.Coord) (autoCapture, bool) {
	target, exists := hexes[c]
	if exists && target.Terrain != game.TerrainNone {
		// Mountains are impassable and rivers unclaimable; neither flips.
		return autoCapture{}, false
	}

	// Count surrounding owners and find the strict majority holder.
	counts := make(map[string]int, 6)
	for _, n := range c.Neighbors() {
		if h, ok := hexes[n]; ok && h.PlayerID != "" {
			counts[h.PlayerID]++
		}
	}

	maxPlayer := ""
	maxCount := 0
	tied := false
	for playerID, count := range counts {
		switch {
		case count > maxCount:
			maxPlayer, maxCount, tied = playerID, count, false
		case count == maxCount:
			tied = true
		}
	}
	if tied || maxCount < cfg.AutoCaptureThreshold {
		return autoCapture{}, false
	}

	prevOwner := ""
	if exists {
		prevOwner = target.PlayerID
	}
	if prevOwner == maxPlayer {
		return autoCapture{}, false
	}

	// Taking another player's tile needs full enclosure or a river route.
	if prevOwner != "" {
		enclosed := true
		for _, n := range c.Neighbors() {
			if h, ok := hexes[n]; !ok || h.PlayerID != maxPlayer {
				enclosed = false
				break
			}
		}
		riverRoute := game.IsAdjacentToRiver(hexes, c) &&
			game.PlayerHasRiverAccess(hexes, maxPlayer)
		if !enclosed && !riverRoute {
			return autoCapture{}, false
		}
	}

	// Fort protection: a fort that is not the majority holder's shields
	// the target, whether it stands on it or beside it.
	if exists && target.Upgrade == game.UpgradeFort && target.PlayerID != maxPlayer {
		return autoCapture{}, false
	}
	for _, n := range c.Neighbors() {
		if h, ok := hexes[n]; ok && h.Upgrade == game.UpgradeFort && h.PlayerID != maxPlayer {
			return autoCapture{}, false
		}
	}

	return autoCapture{coord: c, owner: maxPlayer, prevOwner: prevOwner}, true
}
