package room

import (
	"math"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
)

// riverDiscount is applied to the base expansion cost when the target
// sits on a river bank and the attacker already holds one.
const riverDiscount = 0.7

// captureMode selects between the deliberate click path, which enforces
// adjacency, and the drag/batch path, which trusts the client's brush.
type captureMode int

const (
	captureClick captureMode = iota
	captureFill
)

// expansionCost grows logarithmically with the attacker's territory:
// hexValue + floor(expGrowth * log2(tiles+2)).
func expansionCost(cfg config.GameConfig, attackerTiles int) int {
	return cfg.HexValue + int(math.Floor(float64(cfg.ExpGrowth)*math.Log2(float64(attackerTiles+2))))
}

// defenderFortified reports whether the target or any of its neighbors
// carries a fort owned by the defender.
func defenderFortified(hexes map[hexgrid.Coord]game.Hex, c hexgrid.Coord, defenderID string) bool {
	if h, ok := hexes[c]; ok && h.Upgrade == game.UpgradeFort && h.PlayerID == defenderID {
		return true
	}
	for _, n := range c.Neighbors() {
		if h, ok := hexes[n]; ok && h.Upgrade == game.UpgradeFort && h.PlayerID == defenderID {
			return true
		}
	}
	return false
}

// captureCost implements the cost model over a tile snapshot. It returns
// nil when the target already belongs to the attacker (not a capture).
// defenderPoints is only consulted when the target is held by another
// player; pass 0 otherwise.
func captureCost(cfg config.GameConfig, hexes map[hexgrid.Coord]game.Hex, attackerID string, c hexgrid.Coord, defenderPoints int) *int {
	target, exists := hexes[c]
	if exists && target.PlayerID == attackerID {
		return nil
	}

	expansion := expansionCost(cfg, game.CountTiles(hexes, attackerID))

	cost := expansion
	if game.IsAdjacentToRiver(hexes, c) && game.PlayerHasRiverAccess(hexes, attackerID) {
		cost = int(math.Floor(float64(cost) * riverDiscount))
		if cost < 1 {
			cost = 1
		}
	}

	if exists && target.PlayerID != "" {
		defTiles := game.CountTiles(hexes, target.PlayerID)
		if defTiles < 1 {
			defTiles = 1
		}
		strength := (1 + float64(defenderPoints)/float64(defTiles)) * float64(defTiles) * (float64(cfg.HexValue) + 0.5)
		if defenderFortified(hexes, c, target.PlayerID) {
			strength *= 2
		}
		attackCost := expansion + cfg.OccupiedBase + int(math.Floor(cfg.AttackMult*math.Sqrt(strength)))
		if attackCost > cost {
			cost = attackCost
		}
	}
	return &cost
}

// adjacencyAllowed implements the click-path reach rule: the target must
// border owned territory, unless the attacker holds nothing yet, or
// both the target and the attacker touch a river.
func adjacencyAllowed(hexes map[hexgrid.Coord]game.Hex, attackerID string, c hexgrid.Coord) bool {
	tiles := 0
	for hc, h := range hexes {
		if h.PlayerID != attackerID {
			continue
		}
		if hexgrid.Adjacent(hc, c) {
			return true
		}
		tiles++
	}
	if tiles == 0 {
		return true
	}
	return game.IsAdjacentToRiver(hexes, c) && game.PlayerHasRiverAccess(hexes, attackerID)
}

// captureAttempt runs the single-hex capture protocol for one target and
// returns the per-hex result plus the players whose economies changed.
// Tile updates are broadcast here; points updates are left to the caller
// so batches can aggregate them.
func (g *GameRoom) captureAttempt(m *gameMember, c hexgrid.Coord, mode captureMode) (fillResultData, []string) {
	res := fillResultData{Q: c.Q, R: c.R}

	if !m.started {
		res.Reason = reasonNotStarted
		return res, nil
	}

	hexes, err := g.games.AllHexes(g.ctx, g.id)
	if err != nil {
		res.Reason = reasonUnavailable
		return res, nil
	}

	target, exists := hexes[c]
	switch {
	case exists && target.Terrain == game.TerrainMountain:
		res.Reason = reasonImpassable
		return res, nil
	case exists && target.Terrain == game.TerrainRiver:
		res.Reason = reasonUnclaimable
		return res, nil
	}

	defenderID := ""
	defenderPoints := 0
	if exists && target.PlayerID != "" && target.PlayerID != m.playerID {
		defenderID = target.PlayerID
		defenderPoints, err = g.games.StoredPoints(g.ctx, g.id, defenderID)
		if err != nil {
			res.Reason = reasonUnavailable
			return res, nil
		}
	}

	cost := captureCost(g.cfg, hexes, m.playerID, c, defenderPoints)
	pts, err := g.games.GetPlayerPoints(g.ctx, g.id, m.playerID)
	if err != nil {
		res.Reason = reasonUnavailable
		return res, nil
	}
	if cost == nil || pts.Points < *cost {
		res.Reason = reasonInsufficient
		return res, nil
	}

	if mode == captureClick && !adjacencyAllowed(hexes, m.playerID, c) {
		res.Reason = reasonNotAdjacent
		return res, nil
	}

	if _, err := g.games.UpdatePlayerPoints(g.ctx, g.id, m.playerID, pts.Points-*cost); err != nil {
		res.Reason = reasonUnavailable
		return res, nil
	}

	// Ownership transfer keeps terrain and destroys everything else:
	// upgrades fall with the tile and a captured start loses its crown.
	now := g.now().UnixMilli()
	next := game.Hex{
		PlayerID:    m.playerID,
		Color:       m.color,
		Terrain:     target.Terrain,
		CaptureTime: now,
	}
	if err := g.games.SetHex(g.ctx, g.id, c, next); err != nil {
		res.Reason = reasonUnavailable
		return res, nil
	}

	event := game.Event{
		GameID:    g.id,
		PlayerID:  m.playerID,
		Color:     m.color,
		Q:         c.Q,
		R:         c.R,
		EventType: game.EventCapture,
		Timestamp: now,
	}
	if err := g.games.SaveEvent(g.ctx, event); err != nil {
		g.logger.Error("Failed to record capture event", "error", err)
	}

	g.broadcast(updateMessage(c, next))

	res.OK = true
	affected := []string{m.playerID}
	if defenderID != "" {
		affected = append(affected, defenderID)
	}
	return res, affected
}

// startPick claims the player's single start hex during the start
// window. The boundary instant is inclusive: a pick landing exactly at
// lobbyStartTime + startDelay is accepted.
func (g *GameRoom) startPick(m *gameMember, c hexgrid.Coord) fillResultData {
	res := fillResultData{Q: c.Q, R: c.R}

	if m.started {
		res.Reason = reasonAlreadyStarted
		return res
	}

	deadline := g.lobbyStartTime + g.cfg.StartDelay.Milliseconds()
	now := g.now().UnixMilli()
	if now > deadline {
		res.Reason = reasonWindowClosed
		return res
	}

	target, err := g.games.GetHex(g.ctx, g.id, c)
	if err != nil {
		res.Reason = reasonUnavailable
		return res
	}
	if target != nil {
		switch {
		case target.Terrain == game.TerrainMountain:
			res.Reason = reasonImpassable
			return res
		case target.Terrain == game.TerrainRiver:
			res.Reason = reasonUnclaimable
			return res
		case target.PlayerID != "":
			res.Reason = reasonOccupied
			return res
		}
	}

	next := game.Hex{
		PlayerID:    m.playerID,
		Color:       m.color,
		CaptureTime: now,
		IsStart:     true,
	}
	if err := g.games.SetHex(g.ctx, g.id, c, next); err != nil {
		res.Reason = reasonUnavailable
		return res
	}
	if err := g.games.UpdateStartPosition(g.ctx, g.id, m.playerID, c); err != nil {
		res.Reason = reasonUnavailable
		return res
	}

	event := game.Event{
		GameID:    g.id,
		PlayerID:  m.playerID,
		Color:     m.color,
		Q:         c.Q,
		R:         c.R,
		EventType: game.EventStart,
		Timestamp: now,
	}
	if err := g.games.SaveEvent(g.ctx, event); err != nil {
		g.logger.Error("Failed to record start event", "error", err)
	}

	m.started = true
	g.broadcast(updateMessage(c, next))
	g.logger.Info("Start position chosen", "player_id", m.playerID, "hex", c.Key())

	res.OK = true
	return res
}

// upgradeAttempt buys a structure on an owned tile.
func (g *GameRoom) upgradeAttempt(m *gameMember, c hexgrid.Coord, upgradeType string) upgradeResultData {
	res := upgradeResultData{Q: c.Q, R: c.R, Type: upgradeType}

	upgrade := game.Upgrade(upgradeType)
	if !game.ValidUpgrade(upgrade) {
		res.Error = reasonUnknownUpgrade
		return res
	}

	target, err := g.games.GetHex(g.ctx, g.id, c)
	if err != nil {
		res.Error = reasonUnavailable
		return res
	}
	if target == nil || target.PlayerID != m.playerID {
		res.Error = reasonNotOwner
		return res
	}

	cost := g.upgradeCost(upgrade)
	pts, err := g.games.GetPlayerPoints(g.ctx, g.id, m.playerID)
	if err != nil {
		res.Error = reasonUnavailable
		return res
	}
	if pts.Points < cost {
		res.Error = reasonInsufficient
		return res
	}

	if _, err := g.games.UpdatePlayerPoints(g.ctx, g.id, m.playerID, pts.Points-cost); err != nil {
		res.Error = reasonUnavailable
		return res
	}
	if err := g.games.SetHexUpgrade(g.ctx, g.id, c, upgrade); err != nil {
		res.Error = reasonUnavailable
		return res
	}

	now := g.now().UnixMilli()
	event := game.Event{
		GameID:    g.id,
		PlayerID:  m.playerID,
		Color:     m.color,
		Q:         c.Q,
		R:         c.R,
		EventType: game.EventUpgrade,
		Timestamp: now,
	}
	if err := g.games.SaveEvent(g.ctx, event); err != nil {
		g.logger.Error("Failed to record upgrade event", "error", err)
	}

	target.Upgrade = upgrade
	g.broadcast(updateMessage(c, *target))

	res.OK = true
	return res
}

func (g *GameRoom) upgradeCost(u game.Upgrade) int {
	switch u {
	case game.UpgradeBank:
		return g.cfg.UpgradeBankCost
	case game.UpgradeFort:
		return g.cfg.UpgradeFortCost
	case game.UpgradeCity:
		return g.cfg.UpgradeCityCost
	default:
		return 0
	}
}

// hoverCost computes the number the server would charge for the target,
// without touching any state.
func (g *GameRoom) hoverCost(m *gameMember, c hexgrid.Coord) hoverCostData {
	res := hoverCostData{Q: c.Q, R: c.R}

	hexes, err := g.games.AllHexes(g.ctx, g.id)
	if err != nil {
		return res
	}

	defenderPoints := 0
	if target, ok := hexes[c]; ok && target.PlayerID != "" && target.PlayerID != m.playerID {
		defenderPoints, err = g.games.StoredPoints(g.ctx, g.id, target.PlayerID)
		if err != nil {
			return res
		}
	}

	res.Cost = captureCost(g.cfg, hexes, m.playerID, c, defenderPoints)
	return res
}
