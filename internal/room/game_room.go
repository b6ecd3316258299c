package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/kv"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
)

// economyGraceDelay is added to the start window before the first
// economy tick, so income never lands mid-pick.
const economyGraceDelay = 100 * time.Millisecond

// gameMember is the per-player room state. A disconnected member keeps
// its row so the player can reconnect with the same identity.
type gameMember struct {
	playerID     string
	username     string
	color        string
	sessionID    string
	sender       Sender
	disconnected bool
	started      bool
}

// GameRoom drives one match: admissions, the capture engine, the economy
// tick and the auto-expansion scan. All state below the actor line is
// owned by the Run goroutine.
type GameRoom struct {
	actor

	id             string
	cfg            config.GameConfig
	games          *game.Service
	store          kv.Store
	logger         *slog.Logger
	allowed        map[string]game.StartPlayer
	lobbyStartTime int64
	onDispose      func(roomID string)
	now            func() time.Time

	// Actor-owned state; only Run and its callees touch it.
	ctx           context.Context
	members       map[string]*gameMember
	firstJoinSeen bool
	economyDue    bool

	econTicker   *time.Ticker
	econC        <-chan time.Time
	expandTicker *time.Ticker
	expandC      <-chan time.Time
	startTimer   *time.Timer
	startC       <-chan time.Time
	cleanupTimer *time.Timer
	cleanupC     <-chan time.Time
}

// NewGameRoom builds the room for a freshly created or recovered game.
// players is the kickoff roster; only those ids may join.
func NewGameRoom(id string, players []game.StartPlayer, lobbyStartTime int64, games *game.Service, store kv.Store, cfg config.GameConfig, onDispose func(string)) *GameRoom {
	allowed := make(map[string]game.StartPlayer, len(players))
	for _, sp := range players {
		allowed[sp.PlayerID] = sp
	}

	return &GameRoom{
		actor:          newActor(),
		id:             id,
		cfg:            cfg,
		games:          games,
		store:          store,
		logger:         slog.With("component", "game_room", "room_id", id),
		allowed:        allowed,
		lobbyStartTime: lobbyStartTime,
		onDispose:      onDispose,
		now:            time.Now,
		members:        make(map[string]*gameMember),
	}
}

func (g *GameRoom) ID() string { return g.id }

func (g *GameRoom) Kind() Kind { return KindGame }

// Run is the actor loop. The auto-expansion scan runs from creation; the
// economy tick is armed by the first join; an empty room drains after
// the cleanup delay.
func (g *GameRoom) Run(ctx context.Context) {
	g.ctx = ctx
	defer close(g.done)
	defer g.stopLoops()
	if g.onDispose != nil {
		defer g.onDispose(g.id)
	}

	g.expandTicker = time.NewTicker(g.cfg.AutoExpandInterval)
	g.expandC = g.expandTicker.C

	// A room nobody ever joins still drains.
	g.armCleanup()

	g.logger.Info("Game room running", "players", len(g.allowed))

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("Game room stopping", "reason", "context canceled")
			return
		case <-g.stop:
			g.logger.Info("Game room stopping", "reason", "close requested")
			return
		case ev := <-g.inbox:
			switch {
			case ev.join != nil:
				ev.join.reply <- g.admit(ev.join.sender)
			case ev.leave != nil:
				g.handleLeave(ev.leave)
			case ev.msg != nil:
				g.handleMessage(ev.msg.sender, ev.msg.env)
			}
		case <-g.startC:
			g.startC = nil
			g.economyDue = true
			g.resumeLoops()
		case <-g.econC:
			g.economyTick()
		case <-g.expandC:
			g.autoExpandTick()
		case <-g.cleanupC:
			g.expire()
			return
		}
	}
}

// admit runs the membership protocol for one connection.
func (g *GameRoom) admit(s Sender) error {
	sp, ok := g.allowed[s.PlayerID()]
	if !ok {
		return errors.Unauthorized("player not in this game")
	}

	m := g.members[s.PlayerID()]
	if m == nil {
		m = &gameMember{
			playerID: sp.PlayerID,
			username: sp.Username,
			color:    sp.Color,
		}
		g.members[sp.PlayerID] = m
	} else if m.sender != nil && m.sessionID != s.SessionID() {
		// Idempotent reconnect: the newest session wins.
		m.sender.Close(websocket.CloseNormalClosure, "duplicate session")
	}

	pts, err := g.games.GetPlayerPoints(g.ctx, g.id, sp.PlayerID)
	if err != nil {
		return errors.WrapUnavailable("cannot load player state", err)
	}

	m.sender = s
	m.sessionID = s.SessionID()
	m.disconnected = false
	m.started = pts.StartQ != nil

	g.cancelCleanup()
	if !g.firstJoinSeen {
		g.firstJoinSeen = true
		g.startTimer = time.NewTimer(g.cfg.StartDelay + economyGraceDelay)
		g.startC = g.startTimer.C
	}
	g.resumeLoops()

	s.Send(newEnvelope(msgAssignedColor, assignedColorData{Color: m.color}))
	s.Send(newEnvelope(msgLobbyStartTime, lobbyStartTimeData{
		Timestamp:  g.lobbyStartTime,
		StartDelay: g.cfg.StartDelay.Milliseconds(),
	}))

	hexes, err := g.games.AllHexes(g.ctx, g.id)
	if err != nil {
		g.logger.Error("Failed to load join snapshot", "error", err)
	} else {
		s.Send(historyMessage(hexes))
	}

	g.logger.Info("Player joined game room", "player_id", sp.PlayerID, "session_id", s.SessionID())
	return nil
}

func (g *GameRoom) handleLeave(s Sender) {
	m := g.members[s.PlayerID()]
	if m == nil || m.sessionID != s.SessionID() {
		// An evicted session reporting its own death.
		return
	}

	m.disconnected = true
	m.sender = nil
	g.logger.Info("Player disconnected from game room", "player_id", m.playerID)

	if g.connectedCount() == 0 {
		g.armCleanup()
	}
}

func (g *GameRoom) handleMessage(s Sender, env Envelope) {
	m := g.members[s.PlayerID()]
	if m == nil || m.sessionID != s.SessionID() {
		return
	}

	switch env.Type {
	case msgChooseStart:
		var p coordPayload
		if !g.decode(env, &p) {
			return
		}
		s.Send(fillResultMessage(g.startPick(m, p.coord())))

	case msgClickHex:
		var p coordPayload
		if !g.decode(env, &p) {
			return
		}
		g.handleClick(m, s, p.coord())

	case msgFillHex:
		var p coordPayload
		if !g.decode(env, &p) {
			return
		}
		res, affected := g.captureAttempt(m, p.coord(), captureFill)
		s.Send(fillResultMessage(res))
		g.broadcastEconomies(affected)

	case msgBatchFillHex:
		var p batchFillPayload
		if !g.decode(env, &p) {
			return
		}
		results := make([]fillResultData, 0, len(p.Hexes))
		affected := make(map[string]bool)
		for _, cp := range p.Hexes {
			res, aff := g.captureAttempt(m, cp.coord(), captureFill)
			results = append(results, res)
			for _, id := range aff {
				affected[id] = true
			}
		}
		s.Send(newEnvelope(msgBatchFillResult, batchFillResultData{Results: results}))
		g.broadcastEconomySet(affected)

	case msgUpgradeHex:
		var p upgradePayload
		if !g.decode(env, &p) {
			return
		}
		res := g.upgradeAttempt(m, hexgrid.Coord{Q: p.Q, R: p.R}, p.Type)
		s.Send(newEnvelope(msgUpgradeResult, res))
		if res.OK {
			g.broadcastEconomies([]string{m.playerID})
		}

	case msgBatchUpgradeHex:
		var p batchUpgradePayload
		if !g.decode(env, &p) {
			return
		}
		results := make([]upgradeResultData, 0, len(p.Hexes))
		any := false
		for _, up := range p.Hexes {
			res := g.upgradeAttempt(m, hexgrid.Coord{Q: up.Q, R: up.R}, up.Type)
			results = append(results, res)
			any = any || res.OK
		}
		s.Send(newEnvelope(msgBatchUpgradeResult, batchUpgradeResultData{Results: results}))
		if any {
			g.broadcastEconomies([]string{m.playerID})
		}

	case msgRequestHoverCost:
		var p coordPayload
		if !g.decode(env, &p) {
			return
		}
		s.Send(newEnvelope(msgHoverCost, g.hoverCost(m, p.coord())))

	case msgRequestPointsUpdate:
		eco, err := g.games.EconomyOf(g.ctx, g.id, m.playerID)
		if err != nil {
			g.logger.Error("Failed to compute economy", "player_id", m.playerID, "error", err)
			return
		}
		s.Send(pointsUpdateMessage(eco))

	default:
		g.logger.Debug("Ignoring unknown message type", "type", env.Type, "player_id", m.playerID)
	}
}

// handleClick is the deliberate single-click path: clicking owned ground
// opens the tile menu instead of attempting a capture.
func (g *GameRoom) handleClick(m *gameMember, s Sender, c hexgrid.Coord) {
	target, err := g.games.GetHex(g.ctx, g.id, c)
	if err != nil {
		s.Send(fillResultMessage(fillResultData{Q: c.Q, R: c.R, Reason: reasonUnavailable}))
		return
	}
	if target != nil && target.PlayerID == m.playerID {
		s.Send(newEnvelope(msgOpenOwnedTileMenu, ownedTileMenuData{
			Q:       c.Q,
			R:       c.R,
			Upgrade: string(target.Upgrade),
		}))
		return
	}

	res, affected := g.captureAttempt(m, c, captureClick)
	s.Send(fillResultMessage(res))
	g.broadcastEconomies(affected)
}

// economyTick credits connected players with base income, silently: the
// protocol deliberately emits no frame here.
func (g *GameRoom) economyTick() {
	if !g.store.Available() {
		g.suspendLoops()
		return
	}

	ids := make([]string, 0, len(g.members))
	for id, m := range g.members {
		if !m.disconnected {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)

	if err := g.games.AccrueIncome(g.ctx, g.id, ids, g.cfg.BaseIncome); err != nil {
		g.logger.Error("Economy tick failed", "error", err)
		if kv.IsUnavailable(err) {
			g.suspendLoops()
		}
	}
}

// autoExpandTick plans captures against a snapshot, then applies them.
func (g *GameRoom) autoExpandTick() {
	if !g.store.Available() {
		g.suspendLoops()
		return
	}

	hexes, err := g.games.AllHexes(g.ctx, g.id)
	if err != nil {
		g.logger.Error("Auto-expansion scan failed", "error", err)
		if kv.IsUnavailable(err) {
			g.suspendLoops()
		}
		return
	}

	plan := planAutoCaptures(g.cfg, hexes)
	if len(plan) == 0 {
		return
	}

	now := g.now().UnixMilli()
	affected := make(map[string]bool)
	for _, capture := range plan {
		sp, ok := g.allowed[capture.owner]
		if !ok {
			continue
		}
		next := game.Hex{
			PlayerID:    capture.owner,
			Color:       sp.Color,
			CaptureTime: now,
		}
		if err := g.games.SetHex(g.ctx, g.id, capture.coord, next); err != nil {
			g.logger.Error("Failed to apply auto-capture", "hex", capture.coord.Key(), "error", err)
			continue
		}

		event := game.Event{
			GameID:    g.id,
			PlayerID:  capture.owner,
			Color:     sp.Color,
			Q:         capture.coord.Q,
			R:         capture.coord.R,
			EventType: game.EventAutoCapture,
			Timestamp: now,
		}
		if err := g.games.SaveEvent(g.ctx, event); err != nil {
			g.logger.Error("Failed to record auto-capture event", "error", err)
		}

		g.broadcast(updateMessage(capture.coord, next))
		affected[capture.owner] = true
		if capture.prevOwner != "" {
			affected[capture.prevOwner] = true
		}
	}

	g.logger.Info("Auto-expansion applied", "captures", len(plan))
	g.broadcastEconomySet(affected)
}

// expire closes the game after the drain window passes with nobody
// connected.
func (g *GameRoom) expire() {
	g.logger.Info("Game room drained; closing game")

	if err := g.games.CloseGame(g.ctx, g.id); err != nil {
		g.logger.Error("Failed to close game", "error", err)
	}

	for id := range g.members {
		counts, err := g.games.PlayerUpgradeCounts(g.ctx, g.id, id)
		if err != nil {
			continue
		}
		g.logger.Debug("Final holdings",
			"player_id", id,
			"banks", counts["banks"],
			"forts", counts["forts"],
			"cities", counts["cities"],
		)
	}
}

func (g *GameRoom) broadcast(env Envelope) {
	for _, m := range g.members {
		if m.sender != nil && !m.disconnected {
			m.sender.Send(env)
		}
	}
}

func (g *GameRoom) broadcastEconomies(playerIDs []string) {
	for _, id := range playerIDs {
		eco, err := g.games.EconomyOf(g.ctx, g.id, id)
		if err != nil {
			g.logger.Error("Failed to compute economy", "player_id", id, "error", err)
			continue
		}
		g.broadcast(pointsUpdateMessage(eco))
	}
}

func (g *GameRoom) broadcastEconomySet(playerIDs map[string]bool) {
	if len(playerIDs) == 0 {
		return
	}
	ordered := make([]string, 0, len(playerIDs))
	for id := range playerIDs {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	g.broadcastEconomies(ordered)
}

func (g *GameRoom) connectedCount() int {
	n := 0
	for _, m := range g.members {
		if !m.disconnected && m.sender != nil {
			n++
		}
	}
	return n
}

func (g *GameRoom) decode(env Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		g.logger.Warn("Discarding malformed payload", "type", env.Type, "error", err)
		return false
	}
	return true
}

func (g *GameRoom) armCleanup() {
	if g.cleanupC != nil {
		return
	}
	g.cleanupTimer = time.NewTimer(g.cfg.CleanupDelay)
	g.cleanupC = g.cleanupTimer.C
	g.logger.Info("Game room empty; drain timer armed", "delay", g.cfg.CleanupDelay)
}

func (g *GameRoom) cancelCleanup() {
	if g.cleanupTimer == nil {
		return
	}
	g.cleanupTimer.Stop()
	g.cleanupTimer = nil
	g.cleanupC = nil
}

// suspendLoops parks the periodic work while the store is unreachable.
// The next successful join resumes it.
func (g *GameRoom) suspendLoops() {
	if g.econTicker == nil && g.expandTicker == nil {
		return
	}
	g.logger.Warn("Store unavailable; suspending room loops")
	g.stopLoops()
}

func (g *GameRoom) stopLoops() {
	if g.econTicker != nil {
		g.econTicker.Stop()
		g.econTicker = nil
		g.econC = nil
	}
	if g.expandTicker != nil {
		g.expandTicker.Stop()
		g.expandTicker = nil
		g.expandC = nil
	}
	if g.startTimer != nil {
		g.startTimer.Stop()
	}
	if g.cleanupTimer != nil {
		g.cleanupTimer.Stop()
	}
}

// resumeLoops restarts whatever periodic work should be running, if the
// store answers. The economy tick only starts once its initial delay has
// elapsed.
func (g *GameRoom) resumeLoops() {
	if !g.store.Available() {
		return
	}
	if g.expandC == nil {
		g.expandTicker = time.NewTicker(g.cfg.AutoExpandInterval)
		g.expandC = g.expandTicker.C
	}
	if g.economyDue && g.econC == nil {
		g.econTicker = time.NewTicker(g.cfg.TickInterval)
		g.econC = g.econTicker.C
	}
}
