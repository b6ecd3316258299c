package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/lobby"
	"github.com/JTTrickZ/hexgame-main/internal/player"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
)

// countdownSeconds is the kickoff countdown length once enough players
// are ready.
const countdownSeconds = 5

// lobbyDrainDelay is how long an empty lobby lingers before closing.
const lobbyDrainDelay = 60 * time.Second

// Matchmaker allocates rooms on behalf of a lobby. The hub implements
// it; lobbies stay unaware of room registration details.
type Matchmaker interface {
	CreateGameRoom(ctx context.Context, players []game.StartPlayer, lobbyStartTime int64) (string, error)
	CreateReplayRoom(ctx context.Context, gameID string) (string, error)
}

type lobbyMember struct {
	playerID  string
	username  string
	color     string
	sessionID string
	sender    Sender
	ready     bool
}

// LobbyRoom stages players before a game. It broadcasts the roster on
// every change, runs the kickoff countdown, and hands the ready set to
// the matchmaker.
type LobbyRoom struct {
	actor

	id         string
	cfg        config.LobbyConfig
	lobbies    *lobby.Repository
	players    *player.Service
	matchmaker Matchmaker
	logger     *slog.Logger
	onDispose  func(roomID string)
	now        func() time.Time

	countdownTick time.Duration
	drainDelay    time.Duration

	// Actor-owned state.
	ctx       context.Context
	members   map[string]*lobbyMember
	countdown int

	countdownTicker *time.Ticker
	countdownC      <-chan time.Time
	drainTimer      *time.Timer
	drainC          <-chan time.Time
}

func NewLobbyRoom(id string, lobbies *lobby.Repository, players *player.Service, matchmaker Matchmaker, cfg config.LobbyConfig, onDispose func(string)) *LobbyRoom {
	return &LobbyRoom{
		actor:         newActor(),
		id:            id,
		cfg:           cfg,
		lobbies:       lobbies,
		players:       players,
		matchmaker:    matchmaker,
		logger:        slog.With("component", "lobby_room", "room_id", id),
		onDispose:     onDispose,
		now:           time.Now,
		countdownTick: time.Second,
		drainDelay:    lobbyDrainDelay,
		members:       make(map[string]*lobbyMember),
	}
}

func (l *LobbyRoom) ID() string { return l.id }

func (l *LobbyRoom) Kind() Kind { return KindLobby }

func (l *LobbyRoom) Run(ctx context.Context) {
	l.ctx = ctx
	defer close(l.done)
	defer l.stopTimers()
	if l.onDispose != nil {
		defer l.onDispose(l.id)
	}

	l.armDrain()
	l.logger.Info("Lobby room running")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Lobby room stopping", "reason", "context canceled")
			return
		case <-l.stop:
			l.logger.Info("Lobby room stopping", "reason", "close requested")
			return
		case ev := <-l.inbox:
			switch {
			case ev.join != nil:
				ev.join.reply <- l.admit(ev.join.sender)
			case ev.leave != nil:
				l.handleLeave(ev.leave)
			case ev.msg != nil:
				l.handleMessage(ev.msg.sender, ev.msg.env)
			}
		case <-l.countdownC:
			l.tickCountdown()
		case <-l.drainC:
			l.drain()
			return
		}
	}
}

func (l *LobbyRoom) admit(s Sender) error {
	if len(l.members) >= l.cfg.Capacity {
		if _, present := l.members[s.PlayerID()]; !present {
			return errors.Unauthorized("lobby is full")
		}
	}

	profile, err := l.players.Get(l.ctx, s.PlayerID())
	if err != nil {
		return errors.WrapUnavailable("cannot load player", err)
	}
	if profile == nil {
		return errors.Unauthorized("unknown player")
	}

	m := l.members[s.PlayerID()]
	if m == nil {
		m = &lobbyMember{
			playerID: profile.ID,
			username: profile.Username,
			color:    profile.Color,
		}
		l.members[profile.ID] = m
		if err := l.lobbies.AddPlayer(l.ctx, l.id, profile.ID); err != nil {
			l.logger.Error("Failed to record lobby membership", "player_id", profile.ID, "error", err)
		}
	} else if m.sender != nil && m.sessionID != s.SessionID() {
		m.sender.Close(websocket.CloseNormalClosure, "duplicate session")
	}

	m.sender = s
	m.sessionID = s.SessionID()
	l.cancelDrain()

	l.logger.Info("Player joined lobby", "player_id", profile.ID, "username", profile.Username)
	l.broadcastState()
	return nil
}

func (l *LobbyRoom) handleLeave(s Sender) {
	m := l.members[s.PlayerID()]
	if m == nil || m.sessionID != s.SessionID() {
		return
	}

	delete(l.members, m.playerID)
	if err := l.lobbies.RemovePlayer(l.ctx, l.id, m.playerID); err != nil {
		l.logger.Error("Failed to remove lobby membership", "player_id", m.playerID, "error", err)
	}
	l.logger.Info("Player left lobby", "player_id", m.playerID)

	l.maybeCancelCountdown()
	l.broadcastState()

	if len(l.members) == 0 {
		l.armDrain()
	}
}

func (l *LobbyRoom) handleMessage(s Sender, env Envelope) {
	m := l.members[s.PlayerID()]
	if m == nil || m.sessionID != s.SessionID() {
		return
	}

	switch env.Type {
	case msgJoinGame:
		if m.ready {
			return
		}
		m.ready = true
		l.logger.Info("Player ready", "player_id", m.playerID, "ready", l.readyCount())
		l.broadcastState()
		l.maybeStartCountdown()

	case msgCreateReplay:
		var p createReplayPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.GameID == "" {
			l.logger.Warn("Discarding malformed replay request", "error", err)
			return
		}
		roomID, err := l.matchmaker.CreateReplayRoom(l.ctx, p.GameID)
		if err != nil {
			l.logger.Warn("Replay creation failed", "game_id", p.GameID, "error", err)
			return
		}
		s.Send(newEnvelope(msgReplayCreated, roomRefData{RoomID: roomID}))

	default:
		l.logger.Debug("Ignoring unknown message type", "type", env.Type, "player_id", m.playerID)
	}
}

func (l *LobbyRoom) maybeStartCountdown() {
	if l.countdownC != nil || l.readyCount() < l.cfg.MinReady {
		return
	}

	l.countdown = countdownSeconds
	l.countdownTicker = time.NewTicker(l.countdownTick)
	l.countdownC = l.countdownTicker.C
	l.broadcast(newEnvelope(msgCountdown, countdownData{Seconds: l.countdown}))
	l.logger.Info("Countdown started", "ready", l.readyCount())
}

// maybeCancelCountdown quietly stops a running countdown when the ready
// set shrinks below the threshold. No frame is sent; the next qualifying
// ready restarts from the top.
func (l *LobbyRoom) maybeCancelCountdown() {
	if l.countdownC == nil || l.readyCount() >= l.cfg.MinReady {
		return
	}
	l.stopCountdown()
	l.logger.Info("Countdown canceled", "ready", l.readyCount())
}

func (l *LobbyRoom) tickCountdown() {
	if l.readyCount() < l.cfg.MinReady {
		l.stopCountdown()
		return
	}

	l.countdown--
	l.broadcast(newEnvelope(msgCountdown, countdownData{Seconds: l.countdown}))
	if l.countdown > 0 {
		return
	}

	l.stopCountdown()
	l.kickoff()
}

// kickoff snapshots the ready roster, creates the game room and moves
// the ready players out of the lobby.
func (l *LobbyRoom) kickoff() {
	ready := make([]*lobbyMember, 0, len(l.members))
	for _, m := range l.members {
		if m.ready {
			ready = append(ready, m)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].playerID < ready[j].playerID })

	roster := make([]game.StartPlayer, len(ready))
	for i, m := range ready {
		roster[i] = game.StartPlayer{
			PlayerID: m.playerID,
			Username: m.username,
			Color:    m.color,
		}
	}

	lobbyStartTime := l.now().UnixMilli()
	if err := l.lobbies.SetStartTime(l.ctx, l.id, lobbyStartTime); err != nil {
		l.logger.Error("Failed to record lobby start time", "error", err)
	}

	roomID, err := l.matchmaker.CreateGameRoom(l.ctx, roster, lobbyStartTime)
	if err != nil {
		l.logger.Error("Game room creation failed; lobby stays open", "error", err)
		return
	}

	l.logger.Info("Game starting", "game_room_id", roomID, "players", len(roster))

	env := newEnvelope(msgStartGame, roomRefData{RoomID: roomID})
	for _, m := range ready {
		if m.sender != nil {
			m.sender.Send(env)
		}
		delete(l.members, m.playerID)
		if err := l.lobbies.RemovePlayer(l.ctx, l.id, m.playerID); err != nil {
			l.logger.Error("Failed to remove lobby membership", "player_id", m.playerID, "error", err)
		}
	}

	l.broadcastState()
	if len(l.members) == 0 {
		l.armDrain()
	}
}

// drain closes the lobby after it sat empty for the full delay.
func (l *LobbyRoom) drain() {
	l.logger.Info("Lobby drained; closing")
	if err := l.lobbies.Close(l.ctx, l.id); err != nil {
		l.logger.Error("Failed to close lobby", "error", err)
	}
}

func (l *LobbyRoom) broadcastState() {
	views := make([]lobbyMemberView, 0, len(l.members))
	for _, m := range l.members {
		views = append(views, lobbyMemberView{
			PlayerID: m.playerID,
			Username: m.username,
			Color:    m.color,
			Started:  m.ready,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].PlayerID < views[j].PlayerID })
	l.broadcast(newEnvelope(msgLobbyState, lobbyStateData{Players: views}))
}

func (l *LobbyRoom) broadcast(env Envelope) {
	for _, m := range l.members {
		if m.sender != nil {
			m.sender.Send(env)
		}
	}
}

func (l *LobbyRoom) readyCount() int {
	n := 0
	for _, m := range l.members {
		if m.ready {
			n++
		}
	}
	return n
}

func (l *LobbyRoom) armDrain() {
	if l.drainC != nil {
		return
	}
	l.drainTimer = time.NewTimer(l.drainDelay)
	l.drainC = l.drainTimer.C
}

func (l *LobbyRoom) cancelDrain() {
	if l.drainTimer == nil {
		return
	}
	l.drainTimer.Stop()
	l.drainTimer = nil
	l.drainC = nil
}

func (l *LobbyRoom) stopCountdown() {
	if l.countdownTicker != nil {
		l.countdownTicker.Stop()
		l.countdownTicker = nil
		l.countdownC = nil
	}
	l.countdown = 0
}

func (l *LobbyRoom) stopTimers() {
	l.stopCountdown()
	if l.drainTimer != nil {
		l.drainTimer.Stop()
	}
}
