package room

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/kv"
	"github.com/JTTrickZ/hexgame-main/internal/lobby"
	"github.com/JTTrickZ/hexgame-main/internal/player"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
	"github.com/JTTrickZ/hexgame-main/internal/terrain"
)

// replayRoomPrefix makes replay room ids self-describing, so a restarted
// instance can rebuild the room from the id alone.
const replayRoomPrefix = "replay-"

// Hub owns the room registry and the WebSocket entry point. Rooms are
// spun up lazily from store state when a client dials an id this
// instance has never seen, which is what lets rooms survive restarts.
type Hub struct {
	ctx     context.Context
	cfg     *config.Config
	store   kv.Store
	games   *game.Service
	lobbies *lobby.Repository
	players *player.Service
	logger  *slog.Logger

	upgrader websocket.Upgrader
	rooms    sync.Map // room id -> Room
}

func NewHub(ctx context.Context, cfg *config.Config, store kv.Store, games *game.Service, lobbies *lobby.Repository, players *player.Service) *Hub {
	return &Hub{
		ctx:     ctx,
		cfg:     cfg,
		store:   store,
		games:   games,
		lobbies: lobbies,
		players: players,
		logger:  slog.With("component", "hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeWS upgrades the connection, resolves the room and runs the
// client's read loop until the socket dies. The upgrade happens before
// any validation so rejections arrive as proper close frames; browsers
// cannot read HTTP error bodies on a failed dial.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	playerID := r.URL.Query().Get("playerId")
	token := r.URL.Query().Get("token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "room_id", roomID, "error", err)
		return
	}

	rm, err := h.resolveRoom(r.Context(), roomID)
	if err != nil {
		h.logger.Error("Room resolution failed", "room_id", roomID, "error", err)
		h.refuse(conn, websocket.CloseNormalClosure, "room unavailable")
		return
	}
	if rm == nil {
		h.refuse(conn, websocket.CloseNormalClosure, "unknown room")
		return
	}

	var sessionID string
	if rm.Kind() == KindReplay {
		// Replays are anonymous; each socket is its own viewer.
		sessionID = uuid.NewString()
	} else {
		if playerID == "" || !h.players.VerifyToken(playerID, token) {
			h.refuse(conn, websocket.CloseNormalClosure, "invalid token")
			return
		}
		sessionID, err = h.players.StartSession(r.Context(), playerID, h.cfg.Game.SessionTTL)
		if err != nil {
			h.refuse(conn, websocket.CloseNormalClosure, "session unavailable")
			return
		}
	}

	var limiter *rate.Limiter
	if h.cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimit.MessagesPerSecond), h.cfg.RateLimit.MessageBurstSize)
	}

	client := NewClient(conn, sessionID, playerID, roomID, limiter)
	go client.WritePump()

	if err := rm.Join(client); err != nil {
		code := websocket.CloseNormalClosure
		switch errors.GetType(err) {
		case errors.ErrorTypeUnauthorized, errors.ErrorTypeForbidden:
			code = websocket.CloseUnsupportedData
		}
		h.logger.Info("Join rejected", "room_id", roomID, "player_id", playerID, "error", err)
		client.Close(code, "join rejected")
		return
	}

	client.ReadPump(func(env Envelope) {
		rm.HandleMessage(client, env)
	})

	rm.HandleDisconnect(client)
	client.Close(websocket.CloseNormalClosure, "")
}

// resolveRoom returns the live room for an id, rebuilding it from the
// store when this instance does not have one. A nil room with nil error
// means the id matches nothing.
func (h *Hub) resolveRoom(ctx context.Context, roomID string) (Room, error) {
	if r, ok := h.rooms.Load(roomID); ok {
		return r.(Room), nil
	}

	if gameID, ok := strings.CutPrefix(roomID, replayRoomPrefix); ok {
		exists, err := h.games.Exists(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, nil
		}
		return h.registerReplay(ctx, gameID)
	}

	lb, err := h.lobbies.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if lb != nil && lb.Status == lobby.StatusActive {
		return h.registerLobby(roomID), nil
	}

	g, err := h.games.GetGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if g == nil || g.Status != game.StatusActive {
		return nil, nil
	}
	h.logger.Info("Recovering game room from store", "room_id", roomID)
	return h.registerGame(g), nil
}

// FindOrCreateLobby returns an open lobby id, creating a fresh lobby
// when every existing one is full or closed. The room loop itself spins
// up lazily on the first WebSocket join.
func (h *Hub) FindOrCreateLobby(ctx context.Context) (string, error) {
	id, err := h.lobbies.FindOpen(ctx, h.cfg.Lobby.Capacity)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	lb, err := h.lobbies.Create(ctx)
	if err != nil {
		return "", err
	}
	h.logger.Info("Lobby created", "room_id", lb.ID)
	return lb.ID, nil
}

// CreateGameRoom allocates the game row, generates terrain from the
// configured or a time-derived seed, and starts the room loop. The id is
// only handed out once the room is live, so matchmaking never points at
// a half-built game.
func (h *Hub) CreateGameRoom(ctx context.Context, players []game.StartPlayer, lobbyStartTime int64) (string, error) {
	gameID := uuid.NewString()

	seed := h.cfg.Terrain.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	if _, err := h.games.CreateGame(ctx, gameID, players, lobbyStartTime, seed); err != nil {
		return "", err
	}

	tiles := terrain.Generate(h.cfg.Terrain, seed)
	hexes := make(map[hexgrid.Coord]game.Hex, len(tiles))
	for c, kind := range tiles {
		hexes[c] = game.Hex{Terrain: kind}
	}
	if err := h.games.SetHexes(ctx, gameID, hexes); err != nil {
		return "", err
	}

	gr := NewGameRoom(gameID, players, lobbyStartTime, h.games, h.store, h.cfg.Game, h.dispose)
	h.rooms.Store(gameID, gr)
	go gr.Run(h.ctx)

	h.logger.Info("Game room created",
		"room_id", gameID,
		"players", len(players),
		"terrain_tiles", len(tiles),
	)
	return gameID, nil
}

// CreateReplayRoom allocates (or reuses) the replay room for a finished
// or running game.
func (h *Hub) CreateReplayRoom(ctx context.Context, gameID string) (string, error) {
	exists, err := h.games.Exists(ctx, gameID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.NotFoundf("game %s not found", gameID)
	}

	rm, err := h.registerReplay(ctx, gameID)
	if err != nil {
		return "", err
	}
	return rm.ID(), nil
}

func (h *Hub) registerLobby(roomID string) Room {
	lr := NewLobbyRoom(roomID, h.lobbies, h.players, h, h.cfg.Lobby, h.dispose)
	actual, loaded := h.rooms.LoadOrStore(roomID, Room(lr))
	if loaded {
		return actual.(Room)
	}
	go lr.Run(h.ctx)
	return lr
}

func (h *Hub) registerGame(g *game.Game) Room {
	gr := NewGameRoom(g.ID, g.StartPlayers, g.LobbyStartTime, h.games, h.store, h.cfg.Game, h.dispose)
	actual, loaded := h.rooms.LoadOrStore(g.ID, Room(gr))
	if loaded {
		return actual.(Room)
	}
	go gr.Run(h.ctx)
	return gr
}

func (h *Hub) registerReplay(ctx context.Context, gameID string) (Room, error) {
	roomID := replayRoomPrefix + gameID
	if r, ok := h.rooms.Load(roomID); ok {
		return r.(Room), nil
	}

	events, err := h.games.Events(ctx, gameID)
	if err != nil {
		return nil, err
	}

	rr := NewReplayRoom(roomID, gameID, events, h.dispose)
	actual, loaded := h.rooms.LoadOrStore(roomID, Room(rr))
	if loaded {
		return actual.(Room), nil
	}
	go rr.Run(h.ctx)
	return rr, nil
}

func (h *Hub) dispose(roomID string) {
	h.rooms.Delete(roomID)
	h.logger.Debug("Room disposed", "room_id", roomID)
}

// RoomCount reports how many rooms this instance is running.
func (h *Hub) RoomCount() int {
	n := 0
	h.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Shutdown asks every room loop to stop. Room goroutines drain on their
// own; callers that need to wait should cancel the hub context and give
// the server's shutdown grace period a chance to run out.
func (h *Hub) Shutdown() {
	h.rooms.Range(func(_, v any) bool {
		v.(Room).Close()
		return true
	})
}

func (h *Hub) refuse(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
