package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JTTrickZ/hexgame-main/internal/auth"
	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/kv"
	"github.com/JTTrickZ/hexgame-main/internal/lobby"
	"github.com/JTTrickZ/hexgame-main/internal/player"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
)

var lobbyTestColors = []string{"#e74c3c", "#3498db", "#2ecc71", "#f1c40f"}

// fakeMatchmaker records the room requests a lobby makes.
type fakeMatchmaker struct {
	gameRoomID   string
	gameErr      error
	replayRoomID string
	replayErr    error

	mu             sync.Mutex
	gameCalls      int
	roster         []game.StartPlayer
	lobbyStartTime int64
	replayGameID   string
}

func (f *fakeMatchmaker) CreateGameRoom(ctx context.Context, players []game.StartPlayer, lobbyStartTime int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameCalls++
	f.roster = players
	f.lobbyStartTime = lobbyStartTime
	if f.gameErr != nil {
		return "", f.gameErr
	}
	return f.gameRoomID, nil
}

func (f *fakeMatchmaker) CreateReplayRoom(ctx context.Context, gameID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replayGameID = gameID
	if f.replayErr != nil {
		return "", f.replayErr
	}
	return f.replayRoomID, nil
}

func (f *fakeMatchmaker) gameRequest() (int, []game.StartPlayer, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gameCalls, f.roster, f.lobbyStartTime
}

func (f *fakeMatchmaker) replayRequest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replayGameID
}

type lobbyHarness struct {
	room     *LobbyRoom
	players  *player.Service
	lobbies  *lobby.Repository
	lobbyID  string
	disposed chan string
}

// startLobbyRoom runs a lobby over a fresh store with fast countdown
// ticks. tweak functions run before the loop starts.
func startLobbyRoom(t *testing.T, cfg config.LobbyConfig, fm *fakeMatchmaker, tweak ...func(*LobbyRoom)) *lobbyHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := kv.NewMemory()
	players := player.NewService(player.NewRepository(store), auth.NewService("lobby-test-secret"), lobbyTestColors, logger)
	lobbies := lobby.NewRepository(store)

	lob, err := lobbies.Create(context.Background())
	if err != nil {
		t.Fatalf("Create lobby failed: %v", err)
	}

	disposed := make(chan string, 1)
	lr := NewLobbyRoom(lob.ID, lobbies, players, fm, cfg, func(id string) {
		disposed <- id
	})
	lr.logger = logger
	lr.countdownTick = 5 * time.Millisecond
	for _, f := range tweak {
		f(lr)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go lr.Run(runCtx)
	t.Cleanup(func() {
		lr.Close()
		cancel()
	})

	return &lobbyHarness{room: lr, players: players, lobbies: lobbies, lobbyID: lob.ID, disposed: disposed}
}

func (h *lobbyHarness) register(t *testing.T, username string) *player.Registration {
	t.Helper()
	reg, err := h.players.Register(context.Background(), username)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", username, err)
	}
	return reg
}

func lobbyRoomConfig() config.LobbyConfig {
	return config.LobbyConfig{MinReady: 2, Capacity: 4}
}

func TestLobbyRoomJoinBroadcastsRoster(t *testing.T) {
	h := startLobbyRoom(t, lobbyRoomConfig(), &fakeMatchmaker{})
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")

	s1 := newRecordingSender("sess-1", alice.PlayerID)
	if err := h.room.Join(s1); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	state := decodeData[lobbyStateData](t, s1.waitFor(t, msgLobbyState))
	if len(state.Players) != 1 || state.Players[0].Username != "alice" || state.Players[0].Started {
		t.Errorf("roster after first join = %+v", state.Players)
	}

	s2 := newRecordingSender("sess-2", bob.PlayerID)
	if err := h.room.Join(s2); err != nil {
		t.Fatalf("second join failed: %v", err)
	}
	state = decodeData[lobbyStateData](t, s1.waitFor(t, msgLobbyState))
	if len(state.Players) != 2 {
		t.Errorf("roster after second join = %+v, want both players", state.Players)
	}

	n, err := h.lobbies.PlayerCount(context.Background(), h.lobbyID)
	if err != nil {
		t.Fatalf("PlayerCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("stored membership = %d, want 2", n)
	}
}

func TestLobbyRoomRejectsUnknownPlayer(t *testing.T) {
	h := startLobbyRoom(t, lobbyRoomConfig(), &fakeMatchmaker{})

	s := newRecordingSender("sess-x", "ghost")
	err := h.room.Join(s)
	if err == nil {
		t.Fatal("join succeeded for an unregistered player")
	}
	if errors.GetType(err) != errors.ErrorTypeUnauthorized {
		t.Errorf("error type = %q, want unauthorized", errors.GetType(err))
	}
}

func TestLobbyRoomCapacity(t *testing.T) {
	cfg := lobbyRoomConfig()
	cfg.Capacity = 2
	h := startLobbyRoom(t, cfg, &fakeMatchmaker{})

	for i, name := range []string{"alice", "bob"} {
		reg := h.register(t, name)
		s := newRecordingSender("sess-"+name, reg.PlayerID)
		if err := h.room.Join(s); err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}

	carol := h.register(t, "carol")
	s := newRecordingSender("sess-carol", carol.PlayerID)
	err := h.room.Join(s)
	if err == nil {
		t.Fatal("join succeeded past capacity")
	}
	if errors.GetType(err) != errors.ErrorTypeUnauthorized {
		t.Errorf("error type = %q, want unauthorized", errors.GetType(err))
	}
}

func TestLobbyRoomReadyBelowThresholdHoldsCountdown(t *testing.T) {
	h := startLobbyRoom(t, lobbyRoomConfig(), &fakeMatchmaker{})
	alice := h.register(t, "alice")

	s := newRecordingSender("sess-1", alice.PlayerID)
	if err := h.room.Join(s); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	sendMsg(h.room, s, msgJoinGame, nil)
	s.waitFor(t, msgLobbyState) // join snapshot
	state := decodeData[lobbyStateData](t, s.waitFor(t, msgLobbyState))
	if !state.Players[0].Started {
		t.Errorf("roster after ready = %+v, want started flag", state.Players)
	}

	time.Sleep(50 * time.Millisecond)
	if s.has(msgCountdown) {
		t.Error("countdown started below the ready threshold")
	}
}

func TestLobbyRoomCountdownRunsToKickoff(t *testing.T) {
	fm := &fakeMatchmaker{gameRoomID: "game-42"}
	h := startLobbyRoom(t, lobbyRoomConfig(), fm)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")

	s1 := newRecordingSender("sess-1", alice.PlayerID)
	s2 := newRecordingSender("sess-2", bob.PlayerID)
	if err := h.room.Join(s1); err != nil {
		t.Fatalf("alice join failed: %v", err)
	}
	if err := h.room.Join(s2); err != nil {
		t.Fatalf("bob join failed: %v", err)
	}

	sendMsg(h.room, s1, msgJoinGame, nil)
	sendMsg(h.room, s2, msgJoinGame, nil)

	for want := countdownSeconds; want >= 0; want-- {
		cd := decodeData[countdownData](t, s1.waitFor(t, msgCountdown))
		if cd.Seconds != want {
			t.Errorf("countdown frame = %d, want %d", cd.Seconds, want)
		}
	}

	ref := decodeData[roomRefData](t, s1.waitFor(t, msgStartGame))
	if ref.RoomID != "game-42" {
		t.Errorf("startGame roomId = %q, want game-42", ref.RoomID)
	}
	s2.waitFor(t, msgStartGame)

	calls, roster, startTime := fm.gameRequest()
	if calls != 1 {
		t.Fatalf("game room requests = %d, want 1", calls)
	}
	if len(roster) != 2 {
		t.Fatalf("kickoff roster size = %d, want 2", len(roster))
	}
	if roster[0].PlayerID > roster[1].PlayerID {
		t.Error("kickoff roster not sorted by player id")
	}
	if startTime <= 0 {
		t.Errorf("lobbyStartTime = %d, want a timestamp", startTime)
	}

	lob, err := h.lobbies.Get(context.Background(), h.lobbyID)
	if err != nil {
		t.Fatalf("Get lobby failed: %v", err)
	}
	if lob.StartTime != startTime {
		t.Errorf("stored start time = %d, want %d", lob.StartTime, startTime)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := h.lobbies.PlayerCount(context.Background(), h.lobbyID)
		if err != nil {
			t.Fatalf("PlayerCount failed: %v", err)
		}
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("lobby membership not cleared after kickoff, %d left", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLobbyRoomCountdownCancelsWhenReadyDrops(t *testing.T) {
	fm := &fakeMatchmaker{gameRoomID: "game-42"}
	h := startLobbyRoom(t, lobbyRoomConfig(), fm, func(lr *LobbyRoom) {
		lr.countdownTick = 50 * time.Millisecond
	})
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")

	s1 := newRecordingSender("sess-1", alice.PlayerID)
	s2 := newRecordingSender("sess-2", bob.PlayerID)
	if err := h.room.Join(s1); err != nil {
		t.Fatalf("alice join failed: %v", err)
	}
	if err := h.room.Join(s2); err != nil {
		t.Fatalf("bob join failed: %v", err)
	}

	sendMsg(h.room, s1, msgJoinGame, nil)
	sendMsg(h.room, s2, msgJoinGame, nil)
	cd := decodeData[countdownData](t, s1.waitFor(t, msgCountdown))
	if cd.Seconds != countdownSeconds {
		t.Fatalf("countdown opened at %d, want %d", cd.Seconds, countdownSeconds)
	}

	h.room.HandleDisconnect(s2)

	// Long enough for the full countdown to have elapsed if the cancel
	// were broken.
	time.Sleep(400 * time.Millisecond)
	if s1.has(msgStartGame) {
		t.Error("game started after the ready set shrank")
	}
	calls, _, _ := fm.gameRequest()
	if calls != 0 {
		t.Errorf("game room requests = %d, want none", calls)
	}
}

func TestLobbyRoomKickoffFailureKeepsLobbyOpen(t *testing.T) {
	fm := &fakeMatchmaker{gameErr: errors.Unavailable("store down")}
	h := startLobbyRoom(t, lobbyRoomConfig(), fm)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")

	s1 := newRecordingSender("sess-1", alice.PlayerID)
	s2 := newRecordingSender("sess-2", bob.PlayerID)
	if err := h.room.Join(s1); err != nil {
		t.Fatalf("alice join failed: %v", err)
	}
	if err := h.room.Join(s2); err != nil {
		t.Fatalf("bob join failed: %v", err)
	}

	sendMsg(h.room, s1, msgJoinGame, nil)
	sendMsg(h.room, s2, msgJoinGame, nil)

	for want := countdownSeconds; want >= 0; want-- {
		s1.waitFor(t, msgCountdown)
	}

	time.Sleep(50 * time.Millisecond)
	if s1.has(msgStartGame) || s2.has(msgStartGame) {
		t.Error("startGame sent although room creation failed")
	}

	calls, _, _ := fm.gameRequest()
	if calls != 1 {
		t.Errorf("game room requests = %d, want 1", calls)
	}

	n, err := h.lobbies.PlayerCount(context.Background(), h.lobbyID)
	if err != nil {
		t.Fatalf("PlayerCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("membership after failed kickoff = %d, want 2", n)
	}
}

func TestLobbyRoomDuplicateSessionEvicted(t *testing.T) {
	h := startLobbyRoom(t, lobbyRoomConfig(), &fakeMatchmaker{})
	alice := h.register(t, "alice")

	s1 := newRecordingSender("sess-1", alice.PlayerID)
	if err := h.room.Join(s1); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	s2 := newRecordingSender("sess-2", alice.PlayerID)
	if err := h.room.Join(s2); err != nil {
		t.Fatalf("second join failed: %v", err)
	}

	closed, code := s1.wasClosed()
	if !closed || code != websocket.CloseNormalClosure {
		t.Errorf("stale session closed=%v code=%d, want 1000", closed, code)
	}

	// The evicted connection's disconnect must not remove the player.
	h.room.HandleDisconnect(s1)
	sendMsg(h.room, s2, msgJoinGame, nil)
	s2.waitFor(t, msgLobbyState)
	state := decodeData[lobbyStateData](t, s2.waitFor(t, msgLobbyState))
	if len(state.Players) != 1 || !state.Players[0].Started {
		t.Errorf("roster after eviction = %+v, want alice still present and ready", state.Players)
	}
}

func TestLobbyRoomCreateReplay(t *testing.T) {
	fm := &fakeMatchmaker{replayRoomID: "replay-abc"}
	h := startLobbyRoom(t, lobbyRoomConfig(), fm)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")

	s1 := newRecordingSender("sess-1", alice.PlayerID)
	s2 := newRecordingSender("sess-2", bob.PlayerID)
	if err := h.room.Join(s1); err != nil {
		t.Fatalf("alice join failed: %v", err)
	}
	if err := h.room.Join(s2); err != nil {
		t.Fatalf("bob join failed: %v", err)
	}

	// A request without a game id is dropped without a reply.
	sendMsg(h.room, s1, msgCreateReplay, createReplayPayload{})
	sendMsg(h.room, s1, msgCreateReplay, createReplayPayload{GameID: "game-7"})

	ref := decodeData[roomRefData](t, s1.waitFor(t, msgReplayCreated))
	if ref.RoomID != "replay-abc" {
		t.Errorf("replayCreated roomId = %q, want replay-abc", ref.RoomID)
	}
	if got := fm.replayRequest(); got != "game-7" {
		t.Errorf("replay requested for game %q, want game-7", got)
	}
	if s1.has(msgReplayCreated) {
		t.Error("malformed replay request produced a reply")
	}
	if s2.has(msgReplayCreated) {
		t.Error("replayCreated leaked to another member")
	}
}

func TestLobbyRoomDrainClosesLobby(t *testing.T) {
	h := startLobbyRoom(t, lobbyRoomConfig(), &fakeMatchmaker{}, func(lr *LobbyRoom) {
		lr.drainDelay = 40 * time.Millisecond
	})
	alice := h.register(t, "alice")

	s := newRecordingSender("sess-1", alice.PlayerID)
	if err := h.room.Join(s); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	h.room.HandleDisconnect(s)

	select {
	case id := <-h.disposed:
		if id != h.lobbyID {
			t.Errorf("disposed room id = %q, want %q", id, h.lobbyID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lobby did not dispose after sitting empty")
	}

	lob, err := h.lobbies.Get(context.Background(), h.lobbyID)
	if err != nil {
		t.Fatalf("Get lobby failed: %v", err)
	}
	if lob.Status != lobby.StatusClosed {
		t.Errorf("lobby status after drain = %q, want closed", lob.Status)
	}
}
