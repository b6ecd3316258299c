package room

import (
	"encoding/json"
	"log/slog"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
)

// Envelope is the wire frame for every websocket message in both
// directions: a type tag plus a type-specific payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message types accepted from clients.
const (
	msgJoinGame            = "joinGame"
	msgCreateReplay        = "createReplay"
	msgChooseStart         = "chooseStart"
	msgClickHex            = "clickHex"
	msgFillHex             = "fillHex"
	msgBatchFillHex        = "batchFillHex"
	msgUpgradeHex          = "upgradeHex"
	msgBatchUpgradeHex     = "batchUpgradeHex"
	msgRequestHoverCost    = "requestHoverCost"
	msgRequestPointsUpdate = "requestPointsUpdate"
)

// Message types sent to clients.
const (
	msgLobbyState         = "lobbyState"
	msgCountdown          = "countdown"
	msgStartGame          = "startGame"
	msgReplayCreated      = "replayCreated"
	msgAssignedColor      = "assignedColor"
	msgLobbyStartTime     = "lobbyStartTime"
	msgHistory            = "history"
	msgUpdate             = "update"
	msgFillResult         = "fillResult"
	msgBatchFillResult    = "batchFillResult"
	msgOpenOwnedTileMenu  = "openOwnedTileMenu"
	msgHoverCost          = "hoverCost"
	msgPointsUpdate       = "pointsUpdate"
	msgUpgradeResult      = "upgradeResult"
	msgBatchUpgradeResult = "batchUpgradeResult"
	msgReplayInfo         = "replayInfo"
	msgReplayEvent        = "replayEvent"
	msgReplayEnd          = "replayEnd"
)

// Per-hex rejection reasons carried in fillResult and upgradeResult.
const (
	reasonNotStarted     = "not_started"
	reasonAlreadyStarted = "already_started"
	reasonImpassable     = "impassable"
	reasonUnclaimable    = "unclaimable"
	reasonInsufficient   = "insufficient"
	reasonNotAdjacent    = "not_adjacent"
	reasonNotOwner       = "not_owner"
	reasonOccupied       = "occupied"
	reasonWindowClosed   = "window_closed"
	reasonUnknownUpgrade = "unknown_upgrade"
	reasonUnavailable    = "unavailable"
)

// Inbound payloads.

type coordPayload struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func (p coordPayload) coord() hexgrid.Coord {
	return hexgrid.Coord{Q: p.Q, R: p.R}
}

type batchFillPayload struct {
	Hexes []coordPayload `json:"hexes"`
}

type upgradePayload struct {
	Q    int    `json:"q"`
	R    int    `json:"r"`
	Type string `json:"type"`
}

type batchUpgradePayload struct {
	Hexes []upgradePayload `json:"hexes"`
}

type createReplayPayload struct {
	GameID string `json:"gameId"`
}

// Outbound payloads.

type lobbyMemberView struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Started  bool   `json:"started"`
}

type lobbyStateData struct {
	Players []lobbyMemberView `json:"players"`
}

type countdownData struct {
	Seconds int `json:"seconds"`
}

type roomRefData struct {
	RoomID string `json:"roomId"`
}

type assignedColorData struct {
	Color string `json:"color"`
}

type lobbyStartTimeData struct {
	Timestamp  int64 `json:"ts"`
	StartDelay int64 `json:"startDelay"`
}

// hexView is the client-facing shape of one tile, shared by the join
// snapshot and every update broadcast.
type hexView struct {
	Q       int    `json:"q"`
	R       int    `json:"r"`
	Color   string `json:"color"`
	Crown   bool   `json:"crown"`
	Upgrade string `json:"upgrade"`
	Terrain string `json:"terrain"`
}

type fillResultData struct {
	Q      int    `json:"q"`
	R      int    `json:"r"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type batchFillResultData struct {
	Results []fillResultData `json:"results"`
}

type ownedTileMenuData struct {
	Q       int    `json:"q"`
	R       int    `json:"r"`
	Upgrade string `json:"upgrade"`
}

type hoverCostData struct {
	Q    int  `json:"q"`
	R    int  `json:"r"`
	Cost *int `json:"cost"`
}

type upgradeResultData struct {
	Q     int    `json:"q"`
	R     int    `json:"r"`
	OK    bool   `json:"ok"`
	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
}

type batchUpgradeResultData struct {
	Results []upgradeResultData `json:"results"`
}

type replayInfoData struct {
	GameID      string `json:"gameId"`
	TotalEvents int    `json:"totalEvents"`
}

// newEnvelope wraps a payload for the wire. Marshal failures would mean
// a broken payload type, so they surface as an error log and an empty
// data field rather than a dropped frame.
func newEnvelope(msgType string, payload any) Envelope {
	if payload == nil {
		return Envelope{Type: msgType}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode message payload", "component", "room", "type", msgType, "error", err)
		return Envelope{Type: msgType}
	}
	return Envelope{Type: msgType, Data: data}
}

func updateMessage(c hexgrid.Coord, h game.Hex) Envelope {
	return newEnvelope(msgUpdate, hexView{
		Q:       c.Q,
		R:       c.R,
		Color:   h.Color,
		Crown:   h.IsStart,
		Upgrade: string(h.Upgrade),
		Terrain: string(h.Terrain),
	})
}

func pointsUpdateMessage(eco *game.Economy) Envelope {
	return newEnvelope(msgPointsUpdate, eco)
}

func fillResultMessage(res fillResultData) Envelope {
	return newEnvelope(msgFillResult, res)
}

func historyMessage(hexes map[hexgrid.Coord]game.Hex) Envelope {
	views := make([]hexView, 0, len(hexes))
	for c, h := range hexes {
		views = append(views, hexView{
			Q:       c.Q,
			R:       c.R,
			Color:   h.Color,
			Crown:   h.IsStart,
			Upgrade: string(h.Upgrade),
			Terrain: string(h.Terrain),
		})
	}
	return newEnvelope(msgHistory, views)
}
