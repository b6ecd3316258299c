package game

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Upgrade is a structure built on an owned hex.
type Upgrade string

const (
	UpgradeNone Upgrade = ""
	UpgradeBank Upgrade = "bank"
	UpgradeFort Upgrade = "fort"
	UpgradeCity Upgrade = "city"
)

// Terrain is generated once at game creation and never changes.
type Terrain string

const (
	TerrainNone     Terrain = ""
	TerrainMountain Terrain = "mountain"
	TerrainRiver    Terrain = "river"
)

// Game is one match instance. Its id doubles as the room id.
type Game struct {
	ID             string        `json:"gameId"`
	CreatedAt      int64         `json:"createdAt"`
	Status         Status        `json:"status"`
	StartPlayers   []StartPlayer `json:"startPlayers"`
	LobbyStartTime int64         `json:"lobbyStartTime"`
	TerrainSeed    int64         `json:"terrainSeed"`
}

// StartPlayer is the roster snapshot taken at kickoff.
type StartPlayer struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// Hex is one tile, stored as JSON under field "q:r" in games:<id>:hexes.
// An empty PlayerID means the tile is unowned.
type Hex struct {
	PlayerID    string  `json:"playerId"`
	Color       string  `json:"color"`
	Upgrade     Upgrade `json:"upgrade"`
	Terrain     Terrain `json:"terrain"`
	CaptureTime int64   `json:"captureTime"`
	IsStart     bool    `json:"isStart"`
}

// PlayerPoints is a player's per-game economy, stored as JSON under the
// player id in games:<id>:points. StartQ/StartR stay nil until the start
// pick lands.
type PlayerPoints struct {
	Points     int   `json:"points"`
	MaxPoints  int   `json:"maxPoints"`
	StartQ     *int  `json:"startQ"`
	StartR     *int  `json:"startR"`
	LastUpdate int64 `json:"lastUpdate"`
}

// EventType classifies entries in the per-game event log.
type EventType string

const (
	EventStart       EventType = "start"
	EventCapture     EventType = "capture"
	EventAutoCapture EventType = "auto-capture"
	EventUpgrade     EventType = "upgrade"
)

// Event is one append-only log entry. Replay rooms and the history
// endpoint depend on insertion order being preserved.
type Event struct {
	GameID    string    `json:"gameId"`
	PlayerID  string    `json:"playerId"`
	Color     string    `json:"color"`
	Q         int       `json:"q"`
	R         int       `json:"r"`
	EventType EventType `json:"eventType"`
	Timestamp int64     `json:"timestamp"`
}

// Hash field names in games:<id>:data.
const (
	fieldCreatedAt      = "createdAt"
	fieldStatus         = "status"
	fieldStartPlayers   = "startPlayers"
	fieldLobbyStartTime = "lobbyStartTime"
	fieldTerrainSeed    = "terrainSeed"
)

// IsPassable reports whether a tile can be entered or captured. A missing
// hex (nil) is open ground and therefore passable.
func IsPassable(h *Hex) bool {
	return h == nil || h.Terrain != TerrainMountain
}

// ValidUpgrade reports whether the wire value names a purchasable upgrade.
func ValidUpgrade(u Upgrade) bool {
	return u == UpgradeBank || u == UpgradeFort || u == UpgradeCity
}
