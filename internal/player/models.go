package player

// Player is a registered profile, stored in the players:<id>:data hash.
// Identity is intentionally lightweight: the username is the account and
// the token is recomputed from the player id on demand.
type Player struct {
	ID        string `json:"playerId"`
	Username  string `json:"username"`
	Color     string `json:"color"`
	CreatedAt int64  `json:"createdAt"`
}

// Registration is the payload returned to a registering client.
type Registration struct {
	PlayerID string `json:"playerId"`
	Token    string `json:"token"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// Hash field names in players:<id>:data.
const (
	fieldUsername  = "username"
	fieldColor     = "color"
	fieldCreatedAt = "createdAt"
)
