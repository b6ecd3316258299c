package lobby

// Status of a lobby. Closed lobbies are kept in the store for inspection
// but are never matched into again.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Lobby is the staging area players wait in before a game kicks off.
type Lobby struct {
	ID        string `json:"lobbyId"`
	CreatedAt int64  `json:"createdAt"`
	Status    Status `json:"status"`
	StartTime int64  `json:"lobbyStartTime,omitempty"`
}

// Hash field names in lobbies:<id>:data.
const (
	fieldCreatedAt = "createdAt"
	fieldStatus    = "status"
	fieldStartTime = "lobbyStartTime"
)
