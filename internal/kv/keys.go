package kv

import "fmt"

// Key layout shared by every process. These shapes are load-bearing:
// a second server instance pointed at the same store must read and
// write exactly the same keys.
const (
	// ActivePlayersKey is a zset of player ids scored by last-active time.
	ActivePlayersKey = "players:active"
	// ActiveLobbiesKey is a zset of lobby ids scored by creation time.
	ActiveLobbiesKey = "lobbies:active"
	// ActiveGamesKey is a zset of game ids scored by creation time.
	ActiveGamesKey = "games:active"
)

// PlayerDataKey is the hash holding a player's profile fields.
func PlayerDataKey(playerID string) string {
	return fmt.Sprintf("players:%s:data", playerID)
}

// PlayerSessionKey is the string holding a player's current session id.
func PlayerSessionKey(playerID string) string {
	return fmt.Sprintf("players:%s:session", playerID)
}

// LobbyDataKey is the hash holding a lobby's attributes.
func LobbyDataKey(lobbyID string) string {
	return fmt.Sprintf("lobbies:%s:data", lobbyID)
}

// LobbyPlayersKey is the set of player ids admitted to a lobby.
func LobbyPlayersKey(lobbyID string) string {
	return fmt.Sprintf("lobbies:%s:players", lobbyID)
}

// GameDataKey is the hash holding a game's attributes.
func GameDataKey(gameID string) string {
	return fmt.Sprintf("games:%s:data", gameID)
}

// GamePlayersKey is the set of player ids participating in a game.
func GamePlayersKey(gameID string) string {
	return fmt.Sprintf("games:%s:players", gameID)
}

// GameHexesKey is the hash of hex tiles, field "q:r", value JSON.
func GameHexesKey(gameID string) string {
	return fmt.Sprintf("games:%s:hexes", gameID)
}

// GamePointsKey is the hash of player economies, field playerId, value JSON.
func GamePointsKey(gameID string) string {
	return fmt.Sprintf("games:%s:points", gameID)
}

// GameEventsKey is the list of game events, newest first.
func GameEventsKey(gameID string) string {
	return fmt.Sprintf("games:%s:events", gameID)
}
