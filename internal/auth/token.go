package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Service issues and verifies player tokens. A token is the hex-encoded
// HMAC of the player id under a process-wide secret, so it is stateless
// and nothing is stored; rotating the secret invalidates every
// outstanding token.
type Service struct {
	secret []byte
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Token computes the token bound to a player id.
func (s *Service) Token(playerID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(playerID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether token is the current token for playerID.
// The comparison is constant time.
func (s *Service) Verify(playerID, token string) bool {
	if playerID == "" || token == "" {
		return false
	}

	presented, err := hex.DecodeString(token)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(playerID))
	return hmac.Equal(mac.Sum(nil), presented)
}
