package player

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JTTrickZ/hexgame-main/internal/auth"
	"github.com/JTTrickZ/hexgame-main/internal/shared/errors"
)

const (
	minUsernameLength = 2
	maxUsernameLength = 24
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Service struct {
	repo   *Repository
	auth   *auth.Service
	colors []string
	logger *slog.Logger
}

func NewService(repo *Repository, authService *auth.Service, colors []string, logger *slog.Logger) *Service {
	logger.Debug("Initializing player service")

	return &Service{
		repo:   repo,
		auth:   authService,
		colors: colors,
		logger: logger,
	}
}

// Register creates a player for a new username or re-issues credentials
// for an existing one. Usernames are the account: registering a name that
// already exists (case-insensitive) returns that player's id with a
// freshly computed token.
func (s *Service) Register(ctx context.Context, username string) (*Registration, error) {
	logger := s.logger.With(
		"component", "player_service",
		"operation", "register",
	)

	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength {
		return nil, errors.Validationf("username must be at least %d characters", minUsernameLength)
	}
	if len(username) > maxUsernameLength {
		return nil, errors.Validationf("username must be at most %d characters", maxUsernameLength)
	}

	existing, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, errors.WrapUnavailable("registration lookup failed", err)
	}

	if existing != nil {
		logger.Info("Re-issuing credentials for existing username",
			"player_id", existing.ID,
			"username", existing.Username,
		)
		return &Registration{
			PlayerID: existing.ID,
			Token:    s.auth.Token(existing.ID),
			Username: existing.Username,
			Color:    existing.Color,
		}, nil
	}

	color := s.colors[rand.IntN(len(s.colors))]
	created, err := s.repo.Create(ctx, username, color)
	if err != nil {
		return nil, errors.WrapUnavailable("registration failed", err)
	}

	logger.Info("Registered new player",
		"player_id", created.ID,
		"username", created.Username,
		"color", created.Color,
	)

	return &Registration{
		PlayerID: created.ID,
		Token:    s.auth.Token(created.ID),
		Username: created.Username,
		Color:    created.Color,
	}, nil
}

// ChangeColor updates a player's preferred color after verifying the token.
func (s *Service) ChangeColor(ctx context.Context, playerID, token, color string) error {
	logger := s.logger.With(
		"component", "player_service",
		"operation", "change_color",
		"player_id", playerID,
	)

	if !s.auth.Verify(playerID, token) {
		return errors.Unauthorized("invalid token")
	}

	if !colorPattern.MatchString(color) {
		return errors.Validationf("color must match #rrggbb, got %q", color)
	}

	p, err := s.repo.Get(ctx, playerID)
	if err != nil {
		return errors.WrapUnavailable("player lookup failed", err)
	}
	if p == nil {
		return errors.Gone("player no longer exists")
	}

	if err := s.repo.SetColor(ctx, playerID, color); err != nil {
		return errors.WrapUnavailable("color update failed", err)
	}

	logger.Info("Player color changed", "color", color)
	return nil
}

// Get returns the stored profile, or nil when the player does not exist.
func (s *Service) Get(ctx context.Context, playerID string) (*Player, error) {
	return s.repo.Get(ctx, playerID)
}

// VerifyToken reports whether the token belongs to the player id.
func (s *Service) VerifyToken(playerID, token string) bool {
	return s.auth.Verify(playerID, token)
}

// StartSession mints a session id for a new connection and records it as
// the player's current one. Rooms compare session ids to evict the older
// connection when the same player connects twice.
func (s *Service) StartSession(ctx context.Context, playerID string, ttl time.Duration) (string, error) {
	sessionID := uuid.NewString()
	if err := s.repo.SetSession(ctx, playerID, sessionID, ttl); err != nil {
		return "", errors.WrapUnavailable("session creation failed", err)
	}
	if err := s.repo.Touch(ctx, playerID); err != nil {
		s.logger.Warn("Failed to refresh player activity", "player_id", playerID, "error", err)
	}
	return sessionID, nil
}
