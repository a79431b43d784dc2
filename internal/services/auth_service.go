package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"giveaway/internal/auth"
	"giveaway/internal/models"
)

// AuthService issues development sessions and resolves the signed-in profile
type AuthService struct {
	users  *UserService
	tokens *auth.TokenManager
	log    *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(users *UserService, tokens *auth.TokenManager, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

// Session is a signed token plus the profile it belongs to
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// SignIn finds or creates the profile for a principal and signs a token
func (s *AuthService) SignIn(ctx context.Context, principal auth.Principal) (*Session, error) {
	const op = "SignIn"

	principal.ID = strings.TrimSpace(principal.ID)
	if principal.ID == "" {
		return nil, newError(KindInvalidInput, op, "principal id is required")
	}

	user, err := s.users.EnsureUser(ctx, principal)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateToken(principal)
	if err != nil {
		return nil, &Error{Kind: KindPersistence, Op: op, Err: err}
	}

	s.log.Info("session issued", zap.String("user_id", principal.ID))
	return &Session{Token: token, User: user}, nil
}

// Me returns the profile of the authenticated principal, creating it on
// first use.
func (s *AuthService) Me(ctx context.Context, principal auth.Principal) (*models.User, error) {
	return s.users.EnsureUser(ctx, principal)
}
