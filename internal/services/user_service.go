package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"giveaway/internal/auth"
	"giveaway/internal/models"
	"giveaway/internal/repository"
	"giveaway/internal/utils"
)

const (
	maxInstallPrompts     = 3
	installPromptCooldown = 24 * time.Hour
)

// UserService handles user-related business logic
type UserService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  Clock
}

// NewUserService creates a new UserService
func NewUserService(repo *repository.Repository, log *zap.Logger) *UserService {
	return &UserService{repo: repo, log: log, now: utcNow}
}

// EnsureUser creates the profile for a principal or refreshes its name and email
func (s *UserService) EnsureUser(ctx context.Context, principal auth.Principal) (*models.User, error) {
	const op = "EnsureUser"
	if principal.ID == "" {
		return nil, newError(KindInvalidInput, op, "principal id is required")
	}

	name := principal.DisplayName
	if name == "" {
		if existing, err := s.repo.GetUserByID(ctx, principal.ID); err == nil {
			name = existing.DisplayName
		}
	}
	name, err := utils.DisplayNameOr(name)
	if err != nil {
		return nil, storeError(op, err)
	}

	user := &models.User{
		ID:          principal.ID,
		DisplayName: name,
		Email:       principal.Email,
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, storeError(op, err)
	}
	return s.GetUser(ctx, principal.ID)
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeError("GetUser", err)
	}
	return user, nil
}

// RegisterPushToken stores the device token used for winner notifications
func (s *UserService) RegisterPushToken(ctx context.Context, userID, token string) error {
	const op = "RegisterPushToken"

	token = strings.TrimSpace(token)
	if token == "" {
		return newError(KindInvalidInput, op, "token is required")
	}
	err := s.repo.UpdateUserFields(ctx, userID, map[string]interface{}{
		"notification_token":   token,
		"notification_enabled": true,
	})
	return storeError(op, err)
}

// MarkInstalled records that the user installed the app
func (s *UserService) MarkInstalled(ctx context.Context, userID string) error {
	const op = "MarkInstalled"

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return storeError(op, err)
	}
	if user.IsPWAInstalled {
		return nil
	}
	return storeError(op, s.repo.UpdateUserFields(ctx, userID, map[string]interface{}{
		"is_pwa_installed": true,
		"pwa_installed_at": s.now(),
	}))
}

// RecordInstallPrompt counts a prompt shown to the user
func (s *UserService) RecordInstallPrompt(ctx context.Context, userID string) error {
	return storeError("RecordInstallPrompt", s.repo.RecordInstallPrompt(ctx, userID, s.now()))
}

// ShouldShowInstallPrompt applies the prompt policy: never once installed,
// at most three prompts, and a cooldown between prompts.
func (s *UserService) ShouldShowInstallPrompt(ctx context.Context, userID string) (*models.InstallPromptDecision, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeError("ShouldShowInstallPrompt", err)
	}
	return installPromptDecision(user, s.now()), nil
}

func installPromptDecision(user *models.User, now time.Time) *models.InstallPromptDecision {
	decision := &models.InstallPromptDecision{PromptCount: user.InstallPromptCount}

	switch {
	case user.IsPWAInstalled:
	case user.InstallPromptCount >= maxInstallPrompts:
	case user.LastInstallPromptAt != nil && now.Sub(*user.LastInstallPromptAt) < installPromptCooldown:
		next := user.LastInstallPromptAt.Add(installPromptCooldown)
		decision.NextEligible = &next
	default:
		decision.ShouldShow = true
	}
	return decision
}

// RefreshStats recomputes participation and win totals. Failures are
// logged only.
func (s *UserService) RefreshStats(ctx context.Context, userID string) {
	if err := s.repo.RecountUserStats(ctx, userID); err != nil {
		s.log.Warn("failed to recount user stats", zap.String("user_id", userID), zap.Error(err))
	}
}
