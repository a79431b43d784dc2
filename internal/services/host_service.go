package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"giveaway/internal/auth"
	"giveaway/internal/models"
	"giveaway/internal/repository"
	"giveaway/internal/utils"
)

// HostService manages the host registry
type HostService struct {
	repo *repository.Repository
	log  *zap.Logger
}

// NewHostService creates a new HostService
func NewHostService(repo *repository.Repository, log *zap.Logger) *HostService {
	return &HostService{repo: repo, log: log}
}

// RegisterHost makes the principal a host, reactivating a deactivated one
func (s *HostService) RegisterHost(ctx context.Context, principal auth.Principal, req models.RegisterHostRequest) (*models.Host, error) {
	const op = "RegisterHost"

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = principal.DisplayName
	}
	name, err := utils.DisplayNameOr(name)
	if err != nil {
		return nil, storeError(op, err)
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = principal.Email
	}

	host := &models.Host{
		ID:          principal.ID,
		DisplayName: name,
		Email:       email,
		IsActive:    true,
	}
	if err := s.repo.CreateHost(ctx, host); err != nil {
		return nil, storeError(op, err)
	}

	s.RefreshStats(ctx, host.ID)
	s.log.Info("host registered", zap.String("host_id", host.ID))

	return s.GetHost(ctx, host.ID)
}

// GetHost retrieves a host by ID
func (s *HostService) GetHost(ctx context.Context, hostID string) (*models.Host, error) {
	host, err := s.repo.GetHostByID(ctx, hostID)
	if err != nil {
		return nil, storeError("GetHost", err)
	}
	return host, nil
}

// RequireActiveHost returns the host or PermissionDenied when the principal
// is not a registered, active host.
func (s *HostService) RequireActiveHost(ctx context.Context, hostID string) (*models.Host, error) {
	const op = "RequireActiveHost"

	host, err := s.repo.GetHostByID(ctx, hostID)
	if err != nil {
		if IsKind(storeError(op, err), KindNotFound) {
			return nil, newError(KindPermissionDenied, op, "%s is not a registered host", hostID)
		}
		return nil, storeError(op, err)
	}
	if !host.IsActive {
		return nil, newError(KindPermissionDenied, op, "host %s is deactivated", hostID)
	}
	return host, nil
}

// DeactivateHost soft-deletes a host; campaigns are kept
func (s *HostService) DeactivateHost(ctx context.Context, hostID string) error {
	if err := s.repo.UpdateHostFields(ctx, hostID, map[string]interface{}{"is_active": false}); err != nil {
		return storeError("DeactivateHost", err)
	}
	s.log.Info("host deactivated", zap.String("host_id", hostID))
	return nil
}

// RefreshStats recomputes the host's denormalized counters. Failures are
// logged only.
func (s *HostService) RefreshStats(ctx context.Context, hostID string) {
	if err := s.repo.RecountHostStats(ctx, hostID); err != nil {
		s.log.Warn("failed to recount host stats", zap.String("host_id", hostID), zap.Error(err))
	}
}
