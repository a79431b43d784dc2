package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"giveaway/internal/models"
	"giveaway/internal/realtime"
	"giveaway/internal/repository"
)

const (
	defaultParticipantLimit = 20
	maxParticipantLimit     = 100
	maxParticipantPage      = 100000
)

// errNoSeat is returned inside the join transaction when the campaign is
// full or no longer active.
var errNoSeat = errors.New("no seat available")

// ParticipationService is the ledger of who joined which campaign
type ParticipationService struct {
	repo      *repository.Repository
	users     *UserService
	publisher realtime.Publisher
	log       *zap.Logger
	now       Clock
}

// NewParticipationService creates a new ParticipationService. publisher
// announces campaign counter changes and may be nil.
func NewParticipationService(
	repo *repository.Repository,
	users *UserService,
	publisher realtime.Publisher,
	log *zap.Logger,
) *ParticipationService {
	return &ParticipationService{repo: repo, users: users, publisher: publisher, log: log, now: utcNow}
}

// CreateParticipation records that userID joined campaignID. A repeated
// call returns the existing record.
func (s *ParticipationService) CreateParticipation(
	ctx context.Context,
	userID, campaignID, hostID, referralSource string,
) (*models.Participation, error) {
	p, _, err := s.createParticipation(ctx, userID, campaignID, hostID, referralSource, false)
	if err != nil {
		return nil, storeError("CreateParticipation", err)
	}
	return p, nil
}

// createParticipation inserts the record idempotently. With reserve set the
// insert only happens if a seat could be taken on the campaign in the same
// transaction. It reports whether a new record was created.
func (s *ParticipationService) createParticipation(
	ctx context.Context,
	userID, campaignID, hostID, referralSource string,
	reserve bool,
) (*models.Participation, bool, error) {
	referralSource = strings.TrimSpace(referralSource)
	if referralSource == "" {
		referralSource = models.DefaultReferralSource
	}

	p := &models.Participation{
		UserID:         userID,
		CampaignID:     campaignID,
		HostID:         hostID,
		ParticipatedAt: s.now(),
		ReferralSource: referralSource,
	}

	created := false
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := tx.GetParticipation(ctx, userID, campaignID)
		if err == nil {
			p = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if reserve {
			ok, err := tx.ReserveSeat(ctx, campaignID)
			if err != nil {
				return err
			}
			if !ok {
				return errNoSeat
			}
		}

		if err := tx.CreateParticipation(ctx, p); err != nil {
			return err
		}
		created = true
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent join by the same user won the insert.
		existing, getErr := s.repo.GetParticipation(ctx, userID, campaignID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.refreshCounts(ctx, userID, campaignID)
		publishCampaignChange(ctx, s.publisher, campaignID, hostID)
	}
	return p, created, nil
}

func (s *ParticipationService) refreshCounts(ctx context.Context, userID, campaignID string) {
	if _, err := s.repo.RecountParticipants(ctx, campaignID); err != nil {
		s.log.Warn("failed to recount participants", zap.String("campaign_id", campaignID), zap.Error(err))
	}
	if s.users != nil {
		s.users.RefreshStats(ctx, userID)
	}
}

// GetParticipation returns the participation of a user in a campaign
func (s *ParticipationService) GetParticipation(ctx context.Context, userID, campaignID string) (*models.Participation, error) {
	p, err := s.repo.GetParticipation(ctx, userID, campaignID)
	if err != nil {
		return nil, storeError("GetParticipation", err)
	}
	return p, nil
}

// update locates the participation and applies the updates computed by fn.
// fn returns nil when the record already has the desired state.
func (s *ParticipationService) update(
	ctx context.Context,
	op, userID, campaignID string,
	fn func(p *models.Participation) map[string]interface{},
) (*models.Participation, error) {
	p, err := s.repo.GetParticipation(ctx, userID, campaignID)
	if err != nil {
		return nil, storeError(op, err)
	}

	updates := fn(p)
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.repo.UpdateParticipationFields(ctx, p.ID, updates); err != nil {
		return nil, storeError(op, err)
	}
	return s.GetParticipation(ctx, userID, campaignID)
}

func (s *ParticipationService) refreshInstallStats(ctx context.Context, p *models.Participation) {
	if err := s.repo.RecountInstallStats(ctx, p.CampaignID); err != nil {
		s.log.Warn("failed to recount install stats", zap.String("campaign_id", p.CampaignID), zap.Error(err))
		return
	}
	publishCampaignChange(ctx, s.publisher, p.CampaignID, p.HostID)
}

// UpdatePwaInstallStatus records whether the app was installed from this
// participation. The first install time is kept.
func (s *ParticipationService) UpdatePwaInstallStatus(ctx context.Context, userID, campaignID string, installed bool) (*models.Participation, error) {
	p, err := s.update(ctx, "UpdatePwaInstallStatus", userID, campaignID, func(p *models.Participation) map[string]interface{} {
		if p.IsPWAInstalled == installed {
			return nil
		}
		updates := map[string]interface{}{"is_pwa_installed": installed}
		if installed && p.PWAInstalledAt == nil {
			updates["pwa_installed_at"] = s.now()
		}
		return updates
	})
	if err != nil {
		return nil, err
	}

	s.refreshInstallStats(ctx, p)
	if installed && s.users != nil {
		if err := s.users.MarkInstalled(ctx, userID); err != nil {
			s.log.Warn("failed to mark user installed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return p, nil
}

// RecordInstallPromptShown stamps the first time the install prompt was shown
func (s *ParticipationService) RecordInstallPromptShown(ctx context.Context, userID, campaignID string) (*models.Participation, error) {
	first := false
	p, err := s.update(ctx, "RecordInstallPromptShown", userID, campaignID, func(p *models.Participation) map[string]interface{} {
		if p.InstallPromptShownAt != nil {
			return nil
		}
		first = true
		return map[string]interface{}{"install_prompt_shown_at": s.now()}
	})
	if err != nil {
		return nil, err
	}

	if first {
		s.refreshInstallStats(ctx, p)
		if s.users != nil {
			if err := s.users.RecordInstallPrompt(ctx, userID); err != nil {
				s.log.Warn("failed to record user prompt", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}
	return p, nil
}

// RecordInstallPromptDismissed stamps the first dismissal of the prompt
func (s *ParticipationService) RecordInstallPromptDismissed(ctx context.Context, userID, campaignID string) (*models.Participation, error) {
	return s.update(ctx, "RecordInstallPromptDismissed", userID, campaignID, func(p *models.Participation) map[string]interface{} {
		if p.InstallPromptDismissedAt != nil {
			return nil
		}
		return map[string]interface{}{"install_prompt_dismissed_at": s.now()}
	})
}

// UpdateNotificationSettings toggles winner notifications for one campaign.
// Once set, the choice overrides the user-level push settings.
func (s *ParticipationService) UpdateNotificationSettings(ctx context.Context, userID, campaignID string, enabled bool, token string) (*models.Participation, error) {
	token = strings.TrimSpace(token)
	return s.update(ctx, "UpdateNotificationSettings", userID, campaignID, func(p *models.Participation) map[string]interface{} {
		if p.NotificationSetAt != nil && p.NotificationEnabled == enabled && (token == "" || token == p.NotificationToken) {
			return nil
		}
		updates := map[string]interface{}{
			"notification_enabled": enabled,
			"notification_set_at":  s.now(),
		}
		if token != "" {
			updates["notification_token"] = token
		}
		return updates
	})
}

// SetWinner marks the participation as a winner. The first win time is kept.
func (s *ParticipationService) SetWinner(ctx context.Context, userID, campaignID string) (*models.Participation, error) {
	p, err := s.update(ctx, "SetWinner", userID, campaignID, func(p *models.Participation) map[string]interface{} {
		if p.IsWinner {
			return nil
		}
		return map[string]interface{}{"is_winner": true, "won_at": s.now()}
	})
	if err != nil {
		return nil, err
	}
	if s.users != nil {
		s.users.RefreshStats(ctx, userID)
	}
	return p, nil
}

// ClaimPrize records that a winner claimed the prize
func (s *ParticipationService) ClaimPrize(ctx context.Context, userID, campaignID string) (*models.Participation, error) {
	const op = "ClaimPrize"

	p, err := s.repo.GetParticipation(ctx, userID, campaignID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if !p.IsWinner {
		return nil, newError(KindInvalidState, op, "user %s did not win campaign %s", userID, campaignID)
	}
	return s.update(ctx, op, userID, campaignID, func(p *models.Participation) map[string]interface{} {
		if p.PrizeClaimedAt != nil {
			return nil
		}
		return map[string]interface{}{"prize_claimed_at": s.now()}
	})
}

// GetCampaignParticipants returns one page of participants. sort is a
// field name optionally suffixed with ":desc".
func (s *ParticipationService) GetCampaignParticipants(ctx context.Context, campaignID string, page, limit int, sort string) (*models.ParticipantPage, error) {
	const op = "GetCampaignParticipants"

	if page < 1 {
		page = 1
	}
	if page > maxParticipantPage {
		return nil, newError(KindInvalidInput, op, "page %d is out of range", page)
	}
	if limit <= 0 {
		limit = defaultParticipantLimit
	}
	if limit > maxParticipantLimit {
		limit = maxParticipantLimit
	}

	field, desc := parseSort(sort, "participated_at")
	if !repository.ParticipantSortFields[field] {
		return nil, newError(KindInvalidInput, op, "cannot sort participants by %q", field)
	}

	offset := (page - 1) * limit
	participants, total, err := s.repo.ListCampaignParticipants(ctx, campaignID, offset, limit, field, desc)
	if err != nil {
		return nil, storeError(op, err)
	}

	return &models.ParticipantPage{
		Participants: participants,
		Total:        total,
		Page:         page,
		Limit:        limit,
		HasMore:      int64(offset+len(participants)) < total,
	}, nil
}

// GetUserParticipations lists every campaign the user joined
func (s *ParticipationService) GetUserParticipations(ctx context.Context, userID string) ([]models.Participation, error) {
	participations, err := s.repo.ListUserParticipations(ctx, userID)
	if err != nil {
		return nil, storeError("GetUserParticipations", err)
	}
	return participations, nil
}

// LogAccess appends an access log entry. The campaign access counter is
// bumped best-effort.
func (s *ParticipationService) LogAccess(ctx context.Context, entry *models.AccessLog) error {
	if entry.AccessedAt.IsZero() {
		entry.AccessedAt = s.now()
	}
	if err := s.repo.CreateAccessLog(ctx, entry); err != nil {
		return storeError("LogAccess", err)
	}

	if err := s.repo.IncrementCampaignCounter(ctx, entry.CampaignID, "access_count", 1); err != nil {
		s.log.Warn("failed to bump access count", zap.String("campaign_id", entry.CampaignID), zap.Error(err))
		return nil
	}
	if s.publisher != nil {
		if campaign, err := s.repo.GetCampaignByID(ctx, entry.CampaignID); err == nil {
			publishCampaignChange(ctx, s.publisher, campaign.ID, campaign.HostID)
		}
	}
	return nil
}

// parseSort splits "field:desc" into its parts
func parseSort(sort, fallback string) (string, bool) {
	sort = strings.TrimSpace(sort)
	if sort == "" {
		return fallback, false
	}
	field, dir, _ := strings.Cut(sort, ":")
	return strings.TrimSpace(field), strings.EqualFold(strings.TrimSpace(dir), "desc")
}
