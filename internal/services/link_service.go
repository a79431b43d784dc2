package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"giveaway/internal/metrics"
	"giveaway/internal/models"
	"giveaway/internal/realtime"
	"giveaway/internal/repository"
)

// LinkService mints short links and tracks their clicks. Unique visitors
// are approximated by IP within a trailing window, so visitors behind a
// shared NAT count once.
type LinkService struct {
	repo      *repository.Repository
	publisher realtime.Publisher
	log       *zap.Logger
	origin    string
	window    time.Duration
	codes     CodeGenerator
	now       Clock
}

// NewLinkService creates a new LinkService. origin is the public base URL
// used to build canonical and short URLs. publisher announces campaign
// counter changes and may be nil.
func NewLinkService(
	repo *repository.Repository,
	publisher realtime.Publisher,
	log *zap.Logger,
	origin string,
	window time.Duration,
) *LinkService {
	return &LinkService{
		repo:      repo,
		publisher: publisher,
		log:       log,
		origin:    strings.TrimRight(origin, "/"),
		window:    window,
		codes:     RandomCode,
		now:       utcNow,
	}
}

// CampaignURL is the canonical landing page of a campaign
func (s *LinkService) CampaignURL(campaignID string) string {
	return fmt.Sprintf("%s/campaign/%s", s.origin, campaignID)
}

// ShortURL is the trackable short link for a code
func (s *LinkService) ShortURL(code string) string {
	return fmt.Sprintf("%s/l/%s", s.origin, code)
}

// GenerateCampaignLink mints a link for a campaign owned by hostID and makes
// it the campaign's unique link.
func (s *LinkService) GenerateCampaignLink(ctx context.Context, campaignID, hostID, customCode string) (*models.CampaignLink, error) {
	const op = "GenerateCampaignLink"

	campaign, err := s.repo.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if campaign.HostID != hostID {
		return nil, newError(KindPermissionDenied, op, "campaign %s is not owned by %s", campaignID, hostID)
	}

	link := &models.CampaignLink{
		CampaignID:  campaignID,
		HostID:      hostID,
		OriginalURL: s.CampaignURL(campaignID),
		IsActive:    true,
	}

	customCode = strings.TrimSpace(customCode)
	if customCode != "" {
		if err := validateCustomCode(customCode); err != nil {
			return nil, &Error{Kind: KindInvalidInput, Op: op, Err: err}
		}
		if err := s.insertLink(ctx, link, customCode); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, newError(KindConflict, op, "code %q is already taken", customCode)
			}
			return nil, storeError(op, err)
		}
	} else {
		if err := s.insertGenerated(ctx, link); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateCampaignFields(ctx, campaignID, map[string]interface{}{"unique_link": link.ShortURL}); err != nil {
		s.log.Warn("failed to set campaign link", zap.String("campaign_id", campaignID), zap.Error(err))
	} else {
		publishCampaignChange(ctx, s.publisher, campaignID, hostID)
	}

	s.log.Info("campaign link generated",
		zap.String("campaign_id", campaignID),
		zap.String("code", link.UniqueCode))
	return link, nil
}

func (s *LinkService) insertLink(ctx context.Context, link *models.CampaignLink, code string) error {
	taken, err := s.repo.CodeExists(ctx, code)
	if err != nil {
		return err
	}
	if taken {
		return gorm.ErrDuplicatedKey
	}

	link.ID = ""
	link.UniqueCode = code
	link.ShortURL = s.ShortURL(code)
	return s.repo.CreateLink(ctx, link)
}

// insertGenerated retries on collision with a fresh random code
func (s *LinkService) insertGenerated(ctx context.Context, link *models.CampaignLink) error {
	const op = "GenerateCampaignLink"

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return &Error{Kind: KindPersistence, Op: op, Err: err}
		}

		err = s.insertLink(ctx, link, code)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return storeError(op, err)
		}
		s.log.Debug("short code collision", zap.String("code", code), zap.Int("attempt", attempt))
	}
	return newError(KindConflict, op, "no free short code after %d attempts", maxCodeAttempts)
}

// TrackLinkClick records a click on code and returns where to redirect.
// Only the click count is required to succeed; logging, unique visitor
// detection, rate recomputation and the campaign access counter are
// best-effort.
func (s *LinkService) TrackLinkClick(ctx context.Context, code string, meta models.ClickMeta) (result *models.ClickResult, err error) {
	const op = "TrackLinkClick"
	defer func(start time.Time) { metrics.RecordOperation("track_link_click", start, err) }(time.Now())

	link, err := s.repo.GetLinkByCode(ctx, code)
	if err != nil {
		return nil, storeError(op, err)
	}
	if !link.IsActive {
		return nil, newError(KindNotFound, op, "link %q is inactive", code)
	}

	now := s.now()
	unique := false
	if meta.IPAddress != "" {
		seen, err := s.repo.HasRecentVisit(ctx, link.ID, meta.IPAddress, now.Add(-s.window))
		if err != nil {
			s.log.Warn("failed to check recent visit", zap.String("link_id", link.ID), zap.Error(err))
		} else {
			unique = !seen
		}
	}

	if err := s.repo.IncrementLinkCounter(ctx, link.ID, "click_count"); err != nil {
		return nil, storeError(op, err)
	}
	metrics.RecordClick(unique)

	entry := &models.AccessLog{
		CampaignID:  link.CampaignID,
		LinkID:      &link.ID,
		AccessedAt:  now,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Referrer:    meta.Referrer,
		IsPWAAccess: isPWAAccess(meta.UserAgent),
	}
	if meta.UserID != "" {
		entry.UserID = &meta.UserID
	}
	if err := s.repo.CreateAccessLog(ctx, entry); err != nil {
		s.log.Warn("failed to write access log", zap.String("link_id", link.ID), zap.Error(err))
	}

	if unique {
		if err := s.repo.IncrementLinkCounter(ctx, link.ID, "unique_visitors"); err != nil {
			s.log.Warn("failed to bump unique visitors", zap.String("link_id", link.ID), zap.Error(err))
		}
	}

	s.RefreshRates(ctx, link.ID)

	if err := s.repo.IncrementCampaignCounter(ctx, link.CampaignID, "access_count", 1); err != nil {
		s.log.Warn("failed to bump access count", zap.String("campaign_id", link.CampaignID), zap.Error(err))
	} else {
		publishCampaignChange(ctx, s.publisher, link.CampaignID, link.HostID)
	}

	return &models.ClickResult{
		RedirectURL:     link.OriginalURL,
		CampaignID:      link.CampaignID,
		LinkID:          link.ID,
		IsUniqueVisitor: unique,
	}, nil
}

// RefreshRates recomputes a link's conversion and install rates from the
// campaign's current counts. Failures are logged only.
func (s *LinkService) RefreshRates(ctx context.Context, linkID string) {
	link, err := s.repo.GetLinkByID(ctx, linkID)
	if err != nil {
		s.log.Warn("failed to load link for rates", zap.String("link_id", linkID), zap.Error(err))
		return
	}
	campaign, err := s.repo.GetCampaignByID(ctx, link.CampaignID)
	if err != nil {
		s.log.Warn("failed to load campaign for rates", zap.String("campaign_id", link.CampaignID), zap.Error(err))
		return
	}

	err = s.repo.UpdateLinkFields(ctx, linkID, map[string]interface{}{
		"conversion_rate": percentage(campaign.ParticipantCount, link.ClickCount),
		"install_rate":    percentage(campaign.InstallCompleted, campaign.ParticipantCount),
	})
	if err != nil {
		s.log.Warn("failed to update link rates", zap.String("link_id", linkID), zap.Error(err))
	}
}

// GetCampaignLinks returns the active links of a campaign
func (s *LinkService) GetCampaignLinks(ctx context.Context, campaignID string) ([]models.CampaignLink, error) {
	links, err := s.repo.ListCampaignLinks(ctx, campaignID)
	if err != nil {
		return nil, storeError("GetCampaignLinks", err)
	}
	return links, nil
}

// GetLinkByCode resolves an active short code
func (s *LinkService) GetLinkByCode(ctx context.Context, code string) (*models.CampaignLink, error) {
	const op = "GetLinkByCode"

	link, err := s.repo.GetLinkByCode(ctx, code)
	if err != nil {
		return nil, storeError(op, err)
	}
	if !link.IsActive {
		return nil, newError(KindNotFound, op, "link %q is inactive", code)
	}
	return link, nil
}

// DeleteLink soft-deletes a link owned by hostID
func (s *LinkService) DeleteLink(ctx context.Context, linkID, hostID string) error {
	const op = "DeleteLink"

	link, err := s.repo.GetLinkByID(ctx, linkID)
	if err != nil {
		return storeError(op, err)
	}
	if link.HostID != hostID {
		return newError(KindPermissionDenied, op, "link %s is not owned by %s", linkID, hostID)
	}
	if !link.IsActive {
		return nil
	}
	return storeError(op, s.repo.DeactivateLink(ctx, linkID, s.now()))
}

// GetHostLinkStats sums the statistics of a host's active links
func (s *LinkService) GetHostLinkStats(ctx context.Context, hostID string) (*models.HostLinkStats, error) {
	links, err := s.repo.ListHostLinks(ctx, hostID)
	if err != nil {
		return nil, storeError("GetHostLinkStats", err)
	}

	stats := &models.HostLinkStats{TotalLinks: len(links)}
	conversion := make([]float64, 0, len(links))
	install := make([]float64, 0, len(links))
	for _, l := range links {
		stats.TotalClicks += l.ClickCount
		stats.TotalUniqueVisitors += l.UniqueVisitors
		conversion = append(conversion, l.ConversionRate)
		install = append(install, l.InstallRate)
	}
	stats.AverageConversionRate = averageRate(conversion)
	stats.AverageInstallRate = averageRate(install)
	return stats, nil
}
