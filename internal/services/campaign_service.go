package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"giveaway/internal/metrics"
	"giveaway/internal/models"
	"giveaway/internal/realtime"
	"giveaway/internal/repository"
)

const (
	defaultCampaignPageSize = 20
	maxCampaignPageSize     = 100

	// notifyTimeout bounds the winner pushes of one draw
	notifyTimeout = 2 * time.Minute
)

// CampaignService owns the campaign lifecycle: creation, joins, status
// changes, winner draws and live listings.
type CampaignService struct {
	repo      *repository.Repository
	hosts     *HostService
	ledger    *ParticipationService
	links     *LinkService
	notifier  *NotificationService
	hub       *realtime.Hub
	publisher realtime.Publisher
	rng       *drawRNG
	log       *zap.Logger
	now       Clock

	notifying sync.WaitGroup
}

// NewCampaignService creates a new CampaignService. publisher may be the
// hub itself or a bridge that also reaches other instances.
func NewCampaignService(
	repo *repository.Repository,
	hosts *HostService,
	ledger *ParticipationService,
	links *LinkService,
	notifier *NotificationService,
	hub *realtime.Hub,
	publisher realtime.Publisher,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		repo:      repo,
		hosts:     hosts,
		ledger:    ledger,
		links:     links,
		notifier:  notifier,
		hub:       hub,
		publisher: publisher,
		rng:       newSecureRNG(),
		log:       log,
		now:       utcNow,
	}
}

func (s *CampaignService) publish(ctx context.Context, c *models.Campaign) {
	publishCampaignChange(ctx, s.publisher, c.ID, c.HostID)
}

// publishCampaignChange announces a write to a campaign row. pub may be nil.
func publishCampaignChange(ctx context.Context, pub realtime.Publisher, campaignID, hostID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, realtime.Change{
		Collection: realtime.CollectionCampaigns,
		ID:         campaignID,
		HostID:     hostID,
	})
}

// Wait blocks until in-flight winner notifications have finished
func (s *CampaignService) Wait() {
	s.notifying.Wait()
}

// notifyWinners pushes to the winners in the background so the draw does
// not wait on the gateway. The pushes outlive the request context but are
// bounded by notifyTimeout.
func (s *CampaignService) notifyWinners(ctx context.Context, campaignID, title string) {
	if s.notifier == nil {
		return
	}
	s.notifying.Add(1)
	go func() {
		defer s.notifying.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		sent, err := s.notifier.NotifyWinners(ctx, campaignID, title)
		if err != nil {
			s.log.Warn("failed to notify winners", zap.String("campaign_id", campaignID), zap.Error(err))
			return
		}
		s.log.Debug("winners notified", zap.String("campaign_id", campaignID), zap.Int("sent", sent))
	}()
}

// CreateCampaign persists a draft campaign for an active host and mints its
// canonical short link.
func (s *CampaignService) CreateCampaign(ctx context.Context, req models.CreateCampaignRequest, hostID string) (*models.Campaign, error) {
	const op = "CreateCampaign"

	host, err := s.hosts.RequireActiveHost(ctx, hostID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, newError(KindInvalidInput, op, "title is required")
	}
	if req.MaxParticipants < 0 {
		return nil, newError(KindInvalidInput, op, "max participants cannot be negative")
	}

	start := req.StartDate.UTC()
	if req.StartDate.IsZero() {
		start = s.now()
	}
	if req.EndDate.IsZero() {
		return nil, newError(KindInvalidInput, op, "end date is required")
	}
	end := req.EndDate.UTC()
	draw := end
	if !req.DrawDate.IsZero() {
		draw = req.DrawDate.UTC()
	}
	if end.Before(start) || draw.Before(end) {
		return nil, newError(KindInvalidInput, op, "dates must satisfy start <= end <= draw")
	}

	campaign := &models.Campaign{
		HostID:          host.ID,
		HostDisplayName: host.DisplayName,
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		GiftDescription: strings.TrimSpace(req.GiftDescription),
		MaxParticipants: req.MaxParticipants,
		StartDate:       start,
		EndDate:         end,
		DrawDate:        draw,
		Status:          models.CampaignStatusDraft,
	}
	if err := s.repo.CreateCampaign(ctx, campaign); err != nil {
		return nil, storeError(op, err)
	}

	if s.links != nil {
		link, err := s.links.GenerateCampaignLink(ctx, campaign.ID, host.ID, "")
		if err != nil {
			s.log.Warn("failed to mint campaign link", zap.String("campaign_id", campaign.ID), zap.Error(err))
		} else {
			campaign.UniqueLink = link.ShortURL
		}
	}

	s.hosts.RefreshStats(ctx, host.ID)
	s.publish(ctx, campaign)

	s.log.Info("campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.String("host_id", host.ID),
		zap.Int("max_participants", campaign.MaxParticipants))
	return campaign, nil
}

// GetCampaign retrieves a campaign by ID
func (s *CampaignService) GetCampaign(ctx context.Context, campaignID string) (*models.Campaign, error) {
	campaign, err := s.repo.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, storeError("GetCampaign", err)
	}
	return campaign, nil
}

func (s *CampaignService) ownedCampaign(ctx context.Context, op, campaignID, hostID string) (*models.Campaign, error) {
	campaign, err := s.repo.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if campaign.HostID != hostID {
		return nil, newError(KindPermissionDenied, op, "campaign %s is not owned by %s", campaignID, hostID)
	}
	return campaign, nil
}

// RequireOwner returns the campaign when hostID owns it
func (s *CampaignService) RequireOwner(ctx context.Context, campaignID, hostID string) (*models.Campaign, error) {
	return s.ownedCampaign(ctx, "RequireOwner", campaignID, hostID)
}

// JoinCampaign adds userID to an active campaign. Joining twice returns the
// existing participation. Capacity is enforced atomically with the insert.
func (s *CampaignService) JoinCampaign(ctx context.Context, campaignID, userID, referralSource string) (p *models.Participation, err error) {
	const op = "JoinCampaign"
	defer func(start time.Time) { metrics.RecordOperation("join_campaign", start, err) }(time.Now())

	campaign, err := s.repo.GetCampaignByID(ctx, campaignID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if campaign.Status != models.CampaignStatusActive {
		metrics.RecordJoin("inactive")
		return nil, newError(KindInvalidState, op, "campaign %s is %s", campaignID, campaign.Status)
	}

	p, created, err := s.ledger.createParticipation(ctx, userID, campaignID, campaign.HostID, referralSource, true)
	if errors.Is(err, errNoSeat) {
		current, getErr := s.repo.GetCampaignByID(ctx, campaignID)
		if getErr == nil && current.Status != models.CampaignStatusActive {
			metrics.RecordJoin("inactive")
			return nil, newError(KindInvalidState, op, "campaign %s is %s", campaignID, current.Status)
		}
		metrics.RecordJoin("full")
		return nil, newError(KindCapacityExceeded, op, "campaign %s is full (%d)", campaignID, campaign.MaxParticipants)
	}
	if err != nil {
		return nil, storeError(op, err)
	}

	if !created {
		metrics.RecordJoin("duplicate")
		return p, nil
	}

	metrics.RecordJoin("joined")
	s.hosts.RefreshStats(ctx, campaign.HostID)
	s.publish(ctx, campaign)

	s.log.Info("user joined campaign",
		zap.String("campaign_id", campaignID),
		zap.String("user_id", userID),
		zap.String("referral_source", p.ReferralSource))
	return p, nil
}

// DrawWinners picks winnerCount participants uniformly at random, marks
// them and moves the campaign to drawn in one transaction.
func (s *CampaignService) DrawWinners(ctx context.Context, campaignID string, winnerCount int, hostID string) (result *models.DrawResult, err error) {
	const op = "DrawWinners"
	defer func(start time.Time) { metrics.RecordOperation("draw_winners", start, err) }(time.Now())

	campaign, err := s.ownedCampaign(ctx, op, campaignID, hostID)
	if err != nil {
		return nil, err
	}
	if winnerCount <= 0 {
		return nil, newError(KindInvalidInput, op, "winner count must be positive")
	}
	if !campaign.Status.CanDraw() {
		return nil, newError(KindInvalidState, op, "cannot draw a %s campaign", campaign.Status)
	}

	ids, err := s.repo.ListAllParticipantIDs(ctx, campaignID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if len(ids) < winnerCount {
		return nil, newError(KindInsufficientParticipants, op,
			"campaign %s has %d participants, %d requested", campaignID, len(ids), winnerCount)
	}

	winners := s.rng.pick(ids, winnerCount)
	wonAt := s.now()

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		ok, err := tx.TransitionCampaignStatus(ctx, campaignID,
			[]models.CampaignStatus{models.CampaignStatusActive, models.CampaignStatusEnded},
			models.CampaignStatusDrawn,
			map[string]interface{}{"winner_count": len(winners)})
		if err != nil {
			return err
		}
		if !ok {
			return newError(KindInvalidState, op, "campaign %s changed status during draw", campaignID)
		}

		marked, err := tx.MarkWinners(ctx, campaignID, winners, wonAt)
		if err != nil {
			return err
		}
		if int(marked) != len(winners) {
			return newError(KindInvalidState, op, "marked %d of %d winners", marked, len(winners))
		}
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}

	campaign.Status = models.CampaignStatusDrawn
	campaign.WinnerCount = len(winners)

	if s.ledger.users != nil {
		for _, id := range winners {
			s.ledger.users.RefreshStats(ctx, id)
		}
	}
	s.notifyWinners(ctx, campaignID, campaign.Title)
	s.publish(ctx, campaign)

	s.log.Info("winners drawn",
		zap.String("campaign_id", campaignID),
		zap.Int("winners", len(winners)),
		zap.Int("participants", len(ids)))

	return &models.DrawResult{
		CampaignID:    campaignID,
		WinnerUserIDs: winners,
		WinnerCount:   len(winners),
	}, nil
}

// UpdateCampaignStatus applies a manual status change allowed by the
// transition table. Drawn can only be reached through DrawWinners.
func (s *CampaignService) UpdateCampaignStatus(ctx context.Context, campaignID, newStatus, hostID string) (*models.Campaign, error) {
	const op = "UpdateCampaignStatus"

	target, ok := models.ParseCampaignStatus(newStatus)
	if !ok {
		return nil, newError(KindInvalidInput, op, "unknown status %q", newStatus)
	}

	campaign, err := s.ownedCampaign(ctx, op, campaignID, hostID)
	if err != nil {
		return nil, err
	}
	if target == models.CampaignStatusDrawn {
		return nil, newError(KindInvalidTransition, op, "campaigns become drawn only by drawing winners")
	}
	if !campaign.Status.CanTransitionTo(target) {
		return nil, newError(KindInvalidTransition, op, "cannot move campaign from %s to %s", campaign.Status, target)
	}

	ok, err = s.repo.TransitionCampaignStatus(ctx, campaignID, []models.CampaignStatus{campaign.Status}, target, nil)
	if err != nil {
		return nil, storeError(op, err)
	}
	if !ok {
		return nil, newError(KindInvalidTransition, op, "campaign %s changed status concurrently", campaignID)
	}

	campaign.Status = target
	s.publish(ctx, campaign)
	s.log.Info("campaign status changed", zap.String("campaign_id", campaignID), zap.String("status", string(target)))

	return s.GetCampaign(ctx, campaignID)
}

// DeleteCampaign removes the campaign record and deactivates its links.
// Participations, link rows and access logs are kept.
func (s *CampaignService) DeleteCampaign(ctx context.Context, campaignID, hostID string) error {
	const op = "DeleteCampaign"

	campaign, err := s.ownedCampaign(ctx, op, campaignID, hostID)
	if err != nil {
		return err
	}
	var deactivated int64
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.DeleteCampaign(ctx, campaignID); err != nil {
			return err
		}
		n, err := tx.DeactivateCampaignLinks(ctx, campaignID, s.now())
		deactivated = n
		return err
	})
	if err != nil {
		return storeError(op, err)
	}

	s.hosts.RefreshStats(ctx, hostID)
	s.publish(ctx, campaign)
	s.log.Info("campaign deleted",
		zap.String("campaign_id", campaignID),
		zap.Int64("links_deactivated", deactivated))
	return nil
}

// GetCampaigns returns one page of campaigns using keyset pagination
func (s *CampaignService) GetCampaigns(ctx context.Context, req models.CampaignListRequest) (*models.CampaignPage, error) {
	const op = "GetCampaigns"

	field, desc := "created_at", true
	if strings.TrimSpace(req.Sort) != "" {
		field, desc = parseSort(req.Sort, "created_at")
	}
	if !repository.CampaignSortFields[field] {
		return nil, newError(KindInvalidInput, op, "cannot sort campaigns by %q", field)
	}

	size := req.PageSize
	if size <= 0 {
		size = defaultCampaignPageSize
	}
	if size > maxCampaignPageSize {
		size = maxCampaignPageSize
	}

	q := repository.CampaignQuery{
		HostID:     req.Filter.HostID,
		StartFrom:  req.Filter.StartFrom,
		EndUntil:   req.Filter.EndUntil,
		HasWinners: req.Filter.HasWinners,
		SortField:  field,
		Desc:       desc,
		Limit:      size + 1,
	}
	if req.Filter.Status != "" {
		status, ok := models.ParseCampaignStatus(req.Filter.Status)
		if !ok {
			return nil, newError(KindInvalidInput, op, "unknown status %q", req.Filter.Status)
		}
		q.Statuses = []models.CampaignStatus{status}
	}
	if req.Cursor != "" {
		value, id, err := decodeCursor(req.Cursor, field)
		if err != nil {
			return nil, &Error{Kind: KindInvalidInput, Op: op, Err: err}
		}
		q.AfterValue, q.AfterID = value, id
	}

	campaigns, err := s.repo.ListCampaigns(ctx, q)
	if err != nil {
		return nil, storeError(op, err)
	}

	page := &models.CampaignPage{Campaigns: campaigns}
	if len(campaigns) > size {
		page.Campaigns = campaigns[:size]
		page.HasMore = true
		cursor, err := encodeCursor(&page.Campaigns[size-1], field)
		if err != nil {
			return nil, &Error{Kind: KindPersistence, Op: op, Err: err}
		}
		page.NextCursor = cursor
	}
	return page, nil
}

// CloseExpiredCampaigns moves active campaigns past their end date to ended
func (s *CampaignService) CloseExpiredCampaigns(ctx context.Context, limit int) (int, error) {
	const op = "CloseExpiredCampaigns"

	campaigns, err := s.repo.ListCampaignsToClose(ctx, s.now(), limit)
	if err != nil {
		return 0, storeError(op, err)
	}

	closed := 0
	for i := range campaigns {
		c := &campaigns[i]
		ok, err := s.repo.TransitionCampaignStatus(ctx, c.ID,
			[]models.CampaignStatus{models.CampaignStatusActive}, models.CampaignStatusEnded, nil)
		if err != nil {
			s.log.Warn("failed to close campaign", zap.String("campaign_id", c.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		c.Status = models.CampaignStatusEnded
		s.publish(ctx, c)
		closed++
	}
	return closed, nil
}

// ReconcileCounters recomputes the denormalized counters of every open or
// recently ended campaign from the ledger.
func (s *CampaignService) ReconcileCounters(ctx context.Context) (int, error) {
	const op = "ReconcileCounters"

	ids, err := s.repo.ListCampaignIDsByStatus(ctx, models.CampaignStatusActive, models.CampaignStatusEnded)
	if err != nil {
		return 0, storeError(op, err)
	}

	hosts := make(map[string]bool)
	for _, id := range ids {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		before, err := s.repo.GetCampaignByID(ctx, id)
		if err != nil {
			continue
		}
		if _, err := s.repo.RecountParticipants(ctx, id); err != nil {
			s.log.Warn("failed to recount participants", zap.String("campaign_id", id), zap.Error(err))
			continue
		}
		if err := s.repo.RecountInstallStats(ctx, id); err != nil {
			s.log.Warn("failed to recount installs", zap.String("campaign_id", id), zap.Error(err))
		}
		if after, err := s.repo.GetCampaignByID(ctx, id); err == nil && countersChanged(before, after) {
			s.publish(ctx, after)
		}

		if s.links != nil {
			links, err := s.repo.ListCampaignLinks(ctx, id)
			if err == nil {
				for _, l := range links {
					s.links.RefreshRates(ctx, l.ID)
					hosts[l.HostID] = true
				}
			}
		}
	}

	for hostID := range hosts {
		s.hosts.RefreshStats(ctx, hostID)
	}
	return len(ids), nil
}

func countersChanged(a, b *models.Campaign) bool {
	return a.ParticipantCount != b.ParticipantCount ||
		a.InstallCompleted != b.InstallCompleted ||
		a.InstallPromptShown != b.InstallPromptShown
}
