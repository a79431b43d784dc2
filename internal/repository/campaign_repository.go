package repository

import (
	"context"
	"fmt"
	"time"

	"giveaway/internal/models"

	"gorm.io/gorm"
)

// CampaignSortFields are the indexed columns a campaign listing may sort on
var CampaignSortFields = map[string]bool{
	"created_at":        true,
	"updated_at":        true,
	"start_date":        true,
	"end_date":          true,
	"draw_date":         true,
	"participant_count": true,
	"access_count":      true,
	"title":             true,
}

// campaignCounters are the columns IncrementCampaignCounter may touch
var campaignCounters = map[string]bool{
	"access_count":         true,
	"install_prompt_shown": true,
	"install_completed":    true,
}

// CampaignQuery selects a page of campaigns with keyset pagination
type CampaignQuery struct {
	HostID     string
	Statuses   []models.CampaignStatus
	StartFrom  *time.Time
	EndUntil   *time.Time
	HasWinners *bool

	SortField string
	Desc      bool
	Limit     int // 0 = no limit

	// Keyset position: rows strictly after (AfterValue, AfterID) in sort order
	AfterValue interface{}
	AfterID    string
}

// CreateCampaign creates a new campaign
func (r *Repository) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// GetCampaignByID retrieves a campaign by ID
func (r *Repository) GetCampaignByID(ctx context.Context, campaignID string) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).Where("id = ?", campaignID).First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// UpdateCampaignFields applies a partial update to a campaign
func (r *Repository) UpdateCampaignFields(ctx context.Context, campaignID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Campaign{}).Where("id = ?", campaignID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCampaign removes the campaign row only
func (r *Repository) DeleteCampaign(ctx context.Context, campaignID string) error {
	result := r.db.WithContext(ctx).Where("id = ?", campaignID).Delete(&models.Campaign{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReserveSeat atomically takes one participant slot on an active campaign.
// It returns false when the campaign is no longer active or already full.
func (r *Repository) ReserveSeat(ctx context.Context, campaignID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, models.CampaignStatusActive).
		Where("(max_participants = 0 OR participant_count < max_participants)").
		UpdateColumn("participant_count", gorm.Expr("participant_count + ?", 1))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionCampaignStatus moves a campaign to next only if its current
// status is one of from. It returns false when no row matched.
func (r *Repository) TransitionCampaignStatus(
	ctx context.Context,
	campaignID string,
	from []models.CampaignStatus,
	next models.CampaignStatus,
	extra map[string]interface{},
) (bool, error) {
	updates := map[string]interface{}{"status": next}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", campaignID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IncrementCampaignCounter atomically adds delta to a counter column
func (r *Repository) IncrementCampaignCounter(ctx context.Context, campaignID, column string, delta int) error {
	if !campaignCounters[column] {
		return fmt.Errorf("unknown campaign counter %q", column)
	}
	return r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// RecountParticipants recomputes participant_count from the ledger. The
// campaign row is locked before counting so in-flight joins settle first.
func (r *Repository) RecountParticipants(ctx context.Context, campaignID string) (int64, error) {
	var count int64
	err := r.Transaction(ctx, func(tx *Repository) error {
		if err := tx.db.WithContext(ctx).Model(&models.Campaign{}).
			Where("id = ?", campaignID).
			UpdateColumn("participant_count", gorm.Expr("participant_count")).Error; err != nil {
			return fmt.Errorf("failed to lock campaign: %w", err)
		}

		if err := tx.db.WithContext(ctx).Model(&models.Participation{}).
			Where("campaign_id = ?", campaignID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count participants: %w", err)
		}

		return tx.db.WithContext(ctx).Model(&models.Campaign{}).
			Where("id = ?", campaignID).
			UpdateColumn("participant_count", count).Error
	})
	return count, err
}

// RecountInstallStats recomputes install_completed and install_prompt_shown
func (r *Repository) RecountInstallStats(ctx context.Context, campaignID string) error {
	var stats struct {
		Installed int64
		Prompted  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Participation{}).
		Select("COALESCE(SUM(CASE WHEN is_pwa_installed THEN 1 ELSE 0 END), 0) AS installed, "+
			"COALESCE(SUM(CASE WHEN install_prompt_shown_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS prompted").
		Where("campaign_id = ?", campaignID).
		Scan(&stats).Error
	if err != nil {
		return fmt.Errorf("failed to count installs: %w", err)
	}

	return r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		UpdateColumns(map[string]interface{}{
			"install_completed":    stats.Installed,
			"install_prompt_shown": stats.Prompted,
		}).Error
}

// ListCampaigns returns campaigns matching q in sort order
func (r *Repository) ListCampaigns(ctx context.Context, q CampaignQuery) ([]models.Campaign, error) {
	sortField := q.SortField
	if !CampaignSortFields[sortField] {
		sortField = "created_at"
	}
	dir, cmp := "ASC", ">"
	if q.Desc {
		dir, cmp = "DESC", "<"
	}

	query := r.db.WithContext(ctx).Model(&models.Campaign{})
	if q.HostID != "" {
		query = query.Where("host_id = ?", q.HostID)
	}
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	if q.StartFrom != nil {
		query = query.Where("start_date >= ?", *q.StartFrom)
	}
	if q.EndUntil != nil {
		query = query.Where("end_date <= ?", *q.EndUntil)
	}
	if q.HasWinners != nil {
		if *q.HasWinners {
			query = query.Where("winner_count > 0")
		} else {
			query = query.Where("winner_count = 0")
		}
	}
	if q.AfterID != "" {
		query = query.Where(
			fmt.Sprintf("((%s %s ?) OR (%s = ? AND id %s ?))", sortField, cmp, sortField, cmp),
			q.AfterValue, q.AfterValue, q.AfterID,
		)
	}

	query = query.Order(fmt.Sprintf("%s %s, id %s", sortField, dir, dir))
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var campaigns []models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

// ListCampaignsToClose returns active campaigns whose end date has passed
func (r *Repository) ListCampaignsToClose(ctx context.Context, now time.Time, limit int) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", models.CampaignStatusActive, now).
		Order("end_date ASC").
		Limit(limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// ListCampaignIDsByStatus returns the ids of campaigns in any of the statuses
func (r *Repository) ListCampaignIDsByStatus(ctx context.Context, statuses ...models.CampaignStatus) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("status IN ?", statuses).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
