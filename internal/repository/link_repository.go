package repository

import (
	"context"
	"fmt"
	"time"

	"giveaway/internal/models"

	"gorm.io/gorm"
)

// CreateLink creates a new campaign link
func (r *Repository) CreateLink(ctx context.Context, link *models.CampaignLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

// GetLinkByCode retrieves a link by its short code, active or not
func (r *Repository) GetLinkByCode(ctx context.Context, code string) (*models.CampaignLink, error) {
	var link models.CampaignLink
	err := r.db.WithContext(ctx).Where("unique_code = ?", code).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetLinkByID retrieves a link by ID
func (r *Repository) GetLinkByID(ctx context.Context, linkID string) (*models.CampaignLink, error) {
	var link models.CampaignLink
	err := r.db.WithContext(ctx).Where("id = ?", linkID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// CodeExists reports whether a short code is already taken
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CampaignLink{}).
		Where("unique_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// ListCampaignLinks returns the active links of a campaign
func (r *Repository) ListCampaignLinks(ctx context.Context, campaignID string) ([]models.CampaignLink, error) {
	var links []models.CampaignLink
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// ListHostLinks returns the active links across a host's campaigns
func (r *Repository) ListHostLinks(ctx context.Context, hostID string) ([]models.CampaignLink, error) {
	var links []models.CampaignLink
	err := r.db.WithContext(ctx).
		Where("host_id = ? AND is_active = ?", hostID, true).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// IncrementLinkCounter atomically bumps click_count or unique_visitors
func (r *Repository) IncrementLinkCounter(ctx context.Context, linkID, column string) error {
	if column != "click_count" && column != "unique_visitors" {
		return fmt.Errorf("unknown link counter %q", column)
	}
	result := r.db.WithContext(ctx).Model(&models.CampaignLink{}).
		Where("id = ?", linkID).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateLinkFields applies a partial update to a link
func (r *Repository) UpdateLinkFields(ctx context.Context, linkID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.CampaignLink{}).
		Where("id = ?", linkID).
		Updates(updates).Error
}

// DeactivateLink soft-deletes a link
func (r *Repository) DeactivateLink(ctx context.Context, linkID string, at time.Time) error {
	return r.UpdateLinkFields(ctx, linkID, map[string]interface{}{
		"is_active":  false,
		"deleted_at": at,
	})
}

// DeactivateCampaignLinks soft-deletes every active link of a campaign
func (r *Repository) DeactivateCampaignLinks(ctx context.Context, campaignID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.CampaignLink{}).
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"deleted_at": at,
		})
	return result.RowsAffected, result.Error
}
