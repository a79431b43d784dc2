package repository

import (
	"context"
	"fmt"

	"giveaway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateHost inserts a host, reactivating an existing row with the same id
func (r *Repository) CreateHost(ctx context.Context, host *models.Host) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "is_active", "updated_at"}),
		}).
		Create(host).Error
}

// GetHostByID retrieves a host by ID
func (r *Repository) GetHostByID(ctx context.Context, hostID string) (*models.Host, error) {
	var host models.Host
	err := r.db.WithContext(ctx).Where("id = ?", hostID).First(&host).Error
	if err != nil {
		return nil, err
	}
	return &host, nil
}

// UpdateHostFields applies a partial update to a host
func (r *Repository) UpdateHostFields(ctx context.Context, hostID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Host{}).Where("id = ?", hostID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecountHostStats recomputes the denormalized campaign and participant totals
func (r *Repository) RecountHostStats(ctx context.Context, hostID string) error {
	var stats struct {
		Campaigns    int64
		Participants int64
	}
	err := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Select("COUNT(*) AS campaigns, COALESCE(SUM(participant_count), 0) AS participants").
		Where("host_id = ?", hostID).
		Scan(&stats).Error
	if err != nil {
		return fmt.Errorf("failed to count host campaigns: %w", err)
	}

	return r.db.WithContext(ctx).Model(&models.Host{}).
		Where("id = ?", hostID).
		Updates(map[string]interface{}{
			"total_campaigns":    stats.Campaigns,
			"total_participants": stats.Participants,
		}).Error
}
