package repository

import (
	"context"
	"fmt"
	"time"

	"giveaway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertUser creates the profile or refreshes its identity fields
func (r *Repository) UpsertUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "updated_at"}),
		}).
		Create(user).Error
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserFields applies a partial update to a user
func (r *Repository) UpdateUserFields(ctx context.Context, userID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordInstallPrompt bumps the prompt counter and stamps the prompt time
func (r *Repository) RecordInstallPrompt(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"install_prompt_count":   gorm.Expr("install_prompt_count + ?", 1),
			"last_install_prompt_at": at,
		}).Error
}

// RecountUserStats recomputes participation and win totals from the ledger
func (r *Repository) RecountUserStats(ctx context.Context, userID string) error {
	var stats struct {
		Participations int64
		Wins           int64
	}
	err := r.db.WithContext(ctx).Model(&models.Participation{}).
		Select("COUNT(*) AS participations, COALESCE(SUM(CASE WHEN is_winner THEN 1 ELSE 0 END), 0) AS wins").
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return fmt.Errorf("failed to count user participations: %w", err)
	}

	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"total_participations": stats.Participations,
			"total_wins":           stats.Wins,
		}).Error
}
