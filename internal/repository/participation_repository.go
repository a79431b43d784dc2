package repository

import (
	"context"
	"time"

	"giveaway/internal/models"

	"gorm.io/gorm"
)

// ParticipantSortFields are the columns a participant page may sort on
var ParticipantSortFields = map[string]bool{
	"participated_at": true,
	"user_id":         true,
	"is_winner":       true,
	"referral_source": true,
}

// CreateParticipation inserts a participation record
func (r *Repository) CreateParticipation(ctx context.Context, participation *models.Participation) error {
	return r.db.WithContext(ctx).Create(participation).Error
}

// GetParticipation retrieves the participation of a user in a campaign
func (r *Repository) GetParticipation(ctx context.Context, userID, campaignID string) (*models.Participation, error) {
	var participation models.Participation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND campaign_id = ?", userID, campaignID).
		First(&participation).Error
	if err != nil {
		return nil, err
	}
	return &participation, nil
}

// UpdateParticipationFields applies a partial update to a participation
func (r *Repository) UpdateParticipationFields(ctx context.Context, participationID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Participation{}).
		Where("id = ?", participationID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCampaignParticipants returns one page of participants plus the full count
func (r *Repository) ListCampaignParticipants(
	ctx context.Context,
	campaignID string,
	offset, limit int,
	sortField string,
	desc bool,
) ([]models.Participation, int64, error) {
	if !ParticipantSortFields[sortField] {
		sortField = "participated_at"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Participation{}).
		Where("campaign_id = ?", campaignID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var participants []models.Participation
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order(sortField + " " + dir).
		Order("id " + dir).
		Offset(offset).
		Limit(limit).
		Find(&participants).Error
	if err != nil {
		return nil, 0, err
	}
	return participants, total, nil
}

// ListAllParticipantIDs returns every participating user id in join order
func (r *Repository) ListAllParticipantIDs(ctx context.Context, campaignID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Participation{}).
		Where("campaign_id = ?", campaignID).
		Order("participated_at ASC").
		Order("id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkWinners flags the given users as winners of a campaign
func (r *Repository) MarkWinners(ctx context.Context, campaignID string, userIDs []string, wonAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Participation{}).
		Where("campaign_id = ? AND user_id IN ?", campaignID, userIDs).
		Updates(map[string]interface{}{
			"is_winner": true,
			"won_at":    wonAt,
		})
	return result.RowsAffected, result.Error
}

// ListCampaignWinners returns the winning participations of a campaign
func (r *Repository) ListCampaignWinners(ctx context.Context, campaignID string) ([]models.Participation, error) {
	var winners []models.Participation
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND is_winner = ?", campaignID, true).
		Order("won_at ASC").
		Find(&winners).Error
	if err != nil {
		return nil, err
	}
	return winners, nil
}

// ListUserParticipations returns every campaign a user joined, newest first
func (r *Repository) ListUserParticipations(ctx context.Context, userID string) ([]models.Participation, error) {
	var participations []models.Participation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("participated_at DESC").
		Find(&participations).Error
	if err != nil {
		return nil, err
	}
	return participations, nil
}
