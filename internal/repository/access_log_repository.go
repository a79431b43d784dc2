package repository

import (
	"context"
	"time"

	"giveaway/internal/models"
)

// CreateAccessLog appends an access log entry
func (r *Repository) CreateAccessLog(ctx context.Context, entry *models.AccessLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// HasRecentVisit reports whether ip already hit the link since the given time
func (r *Repository) HasRecentVisit(ctx context.Context, linkID, ip string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AccessLog{}).
		Where("link_id = ? AND ip_address = ? AND accessed_at >= ?", linkID, ip, since).
		Count(&count).Error
	return count > 0, err
}
