package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessLog is an append-only record of a single hit on a campaign or link
type AccessLog struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	CampaignID         string    `gorm:"size:36;not null;index" json:"campaign_id"`
	LinkID             *string   `gorm:"size:36;index:idx_access_link_ip" json:"link_id,omitempty"`
	UserID             *string   `gorm:"size:128" json:"user_id,omitempty"`
	AccessedAt         time.Time `gorm:"not null;index" json:"accessed_at"`
	IPAddress          string    `gorm:"size:64;index:idx_access_link_ip" json:"ip_address"`
	UserAgent          string    `gorm:"size:512" json:"user_agent"`
	Referrer           string    `gorm:"size:500" json:"referrer"`
	IsPWAAccess        bool      `gorm:"not null;default:false" json:"is_pwa_access"`
	InstallPromptShown bool      `gorm:"not null;default:false" json:"install_prompt_shown"`
	InstallCompleted   bool      `gorm:"not null;default:false" json:"install_completed"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}

func (a *AccessLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AccessedAt.IsZero() {
		a.AccessedAt = time.Now()
	}
	return nil
}

// LogAccessRequest records a page view that did not come through a short link
type LogAccessRequest struct {
	Referrer           string `json:"referrer"`
	IsPWAAccess        bool   `json:"is_pwa_access"`
	InstallPromptShown bool   `json:"install_prompt_shown"`
	InstallCompleted   bool   `json:"install_completed"`
}
