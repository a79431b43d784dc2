package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultReferralSource attributes joins that arrive without a referral
const DefaultReferralSource = "direct"

// Participation records one user joining one campaign
type Participation struct {
	ID                       string     `gorm:"primaryKey;size:36" json:"id"`
	UserID                   string     `gorm:"size:128;not null;uniqueIndex:idx_participation_user_campaign;index" json:"user_id"`
	CampaignID               string     `gorm:"size:36;not null;uniqueIndex:idx_participation_user_campaign;index" json:"campaign_id"`
	HostID                   string     `gorm:"size:128;not null;index" json:"host_id"`
	ParticipatedAt           time.Time  `gorm:"not null;index" json:"participated_at"`
	ReferralSource           string     `gorm:"size:255;not null;default:direct" json:"referral_source"`
	IsPWAInstalled           bool       `gorm:"not null;default:false" json:"is_pwa_installed"`
	PWAInstalledAt           *time.Time `json:"pwa_installed_at,omitempty"`
	InstallPromptShownAt     *time.Time `json:"install_prompt_shown_at,omitempty"`
	InstallPromptDismissedAt *time.Time `json:"install_prompt_dismissed_at,omitempty"`
	NotificationEnabled      bool       `gorm:"not null;default:false" json:"notification_enabled"`
	NotificationToken        string     `gorm:"size:512" json:"-"`
	NotificationSetAt        *time.Time `json:"notification_set_at,omitempty"` // nil until the user chooses for this campaign
	IsWinner                 bool       `gorm:"not null;default:false;index" json:"is_winner"`
	WonAt                    *time.Time `json:"won_at,omitempty"`
	PrizeClaimedAt           *time.Time `json:"prize_claimed_at,omitempty"`
}

func (Participation) TableName() string {
	return "user_campaign_participations"
}

func (p *Participation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.ParticipatedAt.IsZero() {
		p.ParticipatedAt = time.Now()
	}
	if p.ReferralSource == "" {
		p.ReferralSource = DefaultReferralSource
	}
	return nil
}

// UpdateInstallRequest marks the PWA as installed for a participation
type UpdateInstallRequest struct {
	Installed bool `json:"installed"`
}

// UpdateNotificationRequest toggles winner notifications for a participation
type UpdateNotificationRequest struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

// InstallPromptRequest records a prompt being shown or dismissed
type InstallPromptRequest struct {
	Dismissed bool `json:"dismissed"`
}

// ParticipantPage is one page of a campaign's participants
type ParticipantPage struct {
	Participants []Participation `json:"participants"`
	Total        int64           `json:"total"`
	Page         int             `json:"page"`
	Limit        int             `json:"limit"`
	HasMore      bool            `json:"has_more"`
}
