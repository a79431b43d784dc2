package models

import (
	"time"
)

// User represents a participant profile keyed by the identity provider id
type User struct {
	ID                  string     `gorm:"primaryKey;size:128" json:"id"`
	DisplayName         string     `gorm:"size:255" json:"display_name"`
	Email               string     `gorm:"size:255" json:"email"`
	IsPWAInstalled      bool       `gorm:"not null;default:false" json:"is_pwa_installed"`
	PWAInstalledAt      *time.Time `json:"pwa_installed_at,omitempty"`
	InstallPromptCount  int        `gorm:"not null;default:0" json:"install_prompt_count"`
	LastInstallPromptAt *time.Time `json:"last_install_prompt_at,omitempty"`
	NotificationEnabled bool       `gorm:"not null;default:false" json:"notification_enabled"`
	NotificationToken   string     `gorm:"size:512" json:"-"`
	TotalParticipations int        `gorm:"not null;default:0" json:"total_participations"`
	TotalWins           int        `gorm:"not null;default:0" json:"total_wins"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// PushTokenRequest registers a device token for push delivery
type PushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// InstallPromptDecision answers whether the client should show the
// install prompt now
type InstallPromptDecision struct {
	ShouldShow   bool       `json:"should_show"`
	PromptCount  int        `json:"prompt_count"`
	NextEligible *time.Time `json:"next_eligible,omitempty"`
}
