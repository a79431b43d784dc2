package models

import "time"

// Host is a principal allowed to run campaigns. Hosts are never removed,
// only deactivated.
type Host struct {
	ID                string    `gorm:"primaryKey;size:128" json:"id"`
	DisplayName       string    `gorm:"size:255;not null" json:"display_name"`
	Email             string    `gorm:"size:255" json:"email"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`
	TotalCampaigns    int       `gorm:"not null;default:0" json:"total_campaigns"`
	TotalParticipants int       `gorm:"not null;default:0" json:"total_participants"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Host) TableName() string {
	return "hosts"
}

// RegisterHostRequest represents a host sign-up
type RegisterHostRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}
