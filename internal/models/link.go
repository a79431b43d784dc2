package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignLink is a trackable short link pointing at a campaign
type CampaignLink struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	CampaignID     string     `gorm:"size:36;not null;index" json:"campaign_id"`
	HostID         string     `gorm:"size:128;not null;index" json:"host_id"`
	UniqueCode     string     `gorm:"size:32;not null;uniqueIndex" json:"unique_code"`
	OriginalURL    string     `gorm:"size:500;not null" json:"original_url"`
	ShortURL       string     `gorm:"size:500;not null" json:"short_url"`
	ClickCount     int        `gorm:"not null;default:0" json:"click_count"`
	UniqueVisitors int        `gorm:"not null;default:0" json:"unique_visitors"`
	ConversionRate float64    `gorm:"not null;default:0" json:"conversion_rate"`
	InstallRate    float64    `gorm:"not null;default:0" json:"install_rate"`
	IsActive       bool       `gorm:"not null;default:true;index" json:"is_active"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (CampaignLink) TableName() string {
	return "campaign_links"
}

func (l *CampaignLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// GenerateLinkRequest asks for a new link, optionally with a vanity code
type GenerateLinkRequest struct {
	CustomCode string `json:"custom_code"`
}

// ClickMeta describes the HTTP request behind a tracked click
type ClickMeta struct {
	IPAddress string
	UserAgent string
	Referrer  string
	UserID    string
}

// ClickResult tells the caller where to send the visitor
type ClickResult struct {
	RedirectURL     string `json:"redirect_url"`
	CampaignID      string `json:"campaign_id"`
	LinkID          string `json:"link_id"`
	IsUniqueVisitor bool   `json:"is_unique_visitor"`
}

// HostLinkStats sums link statistics across a host's campaigns
type HostLinkStats struct {
	TotalLinks            int     `json:"total_links"`
	TotalClicks           int     `json:"total_clicks"`
	TotalUniqueVisitors   int     `json:"total_unique_visitors"`
	AverageConversionRate float64 `json:"average_conversion_rate"`
	AverageInstallRate    float64 `json:"average_install_rate"`
}
