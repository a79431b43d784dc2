package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusEnded  CampaignStatus = "ended"
	CampaignStatusDrawn  CampaignStatus = "drawn"
)

// campaignTransitions lists every allowed status change. Anything missing
// from the table is rejected, which keeps the lifecycle forward-only.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:  {CampaignStatusActive},
	CampaignStatusActive: {CampaignStatusEnded, CampaignStatusDrawn},
	CampaignStatusEnded:  {CampaignStatusDrawn},
	CampaignStatusDrawn:  nil,
}

// ParseCampaignStatus accepts the canonical status names plus the
// "completed" alias for drawn.
func ParseCampaignStatus(s string) (CampaignStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "draft":
		return CampaignStatusDraft, true
	case "active":
		return CampaignStatusActive, true
	case "ended":
		return CampaignStatusEnded, true
	case "drawn", "completed":
		return CampaignStatusDrawn, true
	}
	return "", false
}

// CanTransitionTo reports whether the table allows moving from s to next
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s CampaignStatus) IsTerminal() bool {
	return len(campaignTransitions[s]) == 0
}

// CanDraw reports whether winners may be drawn from this status
func (s CampaignStatus) CanDraw() bool {
	return s.CanTransitionTo(CampaignStatusDrawn)
}

// Campaign is a time-boxed giveaway owned by a host
type Campaign struct {
	ID                 string         `gorm:"primaryKey;size:36" json:"id"`
	HostID             string         `gorm:"size:128;not null;index" json:"host_id"`
	HostDisplayName    string         `gorm:"size:255" json:"host_display_name"`
	Title              string         `gorm:"size:255;not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	GiftDescription    string         `gorm:"type:text" json:"gift_description"`
	MaxParticipants    int            `gorm:"not null;default:0" json:"max_participants"` // 0 = unlimited
	StartDate          time.Time      `gorm:"not null;index" json:"start_date"`
	EndDate            time.Time      `gorm:"not null;index" json:"end_date"`
	DrawDate           time.Time      `gorm:"not null;index" json:"draw_date"`
	Status             CampaignStatus `gorm:"size:20;not null;default:draft;index" json:"status"`
	UniqueLink         string         `gorm:"size:500" json:"unique_link"`
	AccessCount        int            `gorm:"not null;default:0;index" json:"access_count"`
	InstallPromptShown int            `gorm:"not null;default:0" json:"install_prompt_shown"`
	InstallCompleted   int            `gorm:"not null;default:0" json:"install_completed"`
	ParticipantCount   int            `gorm:"not null;default:0;index" json:"participant_count"`
	WinnerCount        int            `gorm:"not null;default:0" json:"winner_count"`
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"index" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsFull reports whether the participant cap has been reached
func (c *Campaign) IsFull() bool {
	return c.MaxParticipants > 0 && c.ParticipantCount >= c.MaxParticipants
}

// CreateCampaignRequest represents a request to create a campaign
type CreateCampaignRequest struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	GiftDescription string    `json:"gift_description"`
	MaxParticipants int       `json:"max_participants" binding:"gte=0"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date" binding:"required"`
	DrawDate        time.Time `json:"draw_date"`
}

// UpdateCampaignStatusRequest represents a manual status change
type UpdateCampaignStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// JoinCampaignRequest represents a join with optional referral attribution
type JoinCampaignRequest struct {
	ReferralSource string `json:"referral_source"`
}

// DrawWinnersRequest represents a winner draw
type DrawWinnersRequest struct {
	WinnerCount int `json:"winner_count" binding:"required"`
}

// DrawResult is returned after a successful draw
type DrawResult struct {
	CampaignID    string   `json:"campaign_id"`
	WinnerUserIDs []string `json:"winner_user_ids"`
	WinnerCount   int      `json:"winner_count"`
}

// CampaignFilter narrows a campaign listing
type CampaignFilter struct {
	HostID     string
	Status     string
	StartFrom  *time.Time // start_date lower bound
	EndUntil   *time.Time // end_date upper bound
	HasWinners *bool
}

// CampaignListRequest selects one page of campaigns. Sort is a field name
// optionally suffixed with ":asc" or ":desc".
type CampaignListRequest struct {
	Filter   CampaignFilter
	Sort     string
	PageSize int
	Cursor   string
}

// CampaignPage is one page of a campaign listing
type CampaignPage struct {
	Campaigns  []Campaign `json:"campaigns"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
