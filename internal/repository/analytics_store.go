package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Reader is the subset of *sqlx.DB the analytics store needs
type Reader interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

// AnalyticsStore is the read-only path used by report aggregation
type AnalyticsStore struct {
	db Reader
}

// NewAnalyticsStore creates an analytics store over a sqlx reader
func NewAnalyticsStore(db Reader) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// CampaignRow is the campaign projection used in reports
type CampaignRow struct {
	ID                 string `db:"id"`
	HostID             string `db:"host_id"`
	Title              string `db:"title"`
	Status             string `db:"status"`
	AccessCount        int    `db:"access_count"`
	ParticipantCount   int    `db:"participant_count"`
	InstallCompleted   int    `db:"install_completed"`
	InstallPromptShown int    `db:"install_prompt_shown"`
	WinnerCount        int    `db:"winner_count"`
}

// AccessRow is the access log projection used in reports
type AccessRow struct {
	CampaignID string    `db:"campaign_id"`
	AccessedAt time.Time `db:"accessed_at"`
	IPAddress  string    `db:"ip_address"`
	UserAgent  string    `db:"user_agent"`
}

// ParticipationRow is the participation projection used in reports
type ParticipationRow struct {
	CampaignID           string       `db:"campaign_id"`
	ParticipatedAt       time.Time    `db:"participated_at"`
	ReferralSource       string       `db:"referral_source"`
	IsPWAInstalled       bool         `db:"is_pwa_installed"`
	PWAInstalledAt       sql.NullTime `db:"pwa_installed_at"`
	InstallPromptShownAt sql.NullTime `db:"install_prompt_shown_at"`
	IsWinner             bool         `db:"is_winner"`
}

const campaignColumns = `id, host_id, title, status, access_count, participant_count,
	install_completed, install_prompt_shown, winner_count`

// Campaign returns one campaign row
func (s *AnalyticsStore) Campaign(ctx context.Context, campaignID string) (*CampaignRow, error) {
	var row CampaignRow
	query := s.db.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to get campaign row: %w", err)
	}
	return &row, nil
}

// HostCampaigns returns every campaign of a host, newest first
func (s *AnalyticsStore) HostCampaigns(ctx context.Context, hostID string) ([]CampaignRow, error) {
	var rows []CampaignRow
	query := s.db.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE host_id = ? ORDER BY created_at DESC`)
	if err := s.db.SelectContext(ctx, &rows, query, hostID); err != nil {
		return nil, fmt.Errorf("failed to list host campaigns: %w", err)
	}
	return rows, nil
}

// CampaignsByStatus returns every campaign in the given status
func (s *AnalyticsStore) CampaignsByStatus(ctx context.Context, status string) ([]CampaignRow, error) {
	var rows []CampaignRow
	query := s.db.Rebind(`SELECT ` + campaignColumns + ` FROM campaigns WHERE status = ? ORDER BY created_at DESC`)
	if err := s.db.SelectContext(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("failed to list campaigns by status: %w", err)
	}
	return rows, nil
}

// AccessRows returns the access logs of the given campaigns
func (s *AnalyticsStore) AccessRows(ctx context.Context, campaignIDs []string) ([]AccessRow, error) {
	if len(campaignIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT campaign_id, accessed_at, ip_address, user_agent
		FROM access_logs WHERE campaign_id IN (?) ORDER BY accessed_at ASC`, campaignIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build access query: %w", err)
	}

	var rows []AccessRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}
	return rows, nil
}

// ParticipationRows returns the participations of the given campaigns
func (s *AnalyticsStore) ParticipationRows(ctx context.Context, campaignIDs []string) ([]ParticipationRow, error) {
	if len(campaignIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT campaign_id, participated_at, referral_source, is_pwa_installed,
		pwa_installed_at, install_prompt_shown_at, is_winner
		FROM user_campaign_participations WHERE campaign_id IN (?) ORDER BY participated_at ASC`, campaignIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build participation query: %w", err)
	}

	var rows []ParticipationRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list participations: %w", err)
	}
	return rows, nil
}

// CountAccessSince counts access logs of the given campaigns since a time
func (s *AnalyticsStore) CountAccessSince(ctx context.Context, campaignIDs []string, since time.Time) (int, error) {
	if len(campaignIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM access_logs
		WHERE campaign_id IN (?) AND accessed_at >= ?`, campaignIDs, since)
	if err != nil {
		return 0, fmt.Errorf("failed to build active users query: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count recent access: %w", err)
	}
	return count, nil
}
