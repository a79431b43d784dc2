package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"giveaway/internal/models"
	"giveaway/internal/repository"
)

const (
	dayBucket        = "2006-01-02"
	monthBucket      = "2006-01"
	activeUserWindow = 60 * time.Minute
)

// AnalyticsService derives reports from the ledger and access logs on
// demand. It holds no state of its own; results are eventually consistent
// with concurrent writes.
type AnalyticsService struct {
	store *repository.AnalyticsStore
	log   *zap.Logger
	now   Clock
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(store *repository.AnalyticsStore, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{store: store, log: log, now: utcNow}
}

// RealtimeScope selects what a realtime query covers. With neither field
// set it covers every active campaign.
type RealtimeScope struct {
	CampaignID string
	HostID     string
}

// fold accumulates access and participation rows into report parts
type fold struct {
	totals    models.AnalyticsTotals
	ips       map[string]bool
	series    map[string]*models.SeriesPoint
	devices   map[string]int
	referrers map[string]int
	layout    string
}

func newFold(layout string) *fold {
	return &fold{
		ips:       make(map[string]bool),
		series:    make(map[string]*models.SeriesPoint),
		devices:   make(map[string]int),
		referrers: make(map[string]int),
		layout:    layout,
	}
}

func (f *fold) bucket(t time.Time) *models.SeriesPoint {
	key := t.UTC().Format(f.layout)
	p, ok := f.series[key]
	if !ok {
		p = &models.SeriesPoint{Bucket: key}
		f.series[key] = p
	}
	return p
}

func (f *fold) addAccess(rows []repository.AccessRow) {
	for _, r := range rows {
		f.totals.Access++
		if r.IPAddress != "" && !f.ips[r.IPAddress] {
			f.ips[r.IPAddress] = true
			f.totals.UniqueVisitors++
		}
		f.devices[deviceType(r.UserAgent)]++
		f.bucket(r.AccessedAt).Access++
	}
}

func (f *fold) addParticipations(rows []repository.ParticipationRow) {
	for _, r := range rows {
		f.totals.Participants++
		f.bucket(r.ParticipatedAt).Participants++

		source := strings.TrimSpace(r.ReferralSource)
		if source == "" {
			source = models.DefaultReferralSource
		}
		f.referrers[source]++

		if r.IsPWAInstalled {
			f.totals.Installs++
			installedAt := r.ParticipatedAt
			if r.PWAInstalledAt.Valid {
				installedAt = r.PWAInstalledAt.Time
			}
			f.bucket(installedAt).Installs++
		}
		if r.InstallPromptShownAt.Valid {
			f.totals.InstallPromptShown++
		}
		if r.IsWinner {
			f.totals.Winners++
		}
	}
}

func (f *fold) rates() models.AnalyticsRates {
	return ratesFor(f.totals)
}

func ratesFor(t models.AnalyticsTotals) models.AnalyticsRates {
	return models.AnalyticsRates{
		ConversionRate: percentage(t.Participants, t.Access),
		InstallRate:    percentage(t.Installs, t.Participants),
		WinnerRate:     percentage(t.Winners, t.Participants),
	}
}

func (f *fold) seriesPoints() []models.SeriesPoint {
	points := make([]models.SeriesPoint, 0, len(f.series))
	for _, p := range f.series {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket < points[j].Bucket })
	return points
}

// breakdown sorts categories by count descending, then key
func breakdown(counts map[string]int) []models.BreakdownEntry {
	entries := make([]models.BreakdownEntry, 0, len(counts))
	for k, n := range counts {
		entries = append(entries, models.BreakdownEntry{Key: k, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// loadRows fetches access and participation rows concurrently
func (s *AnalyticsService) loadRows(ctx context.Context, ids []string) ([]repository.AccessRow, []repository.ParticipationRow, error) {
	var (
		access []repository.AccessRow
		parts  []repository.ParticipationRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		access, err = s.store.AccessRows(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		parts, err = s.store.ParticipationRows(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return access, parts, nil
}

// GetCampaignAnalytics builds the full report for one campaign
func (s *AnalyticsService) GetCampaignAnalytics(ctx context.Context, campaignID string) (*models.CampaignAnalytics, error) {
	const op = "GetCampaignAnalytics"

	if _, err := s.store.Campaign(ctx, campaignID); err != nil {
		return nil, storeError(op, err)
	}

	access, parts, err := s.loadRows(ctx, []string{campaignID})
	if err != nil {
		return nil, storeError(op, err)
	}

	f := newFold(dayBucket)
	f.addAccess(access)
	f.addParticipations(parts)

	return &models.CampaignAnalytics{
		CampaignID: campaignID,
		Totals:     f.totals,
		Rates:      f.rates(),
		Daily:      f.seriesPoints(),
		Devices:    breakdown(f.devices),
		Referrers:  breakdown(f.referrers),
	}, nil
}

// GetHostAnalytics aggregates every campaign owned by hostID
func (s *AnalyticsService) GetHostAnalytics(ctx context.Context, hostID string) (*models.HostAnalytics, error) {
	const op = "GetHostAnalytics"

	campaigns, err := s.store.HostCampaigns(ctx, hostID)
	if err != nil {
		return nil, storeError(op, err)
	}

	ids := make([]string, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}

	access, parts, err := s.loadRows(ctx, ids)
	if err != nil {
		return nil, storeError(op, err)
	}

	f := newFold(monthBucket)
	f.addAccess(access)
	f.addParticipations(parts)

	perCampaign := make(map[string]*models.AnalyticsTotals, len(campaigns))
	for _, c := range campaigns {
		perCampaign[c.ID] = &models.AnalyticsTotals{}
	}
	for _, r := range access {
		if t := perCampaign[r.CampaignID]; t != nil {
			t.Access++
		}
	}
	for _, r := range parts {
		if t := perCampaign[r.CampaignID]; t != nil {
			t.Participants++
			if r.IsPWAInstalled {
				t.Installs++
			}
		}
	}

	report := &models.HostAnalytics{
		HostID:         hostID,
		TotalCampaigns: len(campaigns),
		Totals:         f.totals,
		Rates:          f.rates(),
		Monthly:        f.seriesPoints(),
		Devices:        breakdown(f.devices),
		Referrers:      breakdown(f.referrers),
		Campaigns:      make([]models.CampaignPerformance, 0, len(campaigns)),
	}

	conversion := make([]float64, 0, len(campaigns))
	install := make([]float64, 0, len(campaigns))
	for _, c := range campaigns {
		if models.CampaignStatus(c.Status) == models.CampaignStatusActive {
			report.ActiveCampaigns++
		}
		t := perCampaign[c.ID]
		rates := ratesFor(*t)
		conversion = append(conversion, rates.ConversionRate)
		install = append(install, rates.InstallRate)

		report.Campaigns = append(report.Campaigns, models.CampaignPerformance{
			CampaignID:     c.ID,
			Title:          c.Title,
			Status:         models.CampaignStatus(c.Status),
			Participants:   t.Participants,
			Access:         t.Access,
			Installs:       t.Installs,
			ConversionRate: rates.ConversionRate,
		})
	}
	report.AverageConversionRate = averageRate(conversion)
	report.AverageInstallRate = averageRate(install)

	return report, nil
}

// GetRealtimeStats recomputes totals plus the number of access log entries
// in the trailing hour. Callers poll it.
func (s *AnalyticsService) GetRealtimeStats(ctx context.Context, scope RealtimeScope) (*models.RealtimeStats, error) {
	const op = "GetRealtimeStats"

	var ids []string
	switch {
	case scope.CampaignID != "":
		if _, err := s.store.Campaign(ctx, scope.CampaignID); err != nil {
			return nil, storeError(op, err)
		}
		ids = []string{scope.CampaignID}
	case scope.HostID != "":
		campaigns, err := s.store.HostCampaigns(ctx, scope.HostID)
		if err != nil {
			return nil, storeError(op, err)
		}
		for _, c := range campaigns {
			ids = append(ids, c.ID)
		}
	default:
		campaigns, err := s.store.CampaignsByStatus(ctx, string(models.CampaignStatusActive))
		if err != nil {
			return nil, storeError(op, err)
		}
		for _, c := range campaigns {
			ids = append(ids, c.ID)
		}
	}

	var (
		access []repository.AccessRow
		parts  []repository.ParticipationRow
		active int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		access, parts, err = s.loadRows(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = s.store.CountAccessSince(gctx, ids, s.now().Add(-activeUserWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeError(op, err)
	}

	f := newFold(dayBucket)
	f.addAccess(access)
	f.addParticipations(parts)

	return &models.RealtimeStats{
		Totals:      f.totals,
		Rates:       f.rates(),
		ActiveUsers: active,
	}, nil
}
