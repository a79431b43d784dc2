package models

// AnalyticsTotals are the scalar counters of a report
type AnalyticsTotals struct {
	Access             int `json:"access"`
	UniqueVisitors     int `json:"unique_visitors"`
	Participants       int `json:"participants"`
	Installs           int `json:"installs"`
	Winners            int `json:"winners"`
	InstallPromptShown int `json:"install_prompt_shown"`
}

// AnalyticsRates are percentages in [0,100] rounded to two decimals
type AnalyticsRates struct {
	ConversionRate float64 `json:"conversion_rate"`
	InstallRate    float64 `json:"install_rate"`
	WinnerRate     float64 `json:"winner_rate"`
}

// SeriesPoint is one time bucket, keyed YYYY-MM-DD or YYYY-MM
type SeriesPoint struct {
	Bucket       string `json:"bucket"`
	Access       int    `json:"access"`
	Participants int    `json:"participants"`
	Installs     int    `json:"installs"`
}

// BreakdownEntry is one category of a breakdown
type BreakdownEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CampaignAnalytics is the report for a single campaign
type CampaignAnalytics struct {
	CampaignID string           `json:"campaign_id"`
	Totals     AnalyticsTotals  `json:"totals"`
	Rates      AnalyticsRates   `json:"rates"`
	Daily      []SeriesPoint    `json:"daily"`
	Devices    []BreakdownEntry `json:"devices"`
	Referrers  []BreakdownEntry `json:"referrers"`
}

// CampaignPerformance is one row of a host report
type CampaignPerformance struct {
	CampaignID     string         `json:"campaign_id"`
	Title          string         `json:"title"`
	Status         CampaignStatus `json:"status"`
	Participants   int            `json:"participants"`
	Access         int            `json:"access"`
	Installs       int            `json:"installs"`
	ConversionRate float64        `json:"conversion_rate"`
}

// HostAnalytics aggregates every campaign owned by a host
type HostAnalytics struct {
	HostID                string                `json:"host_id"`
	TotalCampaigns        int                   `json:"total_campaigns"`
	ActiveCampaigns       int                   `json:"active_campaigns"`
	Totals                AnalyticsTotals       `json:"totals"`
	Rates                 AnalyticsRates        `json:"rates"`
	AverageConversionRate float64               `json:"average_conversion_rate"`
	AverageInstallRate    float64               `json:"average_install_rate"`
	Monthly               []SeriesPoint         `json:"monthly"`
	Devices               []BreakdownEntry      `json:"devices"`
	Referrers             []BreakdownEntry      `json:"referrers"`
	Campaigns             []CampaignPerformance `json:"campaigns"`
}

// RealtimeStats is the polled live view
type RealtimeStats struct {
	Totals      AnalyticsTotals `json:"totals"`
	Rates       AnalyticsRates  `json:"rates"`
	ActiveUsers int             `json:"active_users"`
}
