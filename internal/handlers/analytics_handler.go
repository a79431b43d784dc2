package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giveaway/internal/services"
)

// realtimePollInterval is how often clients should refresh realtime stats
const realtimePollInterval = 30

// AnalyticsHandler serves campaign and host reports
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
	campaigns *services.CampaignService
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analytics *services.AnalyticsService, campaigns *services.CampaignService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, campaigns: campaigns}
}

// GetCampaignAnalytics returns the report of a campaign owned by the caller
// GET /api/campaigns/:id/analytics
func (h *AnalyticsHandler) GetCampaignAnalytics(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.campaigns.RequireOwner(ctx, c.Param("id"), hostID); err != nil {
		respondError(c, err)
		return
	}

	report, err := h.analytics.GetCampaignAnalytics(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

// GetHostAnalytics aggregates every campaign of the caller
// GET /api/analytics/host
func (h *AnalyticsHandler) GetHostAnalytics(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	report, err := h.analytics.GetHostAnalytics(c.Request.Context(), hostID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

// GetRealtimeStats returns live totals. campaign_id narrows to one owned
// campaign; otherwise the caller's campaigns are covered.
// GET /api/analytics/realtime?campaign_id=
func (h *AnalyticsHandler) GetRealtimeStats(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	scope := services.RealtimeScope{HostID: hostID}
	if campaignID := c.Query("campaign_id"); campaignID != "" {
		if _, err := h.campaigns.RequireOwner(ctx, campaignID, hostID); err != nil {
			respondError(c, err)
			return
		}
		scope = services.RealtimeScope{CampaignID: campaignID}
	}

	stats, err := h.analytics.GetRealtimeStats(ctx, scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"data":                  stats,
		"poll_interval_seconds": realtimePollInterval,
	})
}
