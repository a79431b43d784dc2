package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"giveaway/internal/models"
	"giveaway/internal/services"
)

// CampaignHandler serves the campaign lifecycle endpoints
type CampaignHandler struct {
	campaigns *services.CampaignService
	log       *zap.Logger
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(campaigns *services.CampaignService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, log: log}
}

// CreateCampaign creates a draft campaign for the calling host
// POST /api/campaigns
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	var req models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	campaign, err := h.campaigns.CreateCampaign(c.Request.Context(), req, hostID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, campaign)
}

// GetCampaign returns one campaign
// GET /api/campaigns/:id
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaign, err := h.campaigns.GetCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, campaign)
}

// parseListRequest reads filters, sort and cursor from the query string
func parseListRequest(c *gin.Context, callerID string) (models.CampaignListRequest, error) {
	req := models.CampaignListRequest{
		Filter: models.CampaignFilter{
			HostID: c.Query("host_id"),
			Status: c.Query("status"),
		},
		Sort:   c.Query("sort"),
		Cursor: c.Query("cursor"),
	}
	if c.Query("mine") == "true" {
		req.Filter.HostID = callerID
	}

	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid page_size %q", v)
		}
		req.PageSize = n
	}
	if v := c.Query("start_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return req, fmt.Errorf("invalid start_from %q", v)
		}
		t = t.UTC()
		req.Filter.StartFrom = &t
	}
	if v := c.Query("end_until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return req, fmt.Errorf("invalid end_until %q", v)
		}
		t = t.UTC()
		req.Filter.EndUntil = &t
	}
	if v := c.Query("has_winners"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("invalid has_winners %q", v)
		}
		req.Filter.HasWinners = &b
	}
	return req, nil
}

// GetCampaigns lists campaigns one page at a time
// GET /api/campaigns?status=&host_id=&mine=&start_from=&end_until=&has_winners=&sort=&page_size=&cursor=
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	callerID, ok := principal(c)
	if !ok {
		return
	}

	req, err := parseListRequest(c, callerID)
	if err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.campaigns.GetCampaigns(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, page)
}

// UpdateCampaignStatus applies a manual status change
// PATCH /api/campaigns/:id/status
func (h *CampaignHandler) UpdateCampaignStatus(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	var req models.UpdateCampaignStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	campaign, err := h.campaigns.UpdateCampaignStatus(c.Request.Context(), c.Param("id"), req.Status, hostID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, campaign)
}

// DeleteCampaign removes a campaign owned by the caller
// DELETE /api/campaigns/:id
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	if err := h.campaigns.DeleteCampaign(c.Request.Context(), c.Param("id"), hostID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Campaign deleted",
	})
}

// JoinCampaign adds the caller to a campaign. The referral source comes
// from the body or the ref query parameter.
// POST /api/campaigns/:id/join
func (h *CampaignHandler) JoinCampaign(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	var req models.JoinCampaignRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.ReferralSource == "" {
		req.ReferralSource = c.Query("ref")
	}

	p, err := h.campaigns.JoinCampaign(c.Request.Context(), c.Param("id"), userID, req.ReferralSource)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}

// DrawWinners draws winners for a campaign owned by the caller
// POST /api/campaigns/:id/draw
func (h *CampaignHandler) DrawWinners(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	var req models.DrawWinnersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.campaigns.DrawWinners(c.Request.Context(), c.Param("id"), req.WinnerCount, hostID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// StreamCampaigns pushes campaign list snapshots as server-sent events.
// With mine=true the caller's campaigns in every status are streamed,
// otherwise all active campaigns.
// GET /api/campaigns/stream
func (h *CampaignHandler) StreamCampaigns(c *gin.Context) {
	callerID, ok := principal(c)
	if !ok {
		return
	}

	hostID := ""
	if c.Query("mine") == "true" {
		hostID = callerID
	}

	sub, err := h.campaigns.SubscribeToCampaigns(c.Request.Context(), hostID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer sub.Cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.log.Debug("campaign stream opened", zap.String("host_id", hostID))
	c.Stream(func(w io.Writer) bool {
		snap, open := <-sub.Updates()
		if !open {
			return false
		}
		c.SSEvent("campaigns", snap)
		return true
	})
}
