package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"giveaway/internal/models"
	"giveaway/internal/services"
)

// ParticipationHandler serves the participation ledger endpoints
type ParticipationHandler struct {
	ledger    *services.ParticipationService
	campaigns *services.CampaignService
}

// NewParticipationHandler creates a new ParticipationHandler
func NewParticipationHandler(ledger *services.ParticipationService, campaigns *services.CampaignService) *ParticipationHandler {
	return &ParticipationHandler{ledger: ledger, campaigns: campaigns}
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

// GetCampaignParticipants lists participants of a campaign owned by the caller
// GET /api/campaigns/:id/participants?page=&limit=&sort=
func (h *ParticipationHandler) GetCampaignParticipants(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	campaignID := c.Param("id")

	if _, err := h.campaigns.RequireOwner(ctx, campaignID, hostID); err != nil {
		respondError(c, err)
		return
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.ledger.GetCampaignParticipants(ctx, campaignID, page, limit, c.Query("sort"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, result)
}

// LogAccess records a landing page view
// POST /api/campaigns/:id/access
func (h *ParticipationHandler) LogAccess(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	campaignID := c.Param("id")

	var req models.LogAccessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	if _, err := h.campaigns.GetCampaign(ctx, campaignID); err != nil {
		respondError(c, err)
		return
	}

	referrer := req.Referrer
	if referrer == "" {
		referrer = c.Request.Referer()
	}
	entry := &models.AccessLog{
		CampaignID:         campaignID,
		UserID:             &userID,
		IPAddress:          c.ClientIP(),
		UserAgent:          c.Request.UserAgent(),
		Referrer:           referrer,
		IsPWAAccess:        req.IsPWAAccess,
		InstallPromptShown: req.InstallPromptShown,
		InstallCompleted:   req.InstallCompleted,
	}
	if err := h.ledger.LogAccess(ctx, entry); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, entry)
}

// UpdateInstallStatus records a PWA install for the caller's participation
// POST /api/campaigns/:id/participation/install
func (h *ParticipationHandler) UpdateInstallStatus(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	req := models.UpdateInstallRequest{Installed: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	p, err := h.ledger.UpdatePwaInstallStatus(c.Request.Context(), userID, c.Param("id"), req.Installed)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}

// RecordInstallPrompt records the install prompt being shown or dismissed
// POST /api/campaigns/:id/participation/install-prompt
func (h *ParticipationHandler) RecordInstallPrompt(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	var req models.InstallPromptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	var (
		p   *models.Participation
		err error
	)
	if req.Dismissed {
		p, err = h.ledger.RecordInstallPromptDismissed(c.Request.Context(), userID, c.Param("id"))
	} else {
		p, err = h.ledger.RecordInstallPromptShown(c.Request.Context(), userID, c.Param("id"))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}

// UpdateNotificationSettings toggles winner notifications
// POST /api/campaigns/:id/participation/notifications
func (h *ParticipationHandler) UpdateNotificationSettings(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	var req models.UpdateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	p, err := h.ledger.UpdateNotificationSettings(c.Request.Context(), userID, c.Param("id"), req.Enabled, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}

// ClaimPrize records that the calling winner claimed the prize
// POST /api/campaigns/:id/participation/claim
func (h *ParticipationHandler) ClaimPrize(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	p, err := h.ledger.ClaimPrize(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, p)
}

// GetMyParticipations lists the caller's participations
// GET /api/me/participations
func (h *ParticipationHandler) GetMyParticipations(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	participations, err := h.ledger.GetUserParticipations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    participations,
		"count":   len(participations),
	})
}
