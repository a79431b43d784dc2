package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"giveaway/internal/auth"
	"giveaway/internal/models"
	"giveaway/internal/services"
)

// LinkHandler serves short link redirects and link management
type LinkHandler struct {
	links     *services.LinkService
	campaigns *services.CampaignService
	log       *zap.Logger
}

// NewLinkHandler creates a new LinkHandler
func NewLinkHandler(links *services.LinkService, campaigns *services.CampaignService, log *zap.Logger) *LinkHandler {
	return &LinkHandler{links: links, campaigns: campaigns, log: log}
}

// Redirect records a click and sends the visitor to the campaign page.
// Authentication is optional; a valid token attributes the click.
// GET /l/:code
func (h *LinkHandler) Redirect(c *gin.Context) {
	meta := models.ClickMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}
	if userID, ok := auth.GetUserID(c); ok {
		meta.UserID = userID
	}

	result, err := h.links.TrackLinkClick(c.Request.Context(), c.Param("code"), meta)
	if err != nil {
		if services.IsKind(err, services.KindNotFound) {
			respondError(c, err)
			return
		}
		// the click could not be counted but the visitor still gets the page
		link, lookupErr := h.links.GetLinkByCode(c.Request.Context(), c.Param("code"))
		if lookupErr != nil {
			respondError(c, err)
			return
		}
		h.log.Warn("failed to track click", zap.String("code", link.UniqueCode), zap.Error(err))
		c.Redirect(http.StatusFound, link.OriginalURL)
		return
	}
	c.Redirect(http.StatusFound, result.RedirectURL)
}

// GetCampaignLinks lists the active links of a campaign owned by the caller
// GET /api/campaigns/:id/links
func (h *LinkHandler) GetCampaignLinks(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.campaigns.RequireOwner(ctx, c.Param("id"), hostID); err != nil {
		respondError(c, err)
		return
	}

	links, err := h.links.GetCampaignLinks(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    links,
		"count":   len(links),
	})
}

// GenerateLink mints a new link, optionally with a custom code
// POST /api/campaigns/:id/links
func (h *LinkHandler) GenerateLink(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	var req models.GenerateLinkRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	link, err := h.links.GenerateCampaignLink(c.Request.Context(), c.Param("id"), hostID, req.CustomCode)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, link)
}

// DeleteLink deactivates a link owned by the caller
// DELETE /api/links/:id
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	if err := h.links.DeleteLink(c.Request.Context(), c.Param("id"), hostID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Link deleted",
	})
}

// GetHostLinkStats sums link statistics for the caller
// GET /api/links/stats
func (h *LinkHandler) GetHostLinkStats(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	stats, err := h.links.GetHostLinkStats(c.Request.Context(), hostID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}
