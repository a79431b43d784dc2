package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giveaway/internal/auth"
	"giveaway/internal/models"
	"giveaway/internal/services"
)

const hostKey = "host"

// HostHandler handles host registration and host-only routes
type HostHandler struct {
	hosts *services.HostService
}

// NewHostHandler creates a new HostHandler
func NewHostHandler(hosts *services.HostService) *HostHandler {
	return &HostHandler{hosts: hosts}
}

// HostMiddleware only lets active hosts through and stores the host
func (h *HostHandler) HostMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hostID, ok := principal(c)
		if !ok {
			return
		}

		host, err := h.hosts.RequireActiveHost(c.Request.Context(), hostID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(hostKey, host)
		c.Next()
	}
}

// RegisterHost makes the caller a host
// POST /api/hosts
func (h *HostHandler) RegisterHost(c *gin.Context) {
	p, ok := auth.GetPrincipal(c)
	if !ok {
		respondError(c, &services.Error{Kind: services.KindUnauthenticated, Op: "RegisterHost"})
		return
	}

	var req models.RegisterHostRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	host, err := h.hosts.RegisterHost(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, host)
}

// GetMe returns the caller's host record
// GET /api/hosts/me
func (h *HostHandler) GetMe(c *gin.Context) {
	if host, ok := c.Get(hostKey); ok {
		respondOK(c, http.StatusOK, host)
		return
	}

	hostID, ok := principal(c)
	if !ok {
		return
	}
	host, err := h.hosts.GetHost(c.Request.Context(), hostID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, host)
}

// Deactivate turns the caller's host account off; campaigns are kept
// DELETE /api/hosts/me
func (h *HostHandler) Deactivate(c *gin.Context) {
	hostID, ok := principal(c)
	if !ok {
		return
	}

	if err := h.hosts.DeactivateHost(c.Request.Context(), hostID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Host deactivated",
	})
}
