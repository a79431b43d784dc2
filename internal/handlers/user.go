package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giveaway/internal/auth"
	"giveaway/internal/models"
	"giveaway/internal/services"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	users       *services.UserService
	authService *services.AuthService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users *services.UserService, authService *services.AuthService) *UserHandler {
	return &UserHandler{
		users:       users,
		authService: authService,
	}
}

// GetProfile returns the current user's profile, creating it on first use
// GET /auth/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	p, ok := auth.GetPrincipal(c)
	if !ok {
		respondError(c, &services.Error{Kind: services.KindUnauthenticated, Op: "GetProfile"})
		return
	}

	user, err := h.authService.Me(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// GetInstallPrompt tells the client whether to show the install prompt
// GET /api/me/install-prompt
func (h *UserHandler) GetInstallPrompt(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	decision, err := h.users.ShouldShowInstallPrompt(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, decision)
}

// RegisterPushToken stores the caller's device token
// POST /api/me/push-token
func (h *UserHandler) RegisterPushToken(c *gin.Context) {
	userID, ok := principal(c)
	if !ok {
		return
	}

	var req models.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.users.RegisterPushToken(c.Request.Context(), userID, req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Push token registered",
	})
}
