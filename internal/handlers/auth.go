package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"giveaway/internal/auth"
	"giveaway/internal/services"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// CreateSession signs a token for the given principal. Production
// deployments get principals from the identity provider; this endpoint is
// only routed in development.
// POST /auth/session
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req struct {
		ID          string `json:"id" binding:"required"`
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.authService.SignIn(c.Request.Context(), auth.Principal{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, session)
}
