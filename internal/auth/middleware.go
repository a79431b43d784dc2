package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const principalKey = "principal"

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":      "UNAUTHENTICATED",
			"message":   message,
			"retryable": false,
		},
	})
}

// Middleware validates bearer tokens and protects routes
func (m *TokenManager) Middleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			unauthorized(c, "Authorization header required")
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "Invalid authorization header format. Expected: Bearer <token>")
			return
		}

		claims, err := m.ValidateToken(parts[1])
		if err != nil {
			log.Debug("token validation failed", zap.Error(err))
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

// GetPrincipal retrieves the authenticated principal from the context
func GetPrincipal(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return Principal{}, false
	}

	p, ok := value.(Principal)
	return p, ok && p.ID != ""
}

// GetUserID retrieves the principal id from the context
func GetUserID(c *gin.Context) (string, bool) {
	p, ok := GetPrincipal(c)
	return p.ID, ok
}

// OptionalMiddleware attaches the principal when a valid bearer token is
// present and lets every request through.
func (m *TokenManager) OptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if found {
			if claims, err := m.ValidateToken(token); err == nil {
				c.Set(principalKey, claims.Principal())
			}
		}
		c.Next()
	}
}
