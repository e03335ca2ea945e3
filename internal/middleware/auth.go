package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
	"signet/internal/service"
)

const (
	ContextKeyClientID     = "client_id"
	ContextKeyOrganization = "organization"
	ContextKeyRole         = "role"
	ContextKeyClaims       = "claims"
)

// AuthMiddleware returns Gin middleware that validates JWT tokens and injects
// client and organization context.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "missing or invalid authorization header"},
			})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"},
			})
			return
		}

		c.Set(ContextKeyClientID, claims.ClientID)
		c.Set(ContextKeyOrganization, claims.Organization)
		c.Set(ContextKeyRole, string(claims.Role))
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireRole returns middleware that checks the client's role against allowed roles.
func RequireRole(roles ...domain.ClientRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr, exists := c.Get(ContextKeyRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "role not found in context"},
			})
			return
		}

		clientRole := domain.ClientRole(roleStr.(string))
		for _, r := range roles {
			if clientRole == r {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   gin.H{"code": "FORBIDDEN", "message": "insufficient permissions"},
		})
	}
}

// GetOrganization extracts the organization from the Gin context.
func GetOrganization(c *gin.Context) (string, error) {
	val, exists := c.Get(ContextKeyOrganization)
	if !exists {
		return "", domain.ErrUnauthorized
	}
	return val.(string), nil
}

// GetClientID extracts the client ID from the Gin context.
func GetClientID(c *gin.Context) (string, error) {
	val, exists := c.Get(ContextKeyClientID)
	if !exists {
		return "", domain.ErrUnauthorized
	}
	return val.(string), nil
}

// GetRole extracts the client role string from the Gin context.
func GetRole(c *gin.Context) string {
	val, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	return val.(string)
}
