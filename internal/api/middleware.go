package api

import (
	"net/http"
	"strings"

	"gatherhub/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores the caller's
// identity in the request context
func AuthMiddleware(tokens *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "AUTHENTICATION_FAILED",
				"message": "Authorization header is required",
			}})
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "AUTHENTICATION_FAILED",
				"message": "Invalid or expired token",
			}})
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("userName", claims.Name)
		c.Next()
	}
}
