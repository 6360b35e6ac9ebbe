package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bernard777/cadok-backend-sub005/internal/service"
)

// Clés de contexte pour gin.Context.
const (
	ContextUserIDKey = "userID"
)

// AuthMiddleware vérifie le jeton d'accès JWT du participant.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentification requise"})
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		userID, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "jeton invalide"})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}
