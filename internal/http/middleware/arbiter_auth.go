package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ArbiterAuthMiddleware authentifie le service de modération qui tranche
// les litiges. Jeton partagé distinct du JWT participant : un participant
// authentifié ne passe jamais cette garde. Comparaison en temps constant.
func ArbiterAuthMiddleware(arbiterToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentification requise"})
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(raw), []byte(arbiterToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "jeton invalide"})
			return
		}

		c.Next()
	}
}
