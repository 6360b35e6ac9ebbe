package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDValidator vérifie que le paramètre d'URL est un UUID valide.
// Usage : router.GET("/trades/:id", UUIDValidator("id"), handler.GetTrade)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "le paramètre " + paramName + " est obligatoire",
			})
			c.Abort()
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "le paramètre " + paramName + " doit être un UUID valide",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
