package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bernard777/cadok-backend-sub005/internal/logger"
	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
	"github.com/bernard777/cadok-backend-sub005/internal/repository"
)

// ErrorHandler traite les erreurs de façon centralisée. Les erreurs
// internes sont masquées, le client reçoit un message exploitable.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			if logger.Log != nil {
				logger.Log.WithFields(logrus.Fields{
					"error":  err.Error(),
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Request error")
			}

			statusCode := http.StatusInternalServerError
			body := gin.H{"error": "erreur interne du serveur"}

			var appErr *apperror.AppError
			switch {
			case errors.As(err.Err, &appErr):
				statusCode = appErr.HTTPStatus
				body = gin.H{"error": appErr.Message, "code": string(appErr.Code)}
			case errors.Is(err.Err, repository.ErrTradeNotFound):
				statusCode = http.StatusNotFound
				body = gin.H{"error": "troc introuvable"}
			case errors.Is(err.Err, repository.ErrRedirectionNotFound):
				statusCode = http.StatusNotFound
				body = gin.H{"error": "code de redirection inconnu"}
			case errors.Is(err.Err, repository.ErrProfileNotFound):
				statusCode = http.StatusNotFound
				body = gin.H{"error": "profil de confiance introuvable"}
			case errors.Is(err.Err, repository.ErrUserNotFound):
				statusCode = http.StatusNotFound
				body = gin.H{"error": "utilisateur introuvable"}
			}

			c.JSON(statusCode, body)
		}
	}
}
