package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bernard777/cadok-backend-sub005/internal/dto"
	"github.com/bernard777/cadok-backend-sub005/internal/http/middleware"
)

var (
	// ErrUserNotFound est retournée quand l'utilisateur manque au contexte.
	ErrUserNotFound = errors.New("utilisateur absent du contexte")

	// ErrInvalidUUID est retournée quand le parsing UUID échoue.
	ErrInvalidUUID = errors.New("format UUID invalide")
)

// CurrentUserID extrait l'identifiant utilisateur du contexte Gin.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// ParseUUIDParam parse un UUID depuis un paramètre d'URL.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("le paramètre %s est absent", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// BindAndValidate lie la requête JSON et formate l'erreur.
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("erreur de validation de la requête: %w", err)
	}
	return nil
}

// RespondError envoie une réponse d'erreur standardisée.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondSuccess envoie une réponse de succès standardisée.
func RespondSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, dto.SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// RespondJSON envoie une réponse JSON brute.
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondUnauthorized envoie une réponse 401.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentification requise"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondForbidden envoie une réponse 403.
func RespondForbidden(c *gin.Context, message string) {
	if message == "" {
		message = "accès refusé"
	}
	RespondError(c, http.StatusForbidden, message)
}

// RespondNotFound envoie une réponse 404.
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "ressource introuvable"
	}
	RespondError(c, http.StatusNotFound, message)
}

// RespondBadRequest envoie une réponse 400.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "requête incorrecte"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// RespondInternalError envoie une réponse 500.
func RespondInternalError(c *gin.Context, message string) {
	if message == "" {
		message = "erreur interne du serveur"
	}
	RespondError(c, http.StatusInternalServerError, message)
}

// ParseIntQuery lit un paramètre de requête entier avec valeur de repli.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extrait limit et offset des paramètres de requête.
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
