package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bernard777/cadok-backend-sub005/internal/dto"
	"github.com/bernard777/cadok-backend-sub005/internal/http/handlers/common"
	"github.com/bernard777/cadok-backend-sub005/internal/service"
)

// RedirectionHandler dessert les routes de redirection anonymisée.
type RedirectionHandler struct {
	redirections *service.RedirectionService
	trades       *service.TradeService
}

// NewRedirectionHandler crée le handler.
func NewRedirectionHandler(redirections *service.RedirectionService, trades *service.TradeService) *RedirectionHandler {
	return &RedirectionHandler{redirections: redirections, trades: trades}
}

// ListTradeRedirections traite GET /trades/:id/redirections. Chaque
// participant voit le code et l'adresse leurre de son envoi, jamais
// l'adresse réelle de l'autre.
func (h *RedirectionHandler) ListTradeRedirections(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	tradeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// Vérifie que l'appelant participe au troc.
	if _, err := h.trades.GetTrade(c.Request.Context(), tradeID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	recs, err := h.redirections.ListTradeRedirections(c.Request.Context(), tradeID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, recs)
}

// ResolveRedirection traite POST /carrier/redirections/:code/resolve.
// Webhook transporteur : la seule surface où l'adresse réelle circule en
// clair. Idempotent côté transporteur.
func (h *RedirectionHandler) ResolveRedirection(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		common.RespondBadRequest(c, "le code de redirection est obligatoire")
		return
	}

	destination, err := h.redirections.ResolveRedirection(c.Request.Context(), code)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ResolutionResponse{
		Code:        code,
		Destination: destination,
	})
}

// GetRedirectionStatus traite GET /carrier/redirections/:code.
func (h *RedirectionHandler) GetRedirectionStatus(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		common.RespondBadRequest(c, "le code de redirection est obligatoire")
		return
	}

	rec, err := h.redirections.GetRedirection(c.Request.Context(), code)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":       rec.Code,
		"status":     rec.Status,
		"expires_at": rec.ExpiresAt,
	})
}
