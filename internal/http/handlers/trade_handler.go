package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
	"github.com/bernard777/cadok-backend-sub005/internal/dto"
	"github.com/bernard777/cadok-backend-sub005/internal/http/handlers/common"
	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
	"github.com/bernard777/cadok-backend-sub005/internal/repository"
	"github.com/bernard777/cadok-backend-sub005/internal/service"
)

// TradeHandler dessert les routes des trocs.
type TradeHandler struct {
	trades *service.TradeService
}

// NewTradeHandler crée le handler.
func NewTradeHandler(trades *service.TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// respondServiceError traduit une erreur du service en réponse HTTP.
func respondServiceError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
		return
	}
	if errors.Is(err, repository.ErrTradeNotFound) {
		common.RespondNotFound(c, "troc introuvable")
		return
	}
	_ = c.Error(err)
}

// ProposeTrade traite POST /trades.
func (h *TradeHandler) ProposeTrade(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.ProposeTradeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	trade, err := h.trades.ProposeTrade(c.Request.Context(), userID, req.ReceiverID, req.ItemA, req.ItemB)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, trade)
}

// GetTrade traite GET /trades/:id.
func (h *TradeHandler) GetTrade(c *gin.Context) {
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

	trade, err := h.trades.GetTrade(c.Request.Context(), tradeID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trade":   trade,
		"pending": h.trades.PendingRequirements(trade),
	})
}

// ListTrades traite GET /trades.
func (h *TradeHandler) ListTrades(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	limit, offset := common.GetPagination(c)
	trades, err := h.trades.ListUserTrades(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}

// AcceptTrade traite POST /trades/:id/accept.
func (h *TradeHandler) AcceptTrade(c *gin.Context) {
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

	trade, err := h.trades.AcceptTrade(c.Request.Context(), tradeID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trade)
}

// SubmitPhotos traite POST /trades/:id/photos.
func (h *TradeHandler) SubmitPhotos(c *gin.Context) {
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

	var req dto.SubmitPhotosRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	trade, err := h.trades.SubmitPhotos(c.Request.Context(), tradeID, userID, req.MediaIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trade)
}

// ConfirmShipment traite POST /trades/:id/shipment.
func (h *TradeHandler) ConfirmShipment(c *gin.Context) {
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

	var req dto.ConfirmShipmentRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	trade, err := h.trades.ConfirmShipment(c.Request.Context(), tradeID, userID, req.TrackingNumber)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trade)
}

// ConfirmDelivery traite POST /trades/:id/delivery.
func (h *TradeHandler) ConfirmDelivery(c *gin.Context) {
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

	var req dto.ConfirmDeliveryRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	trade, err := h.trades.ConfirmDelivery(c.Request.Context(), tradeID, userID, req.Rating, req.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trade)
}

// CancelTrade traite POST /trades/:id/cancel.
func (h *TradeHandler) CancelTrade(c *gin.Context) {
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

	trade, err := h.trades.CancelTrade(c.Request.Context(), tradeID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trade)
}

// ReportDispute traite POST /trades/:id/disputes.
func (h *TradeHandler) ReportDispute(c *gin.Context) {
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

	var req dto.ReportDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.trades.ReportDispute(c.Request.Context(), tradeID, userID, req.Reason, req.Description, req.Evidence)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// ListDisputes traite GET /trades/:id/disputes.
func (h *TradeHandler) ListDisputes(c *gin.Context) {
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

	disputes, err := h.trades.ListDisputes(c.Request.Context(), tradeID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

// ResolveDispute traite POST /trades/:id/disputes/resolve. La route est
// gardée par le jeton d'arbitrage : l'arbitrage est externe au périmètre
// des participants et aucun JWT participant n'y accède.
func (h *TradeHandler) ResolveDispute(c *gin.Context) {
	tradeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	outcome := valueobject.TradeStatus(req.Outcome)
	if outcome != valueobject.TradeStatusCompleted && outcome != valueobject.TradeStatusCancelled {
		common.RespondBadRequest(c, "l'issue doit être completed ou cancelled")
		return
	}

	var faulty *uuid.UUID
	if req.FaultyParty != nil && *req.FaultyParty != uuid.Nil {
		faulty = req.FaultyParty
	}

	trade, err := h.trades.ResolveDispute(c.Request.Context(), tradeID, outcome, faulty)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trade)
}
