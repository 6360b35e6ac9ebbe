package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bernard777/cadok-backend-sub005/internal/dto"
	"github.com/bernard777/cadok-backend-sub005/internal/http/handlers/common"
	"github.com/bernard777/cadok-backend-sub005/internal/service"
)

// TrustHandler dessert les routes du profil de confiance.
type TrustHandler struct {
	trust *service.TrustService
}

// NewTrustHandler crée le handler.
func NewTrustHandler(trust *service.TrustService) *TrustHandler {
	return &TrustHandler{trust: trust}
}

// GetMyProfile traite GET /trust/me.
func (h *TrustHandler) GetMyProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	profile, err := h.trust.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TrustProfileResponse{
		UserID:           profile.UserID.String(),
		TrustScore:       profile.TrustScore,
		SuccessfulTrades: profile.SuccessfulTrades,
		FailedTrades:     profile.FailedTrades,
		DisputedTrades:   profile.DisputedTrades,
	})
}

// GetUserScore traite GET /trust/:id/score. Seul le score agrégé est
// exposé aux autres participants, pas le détail du profil.
func (h *TrustHandler) GetUserScore(c *gin.Context) {
	if _, err := common.CurrentUserID(c); err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	targetID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	score, err := h.trust.Score(c.Request.Context(), targetID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": targetID, "trust_score": score})
}
