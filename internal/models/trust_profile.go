package models

import (
	"time"

	"github.com/google/uuid"
)

// TrustProfile agrège l'historique de trocs d'un utilisateur. Les
// compteurs ne sont mutés que par le moteur de confiance à la clôture
// d'un troc ; TrustScore est dérivé, jamais écrit directement par un
// autre composant.
type TrustProfile struct {
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	SuccessfulTrades int       `db:"successful_trades" json:"successful_trades"`
	FailedTrades     int       `db:"failed_trades" json:"failed_trades"`
	DisputedTrades   int       `db:"disputed_trades" json:"disputed_trades"`
	// Champs fournis par l'annuaire utilisateurs, recopiés au recalcul.
	AccountAgeDays int  `db:"account_age_days" json:"account_age_days"`
	VerifiedEmail  bool `db:"verified_email" json:"verified_email"`
	VerifiedPhone  bool `db:"verified_phone" json:"verified_phone"`
	TrustScore     int  `db:"trust_score" json:"trust_score"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
