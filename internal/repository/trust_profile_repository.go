package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
	"github.com/bernard777/cadok-backend-sub005/internal/repository/common"
)

var ErrProfileNotFound = errors.New("trust profile not found")

// TrustProfileRepository persiste les profils de confiance.
type TrustProfileRepository struct {
	db *sqlx.DB
}

func NewTrustProfileRepository(db *sqlx.DB) *TrustProfileRepository {
	return &TrustProfileRepository{db: db}
}

func (r *TrustProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.TrustProfile, error) {
	return common.GetByField[models.TrustProfile](ctx, r.db, "trust_profiles", "user_id", userID, ErrProfileNotFound)
}

// Save écrit le profil complet (compteurs, champs annuaire recopiés, score).
func (r *TrustProfileRepository) Save(ctx context.Context, p *models.TrustProfile) error {
	p.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trust_profiles (user_id, successful_trades, failed_trades, disputed_trades,
			account_age_days, verified_email, verified_phone, trust_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			successful_trades = EXCLUDED.successful_trades,
			failed_trades = EXCLUDED.failed_trades,
			disputed_trades = EXCLUDED.disputed_trades,
			account_age_days = EXCLUDED.account_age_days,
			verified_email = EXCLUDED.verified_email,
			verified_phone = EXCLUDED.verified_phone,
			trust_score = EXCLUDED.trust_score,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.SuccessfulTrades, p.FailedTrades, p.DisputedTrades,
		p.AccountAgeDays, p.VerifiedEmail, p.VerifiedPhone, p.TrustScore, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("trust profile repository: save %w", err)
	}
	return nil
}

// ApplyTradeOutcome écrit le statut terminal du troc et les deux profils
// mis à jour dans une seule transaction. Un crash au milieu ne peut pas
// laisser le troc clos avec des scores obsolètes, ni l'inverse.
func (r *TrustProfileRepository) ApplyTradeOutcome(
	ctx context.Context,
	tradeID uuid.UUID,
	expectedStatus, newStatus valueobject.TradeStatus,
	profiles []*models.TrustProfile,
) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE trades SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, tradeID, string(expectedStatus), string(newStatus))
		if err != nil {
			return fmt.Errorf("apply outcome: update trade %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("apply outcome: rows affected %w", err)
		}
		if rows == 0 {
			return apperror.New(apperror.ErrCodeConflict, "le troc a déjà été clos")
		}

		for _, p := range profiles {
			p.UpdatedAt = time.Now()
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO trust_profiles (user_id, successful_trades, failed_trades, disputed_trades,
					account_age_days, verified_email, verified_phone, trust_score, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (user_id) DO UPDATE SET
					successful_trades = EXCLUDED.successful_trades,
					failed_trades = EXCLUDED.failed_trades,
					disputed_trades = EXCLUDED.disputed_trades,
					account_age_days = EXCLUDED.account_age_days,
					verified_email = EXCLUDED.verified_email,
					verified_phone = EXCLUDED.verified_phone,
					trust_score = EXCLUDED.trust_score,
					updated_at = EXCLUDED.updated_at
			`, p.UserID, p.SuccessfulTrades, p.FailedTrades, p.DisputedTrades,
				p.AccountAgeDays, p.VerifiedEmail, p.VerifiedPhone, p.TrustScore, p.UpdatedAt); err != nil {
				return fmt.Errorf("apply outcome: save profile %s %w", p.UserID, err)
			}
		}

		return nil
	})
}
