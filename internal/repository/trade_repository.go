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

var ErrTradeNotFound = errors.New("trade not found")

// TradeRepository persiste les trocs et leurs signalements de litige.
type TradeRepository struct {
	db *sqlx.DB
}

func NewTradeRepository(db *sqlx.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) Create(ctx context.Context, t *models.Trade) error {
	query := `
		INSERT INTO trades (participant_a, participant_b, item_a, item_b, status,
			required_constraints, photo_submissions, shipment_confirmations, delivery_confirmations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		t.ParticipantA, t.ParticipantB, t.ItemA, t.ItemB, t.Status,
		t.RequiredConstraints, t.PhotoSubmissions, t.ShipmentConfirmations, t.DeliveryConfirmations).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TradeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	return common.GetByID[models.Trade](ctx, r.db, "trades", id, ErrTradeNotFound)
}

// Update écrit l'état complet du troc, gardé par le statut attendu : si un
// autre appel a avancé le troc entre-temps, aucune ligne ne correspond et
// l'écriture est rejetée en conflit. C'est ce qui sérialise les
// transitions d'un même troc.
func (r *TradeRepository) Update(ctx context.Context, t *models.Trade, expectedStatus valueobject.TradeStatus) error {
	t.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE trades
		SET status = $3, risk_tier = $4, required_constraints = $5,
			photo_submissions = $6, shipment_confirmations = $7, delivery_confirmations = $8,
			updated_at = $9
		WHERE id = $1 AND status = $2
	`, t.ID, string(expectedStatus), t.Status, t.RiskTier, t.RequiredConstraints,
		t.PhotoSubmissions, t.ShipmentConfirmations, t.DeliveryConfirmations, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("trade repository: update %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("trade repository: rows affected %w", err)
	}
	if rows == 0 {
		return apperror.New(apperror.ErrCodeConflict, "le troc a été modifié en parallèle, réessayez")
	}
	return nil
}

func (r *TradeRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.SelectContext(ctx, &trades, `
		SELECT * FROM trades
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return trades, err
}

// AddDispute ajoute un signalement. Ajout seul, aucune mise à jour possible.
func (r *TradeRepository) AddDispute(ctx context.Context, d *models.TradeDispute) error {
	query := `
		INSERT INTO trade_disputes (trade_id, reporter_id, reason, description, evidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, reported_at
	`
	return r.db.QueryRowxContext(ctx, query,
		d.TradeID, d.ReporterID, d.Reason, d.Description, d.Evidence).
		Scan(&d.ID, &d.ReportedAt)
}

func (r *TradeRepository) ListDisputes(ctx context.Context, tradeID uuid.UUID) ([]models.TradeDispute, error) {
	var disputes []models.TradeDispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM trade_disputes WHERE trade_id = $1 ORDER BY reported_at ASC
	`, tradeID)
	return disputes, err
}
