package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/repository/common"
)

var ErrRedirectionNotFound = errors.New("redirection not found")

// uniqueViolation est le code PostgreSQL d'une violation d'index unique.
const uniqueViolation = "23505"

// RedirectionRepository persiste les enregistrements de redirection.
type RedirectionRepository struct {
	db *sqlx.DB
}

func NewRedirectionRepository(db *sqlx.DB) *RedirectionRepository {
	return &RedirectionRepository{db: db}
}

// Create insère l'enregistrement. Une collision de code retourne
// common.ErrAlreadyExists pour que l'appelant regénère un suffixe.
func (r *RedirectionRepository) Create(ctx context.Context, rec *models.Redirection) error {
	query := `
		INSERT INTO redirections (code, trade_id, direction, encrypted_destination,
			decoy_address, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		rec.Code, rec.TradeID, rec.Direction, rec.EncryptedDestination,
		rec.DecoyAddress, rec.Status, rec.ExpiresAt).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("redirection repository: create %w", err)
	}
	return nil
}

func (r *RedirectionRepository) GetByCode(ctx context.Context, code string) (*models.Redirection, error) {
	return common.GetByField[models.Redirection](ctx, r.db, "redirections", "code", code, ErrRedirectionNotFound)
}

// TryResolve tente la transition pending -> resolved en compare-and-set
// atomique, clé par code. Exactement un appelant concurrent gagne ;
// les autres voient false et relisent l'enregistrement résolu.
func (r *RedirectionRepository) TryResolve(ctx context.Context, code string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE redirections SET status = 'resolved', resolved_at = NOW()
		WHERE code = $1 AND status = 'pending'
	`, code)
	if err != nil {
		return false, fmt.Errorf("redirection repository: try resolve %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("redirection repository: rows affected %w", err)
	}
	return rows == 1, nil
}

// ExpireStale bascule en expired tous les codes pending dont l'échéance
// est passée. Retourne le nombre de codes expirés.
func (r *RedirectionRepository) ExpireStale(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE redirections SET status = 'expired'
		WHERE status = 'pending' AND expires_at < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("redirection repository: expire stale %w", err)
	}
	return res.RowsAffected()
}

func (r *RedirectionRepository) ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.Redirection, error) {
	var recs []models.Redirection
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM redirections WHERE trade_id = $1 ORDER BY created_at ASC
	`, tradeID)
	return recs, err
}
