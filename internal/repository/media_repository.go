package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/repository/common"
)

var ErrMediaNotFound = errors.New("media not found")

// MediaRepository persiste les métadonnées des photos de preuve.
type MediaRepository struct {
	db *sqlx.DB
}

func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) Create(ctx context.Context, m *models.MediaFile) error {
	query := `
		INSERT INTO media_files (owner_id, path, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, m.OwnerID, m.Path, m.MimeType, m.SizeBytes).
		Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("media repository: create %w", err)
	}
	return nil
}

func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	return common.GetByID[models.MediaFile](ctx, r.db, "media_files", id, ErrMediaNotFound)
}

// CountOwnedBy vérifie que tous les identifiants appartiennent bien au
// participant qui soumet des photos.
func (r *MediaRepository) CountOwnedBy(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM media_files WHERE owner_id = ? AND id IN (?)`, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("media repository: count owned %w", err)
	}
	query = r.db.Rebind(query)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("media repository: count owned %w", err)
	}
	return count, nil
}
