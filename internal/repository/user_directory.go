package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

// UserDirectory expose en lecture seule les données utilisateurs détenues
// par le service d'inscription (hors périmètre). Le cœur ne modifie
// jamais la table users.
type UserDirectory struct {
	db *sqlx.DB
}

func NewUserDirectory(db *sqlx.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

type directoryRow struct {
	CreatedAt     time.Time `db:"created_at"`
	EmailVerified bool      `db:"email_verified"`
	PhoneVerified bool      `db:"phone_verified"`
	PostalAddress string    `db:"postal_address"`
}

func (d *UserDirectory) load(ctx context.Context, userID uuid.UUID) (*directoryRow, error) {
	var row directoryRow
	err := d.db.GetContext(ctx, &row, `
		SELECT created_at, email_verified, phone_verified, postal_address
		FROM users WHERE id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user directory: load %w", err)
	}
	return &row, nil
}

// GetAccountAgeDays retourne l'ancienneté du compte en jours.
func (d *UserDirectory) GetAccountAgeDays(ctx context.Context, userID uuid.UUID) (int, error) {
	row, err := d.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	days := int(time.Since(row.CreatedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days, nil
}

func (d *UserDirectory) IsEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	row, err := d.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return row.EmailVerified, nil
}

func (d *UserDirectory) IsPhoneVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	row, err := d.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return row.PhoneVerified, nil
}

// GetPostalAddress retourne l'adresse postale réelle du destinataire.
// Elle ne sort du cœur que chiffrée (moteur de redirection).
func (d *UserDirectory) GetPostalAddress(ctx context.Context, userID uuid.UUID) (string, error) {
	row, err := d.load(ctx, userID)
	if err != nil {
		return "", err
	}
	if row.PostalAddress == "" {
		return "", fmt.Errorf("user directory: aucune adresse postale pour %s", userID)
	}
	return row.PostalAddress, nil
}
