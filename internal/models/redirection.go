package models

import (
	"time"

	"github.com/google/uuid"
)

// Redirection est un enregistrement de redirection anonymisée : un code
// jetable tient lieu d'adresse de destination sur l'étiquette du colis.
// L'adresse réelle n'existe en base que chiffrée ; le clair n'est jamais
// persisté. Un enregistrement résolu est immuable.
type Redirection struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Code    string    `db:"code" json:"code"`
	TradeID uuid.UUID `db:"trade_id" json:"trade_id"`
	// Sens de l'envoi : a_to_b ou b_to_a.
	Direction string `db:"direction" json:"direction"`
	// Chiffré de l'adresse réelle du destinataire (Crypto Gateway).
	EncryptedDestination string `db:"encrypted_destination" json:"-"`
	// Adresse leurre de la plateforme, code en ligne "à l'attention de" :
	// c'est ce que voit l'expéditeur et ce sur quoi route le transporteur.
	DecoyAddress string     `db:"decoy_address" json:"decoy_address"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ExpiresAt    time.Time  `db:"expires_at" json:"expires_at"`
}
