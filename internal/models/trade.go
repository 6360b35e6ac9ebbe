package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
)

// Trade représente un échange proposé entre deux participants. Le statut
// n'est muté que par les transitions de la machine à états ; les états
// terminaux sont conservés pour audit, jamais supprimés.
type Trade struct {
	ID           uuid.UUID `db:"id" json:"id"`
	ParticipantA uuid.UUID `db:"participant_a" json:"participant_a"`
	ParticipantB uuid.UUID `db:"participant_b" json:"participant_b"`
	// Références opaques : le catalogue d'objets est un collaborateur externe.
	ItemA  uuid.UUID `db:"item_a" json:"item_a"`
	ItemB  uuid.UUID `db:"item_b" json:"item_b"`
	Status string    `db:"status" json:"status"`
	// Figés une seule fois à l'acceptation, immuables ensuite.
	RiskTier            *string        `db:"risk_tier" json:"risk_tier,omitempty"`
	RequiredConstraints ConstraintList `db:"required_constraints" json:"required_constraints"`

	PhotoSubmissions      PhotoSubmissionMap      `db:"photo_submissions" json:"photo_submissions"`
	ShipmentConfirmations ShipmentConfirmationMap `db:"shipment_confirmations" json:"shipment_confirmations"`
	DeliveryConfirmations DeliveryConfirmationMap `db:"delivery_confirmations" json:"delivery_confirmations"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsParticipant indique si l'utilisateur fait partie du troc.
func (t *Trade) IsParticipant(userID uuid.UUID) bool {
	return userID == t.ParticipantA || userID == t.ParticipantB
}

// OtherParticipant retourne l'autre partie du troc.
func (t *Trade) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if userID == t.ParticipantA {
		return t.ParticipantB
	}
	return t.ParticipantA
}

// RequiresConstraint vérifie l'appartenance d'une contrainte à l'ensemble
// figé sur le troc.
func (t *Trade) RequiresConstraint(c valueobject.SecurityConstraint) bool {
	for _, rc := range t.RequiredConstraints {
		if rc == c {
			return true
		}
	}
	return false
}

// TradeDispute est un signalement de litige. Table en ajout seul : un
// signalement n'est jamais modifié ni supprimé.
type TradeDispute struct {
	ID          uuid.UUID `db:"id" json:"id"`
	TradeID     uuid.UUID `db:"trade_id" json:"trade_id"`
	ReporterID  uuid.UUID `db:"reporter_id" json:"reporter_id"`
	Reason      string    `db:"reason" json:"reason"`
	Description string    `db:"description" json:"description"`
	Evidence    UUIDList  `db:"evidence" json:"evidence"`
	ReportedAt  time.Time `db:"reported_at" json:"reported_at"`
}

// PhotoSubmission regroupe les photos soumises par un participant.
type PhotoSubmission struct {
	MediaIDs    []uuid.UUID `json:"media_ids"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// ShipmentConfirmation est la confirmation d'envoi d'un participant.
type ShipmentConfirmation struct {
	TrackingNumber *string   `json:"tracking_number,omitempty"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

// DeliveryConfirmation est la confirmation de réception d'un participant.
type DeliveryConfirmation struct {
	Rating      int       `json:"rating"`
	Comment     *string   `json:"comment,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Les cartes ci-dessous sont stockées en JSONB, indexées par l'UUID du
// participant. La soumission d'un participant est écrasée, pas ajoutée :
// re-soumettre est donc idempotent.

type PhotoSubmissionMap map[string]PhotoSubmission

func (m PhotoSubmissionMap) Value() (driver.Value, error)  { return jsonbValue(m) }
func (m *PhotoSubmissionMap) Scan(src interface{}) error   { return jsonbScan(src, m) }

type ShipmentConfirmationMap map[string]ShipmentConfirmation

func (m ShipmentConfirmationMap) Value() (driver.Value, error) { return jsonbValue(m) }
func (m *ShipmentConfirmationMap) Scan(src interface{}) error  { return jsonbScan(src, m) }

type DeliveryConfirmationMap map[string]DeliveryConfirmation

func (m DeliveryConfirmationMap) Value() (driver.Value, error) { return jsonbValue(m) }
func (m *DeliveryConfirmationMap) Scan(src interface{}) error  { return jsonbScan(src, m) }

// ConstraintList est l'ensemble des contraintes de sécurité figées sur le
// troc, stocké en JSONB.
type ConstraintList []valueobject.SecurityConstraint

func (l ConstraintList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *ConstraintList) Scan(src interface{}) error { return jsonbScan(src, l) }

// UUIDList est une liste d'identifiants stockée en JSONB.
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *UUIDList) Scan(src interface{}) error { return jsonbScan(src, l) }

func jsonbValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}

func jsonbScan(src, dst interface{}) error {
	if src == nil {
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("models: type JSONB inattendu %T", src)
	}
}
