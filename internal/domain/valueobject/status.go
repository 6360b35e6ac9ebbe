package valueobject

import "github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"

// TradeStatus est le statut d'un troc. Les transitions sont fermées :
// tout changement hors de la table ci-dessous est rejeté.
type TradeStatus string

const (
	TradeStatusProposed             TradeStatus = "proposed"
	TradeStatusAccepted             TradeStatus = "accepted"
	TradeStatusVerificationPending  TradeStatus = "verification_pending"
	TradeStatusVerificationComplete TradeStatus = "verification_complete"
	TradeStatusShippingPending      TradeStatus = "shipping_pending"
	TradeStatusShippingConfirmed    TradeStatus = "shipping_confirmed"
	TradeStatusDelivered            TradeStatus = "delivered"
	TradeStatusCompleted            TradeStatus = "completed"
	TradeStatusCancelled            TradeStatus = "cancelled"
	TradeStatusDisputed             TradeStatus = "disputed"
)

func (s TradeStatus) IsValid() bool {
	switch s {
	case TradeStatusProposed, TradeStatusAccepted, TradeStatusVerificationPending,
		TradeStatusVerificationComplete, TradeStatusShippingPending, TradeStatusShippingConfirmed,
		TradeStatusDelivered, TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed:
		return true
	}
	return false
}

// IsTerminal indique un état final : plus aucune mutation hormis l'ajout
// de signalements de litige.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusCompleted || s == TradeStatusCancelled
}

// CanTransitionTo vérifie la table de transitions.
// L'annulation unilatérale n'est possible qu'avant shipping_confirmed :
// une fois les colis en route, seuls la livraison ou le litige avancent.
func (s TradeStatus) CanTransitionTo(newStatus TradeStatus) bool {
	transitions := map[TradeStatus][]TradeStatus{
		TradeStatusProposed:             {TradeStatusAccepted, TradeStatusCancelled},
		TradeStatusAccepted:             {TradeStatusVerificationPending, TradeStatusCancelled},
		TradeStatusVerificationPending:  {TradeStatusVerificationComplete, TradeStatusCancelled},
		TradeStatusVerificationComplete: {TradeStatusShippingPending, TradeStatusCancelled},
		TradeStatusShippingPending:      {TradeStatusShippingConfirmed, TradeStatusCancelled},
		TradeStatusShippingConfirmed:    {TradeStatusDelivered, TradeStatusDisputed},
		TradeStatusDelivered:            {TradeStatusCompleted, TradeStatusDisputed},
		TradeStatusDisputed:             {TradeStatusCompleted, TradeStatusCancelled},
		TradeStatusCompleted:            {},
		TradeStatusCancelled:            {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewTradeStatus(status string) (TradeStatus, error) {
	s := TradeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "statut de troc invalide")
	}
	return s, nil
}

// RiskTier classe une paire de participants pour un troc donné.
type RiskTier string

const (
	RiskTierLow    RiskTier = "low"
	RiskTierMedium RiskTier = "medium"
	RiskTierHigh   RiskTier = "high"
)

func (t RiskTier) IsValid() bool {
	switch t {
	case RiskTierLow, RiskTierMedium, RiskTierHigh:
		return true
	}
	return false
}

// Severity ordonne les paliers du moins risqué au plus risqué.
func (t RiskTier) Severity() int {
	switch t {
	case RiskTierLow:
		return 0
	case RiskTierMedium:
		return 1
	case RiskTierHigh:
		return 2
	}
	return 2
}

// WorstTier retourne le palier le plus sévère des deux.
func WorstTier(a, b RiskTier) RiskTier {
	if a.Severity() >= b.Severity() {
		return a
	}
	return b
}

// SecurityConstraint est une étape de vérification obligatoire, figée sur
// le troc à l'acceptation.
type SecurityConstraint string

const (
	ConstraintPhotos             SecurityConstraint = "photos"
	ConstraintTracking           SecurityConstraint = "tracking"
	ConstraintManualConfirmation SecurityConstraint = "manual_confirmation"
)

// ConstraintsForTier retourne les contraintes d'un palier. Les ensembles
// sont croissants : chaque palier inclut les contraintes des paliers
// moins sévères.
func ConstraintsForTier(t RiskTier) []SecurityConstraint {
	switch t {
	case RiskTierLow:
		return nil
	case RiskTierMedium:
		return []SecurityConstraint{ConstraintTracking}
	default:
		return []SecurityConstraint{ConstraintPhotos, ConstraintTracking, ConstraintManualConfirmation}
	}
}

// RedirectionStatus suit le cycle de vie d'un code de redirection.
type RedirectionStatus string

const (
	RedirectionStatusPending  RedirectionStatus = "pending"
	RedirectionStatusResolved RedirectionStatus = "resolved"
	RedirectionStatusExpired  RedirectionStatus = "expired"
)

// TradeDirection identifie le sens d'un envoi dans un troc.
type TradeDirection string

const (
	DirectionAToB TradeDirection = "a_to_b"
	DirectionBToA TradeDirection = "b_to_a"
)

func (d TradeDirection) IsValid() bool {
	return d == DirectionAToB || d == DirectionBToA
}
