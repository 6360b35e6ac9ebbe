package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
	"github.com/bernard777/cadok-backend-sub005/internal/goroutine"
	"github.com/bernard777/cadok-backend-sub005/internal/logger"
	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
	"github.com/bernard777/cadok-backend-sub005/internal/validation"
)

// Événements de notification émis à chaque transition.
const (
	EventTradeProposed     = "trade_proposed"
	EventTradeAccepted     = "trade_accepted"
	EventPhotosRequired    = "photos_required"
	EventPhotosSubmitted   = "photos_submitted"
	EventShippingReady     = "shipping_codes_ready"
	EventShipmentConfirmed = "shipment_confirmed"
	EventTradeCompleted    = "trade_completed"
	EventTradeCancelled    = "trade_cancelled"
	EventDisputeReported   = "dispute_reported"
	EventDisputeResolved   = "dispute_resolved"
)

// TradeStore décrit la persistance des trocs.
type TradeStore interface {
	Create(ctx context.Context, t *models.Trade) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	Update(ctx context.Context, t *models.Trade, expectedStatus valueobject.TradeStatus) error
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Trade, error)
	AddDispute(ctx context.Context, d *models.TradeDispute) error
	ListDisputes(ctx context.Context, tradeID uuid.UUID) ([]models.TradeDispute, error)
}

// RiskEngine est le moteur de confiance consulté à l'acceptation et à la
// clôture.
type RiskEngine interface {
	Score(ctx context.Context, userID uuid.UUID) (int, error)
	ClassifyRisk(scoreA, scoreB int) (valueobject.RiskTier, models.ConstraintList)
	RecordOutcome(ctx context.Context, trade *models.Trade,
		expectedStatus, outcome valueobject.TradeStatus, faultyParty *uuid.UUID) error
}

// RedirectionMinter émet les codes de redirection à l'entrée en phase
// d'expédition.
type RedirectionMinter interface {
	CreateRedirection(ctx context.Context, tradeID uuid.UUID,
		direction valueobject.TradeDirection, destination string) (*models.Redirection, error)
}

// EvidenceStore vérifie la propriété des photos soumises.
type EvidenceStore interface {
	CountOwnedBy(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error)
}

// Notifier diffuse les notifications de transition. Au mieux : un échec
// n'annule jamais la transition.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// TradeService est la machine à états de sécurité des trocs. Toute
// mutation d'un troc passe par ici ; une violation de garde est rejetée
// avec l'état courant et la transition tentée, jamais ignorée en silence.
type TradeService struct {
	trades       TradeStore
	risk         RiskEngine
	redirections RedirectionMinter
	directory    UserDirectory
	evidence     EvidenceStore
	notifier     Notifier
}

func NewTradeService(
	trades TradeStore,
	risk RiskEngine,
	redirections RedirectionMinter,
	directory UserDirectory,
	evidence EvidenceStore,
) *TradeService {
	return &TradeService{
		trades:       trades,
		risk:         risk,
		redirections: redirections,
		directory:    directory,
		evidence:     evidence,
	}
}

// SetNotifier branche le hub de notifications (optionnel).
func (s *TradeService) SetNotifier(n Notifier) {
	s.notifier = n
}

func invalidTransition(current valueobject.TradeStatus, attempted string) error {
	return apperror.Newf(apperror.ErrCodeInvalidTransition,
		"transition %q impossible depuis l'état %q", attempted, current)
}

// ProposeTrade crée un troc à l'état proposed.
func (s *TradeService) ProposeTrade(ctx context.Context, proposer, receiver, itemA, itemB uuid.UUID) (*models.Trade, error) {
	if proposer == receiver {
		return nil, apperror.New(apperror.ErrCodeValidation, "impossible de troquer avec soi-même")
	}
	if itemA == uuid.Nil || itemB == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "les deux objets du troc sont obligatoires")
	}

	t := &models.Trade{
		ParticipantA:          proposer,
		ParticipantB:          receiver,
		ItemA:                 itemA,
		ItemB:                 itemB,
		Status:                string(valueobject.TradeStatusProposed),
		RequiredConstraints:   models.ConstraintList{},
		PhotoSubmissions:      models.PhotoSubmissionMap{},
		ShipmentConfirmations: models.ShipmentConfirmationMap{},
		DeliveryConfirmations: models.DeliveryConfirmationMap{},
	}
	if err := s.trades.Create(ctx, t); err != nil {
		return nil, err
	}

	s.notify(receiver, EventTradeProposed, t)
	return t, nil
}

// AcceptTrade fait avancer le troc depuis proposed. Le moteur de risque
// est consulté exactement une fois ici : palier et contraintes sont figés
// sur le troc et ne changeront plus. Les transitions automatiques qui
// suivent (verification_pending, puis verification_complete et
// shipping_pending quand aucune photo n'est exigée) sont enchaînées dans
// le même appel.
func (s *TradeService) AcceptTrade(ctx context.Context, tradeID, userID uuid.UUID) (*models.Trade, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	if userID != t.ParticipantB {
		return nil, apperror.New(apperror.ErrCodeForbidden, "seul le destinataire de la proposition peut l'accepter")
	}

	current := valueobject.TradeStatus(t.Status)
	if current != valueobject.TradeStatusProposed {
		return nil, invalidTransition(current, "accept")
	}

	scoreA, err := s.risk.Score(ctx, t.ParticipantA)
	if err != nil {
		return nil, err
	}
	scoreB, err := s.risk.Score(ctx, t.ParticipantB)
	if err != nil {
		return nil, err
	}

	tier, constraints := s.risk.ClassifyRisk(scoreA, scoreB)
	tierStr := string(tier)
	t.RiskTier = &tierStr
	t.RequiredConstraints = constraints

	// accepted puis verification_pending sont automatiques.
	t.Status = string(valueobject.TradeStatusVerificationPending)
	enteredShipping := false
	if !t.RequiresConstraint(valueobject.ConstraintPhotos) {
		// Aucune vérification pré-expédition : passage immédiat.
		t.Status = string(valueobject.TradeStatusShippingPending)
		enteredShipping = true
	}

	// L'émission des codes précède l'écriture du statut : un échec
	// d'émission laisse le troc dans son état courant et l'acceptation
	// reste rejouable. Des codes orphelins d'une écriture perdue expirent
	// via le balayage.
	if enteredShipping {
		if err := s.mintRedirections(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := s.trades.Update(ctx, t, valueobject.TradeStatusProposed); err != nil {
		return nil, err
	}

	if enteredShipping {
		s.notifyBoth(t, EventShippingReady, t)
	} else {
		s.notifyBoth(t, EventPhotosRequired, t)
	}
	s.notify(t.ParticipantA, EventTradeAccepted, t)

	return t, nil
}

// SubmitPhotos enregistre les photos de preuve d'un participant. La
// soumission est écrasée par participant : re-soumettre est idempotent.
// Quand les deux côtés ont soumis, le troc passe en phase d'expédition.
func (s *TradeService) SubmitPhotos(ctx context.Context, tradeID, userID uuid.UUID, mediaIDs []uuid.UUID) (*models.Trade, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}

	current := valueobject.TradeStatus(t.Status)
	if current != valueobject.TradeStatusVerificationPending {
		return nil, invalidTransition(current, "submit_photos")
	}
	if !t.RequiresConstraint(valueobject.ConstraintPhotos) {
		return nil, invalidTransition(current, "submit_photos")
	}

	if len(mediaIDs) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "au moins une photo est requise")
	}
	if len(mediaIDs) > validation.MaxPhotosPerSubmission {
		return nil, apperror.Newf(apperror.ErrCodeValidation,
			"au plus %d photos par soumission", validation.MaxPhotosPerSubmission)
	}
	owned, err := s.evidence.CountOwnedBy(ctx, userID, mediaIDs)
	if err != nil {
		return nil, err
	}
	if owned != len(mediaIDs) {
		return nil, apperror.New(apperror.ErrCodeValidation, "certaines photos ne vous appartiennent pas")
	}

	t.PhotoSubmissions[userID.String()] = models.PhotoSubmission{
		MediaIDs:    mediaIDs,
		SubmittedAt: time.Now(),
	}

	enteredShipping := false
	if s.bothSubmittedPhotos(t) {
		// verification_complete puis shipping_pending sont automatiques.
		t.Status = string(valueobject.TradeStatusShippingPending)
		enteredShipping = true
	}

	// Même ordre qu'à l'acceptation : codes d'abord, statut ensuite, pour
	// que la soumission reste rejouable si l'émission échoue.
	if enteredShipping {
		if err := s.mintRedirections(ctx, t); err != nil {
			return nil, err
		}
	}

	if err := s.trades.Update(ctx, t, current); err != nil {
		return nil, err
	}

	if enteredShipping {
		s.notifyBoth(t, EventShippingReady, t)
	} else {
		s.notify(t.OtherParticipant(userID), EventPhotosSubmitted, t)
	}

	return t, nil
}

// ConfirmShipment enregistre la confirmation d'envoi d'un participant.
// Si la contrainte tracking est figée sur le troc, un numéro de suivi
// valide est exigé, sinon la confirmation est rejetée sans avancer.
func (s *TradeService) ConfirmShipment(ctx context.Context, tradeID, userID uuid.UUID, trackingNumber *string) (*models.Trade, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}

	current := valueobject.TradeStatus(t.Status)
	if current != valueobject.TradeStatusShippingPending {
		return nil, invalidTransition(current, "confirm_shipment")
	}

	if t.RequiresConstraint(valueobject.ConstraintTracking) {
		if trackingNumber == nil {
			return nil, apperror.New(apperror.ErrCodeValidation,
				"un numéro de suivi est obligatoire pour ce troc")
		}
	}
	if trackingNumber != nil {
		if err := validation.ValidateTrackingNumber(*trackingNumber); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	t.ShipmentConfirmations[userID.String()] = models.ShipmentConfirmation{
		TrackingNumber: trackingNumber,
		ConfirmedAt:    time.Now(),
	}

	if s.bothConfirmedShipment(t) {
		t.Status = string(valueobject.TradeStatusShippingConfirmed)
	}

	if err := s.trades.Update(ctx, t, current); err != nil {
		return nil, err
	}

	s.notify(t.OtherParticipant(userID), EventShipmentConfirmed, t)
	return t, nil
}

// ConfirmDelivery enregistre la confirmation de réception (note 1–5,
// commentaire obligatoire si note ≤ 2). Quand les deux côtés ont
// confirmé, le troc passe en delivered puis completed, et l'issue est
// transmise au moteur de confiance dans la même frontière atomique que
// l'écriture du statut terminal. Pendant un litige, la confirmation est
// acceptée et enregistrée mais ne fait pas avancer le troc.
func (s *TradeService) ConfirmDelivery(ctx context.Context, tradeID, userID uuid.UUID, rating int, comment *string) (*models.Trade, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}

	current := valueobject.TradeStatus(t.Status)
	if current != valueobject.TradeStatusShippingConfirmed && current != valueobject.TradeStatusDisputed {
		return nil, invalidTransition(current, "confirm_delivery")
	}

	if err := validation.ValidateRating(rating); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if rating <= validation.LowRatingThreshold {
		if comment == nil || len(*comment) == 0 {
			return nil, apperror.New(apperror.ErrCodeValidation,
				"un commentaire est obligatoire pour une note inférieure ou égale à 2")
		}
	}
	if comment != nil {
		if err := validation.ValidateLength("le commentaire", *comment, 0, validation.MaxCommentLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	t.DeliveryConfirmations[userID.String()] = models.DeliveryConfirmation{
		Rating:      rating,
		Comment:     comment,
		ConfirmedAt: time.Now(),
	}

	// Litige en cours : on enregistre sans avancer, la résolution externe
	// décidera de l'issue.
	if current == valueobject.TradeStatusDisputed {
		if err := s.trades.Update(ctx, t, current); err != nil {
			return nil, err
		}
		return t, nil
	}

	if !s.bothConfirmedDelivery(t) {
		if err := s.trades.Update(ctx, t, current); err != nil {
			return nil, err
		}
		return t, nil
	}

	// Les deux réceptions sont confirmées : delivered, puis clôture
	// automatique avec mise à jour atomique des deux profils.
	t.Status = string(valueobject.TradeStatusDelivered)
	if err := s.trades.Update(ctx, t, current); err != nil {
		return nil, err
	}

	if err := s.risk.RecordOutcome(ctx, t,
		valueobject.TradeStatusDelivered, valueobject.TradeStatusCompleted, nil); err != nil {
		return nil, err
	}
	t.Status = string(valueobject.TradeStatusCompleted)

	s.notifyBoth(t, EventTradeCompleted, t)
	return t, nil
}

// CancelTrade annule un troc. Permis uniquement avant shipping_confirmed :
// une fois les deux colis en route, seuls la livraison ou le litige
// restent possibles.
func (s *TradeService) CancelTrade(ctx context.Context, tradeID, userID uuid.UUID) (*models.Trade, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}

	current := valueobject.TradeStatus(t.Status)
	if current == valueobject.TradeStatusDisputed || !current.CanTransitionTo(valueobject.TradeStatusCancelled) {
		return nil, invalidTransition(current, "cancel")
	}

	t.Status = string(valueobject.TradeStatusCancelled)
	if err := s.trades.Update(ctx, t, current); err != nil {
		return nil, err
	}

	s.notify(t.OtherParticipant(userID), EventTradeCancelled, t)
	return t, nil
}

// ReportDispute signale un problème après expédition. Le premier
// signalement gèle la progression (status disputed) ; les suivants
// s'ajoutent sans changer le statut, jusqu'à la résolution externe.
func (s *TradeService) ReportDispute(ctx context.Context, tradeID, userID uuid.UUID, reason, description string, evidence []uuid.UUID) (*models.TradeDispute, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}

	current := valueobject.TradeStatus(t.Status)
	switch current {
	case valueobject.TradeStatusShippingConfirmed, valueobject.TradeStatusDelivered, valueobject.TradeStatusDisputed:
		// signalement permis
	default:
		return nil, invalidTransition(current, "report_dispute")
	}

	if err := validation.ValidateDisputeReason(reason); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("la description", description, 0, validation.MaxDisputeDescription); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	d := &models.TradeDispute{
		TradeID:     tradeID,
		ReporterID:  userID,
		Reason:      reason,
		Description: description,
		Evidence:    evidence,
	}
	if err := s.trades.AddDispute(ctx, d); err != nil {
		return nil, err
	}

	if current != valueobject.TradeStatusDisputed {
		t.Status = string(valueobject.TradeStatusDisputed)
		if err := s.trades.Update(ctx, t, current); err != nil {
			return nil, err
		}
	}

	s.notifyBoth(t, EventDisputeReported, d)
	return d, nil
}

// ResolveDispute tranche un litige : issue terminale (completed ou
// cancelled) décidée par l'arbitrage externe, avec fautif éventuel
// transmis au moteur de confiance.
func (s *TradeService) ResolveDispute(ctx context.Context, tradeID uuid.UUID, outcome valueobject.TradeStatus, faultyParty *uuid.UUID) (*models.Trade, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	current := valueobject.TradeStatus(t.Status)
	if current != valueobject.TradeStatusDisputed {
		return nil, invalidTransition(current, "resolve_dispute")
	}
	if !current.CanTransitionTo(outcome) {
		return nil, apperror.Newf(apperror.ErrCodeValidation,
			"issue de litige invalide: %s", outcome)
	}

	if err := s.risk.RecordOutcome(ctx, t, current, outcome, faultyParty); err != nil {
		return nil, err
	}
	t.Status = string(outcome)

	s.notifyBoth(t, EventDisputeResolved, t)
	return t, nil
}

// GetTrade retourne un troc si l'appelant y participe.
func (s *TradeService) GetTrade(ctx context.Context, tradeID, userID uuid.UUID) (*models.Trade, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	return t, nil
}

// ListUserTrades retourne les trocs d'un participant.
func (s *TradeService) ListUserTrades(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Trade, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.trades.ListByParticipant(ctx, userID, limit, offset)
}

// ListDisputes retourne les signalements d'un troc.
func (s *TradeService) ListDisputes(ctx context.Context, tradeID, userID uuid.UUID) ([]models.TradeDispute, error) {
	t, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	return s.trades.ListDisputes(ctx, tradeID)
}

// PendingRequirements liste, par participant, les étapes qui bloquent la
// progression du troc dans son état courant. C'est ce que voient les
// participants : le statut autoritaire et les contraintes exactes non
// satisfaites.
func (s *TradeService) PendingRequirements(t *models.Trade) map[string][]string {
	pending := map[string][]string{}
	add := func(userID uuid.UUID, requirement string) {
		key := userID.String()
		pending[key] = append(pending[key], requirement)
	}

	switch valueobject.TradeStatus(t.Status) {
	case valueobject.TradeStatusProposed:
		add(t.ParticipantB, "acceptation de la proposition")
	case valueobject.TradeStatusVerificationPending:
		for _, p := range []uuid.UUID{t.ParticipantA, t.ParticipantB} {
			if _, ok := t.PhotoSubmissions[p.String()]; !ok {
				add(p, "photos de l'objet")
			}
		}
	case valueobject.TradeStatusShippingPending:
		for _, p := range []uuid.UUID{t.ParticipantA, t.ParticipantB} {
			if _, ok := t.ShipmentConfirmations[p.String()]; !ok {
				if t.RequiresConstraint(valueobject.ConstraintTracking) {
					add(p, "confirmation d'envoi avec numéro de suivi")
				} else {
					add(p, "confirmation d'envoi")
				}
			}
		}
	case valueobject.TradeStatusShippingConfirmed:
		for _, p := range []uuid.UUID{t.ParticipantA, t.ParticipantB} {
			if _, ok := t.DeliveryConfirmations[p.String()]; !ok {
				add(p, "confirmation de réception")
			}
		}
	case valueobject.TradeStatusDisputed:
		add(t.ParticipantA, "résolution du litige par la modération")
		add(t.ParticipantB, "résolution du litige par la modération")
	}

	return pending
}

// mintRedirections émet les deux codes de redirection, un par sens.
// L'adresse réelle de chaque destinataire vient de l'annuaire et n'est
// jamais montrée à l'expéditeur : lui ne voit que l'adresse leurre.
func (s *TradeService) mintRedirections(ctx context.Context, t *models.Trade) error {
	addressB, err := s.directory.GetPostalAddress(ctx, t.ParticipantB)
	if err != nil {
		return fmt.Errorf("trade service: adresse du participant B: %w", err)
	}
	addressA, err := s.directory.GetPostalAddress(ctx, t.ParticipantA)
	if err != nil {
		return fmt.Errorf("trade service: adresse du participant A: %w", err)
	}

	if _, err := s.redirections.CreateRedirection(ctx, t.ID, valueobject.DirectionAToB, addressB); err != nil {
		return err
	}
	if _, err := s.redirections.CreateRedirection(ctx, t.ID, valueobject.DirectionBToA, addressA); err != nil {
		return err
	}
	return nil
}

func (s *TradeService) bothSubmittedPhotos(t *models.Trade) bool {
	_, a := t.PhotoSubmissions[t.ParticipantA.String()]
	_, b := t.PhotoSubmissions[t.ParticipantB.String()]
	return a && b
}

func (s *TradeService) bothConfirmedShipment(t *models.Trade) bool {
	_, a := t.ShipmentConfirmations[t.ParticipantA.String()]
	_, b := t.ShipmentConfirmations[t.ParticipantB.String()]
	return a && b
}

func (s *TradeService) bothConfirmedDelivery(t *models.Trade) bool {
	_, a := t.DeliveryConfirmations[t.ParticipantA.String()]
	_, b := t.DeliveryConfirmations[t.ParticipantB.String()]
	return a && b
}

// notify envoie une notification au mieux, sans bloquer la transition.
func (s *TradeService) notify(userID uuid.UUID, event string, data any) {
	if s.notifier == nil {
		return
	}
	notifier := s.notifier
	goroutine.SafeGo(func() {
		if err := notifier.BroadcastToUser(userID, event, data); err != nil && logger.Log != nil {
			logger.Log.WithField("event", event).Warnf("notification non délivrée: %v", err)
		}
	})
}

func (s *TradeService) notifyBoth(t *models.Trade, event string, data any) {
	s.notify(t.ParticipantA, event, data)
	s.notify(t.ParticipantB, event, data)
}
