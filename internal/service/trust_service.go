package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/repository"
)

// Constantes de la politique de score. Valeurs ajustables, documentées
// dans DESIGN.md ; le score reste borné à [0,100] quelle que soit la
// combinaison.
const (
	// baselineScore est le score d'un compte sans historique :
	// volontairement sous le seuil MEDIUM pour que les premiers trocs
	// passent par la vérification complète.
	baselineScore = 45
	// successWeight pondère le ratio de trocs réussis.
	successWeight = 45
	// volumeBonusCap plafonne le bonus d'ancienneté en volume de trocs.
	volumeBonusCap = 20
	emailBonus     = 5
	phoneBonus     = 5
	// ageBonusDivisor : environ un point tous les 36 jours, plafonné.
	ageBonusDivisor = 36
	ageBonusCap     = 10
	failurePenalty  = 8
	disputePenalty  = 12

	// Seuils des paliers de risque.
	tierLowMinScore    = 80
	tierMediumMinScore = 50

	MinTrustScore = 0
	MaxTrustScore = 100
)

// UserDirectory est l'annuaire utilisateurs, collaborateur externe en
// lecture seule.
type UserDirectory interface {
	GetAccountAgeDays(ctx context.Context, userID uuid.UUID) (int, error)
	IsEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error)
	IsPhoneVerified(ctx context.Context, userID uuid.UUID) (bool, error)
	GetPostalAddress(ctx context.Context, userID uuid.UUID) (string, error)
}

// TrustProfileStore décrit la persistance des profils de confiance.
type TrustProfileStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.TrustProfile, error)
	Save(ctx context.Context, p *models.TrustProfile) error
	ApplyTradeOutcome(ctx context.Context, tradeID uuid.UUID,
		expectedStatus, newStatus valueobject.TradeStatus, profiles []*models.TrustProfile) error
}

// TrustService calcule les scores de confiance, classe le risque d'une
// paire de participants et enregistre les issues de trocs.
type TrustService struct {
	profiles  TrustProfileStore
	directory UserDirectory
}

func NewTrustService(profiles TrustProfileStore, directory UserDirectory) *TrustService {
	return &TrustService{profiles: profiles, directory: directory}
}

// ComputeScore est une fonction pure des champs du profil : même profil,
// même score, sans état caché.
func (s *TrustService) ComputeScore(p *models.TrustProfile) int {
	score := baselineScore

	total := p.SuccessfulTrades + p.FailedTrades + p.DisputedTrades
	if total > 0 {
		ratio := float64(p.SuccessfulTrades) / float64(total)
		score = int(ratio * successWeight)

		volume := p.SuccessfulTrades
		if volume > volumeBonusCap {
			volume = volumeBonusCap
		}
		score += volume
	}

	ageBonus := p.AccountAgeDays / ageBonusDivisor
	if ageBonus > ageBonusCap {
		ageBonus = ageBonusCap
	}
	score += ageBonus

	if p.VerifiedEmail {
		score += emailBonus
	}
	if p.VerifiedPhone {
		score += phoneBonus
	}

	score -= p.FailedTrades * failurePenalty
	score -= p.DisputedTrades * disputePenalty

	if score < MinTrustScore {
		score = MinTrustScore
	}
	if score > MaxTrustScore {
		score = MaxTrustScore
	}
	return score
}

// classifyScore dérive le palier individuel d'un score.
func classifyScore(score int) valueobject.RiskTier {
	switch {
	case score >= tierLowMinScore:
		return valueobject.RiskTierLow
	case score >= tierMediumMinScore:
		return valueobject.RiskTierMedium
	default:
		return valueobject.RiskTierHigh
	}
}

// ClassifyRisk retourne le palier de la paire (le plus sévère des deux)
// et l'ensemble de contraintes associé. Calculé une seule fois par troc
// puis figé : la dérive ultérieure des scores ne change pas un troc en
// cours.
func (s *TrustService) ClassifyRisk(scoreA, scoreB int) (valueobject.RiskTier, models.ConstraintList) {
	tier := valueobject.WorstTier(classifyScore(scoreA), classifyScore(scoreB))
	return tier, models.ConstraintList(valueobject.ConstraintsForTier(tier))
}

// loadProfile retourne le profil à jour d'un utilisateur : compteurs
// persistés, champs annuaire rafraîchis, score recalculé.
func (s *TrustService) loadProfile(ctx context.Context, userID uuid.UUID) (*models.TrustProfile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		p = &models.TrustProfile{UserID: userID}
	} else if err != nil {
		return nil, err
	}

	age, err := s.directory.GetAccountAgeDays(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trust service: annuaire indisponible pour %s: %w", userID, err)
	}
	email, err := s.directory.IsEmailVerified(ctx, userID)
	if err != nil {
		return nil, err
	}
	phone, err := s.directory.IsPhoneVerified(ctx, userID)
	if err != nil {
		return nil, err
	}

	p.AccountAgeDays = age
	p.VerifiedEmail = email
	p.VerifiedPhone = phone
	p.TrustScore = s.ComputeScore(p)
	return p, nil
}

// Score retourne le score courant d'un utilisateur.
func (s *TrustService) Score(ctx context.Context, userID uuid.UUID) (int, error) {
	p, err := s.loadProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.TrustScore, nil
}

// GetProfile retourne le profil recalculé et le persiste.
func (s *TrustService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.TrustProfile, error) {
	p, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordOutcome applique l'issue d'un troc aux deux profils et écrit le
// statut terminal, le tout dans une seule frontière transactionnelle.
//
// Politique de compteurs :
//   - completed : successful_trades +1 des deux côtés ; si un fautif est
//     désigné (litige tranché), il prend aussi disputed_trades +1 ;
//   - cancelled avec fautif : failed_trades +1 et disputed_trades +1
//     pour le fautif uniquement ;
//   - cancelled sans fautif : aucun compteur ne bouge, seul le statut
//     terminal est écrit.
func (s *TrustService) RecordOutcome(
	ctx context.Context,
	trade *models.Trade,
	expectedStatus, outcome valueobject.TradeStatus,
	faultyParty *uuid.UUID,
) error {
	if !outcome.IsTerminal() {
		return fmt.Errorf("trust service: issue non terminale %s", outcome)
	}
	if faultyParty != nil && !trade.IsParticipant(*faultyParty) {
		return fmt.Errorf("trust service: le fautif %s n'est pas participant du troc", *faultyParty)
	}

	profileA, err := s.loadProfile(ctx, trade.ParticipantA)
	if err != nil {
		return err
	}
	profileB, err := s.loadProfile(ctx, trade.ParticipantB)
	if err != nil {
		return err
	}

	apply := func(p *models.TrustProfile) {
		faulty := faultyParty != nil && *faultyParty == p.UserID
		switch outcome {
		case valueobject.TradeStatusCompleted:
			p.SuccessfulTrades++
			if faulty {
				p.DisputedTrades++
			}
		case valueobject.TradeStatusCancelled:
			if faulty {
				p.FailedTrades++
				p.DisputedTrades++
			}
		}
		p.TrustScore = s.ComputeScore(p)
	}
	apply(profileA)
	apply(profileB)

	return s.profiles.ApplyTradeOutcome(ctx, trade.ID, expectedStatus, outcome,
		[]*models.TrustProfile{profileA, profileB})
}
