package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
	"github.com/bernard777/cadok-backend-sub005/internal/logger"
	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
	"github.com/bernard777/cadok-backend-sub005/internal/repository"
	"github.com/bernard777/cadok-backend-sub005/internal/repository/common"
	"github.com/bernard777/cadok-backend-sub005/internal/validation"
)

// suffixAlphabet exclut les caractères ambigus (0/O, 1/I/L).
const suffixAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeSuffixLength  = 4
	maxCodeCollisions = 5
)

// RedirectionStore décrit la persistance des redirections.
type RedirectionStore interface {
	Create(ctx context.Context, rec *models.Redirection) error
	GetByCode(ctx context.Context, code string) (*models.Redirection, error)
	TryResolve(ctx context.Context, code string) (bool, error)
	ExpireStale(ctx context.Context) (int64, error)
	ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.Redirection, error)
}

// AddressCrypter chiffre et déchiffre les adresses de destination.
type AddressCrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// CarrierNotifier pousse l'adresse résolue vers le système de routage du
// transporteur. Optionnel : nil quand aucun transporteur n'est configuré.
type CarrierNotifier interface {
	NotifyResolved(ctx context.Context, code, destination string) error
}

// RedirectionService émet les codes de redirection anonymisée et les
// résout à la demande du transporteur. L'adresse réelle ne circule qu'au
// moment de la résolution, déchiffrée à la volée ; elle n'est jamais
// journalisée ni exposée aux participants.
type RedirectionService struct {
	store   RedirectionStore
	crypter AddressCrypter
	carrier CarrierNotifier

	prefix           string
	warehouseAddress string
	ttl              time.Duration

	// Cache des résolutions déjà effectuées : un transporteur qui rejoue
	// son webhook obtient l'adresse sans redéchiffrement ni renotification.
	// Les entrées plus vieilles que le TTL sont purgées par le balayage ;
	// un rejeu après purge repasse par la base, qui est elle aussi
	// idempotente.
	mu       sync.RWMutex
	resolved map[string]resolvedEntry
}

type resolvedEntry struct {
	destination string
	cachedAt    time.Time
}

func NewRedirectionService(
	store RedirectionStore,
	crypter AddressCrypter,
	carrier CarrierNotifier,
	prefix, warehouseAddress string,
	ttl time.Duration,
) *RedirectionService {
	return &RedirectionService{
		store:            store,
		crypter:          crypter,
		carrier:          carrier,
		prefix:           prefix,
		warehouseAddress: warehouseAddress,
		ttl:              ttl,
		resolved:         make(map[string]resolvedEntry),
	}
}

// CreateRedirection émet un code pour un sens d'envoi donné. L'adresse de
// destination est validée, chiffrée et stockée ; l'appelant ne reçoit que
// le code et l'adresse leurre.
func (s *RedirectionService) CreateRedirection(ctx context.Context, tradeID uuid.UUID, direction valueobject.TradeDirection, destination string) (*models.Redirection, error) {
	if !direction.IsValid() {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "sens d'envoi invalide: %s", direction)
	}
	if err := validation.ValidateAddress(destination); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	encrypted, err := s.crypter.Encrypt(destination)
	if err != nil {
		return nil, err
	}

	// La collision de code est improbable mais pas impossible : on
	// regénère un suffixe et on réessaie, borné.
	for attempt := 0; attempt < maxCodeCollisions; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, err
		}

		rec := &models.Redirection{
			Code:                 code,
			TradeID:              tradeID,
			Direction:            string(direction),
			EncryptedDestination: encrypted,
			DecoyAddress:         s.buildDecoyAddress(code),
			Status:               string(valueobject.RedirectionStatusPending),
			ExpiresAt:            time.Now().Add(s.ttl),
		}

		err = s.store.Create(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("redirection service: impossible de générer un code unique après %d tentatives", maxCodeCollisions)
}

// ResolveRedirection échange un code contre l'adresse réelle de
// destination. Idempotent : la première résolution notifie le
// transporteur, les suivantes retournent la même adresse sans
// renotifier. Un chiffré altéré fait échouer la résolution et laisse
// l'enregistrement en pending.
func (s *RedirectionService) ResolveRedirection(ctx context.Context, code string) (string, error) {
	if cached, ok := s.cachedResolution(code); ok {
		return cached, nil
	}

	rec, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrRedirectionNotFound) {
		return "", apperror.ErrRedirectionNotFound
	}
	if err != nil {
		return "", err
	}

	switch valueobject.RedirectionStatus(rec.Status) {
	case valueobject.RedirectionStatusExpired:
		return "", apperror.New(apperror.ErrCodeExpired, "code de redirection expiré")
	case valueobject.RedirectionStatusPending:
		if time.Now().After(rec.ExpiresAt) {
			return "", apperror.New(apperror.ErrCodeExpired, "code de redirection expiré")
		}
	}

	// Déchiffrement avant la bascule de statut : si le chiffré est
	// altéré, l'enregistrement reste pending et l'erreur d'intégrité est
	// remontée telle quelle.
	destination, err := s.crypter.Decrypt(rec.EncryptedDestination)
	if err != nil {
		return "", err
	}

	if valueobject.RedirectionStatus(rec.Status) == valueobject.RedirectionStatusResolved {
		s.cacheResolution(code, destination)
		return destination, nil
	}

	won, err := s.store.TryResolve(ctx, code)
	if err != nil {
		return "", err
	}

	if !won {
		// Course perdue : soit un appel concurrent a résolu le code, soit
		// le balayage l'a expiré entre la lecture et la bascule. On relit
		// pour trancher au lieu de supposer la résolution.
		rec, err = s.store.GetByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if valueobject.RedirectionStatus(rec.Status) != valueobject.RedirectionStatusResolved {
			return "", apperror.New(apperror.ErrCodeExpired, "code de redirection expiré")
		}
	}

	// Seul le gagnant du compare-and-set notifie le transporteur ; un
	// échec de notification n'invalide pas la résolution.
	if won && s.carrier != nil {
		if err := s.carrier.NotifyResolved(ctx, code, destination); err != nil && logger.Log != nil {
			logger.Log.WithField("code", code).Warnf("notification transporteur échouée: %v", err)
		}
	}

	s.cacheResolution(code, destination)
	return destination, nil
}

// GetRedirection retourne un enregistrement par code, sans le déchiffré.
func (s *RedirectionService) GetRedirection(ctx context.Context, code string) (*models.Redirection, error) {
	rec, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, repository.ErrRedirectionNotFound) {
		return nil, apperror.ErrRedirectionNotFound
	}
	return rec, err
}

// ListTradeRedirections retourne les redirections d'un troc.
func (s *RedirectionService) ListTradeRedirections(ctx context.Context, tradeID uuid.UUID) ([]models.Redirection, error) {
	return s.store.ListByTrade(ctx, tradeID)
}

// RunExpirySweep fait expirer périodiquement les codes pending échus,
// jusqu'à l'annulation du contexte.
func (s *RedirectionService) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pruneResolvedCache(time.Now().Add(-s.ttl))
			count, err := s.store.ExpireStale(ctx)
			if err != nil {
				if logger.Log != nil {
					logger.Log.Errorf("balayage d'expiration des redirections: %v", err)
				}
				continue
			}
			if count > 0 && logger.Log != nil {
				logger.Log.Infof("redirections expirées: %d", count)
			}
		}
	}
}

// generateCode produit un code lisible : préfixe, horodatage en base 36
// pour l'unicité temporelle, suffixe aléatoire contre les collisions dans
// la même milliseconde.
func (s *RedirectionService) generateCode() (string, error) {
	stamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))

	suffix := make([]byte, codeSuffixLength)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("redirection service: génération du suffixe: %w", err)
	}
	for i := range suffix {
		suffix[i] = suffixAlphabet[int(suffix[i])%len(suffixAlphabet)]
	}

	return fmt.Sprintf("%s-%s-%s", s.prefix, stamp, suffix), nil
}

// buildDecoyAddress insère le code en ligne "à l'attention de" juste
// après la raison sociale de l'entrepôt.
func (s *RedirectionService) buildDecoyAddress(code string) string {
	lines := strings.Split(s.warehouseAddress, "\n")
	attention := fmt.Sprintf("À l'attention de : %s", code)
	if len(lines) == 0 {
		return attention
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[0], attention)
	out = append(out, lines[1:]...)
	return strings.Join(out, "\n")
}

func (s *RedirectionService) cachedResolution(code string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.resolved[code]
	return entry.destination, ok
}

func (s *RedirectionService) cacheResolution(code, destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[code] = resolvedEntry{destination: destination, cachedAt: time.Now()}
}

// pruneResolvedCache retire les entrées mises en cache avant la date
// donnée. Borne la mémoire du cache sur la durée de vie du processus.
func (s *RedirectionService) pruneResolvedCache(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, entry := range s.resolved {
		if entry.cachedAt.Before(cutoff) {
			delete(s.resolved, code)
		}
	}
}
