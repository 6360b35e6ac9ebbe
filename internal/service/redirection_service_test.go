package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bernard777/cadok-backend-sub005/internal/crypto"
	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/pkg/apperror"
	"github.com/bernard777/cadok-backend-sub005/internal/repository"
	"github.com/bernard777/cadok-backend-sub005/internal/repository/common"
)

const testWarehouse = "Plateforme CADOK\n15 rue de la Logistique\n69002 Lyon\nFrance"

type mockRedirectionStore struct {
	mock.Mock
}

func (m *mockRedirectionStore) Create(ctx context.Context, rec *models.Redirection) error {
	args := m.Called(ctx, rec)
	if args.Error(0) == nil {
		rec.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockRedirectionStore) GetByCode(ctx context.Context, code string) (*models.Redirection, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Redirection), args.Error(1)
}

func (m *mockRedirectionStore) TryResolve(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockRedirectionStore) ExpireStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRedirectionStore) ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.Redirection, error) {
	args := m.Called(ctx, tradeID)
	return args.Get(0).([]models.Redirection), args.Error(1)
}

type mockCarrierNotifier struct {
	mock.Mock
}

func (m *mockCarrierNotifier) NotifyResolved(ctx context.Context, code, destination string) error {
	args := m.Called(ctx, code, destination)
	return args.Error(0)
}

func newTestCipher(t *testing.T) *crypto.AddressCipher {
	t.Helper()
	cipher, err := crypto.NewAddressCipher("une-cle-maitresse-de-test-suffisamment-longue")
	assert.NoError(t, err)
	return cipher
}

func newRedirectionService(t *testing.T, store RedirectionStore, carrier CarrierNotifier) *RedirectionService {
	t.Helper()
	return NewRedirectionService(store, newTestCipher(t), carrier, "CADOK", testWarehouse, 30*24*time.Hour)
}

func TestRedirectionService_CreateRedirection(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)
	ctx := context.Background()

	tradeID := uuid.New()
	store.On("Create", ctx, mock.AnythingOfType("*models.Redirection")).Return(nil)

	rec, err := svc.CreateRedirection(ctx, tradeID, valueobject.DirectionAToB, "2 place Bellecour, 69002 Lyon")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.Code, "CADOK-"))
	assert.Equal(t, string(valueobject.RedirectionStatusPending), rec.Status)
	assert.Equal(t, tradeID, rec.TradeID)

	// L'adresse réelle n'apparaît nulle part en clair dans l'enregistrement.
	assert.NotContains(t, rec.EncryptedDestination, "Bellecour")
	assert.NotContains(t, rec.DecoyAddress, "Bellecour")

	// L'adresse leurre porte le code en deuxième ligne.
	lines := strings.Split(rec.DecoyAddress, "\n")
	assert.Equal(t, "Plateforme CADOK", lines[0])
	assert.Equal(t, "À l'attention de : "+rec.Code, lines[1])
}

func TestRedirectionService_CreateRedirection_CodesAreUnique(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)
	ctx := context.Background()

	store.On("Create", ctx, mock.AnythingOfType("*models.Redirection")).Return(nil)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec, err := svc.CreateRedirection(ctx, uuid.New(), valueobject.DirectionAToB, "8 rue des Canuts, 69004 Lyon")
		assert.NoError(t, err)
		assert.False(t, seen[rec.Code], "code dupliqué: %s", rec.Code)
		seen[rec.Code] = true
	}
}

func TestRedirectionService_CreateRedirection_RetriesOnCollision(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)
	ctx := context.Background()

	store.On("Create", ctx, mock.AnythingOfType("*models.Redirection")).Return(common.ErrAlreadyExists).Twice()
	store.On("Create", ctx, mock.AnythingOfType("*models.Redirection")).Return(nil).Once()

	rec, err := svc.CreateRedirection(ctx, uuid.New(), valueobject.DirectionBToA, "8 rue des Canuts, 69004 Lyon")
	assert.NoError(t, err)
	assert.NotEmpty(t, rec.Code)
	store.AssertNumberOfCalls(t, "Create", 3)
}

func TestRedirectionService_CreateRedirection_GivesUpAfterMaxCollisions(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)
	ctx := context.Background()

	store.On("Create", ctx, mock.AnythingOfType("*models.Redirection")).Return(common.ErrAlreadyExists)

	_, err := svc.CreateRedirection(ctx, uuid.New(), valueobject.DirectionAToB, "8 rue des Canuts, 69004 Lyon")
	assert.Error(t, err)
	store.AssertNumberOfCalls(t, "Create", maxCodeCollisions)
}

func TestRedirectionService_CreateRedirection_InvalidAddress(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)

	_, err := svc.CreateRedirection(context.Background(), uuid.New(), valueobject.DirectionAToB, "rue sans numero")
	assert.True(t, apperror.IsValidation(err))
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRedirectionService_ResolveRedirection_HappyPath(t *testing.T) {
	store := new(mockRedirectionStore)
	carrier := new(mockCarrierNotifier)
	svc := newRedirectionService(t, store, carrier)
	ctx := context.Background()

	cipher := newTestCipher(t)
	destination := "2 place Bellecour, 69002 Lyon"
	encrypted, err := cipher.Encrypt(destination)
	assert.NoError(t, err)

	rec := &models.Redirection{
		Code:                 "CADOK-TEST-AAAA",
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusPending),
		ExpiresAt:            time.Now().Add(time.Hour),
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil)
	store.On("TryResolve", ctx, rec.Code).Return(true, nil)
	carrier.On("NotifyResolved", ctx, rec.Code, destination).Return(nil)

	got, err := svc.ResolveRedirection(ctx, rec.Code)
	assert.NoError(t, err)
	assert.Equal(t, destination, got)
	carrier.AssertNumberOfCalls(t, "NotifyResolved", 1)
}

func TestRedirectionService_ResolveRedirection_ReplayNotifiesOnce(t *testing.T) {
	store := new(mockRedirectionStore)
	carrier := new(mockCarrierNotifier)
	svc := newRedirectionService(t, store, carrier)
	ctx := context.Background()

	cipher := newTestCipher(t)
	destination := "2 place Bellecour, 69002 Lyon"
	encrypted, err := cipher.Encrypt(destination)
	assert.NoError(t, err)

	rec := &models.Redirection{
		Code:                 "CADOK-TEST-BBBB",
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusPending),
		ExpiresAt:            time.Now().Add(time.Hour),
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil)
	store.On("TryResolve", ctx, rec.Code).Return(true, nil)
	carrier.On("NotifyResolved", ctx, rec.Code, destination).Return(nil)

	// Le transporteur rejoue son webhook : même adresse, une seule
	// notification, aucune relecture en base.
	for i := 0; i < 3; i++ {
		got, err := svc.ResolveRedirection(ctx, rec.Code)
		assert.NoError(t, err)
		assert.Equal(t, destination, got)
	}
	store.AssertNumberOfCalls(t, "GetByCode", 1)
	carrier.AssertNumberOfCalls(t, "NotifyResolved", 1)
}

func TestRedirectionService_ResolveRedirection_LoserOfRaceDoesNotNotify(t *testing.T) {
	store := new(mockRedirectionStore)
	carrier := new(mockCarrierNotifier)
	svc := newRedirectionService(t, store, carrier)
	ctx := context.Background()

	cipher := newTestCipher(t)
	destination := "8 rue des Canuts, 69004 Lyon"
	encrypted, err := cipher.Encrypt(destination)
	assert.NoError(t, err)

	rec := &models.Redirection{
		Code:                 "CADOK-TEST-CCCC",
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusPending),
		ExpiresAt:            time.Now().Add(time.Hour),
	}
	resolvedRec := &models.Redirection{
		Code:                 rec.Code,
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusResolved),
		ExpiresAt:            rec.ExpiresAt,
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil).Once()
	// Un appel concurrent a gagné le compare-and-set ; la relecture voit
	// l'enregistrement résolu.
	store.On("TryResolve", ctx, rec.Code).Return(false, nil)
	store.On("GetByCode", ctx, rec.Code).Return(resolvedRec, nil).Once()

	got, err := svc.ResolveRedirection(ctx, rec.Code)
	assert.NoError(t, err)
	assert.Equal(t, destination, got)
	carrier.AssertNotCalled(t, "NotifyResolved", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedirectionService_ResolveRedirection_LostRaceToExpirySweep(t *testing.T) {
	store := new(mockRedirectionStore)
	carrier := new(mockCarrierNotifier)
	svc := newRedirectionService(t, store, carrier)
	ctx := context.Background()

	cipher := newTestCipher(t)
	encrypted, err := cipher.Encrypt("8 rue des Canuts, 69004 Lyon")
	assert.NoError(t, err)

	rec := &models.Redirection{
		Code:                 "CADOK-TEST-HHHH",
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusPending),
		ExpiresAt:            time.Now().Add(time.Minute),
	}
	expiredRec := &models.Redirection{
		Code:   rec.Code,
		Status: string(valueobject.RedirectionStatusExpired),
	}
	// Le balayage expire le code entre la lecture et la bascule : la
	// relecture voit expired, pas resolved.
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil).Once()
	store.On("TryResolve", ctx, rec.Code).Return(false, nil)
	store.On("GetByCode", ctx, rec.Code).Return(expiredRec, nil).Once()

	_, err = svc.ResolveRedirection(ctx, rec.Code)
	assert.True(t, apperror.IsExpired(err))
	carrier.AssertNotCalled(t, "NotifyResolved", mock.Anything, mock.Anything, mock.Anything)

	// L'adresse n'a pas été mise en cache : un rejeu repasse par la base.
	store.On("GetByCode", ctx, rec.Code).Return(expiredRec, nil).Once()
	_, err = svc.ResolveRedirection(ctx, rec.Code)
	assert.True(t, apperror.IsExpired(err))
}

func TestRedirectionService_ResolveRedirection_UnknownCode(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)
	ctx := context.Background()

	store.On("GetByCode", ctx, "CADOK-NOPE-XXXX").Return(nil, repository.ErrRedirectionNotFound)

	_, err := svc.ResolveRedirection(ctx, "CADOK-NOPE-XXXX")
	assert.True(t, apperror.IsNotFound(err))
}

func TestRedirectionService_ResolveRedirection_ExpiredCode(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)
	ctx := context.Background()

	rec := &models.Redirection{
		Code:   "CADOK-OLD-DDDD",
		Status: string(valueobject.RedirectionStatusExpired),
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil)

	_, err := svc.ResolveRedirection(ctx, rec.Code)
	assert.True(t, apperror.IsExpired(err))
}

func TestRedirectionService_ResolveRedirection_PendingPastDeadline(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)
	ctx := context.Background()

	cipher := newTestCipher(t)
	encrypted, err := cipher.Encrypt("2 place Bellecour, 69002 Lyon")
	assert.NoError(t, err)

	// Échu mais pas encore vu par le balayage : refusé quand même.
	rec := &models.Redirection{
		Code:                 "CADOK-OLD-EEEE",
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusPending),
		ExpiresAt:            time.Now().Add(-time.Minute),
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil)

	_, err = svc.ResolveRedirection(ctx, rec.Code)
	assert.True(t, apperror.IsExpired(err))
}

func TestRedirectionService_ResolveRedirection_TamperedCiphertextStaysPending(t *testing.T) {
	store := new(mockRedirectionStore)
	carrier := new(mockCarrierNotifier)
	svc := newRedirectionService(t, store, carrier)
	ctx := context.Background()

	rec := &models.Redirection{
		Code:                 "CADOK-BAD-FFFF",
		EncryptedDestination: "pas-un-chiffre-valide",
		Status:               string(valueobject.RedirectionStatusPending),
		ExpiresAt:            time.Now().Add(time.Hour),
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil)

	_, err := svc.ResolveRedirection(ctx, rec.Code)
	assert.True(t, apperror.IsIntegrity(err))
	// L'enregistrement reste pending : pas de bascule, pas de notification.
	store.AssertNotCalled(t, "TryResolve", mock.Anything, mock.Anything)
	carrier.AssertNotCalled(t, "NotifyResolved", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedirectionService_ResolveRedirection_AlreadyResolvedInBase(t *testing.T) {
	store := new(mockRedirectionStore)
	carrier := new(mockCarrierNotifier)
	svc := newRedirectionService(t, store, carrier)
	ctx := context.Background()

	cipher := newTestCipher(t)
	destination := "8 rue des Canuts, 69004 Lyon"
	encrypted, err := cipher.Encrypt(destination)
	assert.NoError(t, err)

	resolvedAt := time.Now().Add(-time.Hour)
	rec := &models.Redirection{
		Code:                 "CADOK-DONE-GGGG",
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusResolved),
		ResolvedAt:           &resolvedAt,
		ExpiresAt:            time.Now().Add(time.Hour),
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil)

	got, err := svc.ResolveRedirection(ctx, rec.Code)
	assert.NoError(t, err)
	assert.Equal(t, destination, got)
	store.AssertNotCalled(t, "TryResolve", mock.Anything, mock.Anything)
	carrier.AssertNotCalled(t, "NotifyResolved", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedirectionService_ResolvedCacheIsPruned(t *testing.T) {
	store := new(mockRedirectionStore)
	carrier := new(mockCarrierNotifier)
	svc := newRedirectionService(t, store, carrier)
	ctx := context.Background()

	cipher := newTestCipher(t)
	destination := "2 place Bellecour, 69002 Lyon"
	encrypted, err := cipher.Encrypt(destination)
	assert.NoError(t, err)

	rec := &models.Redirection{
		Code:                 "CADOK-TEST-JJJJ",
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusPending),
		ExpiresAt:            time.Now().Add(time.Hour),
	}
	store.On("GetByCode", ctx, rec.Code).Return(rec, nil).Once()
	store.On("TryResolve", ctx, rec.Code).Return(true, nil)
	carrier.On("NotifyResolved", ctx, rec.Code, destination).Return(nil)

	_, err = svc.ResolveRedirection(ctx, rec.Code)
	assert.NoError(t, err)

	svc.pruneResolvedCache(time.Now().Add(time.Second))

	// Après purge, le rejeu repasse par la base : même adresse, toujours
	// une seule notification.
	resolvedRec := &models.Redirection{
		Code:                 rec.Code,
		EncryptedDestination: encrypted,
		Status:               string(valueobject.RedirectionStatusResolved),
		ExpiresAt:            rec.ExpiresAt,
	}
	store.On("GetByCode", ctx, rec.Code).Return(resolvedRec, nil).Once()

	got, err := svc.ResolveRedirection(ctx, rec.Code)
	assert.NoError(t, err)
	assert.Equal(t, destination, got)
	store.AssertNumberOfCalls(t, "GetByCode", 2)
	carrier.AssertNumberOfCalls(t, "NotifyResolved", 1)
}

func TestRedirectionService_RunExpirySweep(t *testing.T) {
	store := new(mockRedirectionStore)
	svc := newRedirectionService(t, store, nil)

	store.On("ExpireStale", mock.Anything).Return(int64(2), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	svc.RunExpirySweep(ctx, 10*time.Millisecond)

	store.AssertCalled(t, "ExpireStale", mock.Anything)
}
