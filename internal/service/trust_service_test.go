package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bernard777/cadok-backend-sub005/internal/domain/valueobject"
	"github.com/bernard777/cadok-backend-sub005/internal/models"
	"github.com/bernard777/cadok-backend-sub005/internal/repository"
)

type mockTrustProfileStore struct {
	mock.Mock
}

func (m *mockTrustProfileStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.TrustProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrustProfile), args.Error(1)
}

func (m *mockTrustProfileStore) Save(ctx context.Context, p *models.TrustProfile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockTrustProfileStore) ApplyTradeOutcome(ctx context.Context, tradeID uuid.UUID, expectedStatus, newStatus valueobject.TradeStatus, profiles []*models.TrustProfile) error {
	args := m.Called(ctx, tradeID, expectedStatus, newStatus, profiles)
	return args.Error(0)
}

type mockUserDirectory struct {
	mock.Mock
}

func (m *mockUserDirectory) GetAccountAgeDays(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockUserDirectory) IsEmailVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserDirectory) IsPhoneVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserDirectory) GetPostalAddress(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func stubDirectoryProfile(dir *mockUserDirectory, userID uuid.UUID, ageDays int, email, phone bool) {
	dir.On("GetAccountAgeDays", mock.Anything, userID).Return(ageDays, nil)
	dir.On("IsEmailVerified", mock.Anything, userID).Return(email, nil)
	dir.On("IsPhoneVerified", mock.Anything, userID).Return(phone, nil)
}

func TestTrustService_ComputeScore_NewAccount(t *testing.T) {
	svc := NewTrustService(nil, nil)

	p := &models.TrustProfile{}
	score := svc.ComputeScore(p)

	// Un compte vierge reste sous le seuil MEDIUM : ses premiers trocs
	// passent par la vérification complète.
	assert.Equal(t, baselineScore, score)
	assert.Equal(t, valueobject.RiskTierHigh, classifyScore(score))
}

func TestTrustService_ComputeScore_EstablishedAccount(t *testing.T) {
	svc := NewTrustService(nil, nil)

	p := &models.TrustProfile{
		SuccessfulTrades: 20,
		AccountAgeDays:   400,
		VerifiedEmail:    true,
		VerifiedPhone:    true,
	}
	score := svc.ComputeScore(p)

	assert.GreaterOrEqual(t, score, tierLowMinScore)
	assert.Equal(t, valueobject.RiskTierLow, classifyScore(score))
}

func TestTrustService_ComputeScore_FloorAtZero(t *testing.T) {
	svc := NewTrustService(nil, nil)

	p := &models.TrustProfile{
		FailedTrades:   10,
		DisputedTrades: 10,
	}
	assert.Equal(t, MinTrustScore, svc.ComputeScore(p))
}

func TestTrustService_ComputeScore_AlwaysBounded(t *testing.T) {
	svc := NewTrustService(nil, nil)

	for _, p := range []*models.TrustProfile{
		{},
		{SuccessfulTrades: 1000, AccountAgeDays: 10000, VerifiedEmail: true, VerifiedPhone: true},
		{FailedTrades: 1000, DisputedTrades: 1000},
		{SuccessfulTrades: 3, FailedTrades: 2, DisputedTrades: 1, AccountAgeDays: 90},
	} {
		score := svc.ComputeScore(p)
		assert.GreaterOrEqual(t, score, MinTrustScore)
		assert.LessOrEqual(t, score, MaxTrustScore)
	}
}

func TestTrustService_ComputeScore_SuccessImproves(t *testing.T) {
	svc := NewTrustService(nil, nil)

	base := &models.TrustProfile{SuccessfulTrades: 5, FailedTrades: 1}
	better := &models.TrustProfile{SuccessfulTrades: 6, FailedTrades: 1}

	assert.Greater(t, svc.ComputeScore(better), svc.ComputeScore(base))
}

func TestTrustService_ComputeScore_DisputeHurtsMoreThanFailure(t *testing.T) {
	svc := NewTrustService(nil, nil)

	withFailure := &models.TrustProfile{SuccessfulTrades: 10, FailedTrades: 1}
	withDispute := &models.TrustProfile{SuccessfulTrades: 10, DisputedTrades: 1}

	assert.Greater(t, svc.ComputeScore(withFailure), svc.ComputeScore(withDispute))
}

func TestTrustService_ClassifyRisk_WorstOfPair(t *testing.T) {
	svc := NewTrustService(nil, nil)

	tier, constraints := svc.ClassifyRisk(95, 30)
	assert.Equal(t, valueobject.RiskTierHigh, tier)
	assert.Len(t, constraints, 3)

	tier, constraints = svc.ClassifyRisk(95, 60)
	assert.Equal(t, valueobject.RiskTierMedium, tier)
	assert.Equal(t, models.ConstraintList{valueobject.ConstraintTracking}, constraints)

	tier, constraints = svc.ClassifyRisk(95, 85)
	assert.Equal(t, valueobject.RiskTierLow, tier)
	assert.Empty(t, constraints)
}

func TestTrustService_Score_UnknownUserGetsBaseline(t *testing.T) {
	profiles := new(mockTrustProfileStore)
	directory := new(mockUserDirectory)
	svc := NewTrustService(profiles, directory)
	ctx := context.Background()

	userID := uuid.New()
	profiles.On("GetByUserID", ctx, userID).Return(nil, repository.ErrProfileNotFound)
	stubDirectoryProfile(directory, userID, 0, false, false)

	score, err := svc.Score(ctx, userID)
	assert.NoError(t, err)
	assert.Equal(t, baselineScore, score)
}

func TestTrustService_Score_DirectoryUnavailable(t *testing.T) {
	profiles := new(mockTrustProfileStore)
	directory := new(mockUserDirectory)
	svc := NewTrustService(profiles, directory)
	ctx := context.Background()

	userID := uuid.New()
	profiles.On("GetByUserID", ctx, userID).Return(nil, repository.ErrProfileNotFound)
	directory.On("GetAccountAgeDays", ctx, userID).Return(0, assert.AnError)

	_, err := svc.Score(ctx, userID)
	assert.Error(t, err)
}

func TestTrustService_RecordOutcome_Completed(t *testing.T) {
	profiles := new(mockTrustProfileStore)
	directory := new(mockUserDirectory)
	svc := NewTrustService(profiles, directory)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	trade := &models.Trade{ID: uuid.New(), ParticipantA: userA, ParticipantB: userB}

	profiles.On("GetByUserID", ctx, userA).Return(&models.TrustProfile{UserID: userA, SuccessfulTrades: 4}, nil)
	profiles.On("GetByUserID", ctx, userB).Return(&models.TrustProfile{UserID: userB, SuccessfulTrades: 7}, nil)
	stubDirectoryProfile(directory, userA, 200, true, false)
	stubDirectoryProfile(directory, userB, 300, true, true)

	profiles.On("ApplyTradeOutcome", ctx, trade.ID,
		valueobject.TradeStatusDelivered, valueobject.TradeStatusCompleted,
		mock.MatchedBy(func(ps []*models.TrustProfile) bool {
			return len(ps) == 2 &&
				ps[0].SuccessfulTrades == 5 &&
				ps[1].SuccessfulTrades == 8 &&
				ps[0].DisputedTrades == 0
		})).Return(nil)

	err := svc.RecordOutcome(ctx, trade, valueobject.TradeStatusDelivered, valueobject.TradeStatusCompleted, nil)
	assert.NoError(t, err)
	profiles.AssertExpectations(t)
}

func TestTrustService_RecordOutcome_CancelledWithFaultyParty(t *testing.T) {
	profiles := new(mockTrustProfileStore)
	directory := new(mockUserDirectory)
	svc := NewTrustService(profiles, directory)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	trade := &models.Trade{ID: uuid.New(), ParticipantA: userA, ParticipantB: userB}

	profiles.On("GetByUserID", ctx, userA).Return(&models.TrustProfile{UserID: userA}, nil)
	profiles.On("GetByUserID", ctx, userB).Return(&models.TrustProfile{UserID: userB}, nil)
	stubDirectoryProfile(directory, userA, 30, false, false)
	stubDirectoryProfile(directory, userB, 30, false, false)

	profiles.On("ApplyTradeOutcome", ctx, trade.ID,
		valueobject.TradeStatusDisputed, valueobject.TradeStatusCancelled,
		mock.MatchedBy(func(ps []*models.TrustProfile) bool {
			// Seul le fautif prend les compteurs d'échec et de litige.
			return ps[0].FailedTrades == 0 && ps[0].DisputedTrades == 0 &&
				ps[1].FailedTrades == 1 && ps[1].DisputedTrades == 1
		})).Return(nil)

	err := svc.RecordOutcome(ctx, trade, valueobject.TradeStatusDisputed, valueobject.TradeStatusCancelled, &userB)
	assert.NoError(t, err)
	profiles.AssertExpectations(t)
}

func TestTrustService_RecordOutcome_SingleTransactionalWrite(t *testing.T) {
	profiles := new(mockTrustProfileStore)
	directory := new(mockUserDirectory)
	svc := NewTrustService(profiles, directory)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	trade := &models.Trade{ID: uuid.New(), ParticipantA: userA, ParticipantB: userB}

	profiles.On("GetByUserID", ctx, userA).Return(&models.TrustProfile{UserID: userA}, nil)
	profiles.On("GetByUserID", ctx, userB).Return(&models.TrustProfile{UserID: userB}, nil)
	stubDirectoryProfile(directory, userA, 10, false, false)
	stubDirectoryProfile(directory, userB, 10, false, false)

	profiles.On("ApplyTradeOutcome", ctx, trade.ID,
		valueobject.TradeStatusDelivered, valueobject.TradeStatusCompleted,
		mock.MatchedBy(func(ps []*models.TrustProfile) bool {
			// Les deux profils partent dans le même appel transactionnel.
			return len(ps) == 2 && ps[0].UserID == userA && ps[1].UserID == userB
		})).Return(assert.AnError)

	err := svc.RecordOutcome(ctx, trade, valueobject.TradeStatusDelivered, valueobject.TradeStatusCompleted, nil)
	assert.Error(t, err)

	// Tout ou rien : aucune écriture de profil hors de la transaction, un
	// échec ne peut pas laisser un profil mis à jour et l'autre non.
	profiles.AssertNumberOfCalls(t, "ApplyTradeOutcome", 1)
	profiles.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTrustService_RecordOutcome_RejectsNonTerminalOutcome(t *testing.T) {
	svc := NewTrustService(new(mockTrustProfileStore), new(mockUserDirectory))

	trade := &models.Trade{ID: uuid.New(), ParticipantA: uuid.New(), ParticipantB: uuid.New()}
	err := svc.RecordOutcome(context.Background(), trade,
		valueobject.TradeStatusDelivered, valueobject.TradeStatusShippingPending, nil)
	assert.Error(t, err)
}

func TestTrustService_RecordOutcome_RejectsForeignFaultyParty(t *testing.T) {
	svc := NewTrustService(new(mockTrustProfileStore), new(mockUserDirectory))

	trade := &models.Trade{ID: uuid.New(), ParticipantA: uuid.New(), ParticipantB: uuid.New()}
	stranger := uuid.New()
	err := svc.RecordOutcome(context.Background(), trade,
		valueobject.TradeStatusDisputed, valueobject.TradeStatusCancelled, &stranger)
	assert.Error(t, err)
}
