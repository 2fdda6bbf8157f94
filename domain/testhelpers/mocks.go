package testhelpers

import (
	"context"
	"math/big"
	"time"

	"lottoclaim/domain/entities"
	"lottoclaim/domain/events"
	"lottoclaim/domain/interfaces"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockLedgerLogSource is a mock implementation of LedgerLogSource
type MockLedgerLogSource struct {
	mock.Mock
}

func (m *MockLedgerLogSource) LatestBlock(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockLedgerLogSource) FetchEvents(ctx context.Context, player common.Address, fromBlock, toBlock uint64) ([]*entities.RawEvent, error) {
	args := m.Called(ctx, player, fromBlock, toBlock)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.RawEvent), args.Error(1)
}

func (m *MockLedgerLogSource) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	args := m.Called(ctx, blockNumber)
	return args.Get(0).(time.Time), args.Error(1)
}

// MockLedgerReader is a mock implementation of LedgerReader
type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) GetRound(ctx context.Context, roundID uint64) (*entities.RoundRecord, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RoundRecord), args.Error(1)
}

func (m *MockLedgerReader) PlayerTickets(ctx context.Context, roundID uint64, player common.Address) ([]*entities.Ticket, error) {
	args := m.Called(ctx, roundID, player)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Ticket), args.Error(1)
}

func (m *MockLedgerReader) HasClaimed(ctx context.Context, roundID uint64, player common.Address) (bool, error) {
	args := m.Called(ctx, roundID, player)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerReader) ClaimableWinnings(ctx context.Context, roundID uint64, player common.Address) (*big.Int, error) {
	args := m.Called(ctx, roundID, player)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockLedgerReader) CurrentRound(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

// MockClaimSubmitter is a mock implementation of ClaimSubmitter
type MockClaimSubmitter struct {
	mock.Mock
}

func (m *MockClaimSubmitter) Sender() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

func (m *MockClaimSubmitter) SimulateClaim(ctx context.Context, roundIDs []uint64) error {
	args := m.Called(ctx, roundIDs)
	return args.Error(0)
}

func (m *MockClaimSubmitter) SubmitClaim(ctx context.Context, roundIDs []uint64) (common.Hash, error) {
	args := m.Called(ctx, roundIDs)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockClaimSubmitter) AwaitConfirmation(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error) {
	args := m.Called(ctx, txRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ClaimConfirmation), args.Error(1)
}

func (m *MockClaimSubmitter) ReceiptStatus(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error) {
	args := m.Called(ctx, txRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ClaimConfirmation), args.Error(1)
}

// MockClaimReceiptRepository is a mock implementation of ClaimReceiptRepository
type MockClaimReceiptRepository struct {
	mock.Mock
}

func (m *MockClaimReceiptRepository) GetAll(ctx context.Context) (map[uint64]*entities.ClaimReceipt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint64]*entities.ClaimReceipt), args.Error(1)
}

func (m *MockClaimReceiptRepository) Save(ctx context.Context, receipts []*entities.ClaimReceipt) error {
	args := m.Called(ctx, receipts)
	return args.Error(0)
}

func (m *MockClaimReceiptRepository) Delete(ctx context.Context, roundIDs []uint64) error {
	args := m.Called(ctx, roundIDs)
	return args.Error(0)
}

// MockClaimReceiptStore returns the same repository mock for every player
type MockClaimReceiptStore struct {
	mock.Mock
}

func (m *MockClaimReceiptStore) ForPlayer(player common.Address) interfaces.ClaimReceiptRepository {
	args := m.Called(player)
	return args.Get(0).(interfaces.ClaimReceiptRepository)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockReconciliationService is a mock implementation of ReconciliationService
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Reconcile(ctx context.Context, player common.Address) (*entities.ReconciliationSnapshot, error) {
	args := m.Called(ctx, player)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ReconciliationSnapshot), args.Error(1)
}

func (m *MockReconciliationService) PrepareClaim(ctx context.Context, player common.Address, prior *entities.ReconciliationSnapshot, roundIDs []uint64) ([]entities.ClaimSelection, *entities.ReconciliationSnapshot, error) {
	args := m.Called(ctx, player, prior, roundIDs)
	var selections []entities.ClaimSelection
	if v := args.Get(0); v != nil {
		selections = v.([]entities.ClaimSelection)
	}
	var snap *entities.ReconciliationSnapshot
	if v := args.Get(1); v != nil {
		snap = v.(*entities.ReconciliationSnapshot)
	}
	return selections, snap, args.Error(2)
}

// MockBatchClaimOrchestrator is a mock implementation of BatchClaimOrchestrator
type MockBatchClaimOrchestrator struct {
	mock.Mock
}

func (m *MockBatchClaimOrchestrator) ClaimRounds(ctx context.Context, player common.Address, selections []entities.ClaimSelection) (*entities.ClaimReport, error) {
	args := m.Called(ctx, player, selections)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ClaimReport), args.Error(1)
}

func (m *MockBatchClaimOrchestrator) ClaimRound(ctx context.Context, player common.Address, roundID uint64) (*entities.ClaimReport, error) {
	args := m.Called(ctx, player, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ClaimReport), args.Error(1)
}

func (m *MockBatchClaimOrchestrator) CheckSubmitted(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error) {
	args := m.Called(ctx, txRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ClaimConfirmation), args.Error(1)
}
