package mocks

import (
	"context"

	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

// MockBalanceService stands in for the ledger in scheduler tests.
type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) GetBalance(ctx context.Context, userID string, meta ledger.RequestMeta) (*repository.BalanceRecord, error) {
	args := m.Called(userID)

	record, _ := args.Get(0).(*repository.BalanceRecord)
	return record, args.Error(1)
}

func (m *MockBalanceService) GetBalanceForUpdate(ctx context.Context, tx *sqlx.Tx, userID string) (*repository.BalanceRecord, bool, error) {
	args := m.Called(userID)

	record, _ := args.Get(0).(*repository.BalanceRecord)
	return record, args.Bool(1), args.Error(2)
}

func (m *MockBalanceService) UpdateBalance(ctx context.Context, p ledger.UpdateBalanceParams) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockBalanceService) VerifyIntegrity(ctx context.Context, userID string, meta ledger.RequestMeta) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

func (m *MockBalanceService) LogTransaction(ctx context.Context, p ledger.TransactionLogParams) (string, error) {
	args := m.Called(p)
	return args.String(0), args.Error(1)
}

func (m *MockBalanceService) LogSecurityEvent(ctx context.Context, eventType, userID, adminID string, details map[string]any, severity string, meta ledger.RequestMeta) {
	m.Called(eventType, userID, adminID, severity)
}
