package mocks

import (
	"time"

	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type MockWithdrawalRepo struct {
	mock.Mock
}

func (m *MockWithdrawalRepo) Insert(request *repository.WithdrawalRequest, tx *sqlx.Tx) (string, error) {
	args := m.Called(request)
	return args.String(0), args.Error(1)
}

func (m *MockWithdrawalRepo) GetOne(id string) (*repository.WithdrawalRequest, bool, error) {
	args := m.Called(id)

	request, _ := args.Get(0).(*repository.WithdrawalRequest)
	return request, args.Bool(1), args.Error(2)
}

func (m *MockWithdrawalRepo) GetOneForUpdate(tx *sqlx.Tx, id string) (*repository.WithdrawalRequest, bool, error) {
	args := m.Called(id)

	request, _ := args.Get(0).(*repository.WithdrawalRequest)
	return request, args.Bool(1), args.Error(2)
}

func (m *MockWithdrawalRepo) MarkProcessed(tx *sqlx.Tx, id, status, adminID, notes, transactionHash, blockchainHash string) error {
	args := m.Called(id, status, adminID)
	return args.Error(0)
}

func (m *MockWithdrawalRepo) MarkCancelled(id string, tx *sqlx.Tx) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockWithdrawalRepo) PendingForDate(date time.Time, limit int) ([]repository.WithdrawalRequest, error) {
	args := m.Called(date, limit)

	requests, _ := args.Get(0).([]repository.WithdrawalRequest)
	return requests, args.Error(1)
}
