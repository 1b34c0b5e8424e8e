package mocks

import (
	"time"

	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type MockQueueRepo struct {
	mock.Mock
}

func (m *MockQueueRepo) Insert(entry *repository.QueueEntry, tx *sqlx.Tx) (string, error) {
	args := m.Called(entry)
	return args.String(0), args.Error(1)
}

func (m *MockQueueRepo) NextPosition(tx *sqlx.Tx, date time.Time) (int, error) {
	args := m.Called(date)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueRepo) GetByRequestID(requestID string) (*repository.QueueEntry, bool, error) {
	args := m.Called(requestID)

	entry, _ := args.Get(0).(*repository.QueueEntry)
	return entry, args.Bool(1), args.Error(2)
}

func (m *MockQueueRepo) MarkCompleted(tx *sqlx.Tx, requestID, adminID string) error {
	args := m.Called(requestID, adminID)
	return args.Error(0)
}

func (m *MockQueueRepo) MarkCancelled(requestID string, tx *sqlx.Tx) error {
	args := m.Called(requestID)
	return args.Error(0)
}
