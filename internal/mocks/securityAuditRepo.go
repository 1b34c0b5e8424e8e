package mocks

import (
	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockSecurityAuditRepo struct {
	mock.Mock
}

func (m *MockSecurityAuditRepo) Insert(entry *repository.SecurityAuditEntry) (string, error) {
	args := m.Called(entry)
	return args.String(0), args.Error(1)
}
