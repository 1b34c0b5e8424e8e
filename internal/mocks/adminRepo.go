package mocks

import (
	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

type MockAdminRepo struct {
	mock.Mock
}

func (m *MockAdminRepo) Insert(admin *repository.AdminUser, tx *sqlx.Tx) (string, error) {
	return "", nil
}

func (m *MockAdminRepo) GetOne(id string) (*repository.AdminUser, bool, error) {
	args := m.Called(id)

	admin, _ := args.Get(0).(*repository.AdminUser)
	return admin, args.Bool(1), args.Error(2)
}

func (m *MockAdminRepo) GetByEmail(email string) (*repository.AdminUser, bool, error) {
	args := m.Called(email)

	admin, _ := args.Get(0).(*repository.AdminUser)
	return admin, args.Bool(1), args.Error(2)
}
