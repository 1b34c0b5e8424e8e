package mocks

import (
	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockBusinessHoursRepo struct {
	mock.Mock
}

func (m *MockBusinessHoursRepo) GetByWeekday(weekday int) (*repository.BusinessHourRow, bool, error) {
	args := m.Called(weekday)

	row, _ := args.Get(0).(*repository.BusinessHourRow)
	return row, args.Bool(1), args.Error(2)
}

func (m *MockBusinessHoursRepo) GetAll() ([]repository.BusinessHourRow, error) {
	args := m.Called()

	rows, _ := args.Get(0).([]repository.BusinessHourRow)
	return rows, args.Error(1)
}

func (m *MockBusinessHoursRepo) Upsert(row *repository.BusinessHourRow) error {
	args := m.Called(row)
	return args.Error(0)
}
