package scheduler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kehindemorol/vestra/internal/mocks"
	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// 2025-03-10 is a Monday.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func weekdayRow(weekday, start, end int) *repository.BusinessHourRow {
	return &repository.BusinessHourRow{
		Weekday:   weekday,
		StartHour: start,
		EndHour:   end,
		IsActive:  true,
	}
}

func TestIsWithinBusinessHours_WindowBoundaries(t *testing.T) {
	repo := new(mocks.MockBusinessHoursRepo)
	repo.On("GetByWeekday", 1).Return(weekdayRow(1, 9, 16), true, nil)

	table := NewHoursTable(repo, nil, discardLogger())

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", mondayAt(8, 59), false},
		{"at open", mondayAt(9, 0), true},
		{"mid window", mondayAt(12, 30), true},
		{"last minute", mondayAt(15, 59), true},
		{"at close", mondayAt(16, 0), false},
		{"after close", mondayAt(20, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			within, err := table.IsWithinBusinessHours(tc.at)
			require.NoError(t, err)
			require.Equal(t, tc.want, within)
		})
	}
}

func TestIsWithinBusinessHours_NoRowMeansClosed(t *testing.T) {
	repo := new(mocks.MockBusinessHoursRepo)
	repo.On("GetByWeekday", 1).Return(nil, false, nil)

	table := NewHoursTable(repo, nil, discardLogger())

	within, err := table.IsWithinBusinessHours(mondayAt(12, 0))
	require.NoError(t, err)
	require.False(t, within)
}

func TestIsWithinBusinessHours_InactiveRowMeansClosed(t *testing.T) {
	row := weekdayRow(1, 9, 16)
	row.IsActive = false

	repo := new(mocks.MockBusinessHoursRepo)
	repo.On("GetByWeekday", 1).Return(row, true, nil)

	table := NewHoursTable(repo, nil, discardLogger())

	within, err := table.IsWithinBusinessHours(mondayAt(12, 0))
	require.NoError(t, err)
	require.False(t, within)
}

func TestNextBusinessDay_SkipsWeekend(t *testing.T) {
	repo := new(mocks.MockBusinessHoursRepo)
	// only Monday is configured as a business day
	repo.On("GetByWeekday", 1).Return(weekdayRow(1, 9, 16), true, nil)
	for weekday := 2; weekday <= 6; weekday++ {
		repo.On("GetByWeekday", weekday).Return(nil, false, nil)
	}
	repo.On("GetByWeekday", 0).Return(nil, false, nil)

	table := NewHoursTable(repo, nil, discardLogger())

	// 2025-03-14 is a Friday; the next business day is Monday the 17th
	friday := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

	next, found, err := table.NextBusinessDay(friday)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), next)
}

func TestNextBusinessDay_StartsAtConfiguredHour(t *testing.T) {
	repo := new(mocks.MockBusinessHoursRepo)
	repo.On("GetByWeekday", 2).Return(weekdayRow(2, 11, 15), true, nil)

	table := NewHoursTable(repo, nil, discardLogger())

	next, found, err := table.NextBusinessDay(mondayAt(20, 0))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 11, next.Hour())
}

func TestNextBusinessDay_NoActiveWeekday(t *testing.T) {
	repo := new(mocks.MockBusinessHoursRepo)
	for weekday := 0; weekday <= 6; weekday++ {
		repo.On("GetByWeekday", weekday).Return(nil, false, nil)
	}

	table := NewHoursTable(repo, nil, discardLogger())

	_, found, err := table.NextBusinessDay(mondayAt(12, 0))
	require.NoError(t, err)
	require.False(t, found)
}

func TestUpdate_WritesThroughToRepository(t *testing.T) {
	repo := new(mocks.MockBusinessHoursRepo)
	row := weekdayRow(3, 10, 14)
	repo.On("Upsert", row).Return(nil)

	table := NewHoursTable(repo, nil, discardLogger())

	require.NoError(t, table.Update(row))
	repo.AssertExpectations(t)
}
