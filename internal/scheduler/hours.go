package scheduler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kehindemorol/vestra/internal/cache"
	"github.com/kehindemorol/vestra/internal/repository"
)

const (
	hoursCacheKeyFormat = "business_hours:%d"
	hoursCacheTTL       = 5 * time.Minute

	// nextBusinessDayScanLimit bounds the forward scan; with per-weekday
	// config a week always contains every possible answer.
	nextBusinessDayScanLimit = 7
)

// HoursTable answers "is this a processing window" questions from the
// business_hours table, with a cache in front of the per-weekday rows.
// No active row for a weekday means that weekday is not a business day.
type HoursTable struct {
	repo   repository.BusinessHoursRepository
	cache  *cache.Cache
	logger *slog.Logger
}

func NewHoursTable(repo repository.BusinessHoursRepository, c *cache.Cache, logger *slog.Logger) *HoursTable {
	return &HoursTable{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

func (t *HoursTable) rowFor(weekday int) (*repository.BusinessHourRow, bool, error) {
	key := fmt.Sprintf(hoursCacheKeyFormat, weekday)

	if t.cache != nil {
		cached, err := t.cache.Get(key)
		if err == nil {
			var row repository.BusinessHourRow
			if err := json.Unmarshal([]byte(cached), &row); err == nil {
				return &row, true, nil
			}
		} else if !cache.IsMiss(err) {
			// cache failures degrade to the database, they don't gate
			t.logger.Error("business hours cache read", "weekday", weekday, "error", err)
		}
	}

	row, found, err := t.repo.GetByWeekday(weekday)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	if t.cache != nil {
		if payload, err := json.Marshal(row); err == nil {
			if err := t.cache.Set(key, string(payload), hoursCacheTTL); err != nil {
				t.logger.Error("business hours cache write", "weekday", weekday, "error", err)
			}
		}
	}

	return row, true, nil
}

// IsWithinBusinessHours reports whether at falls inside the configured
// window [start_hour, end_hour) for its weekday.
func (t *HoursTable) IsWithinBusinessHours(at time.Time) (bool, error) {
	row, found, err := t.rowFor(int(at.Weekday()))
	if err != nil {
		return false, err
	}
	if !found || !row.IsActive {
		return false, nil
	}

	hour := at.Hour()
	return hour >= row.StartHour && hour < row.EndHour, nil
}

// NextBusinessDay scans forward day by day for the next weekday with an
// active window and returns that day's start hour. The second return is
// false when no active weekday exists at all.
func (t *HoursTable) NextBusinessDay(from time.Time) (time.Time, bool, error) {
	for i := 1; i <= nextBusinessDayScanLimit; i++ {
		day := from.AddDate(0, 0, i)

		row, found, err := t.rowFor(int(day.Weekday()))
		if err != nil {
			return time.Time{}, false, err
		}
		if !found || !row.IsActive {
			continue
		}

		next := time.Date(day.Year(), day.Month(), day.Day(), row.StartHour, 0, 0, 0, day.Location())
		return next, true, nil
	}

	return time.Time{}, false, nil
}

// Update writes a weekday override and drops the stale cache entry.
func (t *HoursTable) Update(row *repository.BusinessHourRow) error {
	if err := t.repo.Upsert(row); err != nil {
		return err
	}

	if t.cache != nil {
		key := fmt.Sprintf(hoursCacheKeyFormat, row.Weekday)
		if err := t.cache.Delete(key); err != nil {
			t.logger.Error("business hours cache invalidation", "weekday", row.Weekday, "error", err)
		}
	}

	return nil
}
