package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// BusinessHourRow configures the processing window for one weekday. No row,
// or an inactive row, means that weekday is not a business day. Holidays and
// overrides are plain row updates, not code changes.
type BusinessHourRow struct {
	ID        string       `db:"id"`
	Weekday   int          `db:"weekday"`
	StartHour int          `db:"start_hour"`
	EndHour   int          `db:"end_hour"`
	IsActive  bool         `db:"is_active"`
	UpdatedBy string       `db:"updated_by"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

type BusinessHoursRepository interface {
	GetByWeekday(weekday int) (*BusinessHourRow, bool, error)
	GetAll() ([]BusinessHourRow, error)
	Upsert(row *BusinessHourRow) error
}

type BusinessHoursRepositoryImpl struct {
	db *sqlx.DB
}

func NewBusinessHoursRepository(db *sqlx.DB) BusinessHoursRepository {
	return &BusinessHoursRepositoryImpl{db: db}
}

func (repo *BusinessHoursRepositoryImpl) GetByWeekday(weekday int) (*BusinessHourRow, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var row BusinessHourRow

	query := `
		SELECT id, weekday, start_hour, end_hour, is_active, updated_by,
			created_at, updated_at
		FROM business_hours WHERE weekday=$1`

	err := repo.db.GetContext(ctx, &row, query, weekday)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &row, true, nil
}

func (repo *BusinessHoursRepositoryImpl) GetAll() ([]BusinessHourRow, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var rows []BusinessHourRow

	query := `
		SELECT id, weekday, start_hour, end_hour, is_active, updated_by,
			created_at, updated_at
		FROM business_hours ORDER BY weekday ASC`

	err := repo.db.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

func (repo *BusinessHoursRepositoryImpl) Upsert(row *BusinessHourRow) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO business_hours (weekday, start_hour, end_hour, is_active, updated_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (weekday) DO UPDATE SET
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour,
			is_active = EXCLUDED.is_active,
			updated_by = EXCLUDED.updated_by,
			updated_at = now()`

	_, err := repo.db.ExecContext(ctx, query,
		row.Weekday,
		row.StartHour,
		row.EndHour,
		row.IsActive,
		row.UpdatedBy,
	)
	return err
}
