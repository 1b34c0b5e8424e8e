package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// QueueEntry associates a withdrawal request with a processing slot. Its
// lifecycle is decoupled from the request's own status so the queue can be
// re-prioritized without touching the request row.
type QueueEntry struct {
	ID                  string         `db:"id"`
	WithdrawalRequestID string         `db:"withdrawal_request_id"`
	ScheduledDate       time.Time      `db:"scheduled_date"`
	ScheduledHour       int            `db:"scheduled_hour"`
	PriorityLevel       int            `db:"priority_level"`
	QueuePosition       int            `db:"queue_position"`
	QueueStatus         string         `db:"queue_status"`
	AdminAssigned       sql.NullString `db:"admin_assigned"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           sql.NullTime   `db:"updated_at"`
}

const (
	QueueStatusWaiting    = "waiting"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusCancelled  = "cancelled"
)

type QueueRepository interface {
	Insert(entry *QueueEntry, tx *sqlx.Tx) (string, error)
	NextPosition(tx *sqlx.Tx, date time.Time) (int, error)
	GetByRequestID(requestID string) (*QueueEntry, bool, error)
	MarkCompleted(tx *sqlx.Tx, requestID, adminID string) error
	MarkCancelled(requestID string, tx *sqlx.Tx) error
}

type QueueRepositoryImpl struct {
	db *sqlx.DB
}

func NewQueueRepository(db *sqlx.DB) QueueRepository {
	return &QueueRepositoryImpl{db: db}
}

func (repo *QueueRepositoryImpl) Insert(entry *QueueEntry, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO withdrawal_processing_queue (
			withdrawal_request_id, scheduled_date, scheduled_hour,
			priority_level, queue_position, queue_status
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	args := []any{
		entry.WithdrawalRequestID,
		entry.ScheduledDate.Format("2006-01-02"),
		entry.ScheduledHour,
		entry.PriorityLevel,
		entry.QueuePosition,
		entry.QueueStatus,
	}

	if tx != nil {
		err := tx.QueryRowContext(ctx, query, args...).Scan(&id)
		if err != nil {
			return "", err
		}
		return id, nil
	}

	err := repo.db.GetContext(ctx, &id, query, args...)
	if err != nil {
		return "", err
	}

	return id, nil
}

// NextPosition returns the next free queue position for a date. Must be
// called inside the same transaction as the Insert so two submissions cannot
// claim the same slot; the unique (scheduled_date, queue_position) index
// backstops it.
func (repo *QueueRepositoryImpl) NextPosition(tx *sqlx.Tx, date time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var position int

	query := `
		SELECT COALESCE(MAX(queue_position), 0) + 1
		FROM withdrawal_processing_queue
		WHERE scheduled_date = $1`

	err := tx.GetContext(ctx, &position, query, date.Format("2006-01-02"))
	if err != nil {
		return 0, err
	}

	return position, nil
}

func (repo *QueueRepositoryImpl) GetByRequestID(requestID string) (*QueueEntry, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var entry QueueEntry

	query := `
		SELECT id, withdrawal_request_id, scheduled_date, scheduled_hour,
			priority_level, queue_position, queue_status, admin_assigned,
			created_at, updated_at
		FROM withdrawal_processing_queue
		WHERE withdrawal_request_id=$1`

	err := repo.db.GetContext(ctx, &entry, query, requestID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &entry, true, nil
}

func (repo *QueueRepositoryImpl) MarkCompleted(tx *sqlx.Tx, requestID, adminID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE withdrawal_processing_queue SET
			queue_status=$1,
			admin_assigned=$2,
			updated_at=now()
		WHERE withdrawal_request_id=$3`

	_, err := tx.ExecContext(ctx, query, QueueStatusCompleted, adminID, requestID)
	return err
}

func (repo *QueueRepositoryImpl) MarkCancelled(requestID string, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE withdrawal_processing_queue SET
			queue_status=$1,
			updated_at=now()
		WHERE withdrawal_request_id=$2`

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, QueueStatusCancelled, requestID)
		return err
	}

	_, err := repo.db.ExecContext(ctx, query, QueueStatusCancelled, requestID)
	return err
}
