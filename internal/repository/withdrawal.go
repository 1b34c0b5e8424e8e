package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type WithdrawalRequest struct {
	ID                       string          `db:"id"`
	Reference                string          `db:"reference"`
	UserID                   string          `db:"user_id"`
	Kind                     string          `db:"kind"`
	USDTAmount               decimal.Decimal `db:"usdt_amount"`
	NFTAmount                int64           `db:"nft_amount"`
	DestinationAddress       string          `db:"destination_address"`
	RequestIntegrityHash     string          `db:"request_integrity_hash"`
	SecurityVerificationHash string          `db:"security_verification_hash"`
	Status                   string          `db:"status"`
	AdminID                  sql.NullString  `db:"admin_id"`
	AdminNotes               sql.NullString  `db:"admin_notes"`
	TransactionHash          sql.NullString  `db:"transaction_hash"`
	BlockchainConfirmation   sql.NullString  `db:"blockchain_confirmation_hash"`
	NextBusinessDay          sql.NullTime    `db:"next_business_day"`
	IPAddress                string          `db:"ip_address"`
	UserAgent                string          `db:"user_agent"`
	RequestedAt              time.Time       `db:"requested_at"`
	QueuedAt                 sql.NullTime    `db:"queued_at"`
	CompletedAt              sql.NullTime    `db:"completed_at"`
}

const (
	WithdrawalKindUSDT = "usdt"
	WithdrawalKindNFT  = "nft"
)

// Withdrawal request lifecycle:
// pending | outside_business_hours -> queued_for_processing -> processing
// -> completed | failed. cancelled is reachable from any pre-processing
// state.
const (
	WithdrawalStatusPending      = "pending"
	WithdrawalStatusOutsideHours = "outside_business_hours"
	WithdrawalStatusQueued       = "queued_for_processing"
	WithdrawalStatusProcessing   = "processing"
	WithdrawalStatusCompleted    = "completed"
	WithdrawalStatusFailed       = "failed"
	WithdrawalStatusCancelled    = "cancelled"
)

type WithdrawalRepository interface {
	Insert(request *WithdrawalRequest, tx *sqlx.Tx) (string, error)
	GetOne(id string) (*WithdrawalRequest, bool, error)
	GetOneForUpdate(tx *sqlx.Tx, id string) (*WithdrawalRequest, bool, error)
	MarkProcessed(tx *sqlx.Tx, id, status, adminID, notes, transactionHash, blockchainHash string) error
	MarkCancelled(id string, tx *sqlx.Tx) error
	PendingForDate(date time.Time, limit int) ([]WithdrawalRequest, error)
}

type WithdrawalRepositoryImpl struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) WithdrawalRepository {
	return &WithdrawalRepositoryImpl{db: db}
}

const withdrawalColumns = `
	id, reference, user_id, kind, usdt_amount, nft_amount, destination_address,
	request_integrity_hash, security_verification_hash, status, admin_id,
	admin_notes, transaction_hash, blockchain_confirmation_hash,
	next_business_day, ip_address, user_agent, requested_at, queued_at,
	completed_at`

func (repo *WithdrawalRepositoryImpl) Insert(request *WithdrawalRequest, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO withdrawal_requests (
			reference, user_id, kind, usdt_amount, nft_amount,
			destination_address, request_integrity_hash,
			security_verification_hash, status, next_business_day,
			ip_address, user_agent, queued_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	args := []any{
		request.Reference,
		request.UserID,
		request.Kind,
		request.USDTAmount,
		request.NFTAmount,
		request.DestinationAddress,
		request.RequestIntegrityHash,
		request.SecurityVerificationHash,
		request.Status,
		request.NextBusinessDay,
		request.IPAddress,
		request.UserAgent,
		request.QueuedAt,
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

func (repo *WithdrawalRepositoryImpl) GetOne(id string) (*WithdrawalRequest, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var request WithdrawalRequest

	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests WHERE id=$1`

	err := repo.db.GetContext(ctx, &request, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &request, true, nil
}

func (repo *WithdrawalRepositoryImpl) GetOneForUpdate(tx *sqlx.Tx, id string) (*WithdrawalRequest, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var request WithdrawalRequest

	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests WHERE id=$1 FOR UPDATE`

	err := tx.GetContext(ctx, &request, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &request, true, nil
}

func (repo *WithdrawalRepositoryImpl) MarkProcessed(tx *sqlx.Tx, id, status, adminID, notes, transactionHash, blockchainHash string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE withdrawal_requests SET
			status=$1,
			admin_id=$2,
			admin_notes=NULLIF($3, ''),
			transaction_hash=NULLIF($4, ''),
			blockchain_confirmation_hash=NULLIF($5, ''),
			completed_at=now()
		WHERE id=$6`

	_, err := tx.ExecContext(ctx, query, status, adminID, notes, transactionHash, blockchainHash, id)
	return err
}

func (repo *WithdrawalRepositoryImpl) MarkCancelled(id string, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE withdrawal_requests SET status=$1 WHERE id=$2`

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, WithdrawalStatusCancelled, id)
		return err
	}

	_, err := repo.db.ExecContext(ctx, query, WithdrawalStatusCancelled, id)
	return err
}

// PendingForDate returns requests an admin can act on right now: anything
// queued for the given date plus requests still sitting bare pending.
// Ordering is priority first, then queue position, then request age.
func (repo *WithdrawalRepositoryImpl) PendingForDate(date time.Time, limit int) ([]WithdrawalRequest, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if limit <= 0 || limit > 50 {
		limit = 50
	}

	var requests []WithdrawalRequest

	query := `
		SELECT wr.id, wr.reference, wr.user_id, wr.kind, wr.usdt_amount, wr.nft_amount,
			wr.destination_address, wr.request_integrity_hash,
			wr.security_verification_hash, wr.status, wr.admin_id,
			wr.admin_notes, wr.transaction_hash,
			wr.blockchain_confirmation_hash, wr.next_business_day,
			wr.ip_address, wr.user_agent, wr.requested_at, wr.queued_at,
			wr.completed_at
		FROM withdrawal_requests wr
		LEFT JOIN withdrawal_processing_queue q
			ON q.withdrawal_request_id = wr.id
			AND q.scheduled_date = $1
		WHERE wr.status IN ($2, $3)
		ORDER BY COALESCE(q.priority_level, 0) DESC,
			COALESCE(q.queue_position, 2147483647) ASC,
			wr.requested_at ASC
		LIMIT $4`

	err := repo.db.SelectContext(ctx, &requests, query,
		date.Format("2006-01-02"),
		WithdrawalStatusPending,
		WithdrawalStatusQueued,
		limit,
	)
	if err != nil {
		return nil, err
	}

	return requests, nil
}
