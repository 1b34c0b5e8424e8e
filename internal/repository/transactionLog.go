package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// TransactionLogEntry is append-only. Rows are never updated or deleted; the
// schema has no update path for this table on purpose.
type TransactionLogEntry struct {
	ID                 string          `db:"id"`
	UserID             string          `db:"user_id"`
	Kind               string          `db:"kind"`
	USDTBefore         decimal.Decimal `db:"usdt_before"`
	USDTAfter          decimal.Decimal `db:"usdt_after"`
	NFTBefore          int64           `db:"nft_before"`
	NFTAfter           int64           `db:"nft_after"`
	TransactionHash    string          `db:"transaction_hash"`
	BlockchainHash     sql.NullString  `db:"blockchain_hash"`
	AdminID            sql.NullString  `db:"admin_id"`
	IPAddress          string          `db:"ip_address"`
	UserAgent          string          `db:"user_agent"`
	ImmutableSignature string          `db:"immutable_signature"`
	CreatedAt          time.Time       `db:"created_at"`
}

const (
	TransactionKindCommissionEarned    = "commission_earned"
	TransactionKindWithdrawalRequested = "withdrawal_requested"
	TransactionKindWithdrawalCompleted = "withdrawal_completed"
	TransactionKindWithdrawalFailed    = "withdrawal_failed"
	TransactionKindBalanceAdjustment   = "balance_adjustment"
)

type TransactionLogRepository interface {
	Insert(entry *TransactionLogEntry, tx *sqlx.Tx) (string, error)
	GetAllByUserId(userID string, limit int) ([]TransactionLogEntry, error)
}

type TransactionLogRepositoryImpl struct {
	db *sqlx.DB
}

func NewTransactionLogRepository(db *sqlx.DB) TransactionLogRepository {
	return &TransactionLogRepositoryImpl{db: db}
}

func (repo *TransactionLogRepositoryImpl) Insert(entry *TransactionLogEntry, tx *sqlx.Tx) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var id string

	query := `
		INSERT INTO commission_transactions (
			user_id, kind, usdt_before, usdt_after, nft_before, nft_after,
			transaction_hash, blockchain_hash, admin_id, ip_address,
			user_agent, immutable_signature
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	args := []any{
		entry.UserID,
		entry.Kind,
		entry.USDTBefore,
		entry.USDTAfter,
		entry.NFTBefore,
		entry.NFTAfter,
		entry.TransactionHash,
		entry.BlockchainHash,
		entry.AdminID,
		entry.IPAddress,
		entry.UserAgent,
		entry.ImmutableSignature,
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

func (repo *TransactionLogRepositoryImpl) GetAllByUserId(userID string, limit int) ([]TransactionLogEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	var entries []TransactionLogEntry

	query := `
		SELECT id, user_id, kind, usdt_before, usdt_after, nft_before,
			nft_after, transaction_hash, blockchain_hash, admin_id,
			ip_address, user_agent, immutable_signature, created_at
		FROM commission_transactions
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2`

	err := repo.db.SelectContext(ctx, &entries, query, userID, limit)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
