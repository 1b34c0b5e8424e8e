package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// BalanceRecord is one copy of a user's commission balance. The same logical
// record is materialized twice: once in commission_balances (primary) and
// once in commission_balances_verification (mirror). Integrity checks compare
// the two copies field by field on every verification pass.
type BalanceRecord struct {
	ID                    string          `db:"id"`
	UserID                string          `db:"user_id"`
	TotalEarnedUSDT       decimal.Decimal `db:"total_earned_usdt"`
	TotalEarnedNFTCount   int64           `db:"total_earned_nft_count"`
	AvailableUSDT         decimal.Decimal `db:"available_usdt"`
	AvailableNFTCount     int64           `db:"available_nft_count"`
	TotalWithdrawnUSDT    decimal.Decimal `db:"total_withdrawn_usdt"`
	TotalRedeemedNFTCount int64           `db:"total_redeemed_nft_count"`
	IntegrityHash         string          `db:"integrity_hash"`
	LastWriteAt           time.Time       `db:"last_write_at"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             sql.NullTime    `db:"updated_at"`
}

// VerificationRecord is the mirror copy. It carries its own integrity hash
// plus a cross-reference hash binding it to the primary record's hash.
type VerificationRecord struct {
	ID                    string          `db:"id"`
	UserID                string          `db:"user_id"`
	TotalEarnedUSDT       decimal.Decimal `db:"total_earned_usdt"`
	TotalEarnedNFTCount   int64           `db:"total_earned_nft_count"`
	AvailableUSDT         decimal.Decimal `db:"available_usdt"`
	AvailableNFTCount     int64           `db:"available_nft_count"`
	TotalWithdrawnUSDT    decimal.Decimal `db:"total_withdrawn_usdt"`
	TotalRedeemedNFTCount int64           `db:"total_redeemed_nft_count"`
	IntegrityHash         string          `db:"integrity_hash"`
	CrossReferenceHash    string          `db:"cross_reference_hash"`
	LastWriteAt           time.Time       `db:"last_write_at"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             sql.NullTime    `db:"updated_at"`
}

type BalanceRepository interface {
	GetPrimary(userID string) (*BalanceRecord, bool, error)
	GetVerification(userID string) (*VerificationRecord, bool, error)
	GetPrimaryForUpdate(tx *sqlx.Tx, userID string) (*BalanceRecord, bool, error)
	GetVerificationForUpdate(tx *sqlx.Tx, userID string) (*VerificationRecord, bool, error)
	UpsertPrimary(record *BalanceRecord, tx *sqlx.Tx) error
	UpsertVerification(record *VerificationRecord, tx *sqlx.Tx) error
}

type BalanceRepositoryImpl struct {
	db *sqlx.DB
}

func NewBalanceRepository(db *sqlx.DB) BalanceRepository {
	return &BalanceRepositoryImpl{db: db}
}

const balanceColumns = `
	id, user_id, total_earned_usdt, total_earned_nft_count,
	available_usdt, available_nft_count, total_withdrawn_usdt,
	total_redeemed_nft_count, integrity_hash, last_write_at,
	created_at, updated_at`

func (repo *BalanceRepositoryImpl) GetPrimary(userID string) (*BalanceRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var record BalanceRecord

	query := `
		SELECT ` + balanceColumns + `
		FROM commission_balances WHERE user_id=$1`

	err := repo.db.GetContext(ctx, &record, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &record, true, nil
}

func (repo *BalanceRepositoryImpl) GetVerification(userID string) (*VerificationRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var record VerificationRecord

	query := `
		SELECT ` + balanceColumns + `, cross_reference_hash
		FROM commission_balances_verification WHERE user_id=$1`

	err := repo.db.GetContext(ctx, &record, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &record, true, nil
}

// GetPrimaryForUpdate takes a row-level lock on the user's primary balance.
// Concurrent balance mutations for the same user serialize on this lock; the
// integrity hashes only detect tampering, they do not prevent lost updates.
func (repo *BalanceRepositoryImpl) GetPrimaryForUpdate(tx *sqlx.Tx, userID string) (*BalanceRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var record BalanceRecord

	query := `
		SELECT ` + balanceColumns + `
		FROM commission_balances WHERE user_id=$1 FOR UPDATE`

	err := tx.GetContext(ctx, &record, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &record, true, nil
}

func (repo *BalanceRepositoryImpl) GetVerificationForUpdate(tx *sqlx.Tx, userID string) (*VerificationRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var record VerificationRecord

	query := `
		SELECT ` + balanceColumns + `, cross_reference_hash
		FROM commission_balances_verification WHERE user_id=$1 FOR UPDATE`

	err := tx.GetContext(ctx, &record, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &record, true, nil
}

func (repo *BalanceRepositoryImpl) UpsertPrimary(record *BalanceRecord, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO commission_balances (
			user_id, total_earned_usdt, total_earned_nft_count,
			available_usdt, available_nft_count, total_withdrawn_usdt,
			total_redeemed_nft_count, integrity_hash, last_write_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			total_earned_usdt = EXCLUDED.total_earned_usdt,
			total_earned_nft_count = EXCLUDED.total_earned_nft_count,
			available_usdt = EXCLUDED.available_usdt,
			available_nft_count = EXCLUDED.available_nft_count,
			total_withdrawn_usdt = EXCLUDED.total_withdrawn_usdt,
			total_redeemed_nft_count = EXCLUDED.total_redeemed_nft_count,
			integrity_hash = EXCLUDED.integrity_hash,
			last_write_at = EXCLUDED.last_write_at,
			updated_at = now()`

	args := []any{
		record.UserID,
		record.TotalEarnedUSDT,
		record.TotalEarnedNFTCount,
		record.AvailableUSDT,
		record.AvailableNFTCount,
		record.TotalWithdrawnUSDT,
		record.TotalRedeemedNFTCount,
		record.IntegrityHash,
		record.LastWriteAt,
	}

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}

	_, err := repo.db.ExecContext(ctx, query, args...)
	return err
}

func (repo *BalanceRepositoryImpl) UpsertVerification(record *VerificationRecord, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO commission_balances_verification (
			user_id, total_earned_usdt, total_earned_nft_count,
			available_usdt, available_nft_count, total_withdrawn_usdt,
			total_redeemed_nft_count, integrity_hash, cross_reference_hash,
			last_write_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			total_earned_usdt = EXCLUDED.total_earned_usdt,
			total_earned_nft_count = EXCLUDED.total_earned_nft_count,
			available_usdt = EXCLUDED.available_usdt,
			available_nft_count = EXCLUDED.available_nft_count,
			total_withdrawn_usdt = EXCLUDED.total_withdrawn_usdt,
			total_redeemed_nft_count = EXCLUDED.total_redeemed_nft_count,
			integrity_hash = EXCLUDED.integrity_hash,
			cross_reference_hash = EXCLUDED.cross_reference_hash,
			last_write_at = EXCLUDED.last_write_at,
			updated_at = now()`

	args := []any{
		record.UserID,
		record.TotalEarnedUSDT,
		record.TotalEarnedNFTCount,
		record.AvailableUSDT,
		record.AvailableNFTCount,
		record.TotalWithdrawnUSDT,
		record.TotalRedeemedNFTCount,
		record.IntegrityHash,
		record.CrossReferenceHash,
		record.LastWriteAt,
	}

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}

	_, err := repo.db.ExecContext(ctx, query, args...)
	return err
}
