package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ChecksumSnapshot is the third verification layer: a denormalized JSON copy
// of the six balance fields plus independently salted checksums over each
// ledger table and a combined checksum. It is a coarse drift detector, not a
// correctness gate; mismatches against it are logged as warnings only.
type ChecksumSnapshot struct {
	ID                   string       `db:"id"`
	UserID               string       `db:"user_id"`
	BalanceSnapshot      string       `db:"balance_snapshot"`
	PrimaryChecksum      string       `db:"primary_checksum"`
	VerificationChecksum string       `db:"verification_checksum"`
	CombinedChecksum     string       `db:"combined_checksum"`
	VerificationCount    int64        `db:"verification_count"`
	LastResult           string       `db:"last_result"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            sql.NullTime `db:"updated_at"`
}

const (
	ChecksumResultValid   = "valid"
	ChecksumResultInvalid = "invalid"
	ChecksumResultPending = "pending"
)

type ChecksumRepository interface {
	Get(userID string) (*ChecksumSnapshot, bool, error)
	Upsert(snapshot *ChecksumSnapshot, tx *sqlx.Tx) error
	SetLastResult(userID, result string) error
}

type ChecksumRepositoryImpl struct {
	db *sqlx.DB
}

func NewChecksumRepository(db *sqlx.DB) ChecksumRepository {
	return &ChecksumRepositoryImpl{db: db}
}

func (repo *ChecksumRepositoryImpl) Get(userID string) (*ChecksumSnapshot, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var snapshot ChecksumSnapshot

	query := `
		SELECT id, user_id, balance_snapshot, primary_checksum,
			verification_checksum, combined_checksum, verification_count,
			last_result, created_at, updated_at
		FROM balance_checksums WHERE user_id=$1`

	err := repo.db.GetContext(ctx, &snapshot, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &snapshot, true, nil
}

// Upsert refreshes the snapshot and bumps verification_count by one.
func (repo *ChecksumRepositoryImpl) Upsert(snapshot *ChecksumSnapshot, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		INSERT INTO balance_checksums (
			user_id, balance_snapshot, primary_checksum,
			verification_checksum, combined_checksum, verification_count,
			last_result
		)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			balance_snapshot = EXCLUDED.balance_snapshot,
			primary_checksum = EXCLUDED.primary_checksum,
			verification_checksum = EXCLUDED.verification_checksum,
			combined_checksum = EXCLUDED.combined_checksum,
			verification_count = balance_checksums.verification_count + 1,
			last_result = EXCLUDED.last_result,
			updated_at = now()`

	args := []any{
		snapshot.UserID,
		snapshot.BalanceSnapshot,
		snapshot.PrimaryChecksum,
		snapshot.VerificationChecksum,
		snapshot.CombinedChecksum,
		snapshot.LastResult,
	}

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}

	_, err := repo.db.ExecContext(ctx, query, args...)
	return err
}

func (repo *ChecksumRepositoryImpl) SetLastResult(userID, result string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE balance_checksums SET last_result=$1, updated_at=now()
		WHERE user_id=$2`

	_, err := repo.db.ExecContext(ctx, query, result, userID)
	return err
}
