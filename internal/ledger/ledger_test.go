package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/mocks"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/secret"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// In-memory stores stand in for the repositories so the full orchestration
// (locked reads, dual upserts, checksum refresh, audit emission) runs
// without a database.

type balanceStoreStub struct {
	primary      *repository.BalanceRecord
	verification *repository.VerificationRecord
	writes       int
}

func (s *balanceStoreStub) GetPrimary(userID string) (*repository.BalanceRecord, bool, error) {
	if s.primary == nil {
		return nil, false, nil
	}
	return s.primary, true, nil
}

func (s *balanceStoreStub) GetVerification(userID string) (*repository.VerificationRecord, bool, error) {
	if s.verification == nil {
		return nil, false, nil
	}
	return s.verification, true, nil
}

func (s *balanceStoreStub) GetPrimaryForUpdate(tx *sqlx.Tx, userID string) (*repository.BalanceRecord, bool, error) {
	return s.GetPrimary(userID)
}

func (s *balanceStoreStub) GetVerificationForUpdate(tx *sqlx.Tx, userID string) (*repository.VerificationRecord, bool, error) {
	return s.GetVerification(userID)
}

func (s *balanceStoreStub) UpsertPrimary(record *repository.BalanceRecord, tx *sqlx.Tx) error {
	copied := *record
	s.primary = &copied
	s.writes++
	return nil
}

func (s *balanceStoreStub) UpsertVerification(record *repository.VerificationRecord, tx *sqlx.Tx) error {
	copied := *record
	s.verification = &copied
	s.writes++
	return nil
}

type checksumStoreStub struct {
	snapshot *repository.ChecksumSnapshot
}

func (s *checksumStoreStub) Get(userID string) (*repository.ChecksumSnapshot, bool, error) {
	if s.snapshot == nil {
		return nil, false, nil
	}
	return s.snapshot, true, nil
}

func (s *checksumStoreStub) Upsert(snapshot *repository.ChecksumSnapshot, tx *sqlx.Tx) error {
	copied := *snapshot
	s.snapshot = &copied
	return nil
}

func (s *checksumStoreStub) SetLastResult(userID, result string) error {
	if s.snapshot != nil {
		s.snapshot.LastResult = result
	}
	return nil
}

type transactionLogStub struct {
	entries []repository.TransactionLogEntry
}

func (s *transactionLogStub) Insert(entry *repository.TransactionLogEntry, tx *sqlx.Tx) (string, error) {
	s.entries = append(s.entries, *entry)
	return "txn-1", nil
}

func (s *transactionLogStub) GetAllByUserId(userID string, limit int) ([]repository.TransactionLogEntry, error) {
	return s.entries, nil
}

type auditLogStub struct {
	entries []repository.SecurityAuditEntry
}

func (s *auditLogStub) Insert(entry *repository.SecurityAuditEntry) (string, error) {
	s.entries = append(s.entries, *entry)
	return "audit-1", nil
}

func (s *auditLogStub) find(eventType string) (repository.SecurityAuditEntry, bool) {
	for _, entry := range s.entries {
		if entry.EventType == eventType {
			return entry, true
		}
	}
	return repository.SecurityAuditEntry{}, false
}

func newTestLedger(balances *balanceStoreStub, checksums *checksumStoreStub, txlog *transactionLogStub, audit *auditLogStub) *ledger.Ledger {
	db := &mocks.MockDatabase{
		BalanceRepo:     balances,
		ChecksumRepo:    checksums,
		TransactionRepo: txlog,
		AuditRepo:       audit,
		TxProvider:      mocks.NewTestTx,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	secrets := secret.NewProvider("ledger-secret", "request-secret", "verification-secret")

	return ledger.New(db, secrets, logger, nil)
}

func testFields() ledger.BalanceFields {
	return ledger.BalanceFields{
		TotalEarnedUSDT:       decimal.RequireFromString("150"),
		TotalEarnedNFTCount:   3,
		AvailableUSDT:         decimal.RequireFromString("100"),
		AvailableNFTCount:     2,
		TotalWithdrawnUSDT:    decimal.RequireFromString("50"),
		TotalRedeemedNFTCount: 1,
	}
}

func TestGetBalance_InitializesNewUser(t *testing.T) {
	balances := &balanceStoreStub{}
	checksums := &checksumStoreStub{}
	txlog := &transactionLogStub{}
	audit := &auditLogStub{}
	l := newTestLedger(balances, checksums, txlog, audit)

	record, err := l.GetBalance(context.Background(), "user-1", ledger.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, "user-1", record.UserID)
	require.True(t, record.AvailableUSDT.IsZero())
	require.NotEmpty(t, record.IntegrityHash)

	// all three layers exist after first touch, plus the log entry
	require.NotNil(t, balances.verification)
	require.Equal(t, record.IntegrityHash, balances.verification.IntegrityHash)
	require.NotEmpty(t, balances.verification.CrossReferenceHash)
	require.NotNil(t, checksums.snapshot)
	require.Len(t, txlog.entries, 1)

	initialized, found := audit.find("balance_initialized")
	require.True(t, found)
	require.Equal(t, repository.SeverityInfo, initialized.Severity)

	require.True(t, l.VerifyIntegrity(context.Background(), "user-1", ledger.RequestMeta{}))
}

func TestUpdateBalance_MirrorsConsistentAfterWrite(t *testing.T) {
	balances := &balanceStoreStub{}
	checksums := &checksumStoreStub{}
	txlog := &transactionLogStub{}
	audit := &auditLogStub{}
	l := newTestLedger(balances, checksums, txlog, audit)

	err := l.UpdateBalance(context.Background(), ledger.UpdateBalanceParams{
		UserID:         "user-1",
		Fields:         testFields(),
		TransactionRef: "adjustment-1",
	})
	require.NoError(t, err)

	primary := balances.primary
	verification := balances.verification
	require.NotNil(t, primary)
	require.NotNil(t, verification)

	require.True(t, primary.AvailableUSDT.Equal(verification.AvailableUSDT))
	require.True(t, primary.TotalWithdrawnUSDT.Equal(verification.TotalWithdrawnUSDT))
	require.Equal(t, primary.AvailableNFTCount, verification.AvailableNFTCount)
	require.Equal(t, primary.LastWriteAt, verification.LastWriteAt)
	require.Equal(t, primary.IntegrityHash, verification.IntegrityHash)
	require.NotEmpty(t, verification.CrossReferenceHash)

	// the post-commit pass already ran inside UpdateBalance and marked the
	// snapshot valid
	require.NotNil(t, checksums.snapshot)
	require.Equal(t, repository.ChecksumResultValid, checksums.snapshot.LastResult)

	require.Len(t, txlog.entries, 1)
	require.True(t, txlog.entries[0].USDTAfter.Equal(decimal.RequireFromString("100")))

	require.True(t, l.VerifyIntegrity(context.Background(), "user-1", ledger.RequestMeta{}))
}

func TestUpdateBalance_RejectsTamperedPrimaryPreUpdate(t *testing.T) {
	balances := &balanceStoreStub{}
	checksums := &checksumStoreStub{}
	txlog := &transactionLogStub{}
	audit := &auditLogStub{}
	l := newTestLedger(balances, checksums, txlog, audit)

	err := l.UpdateBalance(context.Background(), ledger.UpdateBalanceParams{
		UserID: "user-1",
		Fields: testFields(),
	})
	require.NoError(t, err)
	writesBeforeTamper := balances.writes

	// direct table manipulation bypassing the ledger
	balances.primary.AvailableUSDT = balances.primary.AvailableUSDT.Add(decimal.RequireFromString("25"))

	fields := testFields()
	fields.AvailableUSDT = decimal.RequireFromString("90")

	err = l.UpdateBalance(context.Background(), ledger.UpdateBalanceParams{
		UserID: "user-1",
		Fields: fields,
	})

	var integrityErr *ledger.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	require.Equal(t, ledger.StagePreUpdate, integrityErr.Stage)

	// nothing written past the rejected pre-check
	require.Equal(t, writesBeforeTamper, balances.writes)

	mismatch, found := audit.find("ledger_integrity_mismatch")
	require.True(t, found)
	require.Equal(t, repository.SeverityEmergency, mismatch.Severity)

	rejected, found := audit.find("balance_update_rejected")
	require.True(t, found)
	require.Equal(t, repository.SeverityCritical, rejected.Severity)

	_, found = audit.find("balance_update_failed")
	require.False(t, found)
}

func TestVerifyIntegrity_MissingMirrorFails(t *testing.T) {
	balances := &balanceStoreStub{
		primary: &repository.BalanceRecord{
			UserID:        "user-1",
			AvailableUSDT: decimal.RequireFromString("10"),
			IntegrityHash: "deadbeef",
			LastWriteAt:   time.Now().UTC(),
		},
	}
	audit := &auditLogStub{}
	l := newTestLedger(balances, &checksumStoreStub{}, &transactionLogStub{}, audit)

	ok := l.VerifyIntegrity(context.Background(), "user-1", ledger.RequestMeta{})
	require.False(t, ok)

	missing, found := audit.find("ledger_record_missing")
	require.True(t, found)
	require.Equal(t, repository.SeverityCritical, missing.Severity)
}
