// Package ledger owns every commission balance mutation. Each user's balance
// is held in two redundant tables plus a checksum snapshot; all three are
// written together, and the two ledger copies are verified against each other
// before and after every write. Nothing outside this package writes balance
// fields.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/secret"
	"github.com/kehindemorol/vestra/internal/stream"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SecurityAlertTopic carries critical and emergency audit events to the
// alerting worker.
const SecurityAlertTopic = "ledger.security.alert"

// RequestMeta carries the requester identity recorded on audit rows.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// SecurityAlertEvent is the payload produced to SecurityAlertTopic.
type SecurityAlertEvent struct {
	EventType  string    `json:"event_type"`
	UserID     string    `json:"user_id"`
	AdminID    string    `json:"admin_id"`
	Severity   string    `json:"severity"`
	Details    string    `json:"details"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Ledger struct {
	db      repository.Database
	secrets secret.Provider
	logger  *slog.Logger
	stream  *stream.KafkaStream
}

func New(db repository.Database, secrets secret.Provider, logger *slog.Logger, kafkaStream *stream.KafkaStream) *Ledger {
	return &Ledger{
		db:      db,
		secrets: secrets,
		logger:  logger,
		stream:  kafkaStream,
	}
}

// GetBalance returns the user's primary balance record, creating a zero
// record on first touch. An integrity failure on the read path is logged but
// never blocks the read; write paths are where integrity gates hard.
func (l *Ledger) GetBalance(ctx context.Context, userID string, meta RequestMeta) (*repository.BalanceRecord, error) {
	record, found, err := l.db.Balance().GetPrimary(userID)
	if err != nil {
		return nil, err
	}

	if !found {
		return l.initializeBalance(ctx, userID, meta)
	}

	if ok := l.VerifyIntegrity(ctx, userID, meta); !ok {
		l.LogSecurityEvent(ctx, "balance_read_integrity_warning", userID, "", map[string]any{
			"note": "integrity check failed during read; balance returned anyway",
		}, repository.SeverityWarning, meta)
	}

	return record, nil
}

// GetBalanceForUpdate returns the primary record locked by the caller's
// transaction. Debits computed from an unlocked read can go stale by the
// time the row lock is finally taken; callers that compute new balance
// values must compute them from this read.
func (l *Ledger) GetBalanceForUpdate(ctx context.Context, tx *sqlx.Tx, userID string) (*repository.BalanceRecord, bool, error) {
	return l.db.Balance().GetPrimaryForUpdate(tx, userID)
}

// initializeBalance creates the zero-valued record across all three layers
// inside one transaction. Two concurrent first touches both land on the same
// upserted row.
func (l *Ledger) initializeBalance(ctx context.Context, userID string, meta RequestMeta) (*repository.BalanceRecord, error) {
	var zero BalanceFields
	zero.TotalEarnedUSDT = decimal.Zero
	zero.AvailableUSDT = decimal.Zero
	zero.TotalWithdrawnUSDT = decimal.Zero

	ts := time.Now().UTC().Truncate(time.Microsecond)
	ledgerSecret := l.secrets.LedgerSecret()

	primaryHash := integrityHash(ledgerSecret, userID, zero, ts)
	verificationHash := integrityHash(ledgerSecret, userID, zero, ts)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	primary := &repository.BalanceRecord{
		UserID:        userID,
		IntegrityHash: primaryHash,
		LastWriteAt:   ts,
	}
	if err := l.db.Balance().UpsertPrimary(primary, tx); err != nil {
		return nil, err
	}

	verification := &repository.VerificationRecord{
		UserID:             userID,
		IntegrityHash:      verificationHash,
		CrossReferenceHash: crossReferenceHash(ledgerSecret, primaryHash, verificationHash),
		LastWriteAt:        ts,
	}
	if err := l.db.Balance().UpsertVerification(verification, tx); err != nil {
		return nil, err
	}

	if err := l.refreshChecksum(userID, zero, tx); err != nil {
		return nil, err
	}

	_, err = l.LogTransaction(ctx, TransactionLogParams{
		UserID: userID,
		Kind:   repository.TransactionKindBalanceAdjustment,
		Ref:    "initialization",
		Meta:   meta,
		Tx:     tx,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	l.LogSecurityEvent(ctx, "balance_initialized", userID, "", nil, repository.SeverityInfo, meta)

	return primary, nil
}

// UpdateBalanceParams carries the new absolute field values for one user.
type UpdateBalanceParams struct {
	UserID string
	Fields BalanceFields

	// Kind is the transaction log kind; balance_adjustment when empty.
	Kind string

	// TransactionRef ties the entry to whatever caused it, e.g. a
	// withdrawal request id.
	TransactionRef string
	BlockchainHash string
	ActorAdminID   string
	Meta           RequestMeta

	// Tx, when set, makes the write join the caller's transaction. The
	// caller then owns commit/rollback and the post-commit verification.
	Tx *sqlx.Tx
}

// UpdateBalance writes the new values to both ledger copies and the checksum
// snapshot, appends a transaction log entry, and verifies integrity before
// and after. The pre-check aborts the write; the post-check runs after
// commit, so a post-update IntegrityError means "written but suspect", not
// "rolled back".
func (l *Ledger) UpdateBalance(ctx context.Context, p UpdateBalanceParams) error {
	if p.Kind == "" {
		p.Kind = repository.TransactionKindBalanceAdjustment
	}

	tx := p.Tx
	ownTx := tx == nil
	if ownTx {
		var err error
		tx, err = l.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
	}

	err := l.applyUpdate(ctx, tx, &p)
	if err != nil {
		var integrityErr *IntegrityError
		if !errors.As(err, &integrityErr) {
			l.LogSecurityEvent(ctx, "balance_update_failed", p.UserID, p.ActorAdminID, map[string]any{
				"error": err.Error(),
			}, repository.SeverityCritical, p.Meta)
		}
		return err
	}

	if !ownTx {
		return nil
	}

	if err := tx.Commit(); err != nil {
		l.LogSecurityEvent(ctx, "balance_update_failed", p.UserID, p.ActorAdminID, map[string]any{
			"error": err.Error(),
		}, repository.SeverityCritical, p.Meta)
		return err
	}

	if ok := l.VerifyIntegrity(ctx, p.UserID, p.Meta); !ok {
		return &IntegrityError{UserID: p.UserID, Stage: StagePostUpdate}
	}

	return nil
}

func (l *Ledger) applyUpdate(ctx context.Context, tx *sqlx.Tx, p *UpdateBalanceParams) error {
	primary, foundPrimary, err := l.db.Balance().GetPrimaryForUpdate(tx, p.UserID)
	if err != nil {
		return err
	}
	verification, foundVerification, err := l.db.Balance().GetVerificationForUpdate(tx, p.UserID)
	if err != nil {
		return err
	}

	if foundPrimary {
		ok, err := l.verifyLoaded(ctx, p.UserID, primary, foundPrimary, verification, foundVerification, p.Meta)
		if err != nil {
			return err
		}
		if !ok {
			l.LogSecurityEvent(ctx, "balance_update_rejected", p.UserID, p.ActorAdminID, map[string]any{
				"note": "pre-update integrity check failed",
			}, repository.SeverityCritical, p.Meta)
			return &IntegrityError{UserID: p.UserID, Stage: StagePreUpdate}
		}
	}

	var before BalanceFields
	before.TotalEarnedUSDT = decimal.Zero
	before.AvailableUSDT = decimal.Zero
	before.TotalWithdrawnUSDT = decimal.Zero
	if foundPrimary {
		before = fieldsOfPrimary(primary)
	}

	// One timestamp for both hash computations; the mirror hashes must be
	// derivable from identical inputs.
	ts := time.Now().UTC().Truncate(time.Microsecond)
	ledgerSecret := l.secrets.LedgerSecret()

	primaryHash := integrityHash(ledgerSecret, p.UserID, p.Fields, ts)
	verificationHash := integrityHash(ledgerSecret, p.UserID, p.Fields, ts)

	err = l.db.Balance().UpsertPrimary(&repository.BalanceRecord{
		UserID:                p.UserID,
		TotalEarnedUSDT:       p.Fields.TotalEarnedUSDT,
		TotalEarnedNFTCount:   p.Fields.TotalEarnedNFTCount,
		AvailableUSDT:         p.Fields.AvailableUSDT,
		AvailableNFTCount:     p.Fields.AvailableNFTCount,
		TotalWithdrawnUSDT:    p.Fields.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: p.Fields.TotalRedeemedNFTCount,
		IntegrityHash:         primaryHash,
		LastWriteAt:           ts,
	}, tx)
	if err != nil {
		return err
	}

	err = l.db.Balance().UpsertVerification(&repository.VerificationRecord{
		UserID:                p.UserID,
		TotalEarnedUSDT:       p.Fields.TotalEarnedUSDT,
		TotalEarnedNFTCount:   p.Fields.TotalEarnedNFTCount,
		AvailableUSDT:         p.Fields.AvailableUSDT,
		AvailableNFTCount:     p.Fields.AvailableNFTCount,
		TotalWithdrawnUSDT:    p.Fields.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: p.Fields.TotalRedeemedNFTCount,
		IntegrityHash:         verificationHash,
		CrossReferenceHash:    crossReferenceHash(ledgerSecret, primaryHash, verificationHash),
		LastWriteAt:           ts,
	}, tx)
	if err != nil {
		return err
	}

	_, err = l.LogTransaction(ctx, TransactionLogParams{
		UserID:         p.UserID,
		Kind:           p.Kind,
		USDTBefore:     before.AvailableUSDT,
		USDTAfter:      p.Fields.AvailableUSDT,
		NFTBefore:      before.AvailableNFTCount,
		NFTAfter:       p.Fields.AvailableNFTCount,
		Ref:            p.TransactionRef,
		BlockchainHash: p.BlockchainHash,
		AdminID:        p.ActorAdminID,
		Meta:           p.Meta,
		Tx:             tx,
	})
	if err != nil {
		return err
	}

	return l.refreshChecksum(p.UserID, p.Fields, tx)
}

// refreshChecksum rewrites the third-layer snapshot; the repository bumps
// verification_count on every refresh. The result is pending until the next
// verification pass looks at it.
func (l *Ledger) refreshChecksum(userID string, f BalanceFields, tx *sqlx.Tx) error {
	snapshotJSON, err := encodeSnapshot(f)
	if err != nil {
		return err
	}

	ledgerSecret := l.secrets.LedgerSecret()
	primaryChecksum := tableChecksum(ledgerSecret, primaryChecksumSalt, userID, f)
	verificationChecksum := tableChecksum(ledgerSecret, verificationChecksumSalt, userID, f)

	return l.db.Checksum().Upsert(&repository.ChecksumSnapshot{
		UserID:               userID,
		BalanceSnapshot:      snapshotJSON,
		PrimaryChecksum:      primaryChecksum,
		VerificationChecksum: verificationChecksum,
		CombinedChecksum:     combinedChecksum(ledgerSecret, primaryChecksum, verificationChecksum),
		LastResult:           repository.ChecksumResultPending,
	}, tx)
}

// VerifyIntegrity checks the dual ledger for one user. Both records absent
// means a new user and passes; any mismatch, missing mirror, or internal
// failure fails. The checksum snapshot layer is advisory: drift there is
// logged as a warning without failing the check.
func (l *Ledger) VerifyIntegrity(ctx context.Context, userID string, meta RequestMeta) bool {
	primary, foundPrimary, err := l.db.Balance().GetPrimary(userID)
	if err != nil {
		l.logVerificationError(ctx, userID, err, meta)
		return false
	}
	verification, foundVerification, err := l.db.Balance().GetVerification(userID)
	if err != nil {
		l.logVerificationError(ctx, userID, err, meta)
		return false
	}

	ok, err := l.verifyLoaded(ctx, userID, primary, foundPrimary, verification, foundVerification, meta)
	if err != nil {
		l.logVerificationError(ctx, userID, err, meta)
		return false
	}
	return ok
}

func (l *Ledger) verifyLoaded(ctx context.Context, userID string, primary *repository.BalanceRecord, foundPrimary bool, verification *repository.VerificationRecord, foundVerification bool, meta RequestMeta) (bool, error) {
	if !foundPrimary && !foundVerification {
		// new user, nothing to verify yet
		return true, nil
	}

	if foundPrimary != foundVerification {
		l.LogSecurityEvent(ctx, "ledger_record_missing", userID, "", map[string]any{
			"primary_present":      foundPrimary,
			"verification_present": foundVerification,
		}, repository.SeverityCritical, meta)
		return false, nil
	}

	mismatches := compareMirrors(primary, verification)
	mismatches = append(mismatches, verifyStoredHashes(l.secrets.LedgerSecret(), primary, verification)...)
	if len(mismatches) > 0 {
		l.LogSecurityEvent(ctx, "ledger_integrity_mismatch", userID, "", map[string]any{
			"mismatches": mismatches,
		}, repository.SeverityEmergency, meta)
		return false, nil
	}

	snapshot, foundSnapshot, err := l.db.Checksum().Get(userID)
	if err != nil {
		return false, err
	}
	if foundSnapshot {
		drifts, err := compareSnapshot(primary, snapshot)
		if err != nil {
			return false, err
		}
		result := repository.ChecksumResultValid
		if len(drifts) > 0 {
			result = repository.ChecksumResultInvalid
			l.LogSecurityEvent(ctx, "checksum_snapshot_drift", userID, "", map[string]any{
				"drifts": drifts,
			}, repository.SeverityWarning, meta)
		}
		if err := l.db.Checksum().SetLastResult(userID, result); err != nil {
			l.logger.Error("updating checksum result", "user_id", userID, "error", err)
		}
	}

	return true, nil
}

func (l *Ledger) logVerificationError(ctx context.Context, userID string, err error, meta RequestMeta) {
	l.LogSecurityEvent(ctx, "integrity_check_error", userID, "", map[string]any{
		"error": err.Error(),
	}, repository.SeverityCritical, meta)
}

// TransactionLogParams describes one append-only transaction log entry.
type TransactionLogParams struct {
	UserID         string
	Kind           string
	USDTBefore     decimal.Decimal
	USDTAfter      decimal.Decimal
	NFTBefore      int64
	NFTAfter       int64
	Ref            string
	BlockchainHash string
	AdminID        string
	Meta           RequestMeta
	Tx             *sqlx.Tx
}

// LogTransaction appends one entry and returns its content hash. The
// SHA-512 signature is computed here too but only stored, never returned;
// its nanosecond component makes even identical entries sign differently.
func (l *Ledger) LogTransaction(ctx context.Context, p TransactionLogParams) (string, error) {
	contentHash := transactionContentHash(l.secrets.LedgerSecret(),
		p.UserID, p.Kind, p.USDTBefore, p.USDTAfter, p.NFTBefore, p.NFTAfter, p.Ref)

	entry := &repository.TransactionLogEntry{
		UserID:             p.UserID,
		Kind:               p.Kind,
		USDTBefore:         p.USDTBefore,
		USDTAfter:          p.USDTAfter,
		NFTBefore:          p.NFTBefore,
		NFTAfter:           p.NFTAfter,
		TransactionHash:    contentHash,
		BlockchainHash:     nullString(p.BlockchainHash),
		AdminID:            nullString(p.AdminID),
		IPAddress:          p.Meta.IP,
		UserAgent:          p.Meta.UserAgent,
		ImmutableSignature: immutableSignature(l.secrets.LedgerSecret(), contentHash, time.Now()),
	}

	if _, err := l.db.TransactionLog().Insert(entry, p.Tx); err != nil {
		return "", err
	}

	return contentHash, nil
}

// LogSecurityEvent appends to the audit log. Audit writes never fail the
// calling operation and never join its transaction: an entry recording a
// failure has to survive that failure's rollback. Critical and emergency
// events are additionally produced to the alert topic.
func (l *Ledger) LogSecurityEvent(ctx context.Context, eventType, userID, adminID string, details map[string]any, severity string, meta RequestMeta) {
	detailsJSON := "{}"
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			l.logger.Error("encoding audit details", "event_type", eventType, "error", err)
		} else {
			detailsJSON = string(payload)
		}
	}

	_, err := l.db.SecurityAudit().Insert(&repository.SecurityAuditEntry{
		EventType: eventType,
		UserID:    nullString(userID),
		AdminID:   nullString(adminID),
		Details:   detailsJSON,
		Severity:  severity,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		l.logger.Error("writing security audit entry", "event_type", eventType, "error", err)
	}

	if l.stream != nil && (severity == repository.SeverityCritical || severity == repository.SeverityEmergency) {
		event := SecurityAlertEvent{
			EventType:  eventType,
			UserID:     userID,
			AdminID:    adminID,
			Severity:   severity,
			Details:    detailsJSON,
			OccurredAt: time.Now().UTC(),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			l.logger.Error("encoding security alert", "event_type", eventType, "error", err)
			return
		}
		go l.stream.ProduceMessage(SecurityAlertTopic, string(payload))
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
