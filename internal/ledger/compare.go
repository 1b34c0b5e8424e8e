package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/shopspring/decimal"
)

// mirrorTolerance bounds acceptable drift between the primary and
// verification copies of a decimal field. Integer fields compare exactly.
var mirrorTolerance = decimal.New(1, -8)

// snapshotTolerance is the much coarser bound for the third-layer checksum
// snapshot; it is a drift detector, so it only needs to catch gross
// divergence.
var snapshotTolerance = decimal.New(1, -2)

const (
	primaryChecksumSalt      = "ledger-primary"
	verificationChecksumSalt = "ledger-verification"
)

func fieldsOfPrimary(r *repository.BalanceRecord) BalanceFields {
	return BalanceFields{
		TotalEarnedUSDT:       r.TotalEarnedUSDT,
		TotalEarnedNFTCount:   r.TotalEarnedNFTCount,
		AvailableUSDT:         r.AvailableUSDT,
		AvailableNFTCount:     r.AvailableNFTCount,
		TotalWithdrawnUSDT:    r.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: r.TotalRedeemedNFTCount,
	}
}

func fieldsOfVerification(r *repository.VerificationRecord) BalanceFields {
	return BalanceFields{
		TotalEarnedUSDT:       r.TotalEarnedUSDT,
		TotalEarnedNFTCount:   r.TotalEarnedNFTCount,
		AvailableUSDT:         r.AvailableUSDT,
		AvailableNFTCount:     r.AvailableNFTCount,
		TotalWithdrawnUSDT:    r.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: r.TotalRedeemedNFTCount,
	}
}

func withinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(tolerance) <= 0
}

// compareMirrors checks the primary and verification copies field by field.
// It returns a description of every mismatch found, empty when consistent.
func compareMirrors(primary *repository.BalanceRecord, verification *repository.VerificationRecord) []string {
	var mismatches []string

	p := fieldsOfPrimary(primary)
	v := fieldsOfVerification(verification)

	decimalChecks := []struct {
		name string
		a, b decimal.Decimal
	}{
		{"total_earned_usdt", p.TotalEarnedUSDT, v.TotalEarnedUSDT},
		{"available_usdt", p.AvailableUSDT, v.AvailableUSDT},
		{"total_withdrawn_usdt", p.TotalWithdrawnUSDT, v.TotalWithdrawnUSDT},
	}
	for _, check := range decimalChecks {
		if !withinTolerance(check.a, check.b, mirrorTolerance) {
			mismatches = append(mismatches, fmt.Sprintf(
				"%s differs between ledgers: primary=%s verification=%s",
				check.name, check.a.StringFixed(8), check.b.StringFixed(8)))
		}
	}

	integerChecks := []struct {
		name string
		a, b int64
	}{
		{"total_earned_nft_count", p.TotalEarnedNFTCount, v.TotalEarnedNFTCount},
		{"available_nft_count", p.AvailableNFTCount, v.AvailableNFTCount},
		{"total_redeemed_nft_count", p.TotalRedeemedNFTCount, v.TotalRedeemedNFTCount},
	}
	for _, check := range integerChecks {
		if check.a != check.b {
			mismatches = append(mismatches, fmt.Sprintf(
				"%s differs between ledgers: primary=%d verification=%d",
				check.name, check.a, check.b))
		}
	}

	return mismatches
}

// verifyStoredHashes recomputes each record's integrity hash from its own
// stored fields and write timestamp, plus the cross-reference hash binding
// the two, and compares against the stored values in constant time.
func verifyStoredHashes(secret []byte, primary *repository.BalanceRecord, verification *repository.VerificationRecord) []string {
	var mismatches []string

	expectedPrimary := integrityHash(secret, primary.UserID, fieldsOfPrimary(primary), primary.LastWriteAt)
	if !hashEqual(expectedPrimary, primary.IntegrityHash) {
		mismatches = append(mismatches, "primary record integrity hash mismatch")
	}

	expectedVerification := integrityHash(secret, verification.UserID, fieldsOfVerification(verification), verification.LastWriteAt)
	if !hashEqual(expectedVerification, verification.IntegrityHash) {
		mismatches = append(mismatches, "verification record integrity hash mismatch")
	}

	expectedCrossRef := crossReferenceHash(secret, primary.IntegrityHash, verification.IntegrityHash)
	if !hashEqual(expectedCrossRef, verification.CrossReferenceHash) {
		mismatches = append(mismatches, "cross-reference hash mismatch")
	}

	return mismatches
}

// balanceSnapshot is the JSON payload stored in balance_checksums.
type balanceSnapshot struct {
	TotalEarnedUSDT       decimal.Decimal `json:"total_earned_usdt"`
	TotalEarnedNFTCount   int64           `json:"total_earned_nft_count"`
	AvailableUSDT         decimal.Decimal `json:"available_usdt"`
	AvailableNFTCount     int64           `json:"available_nft_count"`
	TotalWithdrawnUSDT    decimal.Decimal `json:"total_withdrawn_usdt"`
	TotalRedeemedNFTCount int64           `json:"total_redeemed_nft_count"`
}

func encodeSnapshot(f BalanceFields) (string, error) {
	payload, err := json.Marshal(balanceSnapshot{
		TotalEarnedUSDT:       f.TotalEarnedUSDT,
		TotalEarnedNFTCount:   f.TotalEarnedNFTCount,
		AvailableUSDT:         f.AvailableUSDT,
		AvailableNFTCount:     f.AvailableNFTCount,
		TotalWithdrawnUSDT:    f.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: f.TotalRedeemedNFTCount,
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// compareSnapshot checks the primary record against the third-layer snapshot
// with the coarse tolerance. Snapshot drift never fails an integrity check
// outright; callers log these as warnings.
func compareSnapshot(primary *repository.BalanceRecord, snapshot *repository.ChecksumSnapshot) ([]string, error) {
	var snap balanceSnapshot
	if err := json.Unmarshal([]byte(snapshot.BalanceSnapshot), &snap); err != nil {
		return nil, fmt.Errorf("decoding balance snapshot: %w", err)
	}

	var drifts []string

	decimalChecks := []struct {
		name string
		a, b decimal.Decimal
	}{
		{"total_earned_usdt", primary.TotalEarnedUSDT, snap.TotalEarnedUSDT},
		{"available_usdt", primary.AvailableUSDT, snap.AvailableUSDT},
		{"total_withdrawn_usdt", primary.TotalWithdrawnUSDT, snap.TotalWithdrawnUSDT},
	}
	for _, check := range decimalChecks {
		if !withinTolerance(check.a, check.b, snapshotTolerance) {
			drifts = append(drifts, fmt.Sprintf(
				"%s drifted from snapshot: ledger=%s snapshot=%s",
				check.name, check.a.StringFixed(8), check.b.StringFixed(8)))
		}
	}

	integerChecks := []struct {
		name string
		a, b int64
	}{
		{"total_earned_nft_count", primary.TotalEarnedNFTCount, snap.TotalEarnedNFTCount},
		{"available_nft_count", primary.AvailableNFTCount, snap.AvailableNFTCount},
		{"total_redeemed_nft_count", primary.TotalRedeemedNFTCount, snap.TotalRedeemedNFTCount},
	}
	for _, check := range integerChecks {
		if check.a != check.b {
			drifts = append(drifts, fmt.Sprintf(
				"%s drifted from snapshot: ledger=%d snapshot=%d",
				check.name, check.a, check.b))
		}
	}

	return drifts, nil
}
