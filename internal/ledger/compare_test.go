package ledger

import (
	"testing"
	"time"

	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func consistentPair(t *testing.T, secret []byte) (*repository.BalanceRecord, *repository.VerificationRecord) {
	t.Helper()

	fields := testFields()
	ts := time.Now().UTC().Truncate(time.Microsecond)

	primaryHash := integrityHash(secret, "user-1", fields, ts)
	verificationHash := integrityHash(secret, "user-1", fields, ts)

	primary := &repository.BalanceRecord{
		UserID:                "user-1",
		TotalEarnedUSDT:       fields.TotalEarnedUSDT,
		TotalEarnedNFTCount:   fields.TotalEarnedNFTCount,
		AvailableUSDT:         fields.AvailableUSDT,
		AvailableNFTCount:     fields.AvailableNFTCount,
		TotalWithdrawnUSDT:    fields.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: fields.TotalRedeemedNFTCount,
		IntegrityHash:         primaryHash,
		LastWriteAt:           ts,
	}

	verification := &repository.VerificationRecord{
		UserID:                "user-1",
		TotalEarnedUSDT:       fields.TotalEarnedUSDT,
		TotalEarnedNFTCount:   fields.TotalEarnedNFTCount,
		AvailableUSDT:         fields.AvailableUSDT,
		AvailableNFTCount:     fields.AvailableNFTCount,
		TotalWithdrawnUSDT:    fields.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: fields.TotalRedeemedNFTCount,
		IntegrityHash:         verificationHash,
		CrossReferenceHash:    crossReferenceHash(secret, primaryHash, verificationHash),
		LastWriteAt:           ts,
	}

	return primary, verification
}

func TestCompareMirrors_Consistent(t *testing.T) {
	primary, verification := consistentPair(t, []byte("test-secret"))

	require.Empty(t, compareMirrors(primary, verification))
}

func TestCompareMirrors_DriftWithinTolerance(t *testing.T) {
	primary, verification := consistentPair(t, []byte("test-secret"))

	// exactly 1e-8 apart is still acceptable
	verification.AvailableUSDT = verification.AvailableUSDT.Add(decimal.New(1, -8))

	require.Empty(t, compareMirrors(primary, verification))
}

func TestCompareMirrors_DriftBeyondTolerance(t *testing.T) {
	primary, verification := consistentPair(t, []byte("test-secret"))

	verification.AvailableUSDT = verification.AvailableUSDT.Add(decimal.New(2, -8))

	mismatches := compareMirrors(primary, verification)
	require.Len(t, mismatches, 1)
	require.Contains(t, mismatches[0], "available_usdt")
}

func TestCompareMirrors_IntegerFieldsCompareExactly(t *testing.T) {
	primary, verification := consistentPair(t, []byte("test-secret"))

	verification.AvailableNFTCount++

	mismatches := compareMirrors(primary, verification)
	require.Len(t, mismatches, 1)
	require.Contains(t, mismatches[0], "available_nft_count")
}

func TestVerifyStoredHashes_Clean(t *testing.T) {
	secret := []byte("test-secret")
	primary, verification := consistentPair(t, secret)

	require.Empty(t, verifyStoredHashes(secret, primary, verification))
}

func TestVerifyStoredHashes_DetectsTamperedBalance(t *testing.T) {
	secret := []byte("test-secret")
	primary, verification := consistentPair(t, secret)

	// a direct UPDATE that skips the ledger leaves the stored hash stale
	primary.AvailableUSDT = primary.AvailableUSDT.Add(decimal.RequireFromString("500"))

	mismatches := verifyStoredHashes(secret, primary, verification)
	require.NotEmpty(t, mismatches)
	require.Contains(t, mismatches[0], "primary record integrity hash mismatch")
}

func TestVerifyStoredHashes_DetectsForgedCrossReference(t *testing.T) {
	secret := []byte("test-secret")
	primary, verification := consistentPair(t, secret)

	verification.CrossReferenceHash = crossReferenceHash([]byte("wrong-secret"),
		primary.IntegrityHash, verification.IntegrityHash)

	mismatches := verifyStoredHashes(secret, primary, verification)
	require.Len(t, mismatches, 1)
	require.Contains(t, mismatches[0], "cross-reference hash mismatch")
}

func TestVerifyStoredHashes_WrongSecretFailsEverything(t *testing.T) {
	primary, verification := consistentPair(t, []byte("test-secret"))

	mismatches := verifyStoredHashes([]byte("rotated-secret"), primary, verification)
	require.Len(t, mismatches, 3)
}

func TestCompareSnapshot_WithinTolerance(t *testing.T) {
	primary, _ := consistentPair(t, []byte("test-secret"))

	fields := fieldsOfPrimary(primary)
	// snapshot lags the ledger by less than a cent
	fields.AvailableUSDT = fields.AvailableUSDT.Sub(decimal.RequireFromString("0.009"))

	snapshotJSON, err := encodeSnapshot(fields)
	require.NoError(t, err)

	drifts, err := compareSnapshot(primary, &repository.ChecksumSnapshot{BalanceSnapshot: snapshotJSON})
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestCompareSnapshot_BeyondTolerance(t *testing.T) {
	primary, _ := consistentPair(t, []byte("test-secret"))

	fields := fieldsOfPrimary(primary)
	fields.AvailableUSDT = fields.AvailableUSDT.Sub(decimal.RequireFromString("0.02"))

	snapshotJSON, err := encodeSnapshot(fields)
	require.NoError(t, err)

	drifts, err := compareSnapshot(primary, &repository.ChecksumSnapshot{BalanceSnapshot: snapshotJSON})
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Contains(t, drifts[0], "available_usdt")
}

func TestCompareSnapshot_MalformedPayload(t *testing.T) {
	primary, _ := consistentPair(t, []byte("test-secret"))

	_, err := compareSnapshot(primary, &repository.ChecksumSnapshot{BalanceSnapshot: "not-json"})
	require.Error(t, err)
}
