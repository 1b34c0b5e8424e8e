package ledger

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceFields is the six-field tuple every hash and comparison in the
// ledger operates on.
type BalanceFields struct {
	TotalEarnedUSDT       decimal.Decimal
	TotalEarnedNFTCount   int64
	AvailableUSDT         decimal.Decimal
	AvailableNFTCount     int64
	TotalWithdrawnUSDT    decimal.Decimal
	TotalRedeemedNFTCount int64
}

// canonicalTuple renders the fields in a fixed order and fixed precision so
// a hash recomputed from a record read back out of the database matches the
// hash computed at write time. Timestamps are truncated to microseconds
// before hashing because that is the precision postgres preserves.
func canonicalTuple(userID string, f BalanceFields, ts time.Time) string {
	return fmt.Sprintf("%s|%s|%d|%s|%d|%s|%d|%d",
		userID,
		f.TotalEarnedUSDT.StringFixed(8),
		f.TotalEarnedNFTCount,
		f.AvailableUSDT.StringFixed(8),
		f.AvailableNFTCount,
		f.TotalWithdrawnUSDT.StringFixed(8),
		f.TotalRedeemedNFTCount,
		ts.UTC().Truncate(time.Microsecond).UnixMicro(),
	)
}

// integrityHash is the keyed SHA-256 stored on each balance record. Both
// ledger copies written in one update must be hashed with the same
// timestamp, so callers compute the timestamp once and pass it in.
func integrityHash(secret []byte, userID string, f BalanceFields, ts time.Time) string {
	h := sha256.New()
	h.Write([]byte(canonicalTuple(userID, f, ts)))
	h.Write([]byte("|"))
	h.Write(secret)
	return hex.EncodeToString(h.Sum(nil))
}

// crossReferenceHash binds the primary and verification hashes together. It
// is stored only on the verification record.
func crossReferenceHash(secret []byte, primaryHash, verificationHash string) string {
	h := sha256.New()
	h.Write([]byte(primaryHash))
	h.Write([]byte(verificationHash))
	h.Write(secret)
	return hex.EncodeToString(h.Sum(nil))
}

// tableChecksum is the third-layer checksum over one ledger table's copy of
// the fields. Each table gets its own salt so the two checksums are not
// interchangeable.
func tableChecksum(secret []byte, salt, userID string, f BalanceFields) string {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte("|"))
	h.Write([]byte(userID))
	h.Write([]byte("|"))
	h.Write([]byte(fmt.Sprintf("%s|%d|%s|%d|%s|%d",
		f.TotalEarnedUSDT.StringFixed(8),
		f.TotalEarnedNFTCount,
		f.AvailableUSDT.StringFixed(8),
		f.AvailableNFTCount,
		f.TotalWithdrawnUSDT.StringFixed(8),
		f.TotalRedeemedNFTCount,
	)))
	h.Write(secret)
	return hex.EncodeToString(h.Sum(nil))
}

func combinedChecksum(secret []byte, primaryChecksum, verificationChecksum string) string {
	h := sha256.New()
	h.Write([]byte(primaryChecksum))
	h.Write([]byte("|"))
	h.Write([]byte(verificationChecksum))
	h.Write(secret)
	return hex.EncodeToString(h.Sum(nil))
}

// transactionContentHash identifies a transaction log entry by its logical
// content.
func transactionContentHash(secret []byte, userID, kind string, usdtBefore, usdtAfter decimal.Decimal, nftBefore, nftAfter int64, ref string) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s|%s|%s|%s|%d|%d|%s",
		userID,
		kind,
		usdtBefore.StringFixed(8),
		usdtAfter.StringFixed(8),
		nftBefore,
		nftAfter,
		ref,
	)))
	h.Write(secret)
	return hex.EncodeToString(h.Sum(nil))
}

// immutableSignature is the SHA-512 anti-replay signature. The nanosecond
// component guarantees two entries with identical logical content still sign
// differently; nothing ever recomputes this value, it exists to make replayed
// rows distinguishable.
func immutableSignature(secret []byte, contentHash string, at time.Time) string {
	h := sha512.New()
	h.Write([]byte(contentHash))
	h.Write([]byte("|"))
	h.Write(secret)
	h.Write([]byte(fmt.Sprintf("|%d", at.UnixNano())))
	return hex.EncodeToString(h.Sum(nil))
}

// hashEqual compares two hex digests in constant time.
func hashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
