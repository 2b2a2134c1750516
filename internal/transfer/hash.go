package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// ChecksumLen is the length of a hex-encoded SHA-256 digest.
const ChecksumLen = sha256.Size * 2

// NewChecksum returns a running SHA-256 accumulator.
func NewChecksum() hash.Hash {
	return sha256.New()
}

// ChecksumHex returns the lowercase hex digest accumulated so far.
func ChecksumHex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// ChecksumBytes returns the hex SHA-256 of data.
func ChecksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// checksumEqual compares digests case-insensitively.
func checksumEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
