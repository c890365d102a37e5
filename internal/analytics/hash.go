package analytics

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// ipHashLength is the hex length of a hashed client address.
const ipHashLength = 16

// HashIP produces a privacy-safe client identifier: a keyed BLAKE2b
// MAC of the address, truncated to 16 hex chars. The key is the
// process-wide IP_HASH_SECRET, so hashes stay comparable across
// requests and restarts while the raw address is unrecoverable.
func HashIP(ip, secret string) string {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	h, err := blake2b.New256(key)
	if err != nil {
		// Only reachable with an oversized key, which is prevented above.
		sum := blake2b.Sum256(append(key, []byte(ip)...))
		return hex.EncodeToString(sum[:])[:ipHashLength]
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))[:ipHashLength]
}
