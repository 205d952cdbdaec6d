// internal/ledger/hash.go
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashLen is the truncated hex length of a content hash. 16 hex chars
// carry 64 bits, which keeps collision odds negligible at tens of
// millions of postings while fitting a bounded varchar column.
const HashLen = 16

// Hash derives the dedup key for a posting from its normalized title and
// company. Reposts and rescrapes of the same (title, company) pair hash
// identically regardless of posting id, so they never re-notify.
func Hash(title, company string) string {
	norm := normalize(title) + "|" + normalize(company)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:HashLen]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
