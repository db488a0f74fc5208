// Package checksum derives content digests and the HTTP validators built on them.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a digest for use as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether an If-None-Match header value names sum.
// "*" matches any existing representation.
func Matches(header, sum string) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "W/")
		if part == "*" || strings.Trim(part, `"`) == sum {
			return true
		}
	}
	return false
}
