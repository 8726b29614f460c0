package reports

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashIdentity anonymizes a client IP for report attribution and upvote
// dedup — stable per IP, not reversible back to it.
func hashIdentity(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:16]
}
