package revocation

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is an append-only blacklist record. A token whose hash appears here is
// never trusted again, whatever its signature or expiry say.
type Entry struct {
	ID        string `json:"id"`
	TokenHash string `json:"token_hash"`
	UserID    string `json:"user_id,omitempty"`
	Reason    string `json:"reason,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
	// ExpiresAt is the natural expiry of the token. Informational only.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Reasons recorded by the token lifecycle.
const (
	ReasonLogout  = "logout"
	ReasonRefresh = "refresh"
)

// Revocation asks for a token to be blacklisted.
type Revocation struct {
	Token     string
	UserID    string
	Reason    string
	ExpiresAt time.Time
}

// HashToken is the lookup key of a token. Raw tokens are never stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
