package auth

import "github.com/golang-jwt/jwt/v5"

// Kind tells an access token apart from a refresh token.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Claims are the only supported JWT claims shape for this service.
// Subject is the owning identity id; it is re-resolved on every validation.
type Claims struct {
	jwt.RegisteredClaims

	Kind  Kind           `json:"token_type"`
	Roles []string       `json:"roles,omitempty"`
	Extra map[string]any `json:"ext,omitempty"`
}

// Extra carries the optional, non-registered payload of a token.
type Extra struct {
	Roles  []string
	Values map[string]any
}
