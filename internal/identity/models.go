package identity

import (
	"slices"
	"time"

	"security-guard/internal/rbac"
)

// Identity is a user account. It satisfies auth.Principal.
//
// A token is presentable only while the account is Active: enabled, not
// locked, with neither credentials nor account expired.
type Identity struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Roles        []rbac.Role `json:"roles"`

	Enabled            bool `json:"enabled"`
	Locked             bool `json:"locked"`
	CredentialsExpired bool `json:"credentials_expired"`
	AccountExpired     bool `json:"account_expired"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (i Identity) Active() bool {
	return i.Enabled && !i.Locked && !i.CredentialsExpired && !i.AccountExpired
}

func (i Identity) HasRole(r rbac.Role) bool {
	return slices.Contains(i.Roles, r)
}

func (i Identity) Subject() string       { return i.ID }
func (i Identity) Credentials() string   { return i.PasswordHash }
func (i Identity) Authorities() []string { return rbac.Strings(i.Roles) }
