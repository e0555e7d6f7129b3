package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a granted authority. The set is closed; see ParseRole.
type Role string

// Role names. Keep these stable; they are persisted and carried in tokens.
const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

var ErrUnknownRole = errors.New("unknown role")

func (r Role) String() string { return string(r) }

// ParseRole accepts "ROLE_ADMIN" as well as "admin" in any case.
func ParseRole(s string) (Role, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(v, "ROLE_") {
		v = "ROLE_" + v
	}
	switch Role(v) {
	case RoleUser, RoleAdmin:
		return Role(v), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Strings converts roles to their wire form.
func Strings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
