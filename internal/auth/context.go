package auth

import "context"

// Principal is the authenticated caller attached to a request.
type Principal interface {
	Subject() string
	Credentials() string
	Authorities() []string
}

type ctxKey int

const (
	ctxPrincipal ctxKey = iota
)

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

// PrincipalFrom returns the principal set by Authenticate, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	if !ok || p == nil {
		return nil, false
	}
	return p, true
}
