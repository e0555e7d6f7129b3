package audit

import "context"

// clientIPKey is an unexported context key for passing client IP through internal layers.
type clientIPKey struct{}

// WithClientIP is called by the HTTP edge once the real client IP is resolved.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(clientIPKey{}).(string); ok {
		return s
	}
	return ""
}
