package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"security-guard/internal/apperr"
	"security-guard/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerScheme = "Bearer"

// Authenticator resolves a raw access token to the principal that owns it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// BearerToken returns the token from the Authorization header, if present.
// The scheme is matched case-insensitively.
func BearerToken(c *gin.Context) (string, bool) {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(c.GetHeader(authorizationHeader)), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// Authenticate runs on every route. A valid access token attaches its
// principal to the request context; a missing or rejected token lets the
// request continue anonymously so that route guards decide. Store outages
// abort with 503.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := BearerToken(c)
		if !ok {
			c.Next()
			return
		}

		p, err := a.Authenticate(c.Request.Context(), tok)
		if err != nil {
			if errors.Is(err, apperr.ErrUnavailable) {
				logger.FromGin(c).Error("authenticate", "error", err)
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
				return
			}
			logger.FromGin(c).Debug("bearer rejected", "reason", apperr.Reason(err))
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Set("subject", p.Subject())
		c.Next()
	}
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
