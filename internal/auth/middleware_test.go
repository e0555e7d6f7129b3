package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"security-guard/internal/apperr"

	"github.com/gin-gonic/gin"
)

type stubPrincipal string

func (p stubPrincipal) Subject() string       { return string(p) }
func (p stubPrincipal) Credentials() string   { return "" }
func (p stubPrincipal) Authorities() []string { return []string{"ROLE_USER"} }

type stubAuthenticator struct {
	tokens map[string]Principal
	err    error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.tokens[token]; ok {
		return p, nil
	}
	return nil, apperr.TokenInvalid(apperr.ErrTokenSignature)
}

func newRouter(a Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(a))
	r.GET("/open", func(c *gin.Context) {
		if p, ok := PrincipalFrom(c.Request.Context()); ok {
			c.String(http.StatusOK, p.Subject())
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	r.GET("/closed", RequireAuthenticated(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func do(r http.Handler, path, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate_AttachesPrincipal(t *testing.T) {
	r := newRouter(stubAuthenticator{tokens: map[string]Principal{"good": stubPrincipal("alice")}})

	w := do(r, "/open", "Bearer good")
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Fatalf("expected alice, got %d %q", w.Code, w.Body.String())
	}
	if w := do(r, "/closed", "Bearer good"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAuthenticate_InvalidTokenContinuesAnonymous(t *testing.T) {
	r := newRouter(stubAuthenticator{})

	w := do(r, "/open", "Bearer bad")
	if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
		t.Fatalf("expected anonymous, got %d %q", w.Code, w.Body.String())
	}
	if w := do(r, "/closed", "Bearer bad"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := do(r, "/closed", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}
	if w := do(r, "/closed", "Basic abc"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", w.Code)
	}
}

func TestAuthenticate_StoreOutageIs503(t *testing.T) {
	r := newRouter(stubAuthenticator{err: apperr.Unavailable(context.DeadlineExceeded)})

	if w := do(r, "/open", "Bearer any"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w := do(r, "/open", ""); w.Code != http.StatusOK {
		t.Fatalf("anonymous request must not hit the store, got %d", w.Code)
	}
}

func TestAuthenticate_SchemeIsCaseInsensitive(t *testing.T) {
	r := newRouter(stubAuthenticator{tokens: map[string]Principal{"good": stubPrincipal("u-1")}})

	for _, h := range []string{"Bearer good", "bearer good", "BEARER  good"} {
		if w := do(r, "/open", h); w.Body.String() != "u-1" {
			t.Fatalf("%q: expected principal, got %q", h, w.Body.String())
		}
	}
	for _, h := range []string{"Bearergood", "Bearer ", "Token good"} {
		if w := do(r, "/open", h); w.Body.String() != "anonymous" {
			t.Fatalf("%q: expected anonymous, got %q", h, w.Body.String())
		}
	}
}
