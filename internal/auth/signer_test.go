package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"security-guard/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = strings.Repeat("s", config.MinJWTSecretBytes)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestSigner(t *testing.T, now time.Time) *Signer {
	t.Helper()
	s, err := NewSigner(config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "guard"})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return s.WithClock(fixedClock(now))
}

func TestNewSigner_RejectsShortSecret(t *testing.T) {
	_, err := NewSigner(config.AuthConfig{JWTSecret: strings.Repeat("s", config.MinJWTSecretBytes-1)})
	if !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
}

func TestMustNewSigner_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustNewSigner(config.AuthConfig{JWTSecret: "short"})
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	s := newTestSigner(t, now)

	tok, issued, err := s.Sign(KindAccess, "user-1", Extra{Roles: []string{"ROLE_USER"}}, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !issued.ExpiresAt.Time.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected exp %v", issued.ExpiresAt)
	}

	claims, err := s.WithClock(fixedClock(now.Add(time.Minute))).Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Kind != KindAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "ROLE_USER" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("jti not carried: %q vs %q", claims.ID, issued.ID)
	}
}

func TestSign_SameSecondTokensDiffer(t *testing.T) {
	s := newTestSigner(t, time.Unix(1700000000, 0))
	a, _, err := s.Sign(KindRefresh, "u", Extra{}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	b, _, err := s.Sign(KindRefresh, "u", Extra{}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newTestSigner(t, now)
	tok, _, err := s.Sign(KindAccess, "u", Extra{}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := s.WithClock(fixedClock(now.Add(time.Minute))).Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at exp, got %v", err)
	}
	if _, err := s.WithClock(fixedClock(now.Add(59 * time.Second))).Verify(tok); err != nil {
		t.Fatalf("expected valid just before exp, got %v", err)
	}
}

func TestVerify_SignatureAndMalformed(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newTestSigner(t, now)
	tok, _, err := s.Sign(KindAccess, "u", Extra{}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	other, err := NewSigner(config.AuthConfig{JWTSecret: strings.Repeat("x", config.MinJWTSecretBytes), JWTIssuer: "guard"})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	if _, err := other.WithClock(fixedClock(now)).Verify(tok); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	if _, err := s.Verify("not-a-jwt"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestVerify_RejectsUnexpectedAlgorithm(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newTestSigner(t, now)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			Issuer:    "guard",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Kind: KindAccess,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(tok); err == nil {
		t.Fatalf("expected HS512 token to be rejected")
	}
}

func TestVerify_RequiresKnownKind(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newTestSigner(t, now)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			Issuer:    "guard",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Kind: "session",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := s.Verify(tok); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestVerify_RejectsForeignIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	other, err := NewSigner(config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "someone-else"})
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	tok, _, err := other.WithClock(fixedClock(now)).Sign(KindAccess, "u-1", Extra{}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := newTestSigner(t, now).Verify(tok); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for foreign issuer, got %v", err)
	}
	if _, err := newTestSigner(t, now.Add(-time.Hour)).Verify(tok); err == nil {
		t.Fatalf("expected token issued in the future to be rejected")
	}
}
