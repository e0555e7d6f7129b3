package auth

import (
	"errors"
	"fmt"
	"time"

	"security-guard/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrSecretTooShort   = fmt.Errorf("JWT_SECRET must be at least %d bytes", config.MinJWTSecretBytes)
	ErrMalformed        = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("signature invalid")
	ErrExpired          = errors.New("token expired")
)

// Signer issues and verifies HS256 tokens. It holds no mutable state after
// construction and is safe for concurrent use.
type Signer struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

func NewSigner(cfg config.AuthConfig) (*Signer, error) {
	if len([]byte(cfg.JWTSecret)) < config.MinJWTSecretBytes {
		return nil, ErrSecretTooShort
	}
	return &Signer{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		clock:  time.Now,
	}, nil
}

// MustNewSigner panics when cfg cannot produce a signer. Startup only.
func MustNewSigner(cfg config.AuthConfig) *Signer {
	s, err := NewSigner(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// WithClock returns a copy of s reading time from clock.
func (s *Signer) WithClock(clock func() time.Time) *Signer {
	cp := *s
	cp.clock = clock
	return &cp
}

func (s *Signer) Now() time.Time { return s.clock() }

/* ===================== SIGN ===================== */

func (s *Signer) Sign(kind Kind, subject string, extra Extra, ttl time.Duration) (string, Claims, error) {
	if !kind.Valid() {
		return "", Claims{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if subject == "" {
		return "", Claims{}, errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", Claims{}, errors.New("ttl must be positive")
	}

	now := s.clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// jti keeps two tokens issued within the same second distinct.
			ID: uuid.NewString(),
		},
		Kind:  kind,
		Roles: extra.Roles,
		Extra: extra.Values,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

/* ===================== VERIFY ===================== */

// Verify checks the signature first and then exp/iat against the signer clock.
// The returned error is one of ErrMalformed, ErrSignatureInvalid or ErrExpired.
func (s *Signer) Verify(token string) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claims{}, ErrSignatureInvalid
		}
		return Claims{}, ErrMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(s.clock),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if err := jwt.NewValidator(opts...).Validate(claims.RegisteredClaims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}

	if claims.Subject == "" || !claims.Kind.Valid() {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}
