package tokens

import (
	"context"
	"errors"

	"security-guard/internal/apperr"
	"security-guard/internal/auth"
	"security-guard/internal/identity"
)

// RevocationChecker is the part of revocation.Store the validator needs.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// IdentityLookup resolves a token subject.
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (identity.Identity, error)
}

// Validated is a token that passed every check, with its owner.
type Validated struct {
	Identity identity.Identity
	Claims   auth.Claims
	Token    string
}

// Validator decides whether a presented token may be trusted right now.
type Validator struct {
	signer  *auth.Signer
	revoked RevocationChecker
	users   IdentityLookup
}

func NewValidator(signer *auth.Signer, revoked RevocationChecker, users IdentityLookup) *Validator {
	return &Validator{signer: signer, revoked: revoked, users: users}
}

func (v *Validator) ValidateAccess(ctx context.Context, token string) (Validated, error) {
	return v.validate(ctx, token, auth.KindAccess)
}

func (v *Validator) ValidateRefresh(ctx context.Context, token string) (Validated, error) {
	return v.validate(ctx, token, auth.KindRefresh)
}

// Authenticate adapts ValidateAccess for the inbound request filter.
func (v *Validator) Authenticate(ctx context.Context, token string) (auth.Principal, error) {
	res, err := v.ValidateAccess(ctx, token)
	if err != nil {
		return nil, err
	}
	return res.Identity, nil
}

// validate short-circuits on the first failing check, in order: empty,
// blacklisted, signature and expiry, subject, account state, kind.
func (v *Validator) validate(ctx context.Context, token string, want auth.Kind) (Validated, error) {
	if token == "" {
		return Validated{}, apperr.TokenInvalid(apperr.ErrTokenEmpty)
	}

	revoked, err := v.revoked.IsRevoked(ctx, token)
	if err != nil {
		return Validated{}, apperr.Unavailable(err)
	}
	if revoked {
		return Validated{}, apperr.TokenInvalid(apperr.ErrTokenRevoked)
	}

	claims, err := v.signer.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpired):
			return Validated{}, apperr.TokenInvalid(apperr.ErrTokenExpired)
		case errors.Is(err, auth.ErrSignatureInvalid):
			return Validated{}, apperr.TokenInvalid(apperr.ErrTokenSignature)
		default:
			return Validated{}, apperr.TokenInvalid(apperr.ErrTokenMalformed)
		}
	}

	u, err := v.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Validated{}, apperr.TokenInvalid(apperr.ErrSubjectUnknown)
		}
		return Validated{}, apperr.Unavailable(err)
	}
	if !u.Active() {
		return Validated{}, apperr.TokenInvalid(apperr.ErrAccountInactive)
	}

	if claims.Kind != want {
		return Validated{}, apperr.TokenInvalid(apperr.ErrTokenKind)
	}
	return Validated{Identity: u, Claims: claims, Token: token}, nil
}
