package tokens

import (
	"context"
	"errors"
	"time"

	"security-guard/internal/auth"
	"security-guard/internal/identity"

	"github.com/google/uuid"
)

// Issuer signs a fresh pair for an identity and persists it.
type Issuer struct {
	signer     *auth.Signer
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(signer *auth.Signer, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}
	return &Issuer{signer: signer, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// Issue signs an access and a refresh token for u and stores them through
// repo.Replace, superseding the previous record. Superseded tokens are not
// blacklisted. repo is normally bound to the caller's transaction.
func (i *Issuer) Issue(ctx context.Context, repo Repository, u identity.Identity) (Record, error) {
	access, ac, err := i.signer.Sign(auth.KindAccess, u.ID, auth.Extra{Roles: u.Authorities()}, i.accessTTL)
	if err != nil {
		return Record{}, err
	}
	refresh, rc, err := i.signer.Sign(auth.KindRefresh, u.ID, auth.Extra{}, i.refreshTTL)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:               uuid.NewString(),
		UserID:           u.ID,
		Kind:             auth.KindAccess,
		AccessToken:      access,
		RefreshToken:     refresh,
		IssuedAt:         ac.IssuedAt.Time,
		ExpiresAt:        ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
		UpdatedAt:        ac.IssuedAt.Time,
	}
	if err := repo.Replace(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
