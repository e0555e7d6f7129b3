package revocation

import (
	"context"
	"errors"
	"time"

	"security-guard/internal/apperr"
	"security-guard/pkg/logger"
	"security-guard/pkg/utils"

	"github.com/google/uuid"
)

// minCacheTTL keeps a freshly revoked, nearly expired token cached briefly.
const minCacheTTL = time.Minute

// Store is the revocation blacklist consulted on every authenticated request.
// Postgres is the source of truth; the cache only shortens the hot path.
type Store struct {
	repo    Repository
	cache   Cache
	timeout time.Duration
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

// NewStore builds a Store. cache may be nil.
func NewStore(repo Repository, cache Cache, storeTimeout time.Duration) *Store {
	return &Store{repo: repo, cache: cache, timeout: storeTimeout, clock: time.Now}
}

func (s *Store) WithClock(clock func() time.Time) *Store {
	cp := *s
	cp.clock = clock
	return &cp
}

// IsRevoked reports whether token was ever blacklisted. Cache failures fall
// through to the repository; repository failures are ErrUnavailable.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	hash := HashToken(token)

	if s.cache != nil {
		cctx, cancel := utils.WithTimeout(ctx, s.timeout)
		hit, err := s.cache.Has(cctx, hash)
		cancel()
		if err != nil {
			logger.From(ctx).Warn("revocation cache lookup failed", "error", err)
		} else if hit {
			return true, nil
		}
	}

	rctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()
	e, err := s.repo.Lookup(rctx, hash)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Unavailable(err)
	}

	s.Remember(ctx, e)
	return true, nil
}

// Revoke blacklists r.Token durably, then caches it. Revoking a token twice
// is not an error.
func (s *Store) Revoke(ctx context.Context, r Revocation) error {
	rctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()
	e, _, err := s.RevokeIn(rctx, s.repo, r)
	if err != nil {
		return err
	}
	s.Remember(ctx, e)
	return nil
}

// RevokeIn performs only the durable insert against repo, which is usually
// bound to the caller's transaction. Call Remember after commit. inserted is
// false when the token was already blacklisted.
func (s *Store) RevokeIn(ctx context.Context, repo Repository, r Revocation) (e Entry, inserted bool, err error) {
	if r.Token == "" {
		return Entry{}, false, apperr.TokenInvalid(apperr.ErrTokenEmpty)
	}

	e = Entry{
		ID:         uuid.NewString(),
		TokenHash:  HashToken(r.Token),
		UserID:     r.UserID,
		Reason:     r.Reason,
		RecordedAt: s.clock().UTC(),
	}
	if !r.ExpiresAt.IsZero() {
		exp := r.ExpiresAt.UTC()
		e.ExpiresAt = &exp
	}

	inserted, err = repo.Insert(ctx, e)
	if err != nil {
		return Entry{}, false, apperr.Unavailable(err)
	}
	return e, inserted, nil
}

// Remember warms the cache for e. Best-effort: failures are only logged.
func (s *Store) Remember(ctx context.Context, e Entry) {
	if s.cache == nil {
		return
	}
	ttl := minCacheTTL
	if e.ExpiresAt != nil {
		if left := e.ExpiresAt.Sub(s.clock()); left > ttl {
			ttl = left
		}
	}

	cctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.cache.Put(cctx, e.TokenHash, e.Reason, ttl); err != nil {
		logger.From(ctx).Warn("revocation cache write failed", "error", err)
	}
}
