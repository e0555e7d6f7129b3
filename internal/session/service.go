// Package session drives the token lifecycle: login, refresh, logout and
// registration. Every mutation of one step commits in a single transaction.
package session

import (
	"context"
	"errors"
	"time"

	"security-guard/internal/apperr"
	"security-guard/internal/audit"
	"security-guard/internal/identity"
	"security-guard/internal/rbac"
	"security-guard/internal/revocation"
	"security-guard/internal/store"
	"security-guard/internal/tokens"
	"security-guard/pkg/logger"
	"security-guard/pkg/utils"
)

type Deps struct {
	Store       store.Store
	Users       *identity.Service
	Issuer      *tokens.Issuer
	Validator   *tokens.Validator
	Revocations *revocation.Store
	// Audit is optional.
	Audit *audit.Service

	StoreTimeout time.Duration
}

type Service struct {
	store       store.Store
	users       *identity.Service
	issuer      *tokens.Issuer
	validator   *tokens.Validator
	revocations *revocation.Store
	audit       *audit.Service
	timeout     time.Duration
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(d Deps) (*Service, error) {
	if d.Store == nil || d.Users == nil || d.Issuer == nil || d.Validator == nil || d.Revocations == nil {
		return nil, errors.New("session: missing dependency")
	}
	return &Service{
		store:       d.Store,
		users:       d.Users,
		issuer:      d.Issuer,
		validator:   d.Validator,
		revocations: d.Revocations,
		audit:       d.Audit,
		timeout:     d.StoreTimeout,
		clock:       time.Now,
	}, nil
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	cp := *s
	cp.clock = clock
	return &cp
}

/* ===================== LOGIN ===================== */

// Login authenticates identifier/password and returns a pair. While the
// identity's current access token still validates, that same pair is
// returned and nothing is written.
func (s *Service) Login(ctx context.Context, identifier, password string) (tokens.Pair, error) {
	log := logger.From(ctx)

	u, err := s.users.CheckCredentials(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthenticationFailed) {
			log.Warn("login failed", "reason", "bad credentials")
		} else {
			log.Error("login failed", "error", err)
		}
		return tokens.Pair{}, err
	}

	if pair, ok, err := s.currentPair(ctx, u.ID); err != nil {
		log.Error("login failed", "user_id", u.ID, "error", err)
		return tokens.Pair{}, err
	} else if ok {
		s.audit.Record(ctx, audit.Event{Type: audit.EventLoginReused, UserID: u.ID})
		return pair, nil
	}

	txCtx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec tokens.Record
	err = s.store.InTx(txCtx, func(r store.Repos) error {
		var err error
		if rec, err = s.issuer.Issue(txCtx, r.Tokens, u); err != nil {
			return err
		}
		return r.Users.TouchLastLogin(txCtx, u.ID, s.clock().UTC())
	})
	if err != nil {
		err = apperr.Unavailable(err)
		log.Error("token issuance failed", "user_id", u.ID, "error", err)
		return tokens.Pair{}, err
	}

	s.audit.Record(ctx, audit.Event{Type: audit.EventLogin, UserID: u.ID})
	log.Info("login", "user_id", u.ID)
	return rec.Pair(), nil
}

// currentPair returns the active pair of userID when its access token is
// still trustworthy.
func (s *Service) currentPair(ctx context.Context, userID string) (tokens.Pair, bool, error) {
	qctx, cancel := utils.WithTimeout(ctx, s.timeout)
	rec, err := s.store.Repos().Tokens.ActiveByUser(qctx, userID)
	cancel()
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return tokens.Pair{}, false, nil
		}
		return tokens.Pair{}, false, apperr.Unavailable(err)
	}

	if _, err := s.validator.ValidateAccess(ctx, rec.AccessToken); err != nil {
		if errors.Is(err, apperr.ErrTokenInvalid) {
			return tokens.Pair{}, false, nil
		}
		return tokens.Pair{}, false, err
	}
	return rec.Pair(), true, nil
}

/* ===================== REFRESH ===================== */

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is blacklisted in the same transaction, so it works exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (tokens.Pair, error) {
	log := logger.From(ctx)

	res, err := s.validator.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		s.logRejected(ctx, "refresh rejected", err)
		return tokens.Pair{}, err
	}
	u := res.Identity

	txCtx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		rec   tokens.Record
		entry revocation.Entry
	)
	err = s.store.InTx(txCtx, func(r store.Repos) error {
		e, inserted, err := s.revocations.RevokeIn(txCtx, r.Revocations, revocation.Revocation{
			Token:     refreshToken,
			UserID:    u.ID,
			Reason:    revocation.ReasonRefresh,
			ExpiresAt: res.Claims.ExpiresAt.Time,
		})
		if err != nil {
			return err
		}
		if !inserted {
			// Lost a race with a concurrent refresh of the same token.
			return apperr.TokenInvalid(apperr.ErrTokenRevoked)
		}
		entry = e
		rec, err = s.issuer.Issue(txCtx, r.Tokens, u)
		return err
	})
	if err != nil {
		err = apperr.Unavailable(err)
		s.logRejected(ctx, "refresh failed", err)
		return tokens.Pair{}, err
	}

	s.revocations.Remember(ctx, entry)
	s.audit.Record(ctx, audit.Event{Type: audit.EventRefresh, UserID: u.ID})
	log.Info("refresh", "user_id", u.ID)
	return rec.Pair(), nil
}

/* ===================== LOGOUT ===================== */

// Logout blacklists the presented access token and deactivates its record.
// The paired refresh token is left untouched.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	log := logger.From(ctx)

	res, err := s.validator.ValidateAccess(ctx, accessToken)
	if err != nil {
		s.logRejected(ctx, "logout rejected", err)
		return err
	}
	u := res.Identity

	txCtx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()

	var entry revocation.Entry
	err = s.store.InTx(txCtx, func(r store.Repos) error {
		rec, err := r.Tokens.FindByAccessToken(txCtx, accessToken)
		switch {
		case err == nil && !rec.Revoked:
			if err := r.Tokens.Deactivate(txCtx, rec.ID, s.clock().UTC()); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			return err
		}

		entry, _, err = s.revocations.RevokeIn(txCtx, r.Revocations, revocation.Revocation{
			Token:     accessToken,
			UserID:    u.ID,
			Reason:    revocation.ReasonLogout,
			ExpiresAt: res.Claims.ExpiresAt.Time,
		})
		return err
	})
	if err != nil {
		err = apperr.Unavailable(err)
		log.Error("logout failed", "user_id", u.ID, "error", err)
		return err
	}

	s.revocations.Remember(ctx, entry)
	s.audit.Record(ctx, audit.Event{Type: audit.EventLogout, UserID: u.ID})
	log.Info("logout", "user_id", u.ID)
	return nil
}

/* ===================== DIRECTORY ===================== */

func (s *Service) Register(ctx context.Context, req identity.RegisterRequest) (identity.Identity, error) {
	u, err := s.users.Register(ctx, req)
	if err != nil {
		if apperr.IsBusiness(err) {
			logger.From(ctx).Warn("register rejected", "reason", err.Error())
		} else {
			logger.From(ctx).Error("register failed", "error", err)
		}
		return identity.Identity{}, err
	}
	s.audit.Record(ctx, audit.Event{Type: audit.EventRegister, UserID: u.ID})
	return u, nil
}

// GrantRole adds role to userID on behalf of actorID.
func (s *Service) GrantRole(ctx context.Context, actorID, userID string, role rbac.Role) (identity.Identity, error) {
	u, err := s.users.GrantRole(ctx, userID, role)
	if err != nil {
		return identity.Identity{}, err
	}
	s.audit.Record(ctx, audit.Event{
		Type:        audit.EventRoleGranted,
		UserID:      u.ID,
		ActorUserID: actorID,
		Message:     string(role),
	})
	return u, nil
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ListTokens pages through token records by status, newest first.
func (s *Service) ListTokens(ctx context.Context, f tokens.ListFilter) (tokens.Page, error) {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	f.PageSize = min(f.PageSize, MaxPageSize)

	qctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()
	page, err := s.store.Repos().Tokens.List(qctx, f)
	return page, apperr.Unavailable(err)
}

func (s *Service) logRejected(ctx context.Context, msg string, err error) {
	if errors.Is(err, apperr.ErrTokenInvalid) {
		logger.From(ctx).Warn(msg, "reason", apperr.Reason(err))
		return
	}
	logger.From(ctx).Error(msg, "error", err)
}
