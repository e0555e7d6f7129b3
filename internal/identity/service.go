package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"security-guard/internal/apperr"
	"security-guard/internal/rbac"
	"security-guard/pkg/logger"
	"security-guard/pkg/utils"

	"github.com/google/uuid"
)

// Service is the user directory: registration, lookup and role grants.
type Service struct {
	repo    Repository
	runner  Runner
	hasher  *Hasher
	timeout time.Duration
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, runner Runner, hasher *Hasher, storeTimeout time.Duration) *Service {
	return &Service{repo: repo, runner: runner, hasher: hasher, timeout: storeTimeout, clock: time.Now}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	cp := *s
	cp.clock = clock
	return &cp
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

func (r RegisterRequest) normalize() (RegisterRequest, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = normalizeEmail(r.Email)

	var problems []string
	if !usernamePattern.MatchString(r.Username) {
		problems = append(problems, "username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		problems = append(problems, "email is invalid")
	}
	// bcrypt only looks at the first 72 bytes.
	if n := len(r.Password); n < 8 || n > 72 {
		problems = append(problems, "password must be 8-72 bytes")
	}
	if len(problems) > 0 {
		return r, fmt.Errorf("%w: %s", apperr.ErrValidation, strings.Join(problems, "; "))
	}
	return r, nil
}

// Register creates an enabled identity holding ROLE_USER.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Identity, error) {
	req, err := req.normalize()
	if err != nil {
		return Identity{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return Identity{}, err
	}

	now := s.clock().UTC()
	u := Identity{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        []rbac.Role{rbac.RoleUser},
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.runner.InTx(ctx, func(repo Repository) error {
		usernameTaken, emailTaken, err := repo.Taken(ctx, u.Username, u.Email)
		if err != nil {
			return err
		}
		if usernameTaken || emailTaken {
			return alreadyExists(usernameTaken, emailTaken)
		}
		return repo.Create(ctx, u)
	})
	if err != nil {
		return Identity{}, apperr.Unavailable(err)
	}
	return u, nil
}

func alreadyExists(usernameTaken, emailTaken bool) error {
	switch {
	case usernameTaken && emailTaken:
		return fmt.Errorf("%w: username and email are taken", apperr.ErrAlreadyExists)
	case usernameTaken:
		return fmt.Errorf("%w: username is taken", apperr.ErrAlreadyExists)
	default:
		return fmt.Errorf("%w: email is taken", apperr.ErrAlreadyExists)
	}
}

// CheckCredentials returns the identity matching identifier and password.
// Every failure, including an inactive account, is ErrAuthenticationFailed.
func (s *Service) CheckCredentials(ctx context.Context, identifier, password string) (Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return Identity{}, apperr.ErrAuthenticationFailed
	}

	u, err := s.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.hasher.Burn(password)
			return Identity{}, apperr.ErrAuthenticationFailed
		}
		return Identity{}, err
	}
	if !s.hasher.Check(u.PasswordHash, password) {
		return Identity{}, apperr.ErrAuthenticationFailed
	}
	if !u.Active() {
		logger.From(ctx).Warn("login rejected", "reason", "account inactive", "user_id", u.ID)
		return Identity{}, apperr.ErrAuthenticationFailed
	}
	return u, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Identity{}, apperr.ErrNotFound
	}
	ctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.repo.FindByID(ctx, id)
	return u, apperr.Unavailable(err)
}

func (s *Service) FindByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	ctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.repo.FindByIdentifier(ctx, strings.TrimSpace(identifier))
	return u, apperr.Unavailable(err)
}

// GrantRole adds role to the identity. Granting a role already held is a no-op.
func (s *Service) GrantRole(ctx context.Context, id string, role rbac.Role) (Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Identity{}, apperr.ErrNotFound
	}

	ctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out Identity
	err := s.runner.InTx(ctx, func(repo Repository) error {
		if err := repo.AddRole(ctx, id, role, s.clock().UTC()); err != nil {
			return err
		}
		u, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return Identity{}, apperr.Unavailable(err)
	}
	return out, nil
}
