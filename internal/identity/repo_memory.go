package identity

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"security-guard/internal/apperr"
	"security-guard/internal/rbac"
)

// MemoryRepo is an in-memory repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	users map[string]Identity
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]Identity)}
}

func (r *MemoryRepo) Create(_ context.Context, u Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.ID == u.ID || existing.Username == u.Username || strings.EqualFold(existing.Email, u.Email) {
			return apperr.ErrAlreadyExists
		}
	}
	r.users[u.ID] = clone(u)
	return nil
}

func (r *MemoryRepo) FindByID(_ context.Context, id string) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return Identity{}, apperr.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepo) FindByIdentifier(_ context.Context, identifier string) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == identifier || strings.EqualFold(u.Email, identifier) {
			return clone(u), nil
		}
	}
	return Identity{}, apperr.ErrNotFound
}

func (r *MemoryRepo) Taken(_ context.Context, username, email string) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var usernameTaken, emailTaken bool
	for _, u := range r.users {
		usernameTaken = usernameTaken || u.Username == username
		emailTaken = emailTaken || strings.EqualFold(u.Email, email)
	}
	return usernameTaken, emailTaken, nil
}

func (r *MemoryRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.LastLoginAt = &at
	u.UpdatedAt = at
	r.users[id] = u
	return nil
}

func (r *MemoryRepo) AddRole(_ context.Context, id string, role rbac.Role, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if !u.HasRole(role) {
		u.Roles = append(slices.Clone(u.Roles), role)
		slices.Sort(u.Roles)
	}
	u.UpdatedAt = at
	r.users[id] = u
	return nil
}

// Update overwrites a stored identity, e.g. to flip account flags in tests.
func (r *MemoryRepo) Update(u Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = clone(u)
}

// InTx runs fn serially against r. A failing fn leaves no partial writes.
func (r *MemoryRepo) InTx(_ context.Context, fn func(Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	restore := r.Snapshot()
	if err := fn(r); err != nil {
		restore()
		return err
	}
	return nil
}

// Snapshot captures the current state and returns a func restoring it.
func (r *MemoryRepo) Snapshot() (restore func()) {
	r.mu.Lock()
	saved := maps.Clone(r.users)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.users = saved
		r.mu.Unlock()
	}
}

func clone(u Identity) Identity {
	u.Roles = slices.Clone(u.Roles)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}
