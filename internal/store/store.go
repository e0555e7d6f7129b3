// Package store groups the repositories that must change together and runs
// them in one transaction.
package store

import (
	"context"
	"database/sql"
	"sync"

	"security-guard/internal/identity"
	"security-guard/internal/revocation"
	"security-guard/internal/tokens"
	"security-guard/pkg/utils"
)

// Repos is a set of repositories bound to the same connection or transaction.
type Repos struct {
	Users       identity.Repository
	Tokens      tokens.Repository
	Revocations revocation.Repository
}

// Store hands out Repos, either directly or inside a transaction.
type Store interface {
	Repos() Repos
	InTx(ctx context.Context, fn func(Repos) error) error
}

/* ===================== POSTGRES ===================== */

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func bind(db utils.DBTX) Repos {
	return Repos{
		Users:       identity.NewPostgresRepo(db),
		Tokens:      tokens.NewPostgresRepo(db),
		Revocations: revocation.NewPostgresRepo(db),
	}
}

func (p *Postgres) Repos() Repos { return bind(p.db) }

// InTx commits when fn returns nil and rolls back otherwise.
func (p *Postgres) InTx(ctx context.Context, fn func(Repos) error) error {
	return utils.WithTx(ctx, p.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(bind(tx))
	})
}

// Users exposes the store as an identity.Runner.
func (p *Postgres) Users() identity.Runner { return usersRunner{p} }

/* ===================== MEMORY ===================== */

// Memory backs every repository with process memory. Transactions run one at
// a time and roll back by restoring a snapshot. Tests only.
type Memory struct {
	mu         sync.Mutex
	UsersRepo  *identity.MemoryRepo
	TokensRepo *tokens.MemoryRepo
	Revoked    *revocation.MemoryRepo
}

func NewMemory() *Memory {
	return &Memory{
		UsersRepo:  identity.NewMemoryRepo(),
		TokensRepo: tokens.NewMemoryRepo(),
		Revoked:    revocation.NewMemoryRepo(),
	}
}

func (m *Memory) Repos() Repos {
	return Repos{Users: m.UsersRepo, Tokens: m.TokensRepo, Revocations: m.Revoked}
}

func (m *Memory) InTx(_ context.Context, fn func(Repos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	restore := []func(){m.UsersRepo.Snapshot(), m.TokensRepo.Snapshot(), m.Revoked.Snapshot()}
	if err := fn(m.Repos()); err != nil {
		for _, r := range restore {
			r()
		}
		return err
	}
	return nil
}

func (m *Memory) Users() identity.Runner { return usersRunner{m} }

type usersRunner struct {
	s Store
}

func (u usersRunner) InTx(ctx context.Context, fn func(identity.Repository) error) error {
	return u.s.InTx(ctx, func(r Repos) error { return fn(r.Users) })
}
