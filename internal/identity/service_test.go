package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"security-guard/internal/apperr"
	"security-guard/internal/rbac"
)

func newTestService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	h, err := NewHasher(4)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	repo := NewMemoryRepo()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(repo, repo, h, time.Second).WithClock(func() time.Time { return now })
	return svc, repo
}

func TestRegister_CreatesActiveUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: " Alice@Example.com ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "alice@example.com" || !u.Active() || !u.HasRole(rbac.RoleUser) {
		t.Fatalf("unexpected identity: %+v", u)
	}
	if u.PasswordHash == "correct horse" {
		t.Fatalf("password stored in clear")
	}

	got, err := svc.FindByID(ctx, u.ID)
	if err != nil || got.Username != "alice" {
		t.Fatalf("find: %+v %v", got, err)
	}
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "other@example.com", Password: "password1"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for username, got %v", err)
	}
	_, err = svc.Register(ctx, RegisterRequest{Username: "bob", Email: "ALICE@example.com", Password: "password1"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for email, got %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []RegisterRequest{
		{Username: "a", Email: "a@example.com", Password: "password1"},
		{Username: "alice", Email: "nope", Password: "password1"},
		{Username: "alice", Email: "alice@example.com", Password: "short"},
	}
	for _, req := range cases {
		if _, err := svc.Register(context.Background(), req); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", req, err)
		}
	}
}

func TestCheckCredentials(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, id := range []string{"alice", "ALICE@example.com"} {
		if _, err := svc.CheckCredentials(ctx, id, "password1"); err != nil {
			t.Fatalf("login with %q: %v", id, err)
		}
	}

	if _, err := svc.CheckCredentials(ctx, "alice", "wrong-pass"); !errors.Is(err, apperr.ErrAuthenticationFailed) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if _, err := svc.CheckCredentials(ctx, "nobody", "password1"); !errors.Is(err, apperr.ErrAuthenticationFailed) {
		t.Fatalf("expected auth failure for unknown user, got %v", err)
	}

	u.Locked = true
	repo.Update(u)
	if _, err := svc.CheckCredentials(ctx, "alice", "password1"); !errors.Is(err, apperr.ErrAuthenticationFailed) {
		t.Fatalf("expected auth failure for locked user, got %v", err)
	}
}

func TestGrantRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.GrantRole(ctx, u.ID, rbac.RoleAdmin)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if !got.HasRole(rbac.RoleAdmin) || !got.HasRole(rbac.RoleUser) {
		t.Fatalf("unexpected roles %v", got.Roles)
	}

	again, err := svc.GrantRole(ctx, u.ID, rbac.RoleAdmin)
	if err != nil || len(again.Roles) != 2 {
		t.Fatalf("expected idempotent grant, got %v %v", again.Roles, err)
	}

	if _, err := svc.GrantRole(ctx, "00000000-0000-0000-0000-000000000000", rbac.RoleAdmin); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GrantRole(ctx, "not-a-uuid", rbac.RoleAdmin); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
}
