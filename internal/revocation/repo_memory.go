package revocation

import (
	"context"
	"maps"
	"sync"

	"security-guard/internal/apperr"
)

// MemoryRepo is an in-memory blacklist useful for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[string]Entry)}
}

func (r *MemoryRepo) Insert(_ context.Context, e Entry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.TokenHash]; ok {
		return false, nil
	}
	r.entries[e.TokenHash] = e
	return true, nil
}

func (r *MemoryRepo) Lookup(_ context.Context, tokenHash string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[tokenHash]
	if !ok {
		return Entry{}, apperr.ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot captures the current state and returns a func restoring it.
func (r *MemoryRepo) Snapshot() (restore func()) {
	r.mu.Lock()
	saved := maps.Clone(r.entries)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.entries = saved
		r.mu.Unlock()
	}
}
