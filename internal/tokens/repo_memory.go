package tokens

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"security-guard/internal/apperr"
)

// MemoryRepo is an in-memory repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Record)}
}

func (r *MemoryRepo) Replace(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.records {
		if existing.AccessToken == rec.AccessToken || existing.RefreshToken == rec.RefreshToken {
			return apperr.ErrAlreadyExists
		}
		if existing.UserID == rec.UserID && !existing.Revoked {
			existing.Revoked = true
			existing.UpdatedAt = rec.UpdatedAt
			r.records[id] = existing
		}
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) ActiveByUser(_ context.Context, userID string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.UserID == userID && !rec.Revoked {
			return rec, nil
		}
	}
	return Record{}, apperr.ErrNotFound
}

func (r *MemoryRepo) FindByAccessToken(_ context.Context, accessToken string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.AccessToken == accessToken {
			return rec, nil
		}
	}
	return Record{}, apperr.ErrNotFound
}

func (r *MemoryRepo) Deactivate(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return apperr.ErrNotFound
	}
	rec.Revoked = true
	rec.UpdatedAt = at
	r.records[id] = rec
	return nil
}

func (r *MemoryRepo) List(_ context.Context, f ListFilter) (Page, error) {
	r.mu.Lock()
	var all []Record
	for _, rec := range r.records {
		if rec.Revoked == f.Revoked {
			all = append(all, rec)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(all, func(a, b Record) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	start := min(f.Page*f.PageSize, len(all))
	end := min(start+f.PageSize, len(all))
	return newPage(slices.Clone(all[start:end]), f, int64(len(all))), nil
}

// Snapshot captures the current state and returns a func restoring it.
func (r *MemoryRepo) Snapshot() (restore func()) {
	r.mu.Lock()
	saved := maps.Clone(r.records)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.records = saved
		r.mu.Unlock()
	}
}
