package tokens

import (
	"time"

	"security-guard/internal/auth"
)

// Record is the persisted pair issued at one login or refresh. At most one
// non-revoked record exists per identity.
type Record struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Kind   auth.Kind `json:"kind"`

	// Raw token strings are returned to the owner on repeat login and are
	// never rendered in listings.
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`

	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Revoked          bool      `json:"revoked"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Pair is what a client receives after login or refresh.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

const TokenTypeBearer = "Bearer"

func (r Record) Pair() Pair {
	return Pair{
		AccessToken:      r.AccessToken,
		RefreshToken:     r.RefreshToken,
		TokenType:        TokenTypeBearer,
		ExpiresAt:        r.ExpiresAt,
		RefreshExpiresAt: r.RefreshExpiresAt,
	}
}

// ListFilter selects records by status. Page is zero-based.
type ListFilter struct {
	Revoked  bool
	Page     int
	PageSize int
}

type Page struct {
	Content       []Record `json:"content"`
	Page          int      `json:"page"`
	PageSize      int      `json:"page_size"`
	TotalElements int64    `json:"total_elements"`
	TotalPages    int      `json:"total_pages"`
}

func newPage(content []Record, f ListFilter, total int64) Page {
	if content == nil {
		content = []Record{}
	}
	pages := 0
	if f.PageSize > 0 {
		pages = int((total + int64(f.PageSize) - 1) / int64(f.PageSize))
	}
	return Page{Content: content, Page: f.Page, PageSize: f.PageSize, TotalElements: total, TotalPages: pages}
}
