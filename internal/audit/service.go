package audit

import (
	"context"
	"errors"
	"time"

	"security-guard/pkg/logger"
	"security-guard/pkg/utils"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records token lifecycle events for internal review.
//
// Callers should treat audit logging as best-effort; see Record.
type Service struct {
	repo    Repository
	timeout time.Duration
	clock   func() time.Time
}

func NewService(repo Repository, storeTimeout time.Duration) *Service {
	return &Service{repo: repo, timeout: storeTimeout, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}

	ctx, cancel := utils.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Append(ctx, e)
}

// Record appends e and only logs a failure. A nil Service records nothing.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", e.Type, "error", err)
	}
}
