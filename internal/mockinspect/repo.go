package mockinspect

import (
	"context"

	"github.com/google/uuid"
)

// SessionRepository persists sessions and their event logs. Update is a
// compare-and-swap on the session version (event count): implementations
// must return domain.ErrConflict when another writer has advanced the
// session past expectedVersion, so the orchestrator can reload and retry.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Session, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Session, error)
	CountActiveByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Update(ctx context.Context, s *Session, expectedVersion int) error
}
