package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProviderSnapshot is an immutable point-in-time capture of a provider's
// regulatory context. Sessions reference a snapshot by ID so that the
// conditions under which a mock inspection ran can always be reconstructed.
type ProviderSnapshot struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	RegulatoryState string // e.g. "registered", "conditions_imposed", "enforcement"
	ServiceTypes    []string
	CapturedAt      time.Time
}

type ProviderSnapshotRepository interface {
	Create(ctx context.Context, s *ProviderSnapshot) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ProviderSnapshot, error)
	GetLatest(ctx context.Context, tenantID uuid.UUID) (*ProviderSnapshot, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*ProviderSnapshot, error)
}
