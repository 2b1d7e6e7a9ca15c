package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is a care provider organization preparing for regulatory inspection.
type Tenant struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	CQCProviderID string // CQC location/provider identifier, empty until linked
	Settings      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type TenantRepository interface {
	Create(ctx context.Context, t *Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error
	List(ctx context.Context) ([]*Tenant, error)
}
