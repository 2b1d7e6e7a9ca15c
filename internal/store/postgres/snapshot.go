package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careready/careready/internal/domain"
)

// ProviderSnapshotRepo stores snapshots append-only: there is no Update or
// Delete, since snapshots are immutable once captured.
type ProviderSnapshotRepo struct {
	pool *pgxpool.Pool
}

func NewProviderSnapshotRepo(pool *pgxpool.Pool) *ProviderSnapshotRepo {
	return &ProviderSnapshotRepo{pool: pool}
}

func (r *ProviderSnapshotRepo) Create(ctx context.Context, s *domain.ProviderSnapshot) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO provider_snapshots (id, tenant_id, regulatory_state, service_types, captured_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.TenantID, s.RegulatoryState, s.ServiceTypes, s.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("providerSnapshotRepo.Create: %w", err)
	}

	return nil
}

func (r *ProviderSnapshotRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.ProviderSnapshot, error) {
	var s domain.ProviderSnapshot

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, regulatory_state, service_types, captured_at
		 FROM provider_snapshots WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&s.ID, &s.TenantID, &s.RegulatoryState, &s.ServiceTypes, &s.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("providerSnapshotRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("providerSnapshotRepo.GetByID: %w", err)
	}

	return &s, nil
}

func (r *ProviderSnapshotRepo) GetLatest(ctx context.Context, tenantID uuid.UUID) (*domain.ProviderSnapshot, error) {
	var s domain.ProviderSnapshot

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, regulatory_state, service_types, captured_at
		 FROM provider_snapshots WHERE tenant_id = $1
		 ORDER BY captured_at DESC
		 LIMIT 1`,
		tenantID,
	).Scan(&s.ID, &s.TenantID, &s.RegulatoryState, &s.ServiceTypes, &s.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("providerSnapshotRepo.GetLatest: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("providerSnapshotRepo.GetLatest: %w", err)
	}

	return &s, nil
}

func (r *ProviderSnapshotRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.ProviderSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, regulatory_state, service_types, captured_at
		 FROM provider_snapshots WHERE tenant_id = $1
		 ORDER BY captured_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("providerSnapshotRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.ProviderSnapshot
	for rows.Next() {
		var s domain.ProviderSnapshot
		if err := rows.Scan(&s.ID, &s.TenantID, &s.RegulatoryState, &s.ServiceTypes, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("providerSnapshotRepo.ListByTenant: scan: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("providerSnapshotRepo.ListByTenant: rows: %w", err)
	}

	return snapshots, nil
}
