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

type FindingRepo struct {
	pool *pgxpool.Pool
}

func NewFindingRepo(pool *pgxpool.Pool) *FindingRepo {
	return &FindingRepo{pool: pool}
}

func (r *FindingRepo) Create(ctx context.Context, f *domain.Finding) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO findings (id, tenant_id, session_id, topic_id, severity, summary, detail, origin, reporting_domain, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.TenantID, f.SessionID, f.TopicID, f.Severity, f.Summary, f.Detail,
		f.Origin, f.ReportingDomain, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("findingRepo.Create: %w", err)
	}

	return nil
}

func (r *FindingRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Finding, error) {
	var f domain.Finding

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, session_id, topic_id, severity, summary, detail, origin, reporting_domain, created_at
		 FROM findings WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(
		&f.ID, &f.TenantID, &f.SessionID, &f.TopicID, &f.Severity, &f.Summary, &f.Detail,
		&f.Origin, &f.ReportingDomain, &f.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("findingRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("findingRepo.GetByID: %w", err)
	}

	return &f, nil
}

func (r *FindingRepo) ListBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]*domain.Finding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, session_id, topic_id, severity, summary, detail, origin, reporting_domain, created_at
		 FROM findings WHERE tenant_id = $1 AND session_id = $2
		 ORDER BY created_at
		 LIMIT 1000`,
		tenantID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("findingRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	return scanFindings(rows, "findingRepo.ListBySession")
}

func (r *FindingRepo) ListByReportingDomain(ctx context.Context, tenantID uuid.UUID, rd domain.ReportingDomain, limit, offset int) ([]*domain.Finding, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, session_id, topic_id, severity, summary, detail, origin, reporting_domain, created_at
		 FROM findings WHERE tenant_id = $1 AND reporting_domain = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID, rd, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("findingRepo.ListByReportingDomain: %w", err)
	}
	defer rows.Close()

	return scanFindings(rows, "findingRepo.ListByReportingDomain")
}

func scanFindings(rows pgx.Rows, caller string) ([]*domain.Finding, error) {
	var findings []*domain.Finding
	for rows.Next() {
		var f domain.Finding
		if err := rows.Scan(
			&f.ID, &f.TenantID, &f.SessionID, &f.TopicID, &f.Severity, &f.Summary, &f.Detail,
			&f.Origin, &f.ReportingDomain, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		findings = append(findings, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return findings, nil
}
