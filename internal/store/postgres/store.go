package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careready/careready/internal/domain"
	"github.com/careready/careready/internal/mockinspect"
)

type Store struct {
	pool      *pgxpool.Pool
	tenants   *TenantRepo
	users     *UserRepo
	sessions  *MockSessionRepo
	findings  *FindingRepo
	catalogs  *TopicCatalogRepo
	profiles  *LogicProfileRepo
	snapshots *ProviderSnapshotRepo
	audit     *AuditRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:      pool,
		tenants:   NewTenantRepo(pool),
		users:     NewUserRepo(pool),
		sessions:  NewMockSessionRepo(pool),
		findings:  NewFindingRepo(pool),
		catalogs:  NewTopicCatalogRepo(pool),
		profiles:  NewLogicProfileRepo(pool),
		snapshots: NewProviderSnapshotRepo(pool),
		audit:     NewAuditRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tenants() domain.TenantRepository              { return s.tenants }
func (s *Store) Users() domain.UserRepository                  { return s.users }
func (s *Store) Sessions() mockinspect.SessionRepository       { return s.sessions }
func (s *Store) Findings() domain.FindingRepository            { return s.findings }
func (s *Store) Catalogs() domain.TopicCatalogRepository       { return s.catalogs }
func (s *Store) Profiles() domain.LogicProfileRepository       { return s.profiles }
func (s *Store) Snapshots() domain.ProviderSnapshotRepository  { return s.snapshots }
func (s *Store) Audit() domain.AuditRepository                 { return s.audit }
