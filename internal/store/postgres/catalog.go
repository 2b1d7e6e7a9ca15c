package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careready/careready/internal/domain"
)

// TopicCatalogRepo stores catalogs with the ordered topic list as JSONB, so
// the interview order survives round trips exactly as authored.
type TopicCatalogRepo struct {
	pool *pgxpool.Pool
}

func NewTopicCatalogRepo(pool *pgxpool.Pool) *TopicCatalogRepo {
	return &TopicCatalogRepo{pool: pool}
}

func (r *TopicCatalogRepo) Create(ctx context.Context, c *domain.TopicCatalog) error {
	topics, err := json.Marshal(c.Topics)
	if err != nil {
		return fmt.Errorf("topicCatalogRepo.Create: encode topics: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO topic_catalogs (id, domain, name, version, topics, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Domain, c.Name, c.Version, topics, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("topicCatalogRepo.Create: %w", err)
	}

	return nil
}

func (r *TopicCatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TopicCatalog, error) {
	c, err := scanCatalog(r.pool.QueryRow(ctx,
		`SELECT id, domain, name, version, topics, created_at, updated_at
		 FROM topic_catalogs WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("topicCatalogRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("topicCatalogRepo.GetByID: %w", err)
	}

	return c, nil
}

func (r *TopicCatalogRepo) GetLatestByDomain(ctx context.Context, d string) (*domain.TopicCatalog, error) {
	c, err := scanCatalog(r.pool.QueryRow(ctx,
		`SELECT id, domain, name, version, topics, created_at, updated_at
		 FROM topic_catalogs WHERE domain = $1
		 ORDER BY version DESC
		 LIMIT 1`,
		d,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("topicCatalogRepo.GetLatestByDomain: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("topicCatalogRepo.GetLatestByDomain: %w", err)
	}

	return c, nil
}

func (r *TopicCatalogRepo) List(ctx context.Context) ([]*domain.TopicCatalog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, domain, name, version, topics, created_at, updated_at
		 FROM topic_catalogs
		 ORDER BY domain, version DESC
		 LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("topicCatalogRepo.List: %w", err)
	}
	defer rows.Close()

	var catalogs []*domain.TopicCatalog
	for rows.Next() {
		c, err := scanCatalog(rows)
		if err != nil {
			return nil, fmt.Errorf("topicCatalogRepo.List: scan: %w", err)
		}
		catalogs = append(catalogs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("topicCatalogRepo.List: rows: %w", err)
	}

	return catalogs, nil
}

func (r *TopicCatalogRepo) Update(ctx context.Context, c *domain.TopicCatalog) error {
	topics, err := json.Marshal(c.Topics)
	if err != nil {
		return fmt.Errorf("topicCatalogRepo.Update: encode topics: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE topic_catalogs SET name = $1, version = $2, topics = $3, updated_at = now()
		 WHERE id = $4`,
		c.Name, c.Version, topics, c.ID,
	)
	if err != nil {
		return fmt.Errorf("topicCatalogRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("topicCatalogRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func scanCatalog(row pgx.Row) (*domain.TopicCatalog, error) {
	var (
		c      domain.TopicCatalog
		topics []byte
	)

	err := row.Scan(&c.ID, &c.Domain, &c.Name, &c.Version, &topics, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(topics, &c.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}

	return &c, nil
}
