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

type LogicProfileRepo struct {
	pool *pgxpool.Pool
}

func NewLogicProfileRepo(pool *pgxpool.Pool) *LogicProfileRepo {
	return &LogicProfileRepo{pool: pool}
}

func (r *LogicProfileRepo) Create(ctx context.Context, p *domain.LogicProfile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO logic_profiles (id, name, domain, default_max_follow_ups, default_max_questions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.Domain, p.DefaultMaxFollowUps, p.DefaultMaxQuestions, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("logicProfileRepo.Create: %w", err)
	}

	return nil
}

func (r *LogicProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LogicProfile, error) {
	var p domain.LogicProfile

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, domain, default_max_follow_ups, default_max_questions, created_at, updated_at
		 FROM logic_profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Domain, &p.DefaultMaxFollowUps, &p.DefaultMaxQuestions, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("logicProfileRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("logicProfileRepo.GetByID: %w", err)
	}

	return &p, nil
}

func (r *LogicProfileRepo) GetDefaultByDomain(ctx context.Context, d string) (*domain.LogicProfile, error) {
	var p domain.LogicProfile

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, domain, default_max_follow_ups, default_max_questions, created_at, updated_at
		 FROM logic_profiles WHERE domain = $1 AND name = 'default'`,
		d,
	).Scan(&p.ID, &p.Name, &p.Domain, &p.DefaultMaxFollowUps, &p.DefaultMaxQuestions, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("logicProfileRepo.GetDefaultByDomain: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("logicProfileRepo.GetDefaultByDomain: %w", err)
	}

	return &p, nil
}

func (r *LogicProfileRepo) List(ctx context.Context) ([]*domain.LogicProfile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, domain, default_max_follow_ups, default_max_questions, created_at, updated_at
		 FROM logic_profiles
		 ORDER BY domain, name
		 LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("logicProfileRepo.List: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.LogicProfile
	for rows.Next() {
		var p domain.LogicProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.Domain, &p.DefaultMaxFollowUps, &p.DefaultMaxQuestions, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("logicProfileRepo.List: scan: %w", err)
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("logicProfileRepo.List: rows: %w", err)
	}

	return profiles, nil
}

func (r *LogicProfileRepo) Update(ctx context.Context, p *domain.LogicProfile) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE logic_profiles SET name = $1, default_max_follow_ups = $2, default_max_questions = $3, updated_at = now()
		 WHERE id = $4`,
		p.Name, p.DefaultMaxFollowUps, p.DefaultMaxQuestions, p.ID,
	)
	if err != nil {
		return fmt.Errorf("logicProfileRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("logicProfileRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}
