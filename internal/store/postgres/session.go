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
	"github.com/careready/careready/internal/mockinspect"
)

// MockSessionRepo persists mock inspection sessions as a snapshot row plus an
// append-only event table. The snapshot row carries a version column equal to
// the event count; Update is a compare-and-swap on it, and the rows appended
// to mock_session_events are exactly the events past the expected version.
type MockSessionRepo struct {
	pool *pgxpool.Pool
}

func NewMockSessionRepo(pool *pgxpool.Pool) *MockSessionRepo {
	return &MockSessionRepo{pool: pool}
}

func (r *MockSessionRepo) Create(ctx context.Context, s *mockinspect.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mockSessionRepo.Create: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	topics, findings, err := marshalSessionState(s)
	if err != nil {
		return fmt.Errorf("mockSessionRepo.Create: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO mock_sessions (id, tenant_id, domain, context_snapshot_id, logic_profile_id, catalog_id,
		        status, max_follow_ups, max_total_questions, topics, draft_findings,
		        total_questions_asked, total_findings_drafted, started_at, completed_at, session_hash, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.TenantID, s.Domain, s.ContextSnapshotID, s.LogicProfileID, s.CatalogID,
		s.Status, s.Limits.MaxFollowUpsPerTopic, s.Limits.MaxTotalQuestions, topics, findings,
		s.TotalQuestionsAsked, s.TotalFindingsDrafted, s.StartedAt, s.CompletedAt, s.SessionHash, s.Version(),
	)
	if err != nil {
		return fmt.Errorf("mockSessionRepo.Create: %w", err)
	}

	if err := insertEvents(ctx, tx, s.Events); err != nil {
		return fmt.Errorf("mockSessionRepo.Create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("mockSessionRepo.Create: commit: %w", err)
	}

	return nil
}

func (r *MockSessionRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*mockinspect.Session, error) {
	s, err := r.scanSession(r.pool.QueryRow(ctx,
		sessionColumns+` FROM mock_sessions WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mockSessionRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mockSessionRepo.GetByID: %w", err)
	}

	s.Events, err = r.loadEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mockSessionRepo.GetByID: %w", err)
	}

	return s, nil
}

func (r *MockSessionRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*mockinspect.Session, error) {
	rows, err := r.pool.Query(ctx,
		sessionColumns+` FROM mock_sessions WHERE tenant_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("mockSessionRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	// Listings are summaries; event logs are loaded per session via GetByID.
	var sessions []*mockinspect.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("mockSessionRepo.ListByTenant: scan: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mockSessionRepo.ListByTenant: rows: %w", err)
	}

	return sessions, nil
}

func (r *MockSessionRepo) CountActiveByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM mock_sessions WHERE tenant_id = $1 AND status = $2`,
		tenantID, mockinspect.StatusActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("mockSessionRepo.CountActiveByTenant: %w", err)
	}

	return n, nil
}

func (r *MockSessionRepo) Update(ctx context.Context, s *mockinspect.Session, expectedVersion int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("mockSessionRepo.Update: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	topics, findings, err := marshalSessionState(s)
	if err != nil {
		return fmt.Errorf("mockSessionRepo.Update: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE mock_sessions
		 SET status = $1, topics = $2, draft_findings = $3,
		     total_questions_asked = $4, total_findings_drafted = $5,
		     completed_at = $6, version = $7
		 WHERE tenant_id = $8 AND id = $9 AND version = $10`,
		s.Status, topics, findings,
		s.TotalQuestionsAsked, s.TotalFindingsDrafted,
		s.CompletedAt, s.Version(),
		s.TenantID, s.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("mockSessionRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT true FROM mock_sessions WHERE tenant_id = $1 AND id = $2`,
			s.TenantID, s.ID,
		).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("mockSessionRepo.Update: %w", domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("mockSessionRepo.Update: %w", err)
		}

		return fmt.Errorf("mockSessionRepo.Update: version %d is stale: %w", expectedVersion, domain.ErrConflict)
	}

	if expectedVersion < len(s.Events) {
		if err := insertEvents(ctx, tx, s.Events[expectedVersion:]); err != nil {
			return fmt.Errorf("mockSessionRepo.Update: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("mockSessionRepo.Update: commit: %w", err)
	}

	return nil
}

const sessionColumns = `SELECT id, tenant_id, domain, context_snapshot_id, logic_profile_id, catalog_id,
        status, max_follow_ups, max_total_questions, topics, draft_findings,
        total_questions_asked, total_findings_drafted, started_at, completed_at, session_hash`

func (r *MockSessionRepo) scanSession(row pgx.Row) (*mockinspect.Session, error) {
	var (
		s        mockinspect.Session
		topics   []byte
		findings []byte
	)

	err := row.Scan(
		&s.ID, &s.TenantID, &s.Domain, &s.ContextSnapshotID, &s.LogicProfileID, &s.CatalogID,
		&s.Status, &s.Limits.MaxFollowUpsPerTopic, &s.Limits.MaxTotalQuestions, &topics, &findings,
		&s.TotalQuestionsAsked, &s.TotalFindingsDrafted, &s.StartedAt, &s.CompletedAt, &s.SessionHash,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(topics, &s.Topics); err != nil {
		return nil, fmt.Errorf("decode topics: %w", err)
	}
	if len(findings) > 0 {
		if err := json.Unmarshal(findings, &s.DraftFindings); err != nil {
			return nil, fmt.Errorf("decode draft findings: %w", err)
		}
	}

	return &s, nil
}

func (r *MockSessionRepo) loadEvents(ctx context.Context, sessionID uuid.UUID) ([]mockinspect.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, ordinal, type, payload, occurred_at, prev_hash, hash
		 FROM mock_session_events WHERE session_id = $1
		 ORDER BY ordinal`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var events []mockinspect.Event
	for rows.Next() {
		var (
			ev  mockinspect.Event
			raw []byte
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Ordinal, &ev.Type, &raw, &ev.OccurredAt, &ev.PrevHash, &ev.Hash); err != nil {
			return nil, fmt.Errorf("load events: scan: %w", err)
		}

		ev.Payload, err = mockinspect.DecodePayload(ev.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load events: rows: %w", err)
	}

	return events, nil
}

func insertEvents(ctx context.Context, tx pgx.Tx, events []mockinspect.Event) error {
	for i := range events {
		ev := &events[i]

		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("insert events: encode payload: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO mock_session_events (id, session_id, ordinal, type, payload, occurred_at, prev_hash, hash)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ev.ID, ev.SessionID, ev.Ordinal, ev.Type, payload, ev.OccurredAt, ev.PrevHash, ev.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert events: ordinal %d: %w", ev.Ordinal, err)
		}
	}

	return nil
}

func marshalSessionState(s *mockinspect.Session) (topics, findings []byte, err error) {
	topics, err = json.Marshal(s.Topics)
	if err != nil {
		return nil, nil, fmt.Errorf("encode topics: %w", err)
	}

	findings, err = json.Marshal(s.DraftFindings)
	if err != nil {
		return nil, nil, fmt.Errorf("encode draft findings: %w", err)
	}

	return topics, findings, nil
}
