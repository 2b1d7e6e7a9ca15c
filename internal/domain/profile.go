package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LogicProfile supplies the interaction ceilings for mock inspection
// sessions. A session copies these values at creation; later edits to the
// profile never affect sessions already running.
type LogicProfile struct {
	ID                   uuid.UUID
	Name                 string
	Domain               string // regulatory domain, e.g. "CQC"
	DefaultMaxFollowUps  int    // per-topic follow-up ceiling
	DefaultMaxQuestions  int    // global question ceiling
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type LogicProfileRepository interface {
	Create(ctx context.Context, p *LogicProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*LogicProfile, error)
	GetDefaultByDomain(ctx context.Context, domain string) (*LogicProfile, error)
	List(ctx context.Context) ([]*LogicProfile, error)
	Update(ctx context.Context, p *LogicProfile) error
}
