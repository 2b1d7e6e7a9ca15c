package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FindingOrigin records how a finding came into existence.
type FindingOrigin string

const (
	OriginSimulated  FindingOrigin = "system_simulated"
	OriginInspection FindingOrigin = "actual_inspection"
)

// ReportingDomain marks which record a finding belongs to. Simulation output
// and regulatory history must never cross.
type ReportingDomain string

const (
	DomainSimulation        ReportingDomain = "simulation"
	DomainRegulatoryHistory ReportingDomain = "regulatory_history"
)

// ErrMockContamination is returned when a finding is constructed with an
// origin/reporting-domain pairing that would let simulated output masquerade
// as regulatory fact (or the reverse). It is fatal-by-design: callers must
// never swallow it, since doing so would hide a domain-separation bug.
var ErrMockContamination = errors.New("domain: mock contamination: origin and reporting domain disagree")

// Finding is a recorded issue against a provider. Whether it is regulatory
// fact or simulation output is fixed at construction and never changes.
type Finding struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	SessionID       *uuid.UUID // set when origin is system_simulated
	TopicID         string
	Severity        string // "minor", "moderate", "major"
	Summary         string
	Detail          string
	Origin          FindingOrigin
	ReportingDomain ReportingDomain
	CreatedAt       time.Time
}

// NewFinding constructs a Finding, enforcing the origin/reporting-domain
// pairing. Simulated findings may only live in the simulation domain, and
// actual-inspection findings may only live in regulatory history.
func NewFinding(tenantID uuid.UUID, sessionID *uuid.UUID, topicID, severity, summary, detail string, origin FindingOrigin, reporting ReportingDomain, now time.Time) (*Finding, error) {
	if origin == OriginSimulated && reporting != DomainSimulation {
		return nil, fmt.Errorf("domain.NewFinding: origin %q into %q: %w", origin, reporting, ErrMockContamination)
	}
	if origin == OriginInspection && reporting != DomainRegulatoryHistory {
		return nil, fmt.Errorf("domain.NewFinding: origin %q into %q: %w", origin, reporting, ErrMockContamination)
	}

	return &Finding{
		ID:              uuid.New(),
		TenantID:        tenantID,
		SessionID:       sessionID,
		TopicID:         topicID,
		Severity:        severity,
		Summary:         summary,
		Detail:          detail,
		Origin:          origin,
		ReportingDomain: reporting,
		CreatedAt:       now,
	}, nil
}

type FindingRepository interface {
	Create(ctx context.Context, f *Finding) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Finding, error)
	ListBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]*Finding, error)
	ListByReportingDomain(ctx context.Context, tenantID uuid.UUID, reporting ReportingDomain, limit, offset int) ([]*Finding, error)
}
