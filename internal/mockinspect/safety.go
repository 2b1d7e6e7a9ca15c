package mockinspect

import (
	"fmt"

	"github.com/careready/careready/internal/domain"
)

// SafetyReport is the result of a mock-safety validation pass.
type SafetyReport struct {
	Safe       bool     `json:"safe"`
	Violations []string `json:"violations,omitempty"`
}

// ValidateMockSafety structurally checks that nothing in the session could be
// mistaken for regulatory fact: every draft finding is scoped to this session,
// originates from simulation, and sits in the simulation reporting domain.
// The construction-time guarantee lives in domain.NewFinding; this check
// exists so a stored or replayed session can be re-verified at any time.
func ValidateMockSafety(s *Session) SafetyReport {
	var violations []string

	for _, f := range s.DraftFindings {
		if f.SessionID != s.ID {
			violations = append(violations, fmt.Sprintf(
				"draft finding %d is scoped to session %s, not %s", f.Seq, f.SessionID, s.ID))
		}
		if f.Origin != domain.OriginSimulated {
			violations = append(violations, fmt.Sprintf(
				"draft finding %d carries origin %q, want %q", f.Seq, f.Origin, domain.OriginSimulated))
		}
		if f.ReportingDomain != domain.DomainSimulation {
			violations = append(violations, fmt.Sprintf(
				"draft finding %d carries reporting domain %q, want %q", f.Seq, f.ReportingDomain, domain.DomainSimulation))
		}
	}

	for _, ev := range s.Events {
		if ev.SessionID != s.ID {
			violations = append(violations, fmt.Sprintf(
				"event %s at ordinal %d belongs to session %s, not %s", ev.ID, ev.Ordinal, ev.SessionID, s.ID))
		}
	}

	return SafetyReport{Safe: len(violations) == 0, Violations: violations}
}
