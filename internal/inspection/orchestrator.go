// Package inspection coordinates mock inspection sessions around the pure
// engine: it owns persistence, per-session write serialization, the
// close-before-complete policy, live event fanout, and completion
// notifications. The engine itself stays free of I/O.
package inspection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careready/careready/internal/domain"
	"github.com/careready/careready/internal/enterprise"
	"github.com/careready/careready/internal/mockinspect"
)

// ErrSnapshotRequired is returned when a tenant has no provider snapshot to
// freeze a session against.
var ErrSnapshotRequired = errors.New("inspection: provider snapshot required before starting a session")

// conflictRetries bounds optimistic-concurrency retries against writers in
// other processes; within one process the per-session lock already
// serializes writers.
const conflictRetries = 3

// PubSubPublisher abstracts the Redis pub/sub publish operation.
type PubSubPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ChannelNamer maps a session to its pub/sub channel.
type ChannelNamer func(tenantID, sessionID uuid.UUID) string

// Notifier dispatches user-facing notifications (e.g. session completed).
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, message string) error
}

// Orchestrator wires the session engine to its collaborators.
type Orchestrator struct {
	sessions  mockinspect.SessionRepository
	catalogs  domain.TopicCatalogRepository
	profiles  domain.LogicProfileRepository
	snapshots domain.ProviderSnapshotRepository
	audit     domain.AuditRepository
	pubsub    PubSubPublisher
	channel   ChannelNamer
	notifier  Notifier // nil when notifications are not configured
	license   *enterprise.Validator

	locks *sessionLocks
}

func New(
	sessions mockinspect.SessionRepository,
	catalogs domain.TopicCatalogRepository,
	profiles domain.LogicProfileRepository,
	snapshots domain.ProviderSnapshotRepository,
	audit domain.AuditRepository,
	pubsub PubSubPublisher,
	channel ChannelNamer,
	notifier Notifier,
) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		catalogs:  catalogs,
		profiles:  profiles,
		snapshots: snapshots,
		audit:     audit,
		pubsub:    pubsub,
		channel:   channel,
		notifier:  notifier,
		locks:     newSessionLocks(),
	}
}

// SetLicense enables plan-based quota enforcement on session starts.
// Without a license, tenants are not quota-limited.
func (o *Orchestrator) SetLicense(v *enterprise.Validator) {
	o.license = v
}

// StartSession freezes the tenant's latest provider snapshot, the logic
// profile, and the topic catalog into a new ACTIVE session. profileID and
// catalogID may be nil to use the regulatory domain's defaults.
func (o *Orchestrator) StartSession(ctx context.Context, tenantID, userID uuid.UUID, regDomain string, profileID, catalogID *uuid.UUID) (*mockinspect.Session, error) {
	if o.license != nil {
		active, err := o.sessions.CountActiveByTenant(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("inspection.StartSession: counting active sessions: %w", err)
		}
		if err := o.license.AllowSessionStart(active); err != nil {
			return nil, fmt.Errorf("inspection.StartSession: %w: %w", domain.ErrLimitExceeded, err)
		}
	}

	snapshot, err := o.snapshots.GetLatest(ctx, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("inspection.StartSession: %w", ErrSnapshotRequired)
		}
		return nil, fmt.Errorf("inspection.StartSession: snapshot: %w", err)
	}

	profile, err := o.resolveProfile(ctx, regDomain, profileID)
	if err != nil {
		return nil, fmt.Errorf("inspection.StartSession: profile: %w", err)
	}

	catalog, err := o.resolveCatalog(ctx, regDomain, catalogID)
	if err != nil {
		return nil, fmt.Errorf("inspection.StartSession: catalog: %w", err)
	}

	session, ev, err := mockinspect.New(mockinspect.CreateParams{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Domain:            regDomain,
		ContextSnapshotID: snapshot.ID,
		LogicProfileID:    profile.ID,
		CatalogID:         catalog.ID,
		Limits: mockinspect.Limits{
			MaxFollowUpsPerTopic: profile.DefaultMaxFollowUps,
			MaxTotalQuestions:    profile.DefaultMaxQuestions,
		},
	}, time.Now())
	if err != nil {
		return nil, fmt.Errorf("inspection.StartSession: %w", err)
	}

	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("inspection.StartSession: persist: %w", err)
	}

	o.publishEvent(ctx, session, ev)
	o.recordAudit(ctx, tenantID, userID, "session.started", session.ID, map[string]any{
		"domain":     regDomain,
		"catalog_id": catalog.ID.String(),
		"profile_id": profile.ID.String(),
	})

	return session, nil
}

func (o *Orchestrator) resolveProfile(ctx context.Context, regDomain string, profileID *uuid.UUID) (*domain.LogicProfile, error) {
	if profileID != nil {
		return o.profiles.GetByID(ctx, *profileID)
	}
	return o.profiles.GetDefaultByDomain(ctx, regDomain)
}

func (o *Orchestrator) resolveCatalog(ctx context.Context, regDomain string, catalogID *uuid.UUID) (*domain.TopicCatalog, error) {
	if catalogID != nil {
		return o.catalogs.GetByID(ctx, *catalogID)
	}
	return o.catalogs.GetLatestByDomain(ctx, regDomain)
}

// GetSession loads one session.
func (o *Orchestrator) GetSession(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.Session, error) {
	s, err := o.sessions.GetByID(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("inspection.GetSession: %w", err)
	}
	return s, nil
}

// NextQuestion determines what the session should ask next: it walks the
// frozen catalog in order, opens the next non-exhausted topic if needed, and
// selects the starter or cyclic follow-up template. Returns nil when every
// topic is exhausted and the session is ready to complete.
func (o *Orchestrator) NextQuestion(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.QuestionContext, error) {
	release := o.locks.acquire(sessionID)
	defer release()

	session, err := o.sessions.GetByID(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("inspection.NextQuestion: %w", err)
	}

	catalog, err := o.catalogs.GetByID(ctx, session.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("inspection.NextQuestion: catalog: %w", err)
	}

	ordered := catalog.OrderedTopicIDs()

	for {
		topicID, ok := mockinspect.SelectNextTopic(session, ordered)
		if !ok {
			return nil, nil
		}

		topic := catalog.TopicByID(topicID)
		if topic == nil {
			return nil, fmt.Errorf("inspection.NextQuestion: topic %q missing from catalog %s", topicID, catalog.ID)
		}

		if _, opened := session.Topics[topicID]; !opened {
			session, err = o.applyLocked(ctx, session, func(s *mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error) {
				return s.OpenTopic(topicID, time.Now())
			})
			if err != nil {
				return nil, fmt.Errorf("inspection.NextQuestion: open topic: %w", err)
			}
		}

		q, err := mockinspect.SelectNextQuestion(session, topicID, topic.StarterTemplateIDs, topic.FollowUpTemplateIDs, topic.Version)
		if err != nil {
			return nil, fmt.Errorf("inspection.NextQuestion: %w", err)
		}
		if q != nil {
			return q, nil
		}

		// No usable template for this topic (exhausted or none authored):
		// close it and move on so the walk terminates.
		session, err = o.applyLocked(ctx, session, func(s *mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error) {
			return s.CloseTopic(topicID, time.Now())
		})
		if err != nil {
			return nil, fmt.Errorf("inspection.NextQuestion: close exhausted topic: %w", err)
		}
	}
}

// AskQuestion records one question against a topic.
func (o *Orchestrator) AskQuestion(ctx context.Context, tenantID, sessionID uuid.UUID, topicID, questionText string, isFollowUp bool) (*mockinspect.Session, error) {
	return o.withSession(ctx, tenantID, sessionID, func(s *mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error) {
		return s.AskQuestion(topicID, questionText, isFollowUp, time.Now())
	})
}

// DraftFinding records a candidate issue against a topic.
func (o *Orchestrator) DraftFinding(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string, fields mockinspect.DraftFindingFields) (*mockinspect.Session, error) {
	return o.withSession(ctx, tenantID, sessionID, func(s *mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error) {
		return s.DraftFinding(topicID, fields, time.Now())
	})
}

// CloseTopic closes one topic.
func (o *Orchestrator) CloseTopic(ctx context.Context, tenantID, sessionID uuid.UUID, topicID string) (*mockinspect.Session, error) {
	return o.withSession(ctx, tenantID, sessionID, func(s *mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error) {
		return s.CloseTopic(topicID, time.Now())
	})
}

// Complete closes any topics still open, then completes the session. The
// engine allows completion with open topics; closing them first is this
// orchestrator's documented policy so no topic is left dangling in the log.
func (o *Orchestrator) Complete(ctx context.Context, tenantID, userID, sessionID uuid.UUID) (*mockinspect.Session, error) {
	session, err := o.withSession(ctx, tenantID, sessionID, func(s *mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error) {
		cur := s
		for _, topicID := range cur.OpenTopicIDs() {
			next, _, closeErr := cur.CloseTopic(topicID, time.Now())
			if closeErr != nil {
				return nil, nil, closeErr
			}
			cur = next
		}
		return cur.Complete(time.Now())
	})
	if err != nil {
		return nil, err
	}

	o.recordAudit(ctx, tenantID, userID, "session.completed", sessionID, map[string]any{
		"questions_asked": session.TotalQuestionsAsked,
		"findings":        session.TotalFindingsDrafted,
	})

	if o.notifier != nil {
		msg := fmt.Sprintf("Mock inspection complete: %d questions asked, %d draft findings recorded.",
			session.TotalQuestionsAsked, session.TotalFindingsDrafted)
		if notifyErr := o.notifier.Notify(ctx, userID, msg); notifyErr != nil {
			log.Warn().Err(notifyErr).Str("session_id", sessionID.String()).Msg("inspection: completion notification failed")
		}
	}

	return session, nil
}

// Abandon marks a session abandoned.
func (o *Orchestrator) Abandon(ctx context.Context, tenantID, userID, sessionID uuid.UUID, reason string) (*mockinspect.Session, error) {
	session, err := o.withSession(ctx, tenantID, sessionID, func(s *mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error) {
		return s.Abandon(reason, time.Now())
	})
	if err != nil {
		return nil, err
	}

	o.recordAudit(ctx, tenantID, userID, "session.abandoned", sessionID, map[string]any{"reason": reason})

	return session, nil
}

// VerifyReplay rebuilds the session from its stored event log and reports
// whether the replayed state matches what is persisted: same session hash,
// same version, and a mock-safety pass over the replayed state.
func (o *Orchestrator) VerifyReplay(ctx context.Context, tenantID, sessionID uuid.UUID) (*mockinspect.SafetyReport, error) {
	stored, err := o.sessions.GetByID(ctx, tenantID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("inspection.VerifyReplay: %w", err)
	}

	if len(stored.Events) == 0 {
		return nil, fmt.Errorf("inspection.VerifyReplay: session %s has no events: %w", sessionID, mockinspect.ErrReplayMismatch)
	}

	initial, err := mockinspect.InitialFromStartedEvent(stored.Events[0])
	if err != nil {
		return nil, fmt.Errorf("inspection.VerifyReplay: %w", err)
	}

	replayed, err := mockinspect.Replay(initial, stored.Events)
	if err != nil {
		return nil, fmt.Errorf("inspection.VerifyReplay: %w", err)
	}

	if replayed.SessionHash != stored.SessionHash || replayed.Version() != stored.Version() {
		return nil, fmt.Errorf("inspection.VerifyReplay: replayed state diverges from stored session %s: %w",
			sessionID, mockinspect.ErrReplayMismatch)
	}

	report := mockinspect.ValidateMockSafety(replayed)
	return &report, nil
}

// withSession serializes a transition against one session: acquire the
// per-session lock, load, apply, persist with a version check, and publish
// every appended event once the persist has succeeded. Publishing after the
// version check means subscribers never see events from a transition that
// lost the race or failed to commit. Version conflicts (another process
// advanced the session) are retried with a fresh load.
func (o *Orchestrator) withSession(ctx context.Context, tenantID, sessionID uuid.UUID, fn func(*mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error)) (*mockinspect.Session, error) {
	release := o.locks.acquire(sessionID)
	defer release()

	var lastErr error
	for range conflictRetries {
		session, err := o.sessions.GetByID(ctx, tenantID, sessionID)
		if err != nil {
			return nil, fmt.Errorf("inspection.withSession: %w", err)
		}

		next, _, err := fn(session)
		if err != nil {
			return nil, err
		}

		if err := o.sessions.Update(ctx, next, session.Version()); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("inspection.withSession: persist: %w", err)
		}

		o.publishEvents(ctx, next, next.Events[session.Version():])

		return next, nil
	}

	return nil, fmt.Errorf("inspection.withSession: session %s: retries exhausted: %w", sessionID, lastErr)
}

// applyLocked is withSession's inner body for callers that already hold the
// per-session lock and a freshly loaded session.
func (o *Orchestrator) applyLocked(ctx context.Context, session *mockinspect.Session, fn func(*mockinspect.Session) (*mockinspect.Session, *mockinspect.Event, error)) (*mockinspect.Session, error) {
	next, _, err := fn(session)
	if err != nil {
		return nil, err
	}

	if err := o.sessions.Update(ctx, next, session.Version()); err != nil {
		return nil, fmt.Errorf("inspection.applyLocked: persist: %w", err)
	}

	o.publishEvents(ctx, next, next.Events[session.Version():])

	return next, nil
}

func (o *Orchestrator) publishEvents(ctx context.Context, s *mockinspect.Session, events []mockinspect.Event) {
	for i := range events {
		o.publishEvent(ctx, s, &events[i])
	}
}

func (o *Orchestrator) publishEvent(ctx context.Context, s *mockinspect.Session, ev *mockinspect.Event) {
	if o.pubsub == nil || o.channel == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("inspection: marshal event for publish")
		return
	}

	if err := o.pubsub.Publish(ctx, o.channel(s.TenantID, s.ID), payload); err != nil {
		log.Warn().Err(err).Str("session_id", s.ID.String()).Msg("inspection: publish event")
	}
}

func (o *Orchestrator) recordAudit(ctx context.Context, tenantID, userID uuid.UUID, action string, resourceID uuid.UUID, details map[string]any) {
	if o.audit == nil {
		return
	}

	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ActorType:  "user",
		ActorID:    userID.String(),
		Action:     action,
		Resource:   "mock_session",
		ResourceID: resourceID,
		Details:    details,
		CreatedAt:  time.Now(),
	}

	if err := o.audit.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("inspection: audit record failed")
	}
}
