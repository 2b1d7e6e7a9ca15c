package mockinspect

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/careready/careready/internal/domain"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Limits are the interaction ceilings copied from a logic profile at session
// creation. They are frozen for the life of the session.
type Limits struct {
	MaxFollowUpsPerTopic int `json:"max_follow_ups_per_topic"`
	MaxTotalQuestions    int `json:"max_total_questions"`
}

// TopicState tracks one opened topic. A topic has state if and only if it has
// been opened; closed topics are never re-opened.
type TopicState struct {
	TopicID         string     `json:"topic_id"`
	QuestionsAsked  int        `json:"questions_asked"`
	FollowUpsAsked  int        `json:"follow_ups_asked"`
	FindingsDrafted int        `json:"findings_drafted"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

func (ts *TopicState) closed() bool { return ts.ClosedAt != nil }

// DraftFinding is a candidate issue recorded during a session. It is owned
// exclusively by the session, and its origin and reporting domain are fixed
// at construction to the simulation side of the contract: there is no way to
// build one that claims to be regulatory history.
type DraftFinding struct {
	Seq             int                    `json:"seq"` // per-session, strictly ordered
	SessionID       uuid.UUID              `json:"session_id"`
	TopicID         string                 `json:"topic_id"`
	Severity        string                 `json:"severity"`
	Summary         string                 `json:"summary"`
	Detail          string                 `json:"detail"`
	Origin          domain.FindingOrigin   `json:"origin"`
	ReportingDomain domain.ReportingDomain `json:"reporting_domain"`
	DraftedAt       time.Time              `json:"drafted_at"`
}

// Session is the root aggregate of one mock inspection run. It is treated as
// an immutable value: every transition returns a new Session plus the one
// event it appended, leaving the receiver untouched.
type Session struct {
	ID                uuid.UUID  `json:"id"`
	TenantID          uuid.UUID  `json:"tenant_id"`
	Domain            string     `json:"domain"`
	ContextSnapshotID uuid.UUID  `json:"context_snapshot_id"`
	LogicProfileID    uuid.UUID  `json:"logic_profile_id"`
	CatalogID         uuid.UUID  `json:"catalog_id"`
	Status            Status     `json:"status"`
	Limits            Limits     `json:"limits"`

	Topics        map[string]*TopicState `json:"topics"`
	DraftFindings []DraftFinding         `json:"draft_findings"`
	Events        []Event                `json:"events"`

	TotalQuestionsAsked  int `json:"total_questions_asked"`
	TotalFindingsDrafted int `json:"total_findings_drafted"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// SessionHash is computed once from identity and frozen references;
	// divergent replays are detected by comparing it.
	SessionHash string `json:"session_hash"`
}

// Version is the optimistic-concurrency token: the number of events applied.
func (s *Session) Version() int { return len(s.Events) }

// CreateParams carries everything needed to start a session. Limits come
// from the logic profile; the snapshot and catalog references are frozen.
type CreateParams struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Domain            string
	ContextSnapshotID uuid.UUID
	LogicProfileID    uuid.UUID
	CatalogID         uuid.UUID
	Limits            Limits
}

// New creates an ACTIVE session, computes its session hash, and appends the
// SESSION_STARTED event. now is captured once by the caller.
func New(p CreateParams, now time.Time) (*Session, *Event, error) {
	now = normalizeTime(now)

	if p.ID == uuid.Nil || p.TenantID == uuid.Nil {
		return nil, nil, fmt.Errorf("mockinspect.New: session and tenant ids are required")
	}
	if p.Limits.MaxFollowUpsPerTopic < 1 || p.Limits.MaxTotalQuestions < 1 {
		return nil, nil, fmt.Errorf("mockinspect.New: limits must be at least 1, got %+v", p.Limits)
	}

	s := &Session{
		ID:                p.ID,
		TenantID:          p.TenantID,
		Domain:            p.Domain,
		ContextSnapshotID: p.ContextSnapshotID,
		LogicProfileID:    p.LogicProfileID,
		CatalogID:         p.CatalogID,
		Status:            StatusActive,
		Limits:            p.Limits,
		Topics:            make(map[string]*TopicState),
		StartedAt:         now,
	}

	hash, err := ContentHash(map[string]any{
		"id":                  s.ID.String(),
		"tenant_id":           s.TenantID.String(),
		"domain":              s.Domain,
		"context_snapshot_id": s.ContextSnapshotID.String(),
		"logic_profile_id":    s.LogicProfileID.String(),
		"catalog_id":          s.CatalogID.String(),
		"started_at":          now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("mockinspect.New: %w", err)
	}
	s.SessionHash = hash

	ev, err := s.appendEvent(SessionStartedPayload{
		TenantID:          p.TenantID,
		Domain:            p.Domain,
		ContextSnapshotID: p.ContextSnapshotID,
		LogicProfileID:    p.LogicProfileID,
		CatalogID:         p.CatalogID,
		MaxFollowUps:      p.Limits.MaxFollowUpsPerTopic,
		MaxQuestions:      p.Limits.MaxTotalQuestions,
	}, now)
	if err != nil {
		return nil, nil, err
	}

	return s, ev, nil
}

// OpenTopic creates state for a topic that has never been opened.
func (s *Session) OpenTopic(topicID string, now time.Time) (*Session, *Event, error) {
	if s.Status != StatusActive {
		return nil, nil, fmt.Errorf("mockinspect.OpenTopic: session is %s: %w", s.Status, ErrInvalidTransition)
	}
	now = normalizeTime(now)
	if _, exists := s.Topics[topicID]; exists {
		return nil, nil, fmt.Errorf("mockinspect.OpenTopic: topic %q already opened: %w", topicID, ErrInvalidTransition)
	}

	next := s.clone()
	next.applyTopicOpened(TopicOpenedPayload{TopicID: topicID}, now)

	ev, err := next.appendEvent(TopicOpenedPayload{TopicID: topicID}, now)
	if err != nil {
		return nil, nil, err
	}

	return next, ev, nil
}

// AskQuestion records one question against an open topic, enforcing both the
// global question ceiling and, for follow-ups, the per-topic ceiling.
func (s *Session) AskQuestion(topicID, questionText string, isFollowUp bool, now time.Time) (*Session, *Event, error) {
	if s.Status != StatusActive {
		return nil, nil, fmt.Errorf("mockinspect.AskQuestion: session is %s: %w", s.Status, ErrInvalidTransition)
	}
	now = normalizeTime(now)

	ts, exists := s.Topics[topicID]
	if !exists {
		return nil, nil, fmt.Errorf("mockinspect.AskQuestion: topic %q not opened: %w", topicID, ErrInvalidTransition)
	}
	if ts.closed() {
		return nil, nil, fmt.Errorf("mockinspect.AskQuestion: topic %q already closed: %w", topicID, ErrInvalidTransition)
	}

	if s.TotalQuestionsAsked >= s.Limits.MaxTotalQuestions {
		return nil, nil, fmt.Errorf("mockinspect.AskQuestion: global question ceiling %d reached: %w",
			s.Limits.MaxTotalQuestions, ErrLimitExceeded)
	}
	if isFollowUp && ts.FollowUpsAsked >= s.Limits.MaxFollowUpsPerTopic {
		return nil, nil, fmt.Errorf("mockinspect.AskQuestion: follow-up ceiling %d reached for topic %q: %w",
			s.Limits.MaxFollowUpsPerTopic, topicID, ErrLimitExceeded)
	}

	payload := QuestionAskedPayload{TopicID: topicID, QuestionText: questionText, IsFollowUp: isFollowUp}

	next := s.clone()
	next.applyQuestionAsked(payload)

	ev, err := next.appendEvent(payload, now)
	if err != nil {
		return nil, nil, err
	}

	return next, ev, nil
}

// DraftFindingFields are the caller-supplied parts of a draft finding.
// Origin and reporting domain are not among them.
type DraftFindingFields struct {
	Severity string
	Summary  string
	Detail   string
}

// DraftFinding records a candidate issue against an opened topic. Findings
// may still be drafted after a topic closes (reviewing notes often surfaces
// them late); only topic state existence and an active session are required.
func (s *Session) DraftFinding(topicID string, fields DraftFindingFields, now time.Time) (*Session, *Event, error) {
	if s.Status != StatusActive {
		return nil, nil, fmt.Errorf("mockinspect.DraftFinding: session is %s: %w", s.Status, ErrInvalidTransition)
	}
	now = normalizeTime(now)
	if _, exists := s.Topics[topicID]; !exists {
		return nil, nil, fmt.Errorf("mockinspect.DraftFinding: topic %q not opened: %w", topicID, ErrInvalidTransition)
	}

	payload := FindingDraftedPayload{
		TopicID:  topicID,
		Seq:      s.TotalFindingsDrafted + 1,
		Severity: fields.Severity,
		Summary:  fields.Summary,
		Detail:   fields.Detail,
	}

	next := s.clone()
	next.applyFindingDrafted(payload, now)

	ev, err := next.appendEvent(payload, now)
	if err != nil {
		return nil, nil, err
	}

	return next, ev, nil
}

// CloseTopic marks an open topic as closed. Closed topics accept no further
// questions and are never re-opened.
func (s *Session) CloseTopic(topicID string, now time.Time) (*Session, *Event, error) {
	if s.Status != StatusActive {
		return nil, nil, fmt.Errorf("mockinspect.CloseTopic: session is %s: %w", s.Status, ErrInvalidTransition)
	}
	now = normalizeTime(now)

	ts, exists := s.Topics[topicID]
	if !exists {
		return nil, nil, fmt.Errorf("mockinspect.CloseTopic: topic %q not opened: %w", topicID, ErrInvalidTransition)
	}
	if ts.closed() {
		return nil, nil, fmt.Errorf("mockinspect.CloseTopic: topic %q already closed: %w", topicID, ErrInvalidTransition)
	}

	payload := TopicClosedPayload{TopicID: topicID}

	next := s.clone()
	next.applyTopicClosed(payload, now)

	ev, err := next.appendEvent(payload, now)
	if err != nil {
		return nil, nil, err
	}

	return next, ev, nil
}

// Complete moves the session to its COMPLETED terminal state. The engine does
// not require topics to be closed first; closing open topics before completion
// is the orchestrator's documented policy, not an engine invariant.
func (s *Session) Complete(now time.Time) (*Session, *Event, error) {
	if s.Status != StatusActive {
		return nil, nil, fmt.Errorf("mockinspect.Complete: session is %s: %w", s.Status, ErrInvalidTransition)
	}
	now = normalizeTime(now)

	next := s.clone()
	next.applySessionCompleted(now)

	ev, err := next.appendEvent(SessionCompletedPayload{}, now)
	if err != nil {
		return nil, nil, err
	}

	return next, ev, nil
}

// Abandon moves the session to its ABANDONED terminal state.
func (s *Session) Abandon(reason string, now time.Time) (*Session, *Event, error) {
	if s.Status != StatusActive {
		return nil, nil, fmt.Errorf("mockinspect.Abandon: session is %s: %w", s.Status, ErrInvalidTransition)
	}
	now = normalizeTime(now)

	payload := SessionAbandonedPayload{Reason: reason}

	next := s.clone()
	next.applySessionAbandoned(payload, now)

	ev, err := next.appendEvent(payload, now)
	if err != nil {
		return nil, nil, err
	}

	return next, ev, nil
}

// OpenTopicIDs returns the ids of topics that are opened but not yet closed,
// in deterministic (sorted) order.
func (s *Session) OpenTopicIDs() []string {
	var ids []string
	for id, ts := range s.Topics {
		if !ts.closed() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// clone returns a deep copy sharing only the immutable event values.
func (s *Session) clone() *Session {
	next := *s

	next.Topics = make(map[string]*TopicState, len(s.Topics))
	for id, ts := range s.Topics {
		cp := *ts
		next.Topics[id] = &cp
	}

	next.DraftFindings = slices.Clone(s.DraftFindings)
	next.Events = slices.Clone(s.Events)

	return &next
}

// normalizeTime pins transition timestamps to UTC microsecond precision.
// Event hashes cover occurred_at, and a postgres timestamp column holds at
// most microseconds, so any finer precision would diverge after a reload.
func normalizeTime(now time.Time) time.Time {
	return now.UTC().Truncate(time.Microsecond)
}

// appendEvent builds, hashes, and appends one event. The hash chain is
// seeded with the session hash, so the first event links back to the frozen
// session identity.
func (s *Session) appendEvent(payload EventPayload, now time.Time) (*Event, error) {
	ordinal := len(s.Events)

	prev := s.SessionHash
	if ordinal > 0 {
		prev = s.Events[ordinal-1].Hash
	}

	id, err := eventID(s.ID, ordinal, payload.eventType())
	if err != nil {
		return nil, fmt.Errorf("mockinspect.appendEvent: %w", err)
	}

	ev := Event{
		ID:         id,
		SessionID:  s.ID,
		Ordinal:    ordinal,
		Type:       payload.eventType(),
		Payload:    payload,
		OccurredAt: now,
		PrevHash:   prev,
	}

	hash, err := eventHash(&ev)
	if err != nil {
		return nil, fmt.Errorf("mockinspect.appendEvent: %w", err)
	}
	ev.Hash = hash

	s.Events = append(s.Events, ev)

	return &s.Events[len(s.Events)-1], nil
}

// The apply* methods perform the pure state effect of one event. Live
// transitions and Replay share them, which is what makes replay reconstruct
// the same state the live path produced.

func (s *Session) applyTopicOpened(p TopicOpenedPayload, occurredAt time.Time) {
	s.Topics[p.TopicID] = &TopicState{TopicID: p.TopicID, OpenedAt: occurredAt}
}

func (s *Session) applyQuestionAsked(p QuestionAskedPayload) {
	ts := s.Topics[p.TopicID]
	ts.QuestionsAsked++
	if p.IsFollowUp {
		ts.FollowUpsAsked++
	}
	s.TotalQuestionsAsked++
}

func (s *Session) applyFindingDrafted(p FindingDraftedPayload, occurredAt time.Time) {
	s.Topics[p.TopicID].FindingsDrafted++
	s.TotalFindingsDrafted++
	s.DraftFindings = append(s.DraftFindings, DraftFinding{
		Seq:             p.Seq,
		SessionID:       s.ID,
		TopicID:         p.TopicID,
		Severity:        p.Severity,
		Summary:         p.Summary,
		Detail:          p.Detail,
		Origin:          domain.OriginSimulated,
		ReportingDomain: domain.DomainSimulation,
		DraftedAt:       occurredAt,
	})
}

func (s *Session) applyTopicClosed(p TopicClosedPayload, occurredAt time.Time) {
	t := occurredAt
	s.Topics[p.TopicID].ClosedAt = &t
}

func (s *Session) applySessionCompleted(occurredAt time.Time) {
	t := occurredAt
	s.Status = StatusCompleted
	s.CompletedAt = &t
}

func (s *Session) applySessionAbandoned(_ SessionAbandonedPayload, occurredAt time.Time) {
	t := occurredAt
	s.Status = StatusAbandoned
	s.CompletedAt = &t
}
