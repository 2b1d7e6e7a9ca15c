package mockinspect

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionStarted   EventType = "SESSION_STARTED"
	EventTopicOpened      EventType = "TOPIC_OPENED"
	EventQuestionAsked    EventType = "QUESTION_ASKED"
	EventFindingDrafted   EventType = "FINDING_DRAFTED"
	EventTopicClosed      EventType = "TOPIC_CLOSED"
	EventSessionCompleted EventType = "SESSION_COMPLETED"
	EventSessionAbandoned EventType = "SESSION_ABANDONED"
)

// EventPayload is the tagged union of per-event payloads. Each variant is a
// strongly typed struct; replay switches exhaustively over the set.
type EventPayload interface {
	eventType() EventType
}

type SessionStartedPayload struct {
	TenantID          uuid.UUID `json:"tenant_id"`
	Domain            string    `json:"domain"`
	ContextSnapshotID uuid.UUID `json:"context_snapshot_id"`
	LogicProfileID    uuid.UUID `json:"logic_profile_id"`
	CatalogID         uuid.UUID `json:"catalog_id"`
	MaxFollowUps      int       `json:"max_follow_ups"`
	MaxQuestions      int       `json:"max_questions"`
}

type TopicOpenedPayload struct {
	TopicID string `json:"topic_id"`
}

type QuestionAskedPayload struct {
	TopicID      string `json:"topic_id"`
	QuestionText string `json:"question_text"`
	IsFollowUp   bool   `json:"is_follow_up"`
}

type FindingDraftedPayload struct {
	TopicID  string `json:"topic_id"`
	Seq      int    `json:"seq"`
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	Detail   string `json:"detail"`
}

type TopicClosedPayload struct {
	TopicID string `json:"topic_id"`
}

type SessionCompletedPayload struct{}

type SessionAbandonedPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (SessionStartedPayload) eventType() EventType   { return EventSessionStarted }
func (TopicOpenedPayload) eventType() EventType      { return EventTopicOpened }
func (QuestionAskedPayload) eventType() EventType    { return EventQuestionAsked }
func (FindingDraftedPayload) eventType() EventType   { return EventFindingDrafted }
func (TopicClosedPayload) eventType() EventType      { return EventTopicClosed }
func (SessionCompletedPayload) eventType() EventType { return EventSessionCompleted }
func (SessionAbandonedPayload) eventType() EventType { return EventSessionAbandoned }

// Event is one immutable entry in a session's append-only log. Hash covers
// the event's own fields plus the previous event's hash (the chain is seeded
// with the session hash), giving the log tamper evidence.
type Event struct {
	ID         string       `json:"id"`
	SessionID  uuid.UUID    `json:"session_id"`
	Ordinal    int          `json:"ordinal"`
	Type       EventType    `json:"type"`
	Payload    EventPayload `json:"payload"`
	OccurredAt time.Time    `json:"occurred_at"`
	PrevHash   string       `json:"prev_hash"`
	Hash       string       `json:"hash"`
}

// eventID derives a deterministic event identifier from the session id and
// the event's position and type. Same logical event, same id.
func eventID(sessionID uuid.UUID, ordinal int, t EventType) (string, error) {
	return ContentHash(map[string]any{
		"session_id": sessionID.String(),
		"ordinal":    ordinal,
		"type":       string(t),
	})
}

// eventHash covers every recorded field except the hash itself.
func eventHash(e *Event) (string, error) {
	return ContentHash(map[string]any{
		"id":          e.ID,
		"session_id":  e.SessionID.String(),
		"ordinal":     e.Ordinal,
		"type":        string(e.Type),
		"payload":     e.Payload,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"prev_hash":   e.PrevHash,
	})
}

// DecodePayload reconstructs a typed payload from its wire form. The switch
// is exhaustive over the event type set; an unknown type is an error, never
// an open-ended bag.
func DecodePayload(t EventType, raw json.RawMessage) (EventPayload, error) {
	var (
		p   EventPayload
		err error
	)

	switch t {
	case EventSessionStarted:
		var v SessionStartedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case EventTopicOpened:
		var v TopicOpenedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case EventQuestionAsked:
		var v QuestionAskedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case EventFindingDrafted:
		var v FindingDraftedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case EventTopicClosed:
		var v TopicClosedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case EventSessionCompleted:
		var v SessionCompletedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case EventSessionAbandoned:
		var v SessionAbandonedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("mockinspect.DecodePayload: unknown event type %q", t)
	}

	if err != nil {
		return nil, fmt.Errorf("mockinspect.DecodePayload: %s: %w", t, err)
	}

	return p, nil
}

// UnmarshalJSON decodes an event, resolving the payload union by event type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID         string          `json:"id"`
		SessionID  uuid.UUID       `json:"session_id"`
		Ordinal    int             `json:"ordinal"`
		Type       EventType       `json:"type"`
		Payload    json.RawMessage `json:"payload"`
		OccurredAt time.Time       `json:"occurred_at"`
		PrevHash   string          `json:"prev_hash"`
		Hash       string          `json:"hash"`
	}

	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("mockinspect.Event.UnmarshalJSON: %w", err)
	}

	payload, err := DecodePayload(wire.Type, wire.Payload)
	if err != nil {
		return err
	}

	e.ID = wire.ID
	e.SessionID = wire.SessionID
	e.Ordinal = wire.Ordinal
	e.Type = wire.Type
	e.Payload = payload
	e.OccurredAt = wire.OccurredAt
	e.PrevHash = wire.PrevHash
	e.Hash = wire.Hash

	return nil
}
