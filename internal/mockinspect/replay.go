package mockinspect

import "fmt"

// Replay reconstructs a session from its event log, starting from the state
// immediately after SESSION_STARTED. It applies each subsequent event with
// the same apply logic the live transitions use, consuming the timestamps
// and identifiers already recorded; nothing is regenerated. Given the same
// initial session and the same events, two replays produce byte-identical
// serialized state, the same session hash, and the same per-event hashes.
//
// The hash chain is verified along the way: an event from a different
// session, an ordinal gap, or a hash that fails recomputation is reported as
// ErrReplayMismatch.
func Replay(initial *Session, events []Event) (*Session, error) {
	if initial == nil {
		return nil, fmt.Errorf("mockinspect.Replay: nil initial session: %w", ErrReplayMismatch)
	}
	if len(events) == 0 || events[0].Type != EventSessionStarted {
		return nil, fmt.Errorf("mockinspect.Replay: log must begin with %s: %w", EventSessionStarted, ErrReplayMismatch)
	}
	if initial.Version() != 1 {
		return nil, fmt.Errorf("mockinspect.Replay: initial session must hold only %s, got %d events: %w",
			EventSessionStarted, initial.Version(), ErrReplayMismatch)
	}
	if events[0].SessionID != initial.ID {
		return nil, fmt.Errorf("mockinspect.Replay: log belongs to session %s, not %s: %w",
			events[0].SessionID, initial.ID, ErrReplayMismatch)
	}
	if events[0].Hash != initial.Events[0].Hash {
		return nil, fmt.Errorf("mockinspect.Replay: %s hash diverges from initial session: %w",
			EventSessionStarted, ErrReplayMismatch)
	}

	s := initial.clone()

	for i, ev := range events[1:] {
		if err := verifyEvent(s, &ev); err != nil {
			return nil, err
		}

		switch p := ev.Payload.(type) {
		case TopicOpenedPayload:
			s.applyTopicOpened(p, ev.OccurredAt)
		case QuestionAskedPayload:
			s.applyQuestionAsked(p)
		case FindingDraftedPayload:
			s.applyFindingDrafted(p, ev.OccurredAt)
		case TopicClosedPayload:
			s.applyTopicClosed(p, ev.OccurredAt)
		case SessionCompletedPayload:
			s.applySessionCompleted(ev.OccurredAt)
		case SessionAbandonedPayload:
			s.applySessionAbandoned(p, ev.OccurredAt)
		case SessionStartedPayload:
			return nil, fmt.Errorf("mockinspect.Replay: duplicate %s at ordinal %d: %w",
				EventSessionStarted, ev.Ordinal, ErrReplayMismatch)
		default:
			return nil, fmt.Errorf("mockinspect.Replay: unknown payload at index %d: %w", i+1, ErrReplayMismatch)
		}

		// Events are consumed as recorded, never rebuilt.
		s.Events = append(s.Events, ev)
	}

	return s, nil
}

// InitialFromStartedEvent rebuilds the post-create session state from a
// recorded SESSION_STARTED event, re-deriving the session hash from the
// frozen identity it carries. The result is suitable as the initial session
// for Replay; if the event was tampered with, the re-derived hashes will not
// match the log and Replay will reject it.
func InitialFromStartedEvent(ev Event) (*Session, error) {
	if ev.Type != EventSessionStarted || ev.Ordinal != 0 {
		return nil, fmt.Errorf("mockinspect.InitialFromStartedEvent: not a %s at ordinal 0: %w",
			EventSessionStarted, ErrReplayMismatch)
	}

	p, ok := ev.Payload.(SessionStartedPayload)
	if !ok {
		return nil, fmt.Errorf("mockinspect.InitialFromStartedEvent: payload type mismatch: %w", ErrReplayMismatch)
	}

	s, _, err := New(CreateParams{
		ID:                ev.SessionID,
		TenantID:          p.TenantID,
		Domain:            p.Domain,
		ContextSnapshotID: p.ContextSnapshotID,
		LogicProfileID:    p.LogicProfileID,
		CatalogID:         p.CatalogID,
		Limits: Limits{
			MaxFollowUpsPerTopic: p.MaxFollowUps,
			MaxTotalQuestions:    p.MaxQuestions,
		},
	}, ev.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("mockinspect.InitialFromStartedEvent: %w", err)
	}

	return s, nil
}

// verifyEvent checks an event's linkage into the session being rebuilt:
// session identity, ordinal continuity, chain linkage, and hash integrity.
func verifyEvent(s *Session, ev *Event) error {
	if ev.SessionID != s.ID {
		return fmt.Errorf("mockinspect.Replay: event %s belongs to session %s, not %s: %w",
			ev.ID, ev.SessionID, s.ID, ErrReplayMismatch)
	}
	if ev.Ordinal != len(s.Events) {
		return fmt.Errorf("mockinspect.Replay: expected ordinal %d, got %d: %w",
			len(s.Events), ev.Ordinal, ErrReplayMismatch)
	}

	wantPrev := s.SessionHash
	if len(s.Events) > 0 {
		wantPrev = s.Events[len(s.Events)-1].Hash
	}
	if ev.PrevHash != wantPrev {
		return fmt.Errorf("mockinspect.Replay: broken hash chain at ordinal %d: %w", ev.Ordinal, ErrReplayMismatch)
	}

	recomputed, err := eventHash(ev)
	if err != nil {
		return fmt.Errorf("mockinspect.Replay: %w", err)
	}
	if recomputed != ev.Hash {
		return fmt.Errorf("mockinspect.Replay: event %s failed hash verification at ordinal %d: %w",
			ev.ID, ev.Ordinal, ErrReplayMismatch)
	}

	return nil
}
