package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/careready/careready/internal/domain"
	"github.com/careready/careready/internal/inspection"
	"github.com/careready/careready/internal/mockinspect"
	"github.com/careready/careready/internal/server/middleware"
)

type StartSessionInput struct {
	Body struct {
		Domain    string     `json:"domain" minLength:"1" maxLength:"63" doc:"Regulatory domain, e.g. CQC"`
		ProfileID *uuid.UUID `json:"profile_id,omitempty" doc:"Logic profile to freeze; defaults to the domain's default profile"`
		CatalogID *uuid.UUID `json:"catalog_id,omitempty" doc:"Topic catalog to freeze; defaults to the domain's latest catalog"`
	}
}

type StartSessionOutput struct {
	Body *mockinspect.Session
}

type ListSessionsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListSessionsOutput struct {
	Body []*mockinspect.Session
}

type GetSessionInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type GetSessionOutput struct {
	Body *mockinspect.Session
}

type NextQuestionInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type NextQuestionOutput struct {
	Body struct {
		Question  *mockinspect.QuestionContext `json:"question,omitempty"`
		Exhausted bool                         `json:"exhausted" doc:"True when every topic has been exhausted"`
	}
}

type AskQuestionInput struct {
	ID   uuid.UUID `path:"id" doc:"Session ID"`
	Body struct {
		TopicID      string `json:"topic_id" minLength:"1" doc:"Topic to ask against"`
		QuestionText string `json:"question_text" minLength:"1" maxLength:"2000" doc:"Question as asked"`
		IsFollowUp   bool   `json:"is_follow_up,omitempty" doc:"Whether this counts against the per-topic follow-up ceiling"`
	}
}

type AskQuestionOutput struct {
	Body *mockinspect.Session
}

type DraftFindingInput struct {
	ID   uuid.UUID `path:"id" doc:"Session ID"`
	Body struct {
		TopicID  string `json:"topic_id" minLength:"1" doc:"Topic the finding relates to"`
		Severity string `json:"severity" enum:"minor,moderate,major" doc:"Severity"`
		Summary  string `json:"summary" minLength:"1" maxLength:"500" doc:"One-line summary"`
		Detail   string `json:"detail,omitempty" maxLength:"5000" doc:"Supporting detail"`
	}
}

type DraftFindingOutput struct {
	Body *mockinspect.Session
}

type CloseTopicInput struct {
	ID   uuid.UUID `path:"id" doc:"Session ID"`
	Body struct {
		TopicID string `json:"topic_id" minLength:"1" doc:"Topic to close"`
	}
}

type CloseTopicOutput struct {
	Body *mockinspect.Session
}

type CompleteSessionInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type CompleteSessionOutput struct {
	Body *mockinspect.Session
}

type AbandonSessionInput struct {
	ID   uuid.UUID `path:"id" doc:"Session ID"`
	Body struct {
		Reason string `json:"reason,omitempty" maxLength:"500" doc:"Why the session was abandoned"`
	}
}

type AbandonSessionOutput struct {
	Body *mockinspect.Session
}

type ListSessionEventsInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type ListSessionEventsOutput struct {
	Body []mockinspect.Event
}

type VerifyReplayInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type VerifyReplayOutput struct {
	Body *mockinspect.SafetyReport
}

type SafetyCheckInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type SafetyCheckOutput struct {
	Body mockinspect.SafetyReport
}

// sessionError maps engine and orchestrator errors onto HTTP status codes.
func sessionError(err error, action string) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("session not found")
	case errors.Is(err, mockinspect.ErrLimitExceeded):
		return huma.Error409Conflict("interaction ceiling reached")
	case errors.Is(err, mockinspect.ErrInvalidTransition):
		return huma.Error409Conflict("invalid session transition: " + err.Error())
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("session was modified concurrently, retry")
	case errors.Is(err, inspection.ErrSnapshotRequired):
		return huma.Error412PreconditionFailed("capture a provider snapshot before starting a session")
	default:
		return huma.Error500InternalServerError("failed to "+action, err)
	}
}

func RegisterSessionRoutes(api huma.API, store DataStore, orch SessionOrchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "start-session",
		Method:      http.MethodPost,
		Path:        "/sessions",
		Summary:     "Start a mock inspection session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		s, err := orch.StartSession(ctx, tenantID, userID, input.Body.Domain, input.Body.ProfileID, input.Body.CatalogID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("catalog or profile not found")
			}
			return nil, sessionError(err, "start session")
		}

		return &StartSessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List mock inspection sessions",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		sessions, err := store.Sessions().ListByTenant(ctx, tenantID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list sessions", err)
		}

		return &ListSessionsOutput{Body: sessions}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}",
		Summary:     "Get a session by ID",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s, err := orch.GetSession(ctx, tenantID, input.ID)
		if err != nil {
			return nil, sessionError(err, "get session")
		}

		return &GetSessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-question",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/next-question",
		Summary:     "Select the next question to ask",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *NextQuestionInput) (*NextQuestionOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		q, err := orch.NextQuestion(ctx, tenantID, input.ID)
		if err != nil {
			return nil, sessionError(err, "select next question")
		}

		out := &NextQuestionOutput{}
		out.Body.Question = q
		out.Body.Exhausted = q == nil
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ask-question",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/questions",
		Summary:     "Record a question asked in the session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *AskQuestionInput) (*AskQuestionOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s, err := orch.AskQuestion(ctx, tenantID, input.ID, input.Body.TopicID, input.Body.QuestionText, input.Body.IsFollowUp)
		if err != nil {
			return nil, sessionError(err, "ask question")
		}

		return &AskQuestionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "draft-finding",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/findings",
		Summary:     "Draft a candidate finding",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *DraftFindingInput) (*DraftFindingOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s, err := orch.DraftFinding(ctx, tenantID, input.ID, input.Body.TopicID, mockinspect.DraftFindingFields{
			Severity: input.Body.Severity,
			Summary:  input.Body.Summary,
			Detail:   input.Body.Detail,
		})
		if err != nil {
			return nil, sessionError(err, "draft finding")
		}

		return &DraftFindingOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-topic",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/close-topic",
		Summary:     "Close a topic in the session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *CloseTopicInput) (*CloseTopicOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s, err := orch.CloseTopic(ctx, tenantID, input.ID, input.Body.TopicID)
		if err != nil {
			return nil, sessionError(err, "close topic")
		}

		return &CloseTopicOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/complete",
		Summary:     "Complete the session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *CompleteSessionInput) (*CompleteSessionOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		s, err := orch.Complete(ctx, tenantID, userID, input.ID)
		if err != nil {
			return nil, sessionError(err, "complete session")
		}

		return &CompleteSessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "abandon-session",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/abandon",
		Summary:     "Abandon the session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *AbandonSessionInput) (*AbandonSessionOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing user context")
		}

		s, err := orch.Abandon(ctx, tenantID, userID, input.ID, input.Body.Reason)
		if err != nil {
			return nil, sessionError(err, "abandon session")
		}

		return &AbandonSessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-session-events",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/events",
		Summary:     "List the session's event log",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ListSessionEventsInput) (*ListSessionEventsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s, err := orch.GetSession(ctx, tenantID, input.ID)
		if err != nil {
			return nil, sessionError(err, "load session events")
		}

		return &ListSessionEventsOutput{Body: s.Events}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-session-replay",
		Method:      http.MethodPost,
		Path:        "/sessions/{id}/verify-replay",
		Summary:     "Replay the event log and verify it reproduces the stored state",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *VerifyReplayInput) (*VerifyReplayOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		report, err := orch.VerifyReplay(ctx, tenantID, input.ID)
		if err != nil {
			if errors.Is(err, mockinspect.ErrReplayMismatch) {
				return nil, huma.Error409Conflict("event log does not replay to the stored state: " + err.Error())
			}
			return nil, sessionError(err, "verify replay")
		}

		return &VerifyReplayOutput{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "session-safety-check",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/safety",
		Summary:     "Check that the session's output stays in the simulation domain",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SafetyCheckInput) (*SafetyCheckOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s, err := orch.GetSession(ctx, tenantID, input.ID)
		if err != nil {
			return nil, sessionError(err, "load session")
		}

		return &SafetyCheckOutput{Body: mockinspect.ValidateMockSafety(s)}, nil
	})
}
