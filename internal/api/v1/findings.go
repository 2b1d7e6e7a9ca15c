package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/careready/careready/internal/domain"
	"github.com/careready/careready/internal/server/middleware"
)

type RecordInspectionFindingInput struct {
	Body struct {
		TopicID  string `json:"topic_id" minLength:"1" doc:"Topic the finding relates to"`
		Severity string `json:"severity" enum:"minor,moderate,major" doc:"Severity"`
		Summary  string `json:"summary" minLength:"1" maxLength:"500" doc:"One-line summary"`
		Detail   string `json:"detail,omitempty" maxLength:"5000" doc:"Supporting detail"`
	}
}

type RecordInspectionFindingOutput struct {
	Body *domain.Finding
}

type ListFindingsInput struct {
	Reporting string `query:"reporting" enum:"simulation,regulatory_history" default:"regulatory_history" doc:"Reporting domain to list from"`
	Limit     int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset    int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListFindingsOutput struct {
	Body []*domain.Finding
}

type ListSessionFindingsInput struct {
	SessionID uuid.UUID `path:"session_id" doc:"Session ID"`
}

type ListSessionFindingsOutput struct {
	Body []*domain.Finding
}

func RegisterFindingRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "record-inspection-finding",
		Method:      http.MethodPost,
		Path:        "/findings",
		Summary:     "Record a finding from an actual inspection",
		Description: "Findings recorded here enter regulatory history. Simulated findings never do; they live inside their session.",
		Tags:        []string{"Findings"},
	}, func(ctx context.Context, input *RecordInspectionFindingInput) (*RecordInspectionFindingOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}
		if err := requireContentManager(ctx); err != nil {
			return nil, err
		}

		f, err := domain.NewFinding(tenantID, nil, input.Body.TopicID, input.Body.Severity,
			input.Body.Summary, input.Body.Detail,
			domain.OriginInspection, domain.DomainRegulatoryHistory, time.Now())
		if err != nil {
			if errors.Is(err, domain.ErrMockContamination) {
				return nil, huma.Error422UnprocessableEntity("origin and reporting domain disagree")
			}
			return nil, huma.Error500InternalServerError("failed to build finding", err)
		}

		if err := store.Findings().Create(ctx, f); err != nil {
			return nil, huma.Error500InternalServerError("failed to record finding", err)
		}

		return &RecordInspectionFindingOutput{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-findings",
		Method:      http.MethodGet,
		Path:        "/findings",
		Summary:     "List findings by reporting domain",
		Tags:        []string{"Findings"},
	}, func(ctx context.Context, input *ListFindingsInput) (*ListFindingsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		findings, err := store.Findings().ListByReportingDomain(ctx, tenantID,
			domain.ReportingDomain(input.Reporting), input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list findings", err)
		}

		return &ListFindingsOutput{Body: findings}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-session-findings",
		Method:      http.MethodGet,
		Path:        "/findings/session/{session_id}",
		Summary:     "List persisted simulation findings for a session",
		Tags:        []string{"Findings"},
	}, func(ctx context.Context, input *ListSessionFindingsInput) (*ListSessionFindingsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		findings, err := store.Findings().ListBySession(ctx, tenantID, input.SessionID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list session findings", err)
		}

		return &ListSessionFindingsOutput{Body: findings}, nil
	})
}
