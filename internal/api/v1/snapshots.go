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

type CaptureSnapshotInput struct {
	Body struct {
		RegulatoryState string   `json:"regulatory_state" minLength:"1" maxLength:"63" doc:"Current regulatory standing"`
		ServiceTypes    []string `json:"service_types" minItems:"1" doc:"Service types the provider is registered for"`
	}
}

type CaptureSnapshotOutput struct {
	Body *domain.ProviderSnapshot
}

type GetLatestSnapshotOutput struct {
	Body *domain.ProviderSnapshot
}

type ListSnapshotsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListSnapshotsOutput struct {
	Body []*domain.ProviderSnapshot
}

func RegisterSnapshotRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "capture-snapshot",
		Method:      http.MethodPost,
		Path:        "/snapshots",
		Summary:     "Capture a provider context snapshot",
		Description: "Snapshots are immutable. A session started afterwards freezes the latest one.",
		Tags:        []string{"Snapshots"},
	}, func(ctx context.Context, input *CaptureSnapshotInput) (*CaptureSnapshotOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s := &domain.ProviderSnapshot{
			ID:              uuid.New(),
			TenantID:        tenantID,
			RegulatoryState: input.Body.RegulatoryState,
			ServiceTypes:    input.Body.ServiceTypes,
			CapturedAt:      time.Now(),
		}

		if err := store.Snapshots().Create(ctx, s); err != nil {
			return nil, huma.Error500InternalServerError("failed to capture snapshot", err)
		}

		return &CaptureSnapshotOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-latest-snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshots/latest",
		Summary:     "Get the latest provider snapshot",
		Tags:        []string{"Snapshots"},
	}, func(ctx context.Context, _ *struct{}) (*GetLatestSnapshotOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		s, err := store.Snapshots().GetLatest(ctx, tenantID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("no snapshot captured yet")
			}
			return nil, huma.Error500InternalServerError("failed to get snapshot", err)
		}

		return &GetLatestSnapshotOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/snapshots",
		Summary:     "List provider snapshots",
		Tags:        []string{"Snapshots"},
	}, func(ctx context.Context, input *ListSnapshotsInput) (*ListSnapshotsOutput, error) {
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("missing tenant context")
		}

		snapshots, err := store.Snapshots().ListByTenant(ctx, tenantID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list snapshots", err)
		}

		return &ListSnapshotsOutput{Body: snapshots}, nil
	})
}
