package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/careready/careready/internal/domain"
)

type CreateProfileInput struct {
	Body struct {
		Name         string `json:"name" minLength:"1" maxLength:"255" doc:"Profile name"`
		Domain       string `json:"domain" minLength:"1" maxLength:"63" doc:"Regulatory domain, e.g. CQC"`
		MaxFollowUps int    `json:"max_follow_ups" minimum:"1" maximum:"50" doc:"Per-topic follow-up ceiling"`
		MaxQuestions int    `json:"max_questions" minimum:"1" maximum:"500" doc:"Global question ceiling"`
	}
}

type CreateProfileOutput struct {
	Body *domain.LogicProfile
}

type GetProfileInput struct {
	ID uuid.UUID `path:"id" doc:"Profile ID"`
}

type GetProfileOutput struct {
	Body *domain.LogicProfile
}

type ListProfilesOutput struct {
	Body []*domain.LogicProfile
}

type UpdateProfileInput struct {
	ID   uuid.UUID `path:"id" doc:"Profile ID"`
	Body struct {
		Name         string `json:"name,omitempty" maxLength:"255" doc:"Profile name"`
		MaxFollowUps *int   `json:"max_follow_ups,omitempty" minimum:"1" maximum:"50" doc:"Per-topic follow-up ceiling"`
		MaxQuestions *int   `json:"max_questions,omitempty" minimum:"1" maximum:"500" doc:"Global question ceiling"`
	}
}

type UpdateProfileOutput struct {
	Body *domain.LogicProfile
}

func RegisterProfileRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-profile",
		Method:      http.MethodPost,
		Path:        "/profiles",
		Summary:     "Create a logic profile",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *CreateProfileInput) (*CreateProfileOutput, error) {
		if err := requireContentManager(ctx); err != nil {
			return nil, err
		}

		now := time.Now()
		p := &domain.LogicProfile{
			ID:                  uuid.New(),
			Name:                input.Body.Name,
			Domain:              input.Body.Domain,
			DefaultMaxFollowUps: input.Body.MaxFollowUps,
			DefaultMaxQuestions: input.Body.MaxQuestions,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		if err := store.Profiles().Create(ctx, p); err != nil {
			return nil, huma.Error500InternalServerError("failed to create profile", err)
		}

		return &CreateProfileOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-profile",
		Method:      http.MethodGet,
		Path:        "/profiles/{id}",
		Summary:     "Get a profile by ID",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *GetProfileInput) (*GetProfileOutput, error) {
		p, err := store.Profiles().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("profile not found")
			}
			return nil, huma.Error500InternalServerError("failed to get profile", err)
		}

		return &GetProfileOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-profiles",
		Method:      http.MethodGet,
		Path:        "/profiles",
		Summary:     "List logic profiles",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, _ *struct{}) (*ListProfilesOutput, error) {
		profiles, err := store.Profiles().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list profiles", err)
		}

		return &ListProfilesOutput{Body: profiles}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPut,
		Path:        "/profiles/{id}",
		Summary:     "Update a logic profile",
		Description: "Running sessions keep the limits they froze at start; updates only affect new sessions.",
		Tags:        []string{"Profiles"},
	}, func(ctx context.Context, input *UpdateProfileInput) (*UpdateProfileOutput, error) {
		if err := requireContentManager(ctx); err != nil {
			return nil, err
		}

		existing, err := store.Profiles().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("profile not found")
			}
			return nil, huma.Error500InternalServerError("failed to get profile", err)
		}

		if input.Body.Name != "" {
			existing.Name = input.Body.Name
		}
		if input.Body.MaxFollowUps != nil {
			existing.DefaultMaxFollowUps = *input.Body.MaxFollowUps
		}
		if input.Body.MaxQuestions != nil {
			existing.DefaultMaxQuestions = *input.Body.MaxQuestions
		}
		existing.UpdatedAt = time.Now()

		if err := store.Profiles().Update(ctx, existing); err != nil {
			return nil, huma.Error500InternalServerError("failed to update profile", err)
		}

		return &UpdateProfileOutput{Body: existing}, nil
	})
}
