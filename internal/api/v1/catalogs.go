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

type TopicInput struct {
	ID                  string   `json:"id" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Topic slug"`
	Title               string   `json:"title" minLength:"1" maxLength:"255" doc:"Topic title"`
	Version             int      `json:"version" minimum:"1" doc:"Topic version; bump when templates change"`
	StarterTemplateIDs  []string `json:"starter_template_ids" doc:"Ordered starter question templates"`
	FollowUpTemplateIDs []string `json:"follow_up_template_ids" doc:"Ordered follow-up question templates"`
}

type CreateCatalogInput struct {
	Body struct {
		Domain string       `json:"domain" minLength:"1" maxLength:"63" doc:"Regulatory domain, e.g. CQC"`
		Name   string       `json:"name" minLength:"1" maxLength:"255" doc:"Catalog name"`
		Topics []TopicInput `json:"topics" minItems:"1" doc:"Topics in interview order"`
	}
}

type CreateCatalogOutput struct {
	Body *domain.TopicCatalog
}

type GetCatalogInput struct {
	ID uuid.UUID `path:"id" doc:"Catalog ID"`
}

type GetCatalogOutput struct {
	Body *domain.TopicCatalog
}

type ListCatalogsOutput struct {
	Body []*domain.TopicCatalog
}

func catalogTopics(in []TopicInput) []domain.Topic {
	topics := make([]domain.Topic, len(in))
	for i, t := range in {
		topics[i] = domain.Topic{
			ID:                  t.ID,
			Title:               t.Title,
			Version:             t.Version,
			StarterTemplateIDs:  t.StarterTemplateIDs,
			FollowUpTemplateIDs: t.FollowUpTemplateIDs,
		}
	}
	return topics
}

func RegisterCatalogRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-catalog",
		Method:      http.MethodPost,
		Path:        "/catalogs",
		Summary:     "Create a topic catalog version",
		Tags:        []string{"Catalogs"},
	}, func(ctx context.Context, input *CreateCatalogInput) (*CreateCatalogOutput, error) {
		if err := requireContentManager(ctx); err != nil {
			return nil, err
		}

		// New versions are derived from the current latest; catalogs in use by
		// sessions are never edited in place.
		version := 1
		if latest, err := store.Catalogs().GetLatestByDomain(ctx, input.Body.Domain); err == nil {
			version = latest.Version + 1
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error500InternalServerError("failed to resolve latest catalog", err)
		}

		now := time.Now()
		c := &domain.TopicCatalog{
			ID:        uuid.New(),
			Domain:    input.Body.Domain,
			Name:      input.Body.Name,
			Version:   version,
			Topics:    catalogTopics(input.Body.Topics),
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := store.Catalogs().Create(ctx, c); err != nil {
			return nil, huma.Error500InternalServerError("failed to create catalog", err)
		}

		return &CreateCatalogOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-catalog",
		Method:      http.MethodGet,
		Path:        "/catalogs/{id}",
		Summary:     "Get a catalog by ID",
		Tags:        []string{"Catalogs"},
	}, func(ctx context.Context, input *GetCatalogInput) (*GetCatalogOutput, error) {
		c, err := store.Catalogs().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("catalog not found")
			}
			return nil, huma.Error500InternalServerError("failed to get catalog", err)
		}

		return &GetCatalogOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-catalogs",
		Method:      http.MethodGet,
		Path:        "/catalogs",
		Summary:     "List topic catalogs",
		Tags:        []string{"Catalogs"},
	}, func(ctx context.Context, _ *struct{}) (*ListCatalogsOutput, error) {
		catalogs, err := store.Catalogs().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list catalogs", err)
		}

		return &ListCatalogsOutput{Body: catalogs}, nil
	})
}
