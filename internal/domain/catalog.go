package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Topic is a catalog-defined area of inquiry with its own question templates.
// Topic IDs are human-readable slugs ("safe-care", "staffing") scoped to a
// catalog; Version increments whenever the authored templates change so that
// derived question identifiers change with them.
type Topic struct {
	ID                  string
	Title               string
	Version             int
	StarterTemplateIDs  []string
	FollowUpTemplateIDs []string
}

// TopicCatalog is an ordered set of topics for one regulatory domain.
// Sessions reference a catalog by ID and treat its contents as frozen.
type TopicCatalog struct {
	ID        uuid.UUID
	Domain    string // regulatory domain, e.g. "CQC"
	Name      string
	Version   int
	Topics    []Topic // catalog order is the interview order
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderedTopicIDs returns topic IDs in catalog order.
func (c *TopicCatalog) OrderedTopicIDs() []string {
	ids := make([]string, len(c.Topics))
	for i, t := range c.Topics {
		ids[i] = t.ID
	}
	return ids
}

// TopicByID returns the topic with the given ID, or nil.
func (c *TopicCatalog) TopicByID(id string) *Topic {
	for i := range c.Topics {
		if c.Topics[i].ID == id {
			return &c.Topics[i]
		}
	}
	return nil
}

type TopicCatalogRepository interface {
	Create(ctx context.Context, c *TopicCatalog) error
	GetByID(ctx context.Context, id uuid.UUID) (*TopicCatalog, error)
	GetLatestByDomain(ctx context.Context, domain string) (*TopicCatalog, error)
	List(ctx context.Context) ([]*TopicCatalog, error)
	Update(ctx context.Context, c *TopicCatalog) error
}
