package repository

import (
	"context"
	"time"

	"github.com/utafrali/promotion-service/internal/domain"
)

// CampaignFilter defines filter criteria for listing campaigns.
type CampaignFilter struct {
	ProductID  *string
	CategoryID *string
	Active     *bool
	Status     *string
	Page       int
	PerPage    int
}

// CampaignRepository defines persistence for campaigns and their product
// links. Create, Update, and Delete maintain the campaign_products join
// rows atomically with the campaign row.
type CampaignRepository interface {
	// Create inserts a campaign and its product links in one transaction.
	Create(ctx context.Context, campaign *domain.Campaign) error

	// GetByID retrieves a campaign with its resolved product ids.
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter along with the total count.
	List(ctx context.Context, filter CampaignFilter) ([]domain.Campaign, int, error)

	// Update rewrites the campaign row and replaces its product links in
	// one transaction.
	Update(ctx context.Context, campaign *domain.Campaign) error

	// Delete removes the campaign and cascades to its product links.
	Delete(ctx context.Context, id string) error

	// FindActiveByProducts returns active, submitted campaigns that touch
	// at least one of the given products.
	FindActiveByProducts(ctx context.Context, productIDs []string) ([]domain.Campaign, error)

	// SetActive atomically flips the active flag.
	SetActive(ctx context.Context, id string, active bool) error

	// SetStatus atomically sets the lifecycle status.
	SetStatus(ctx context.Context, id, status string) error

	// ListDue returns active campaigns whose window contains now.
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// ListExpired returns active campaigns whose end date has passed.
	ListExpired(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

// ProductRepository exposes the read-only product queries the engine needs
// for existence checks and scope enumeration.
type ProductRepository interface {
	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// FilterExisting returns the subset of ids that exist, preserving order.
	FilterExisting(ctx context.Context, ids []string) ([]string, error)

	// ListIDsByCategories returns ids of products in any of the categories.
	ListIDsByCategories(ctx context.Context, categoryIDs []string) ([]string, error)

	// ListAllIDs returns every product id, for full reindexing.
	ListAllIDs(ctx context.Context) ([]string, error)
}

// VariantRepository defines persistence for variant pricing.
type VariantRepository interface {
	// ListByProducts returns all variants belonging to the given products.
	ListByProducts(ctx context.Context, productIDs []string) ([]domain.Variant, error)

	// BulkSave persists pricing fields for the given variants.
	BulkSave(ctx context.Context, variants []domain.Variant) error
}

// CategoryRepository exposes the category queries used for scope
// resolution.
type CategoryRepository interface {
	// GetByID retrieves a category by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Category, error)

	// ListAll returns every category as a flat list.
	ListAll(ctx context.Context) ([]domain.Category, error)
}
