package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/promotion-service/internal/domain"
	"github.com/utafrali/promotion-service/internal/event"
	"github.com/utafrali/promotion-service/internal/pkg/clock"
	"github.com/utafrali/promotion-service/internal/pricing"
	"github.com/utafrali/promotion-service/internal/repository"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
)

// DescendantResolver resolves a category id to itself plus every category
// below it.
type DescendantResolver interface {
	ResolveDescendants(ctx context.Context, rootID string) ([]string, error)
}

// IndexSyncer keeps the denormalized product index in step with the
// authoritative variant rows.
type IndexSyncer interface {
	IndexProducts(ctx context.Context, productIDs []string) error
	RemoveProduct(ctx context.Context, productID string) error
	ReindexAll(ctx context.Context) (int, error)
}

// EventProducer emits promotion lifecycle events. Satisfied by
// *event.Producer.
type EventProducer interface {
	PublishPromotionCreated(ctx context.Context, c *domain.Campaign) error
	PublishPromotionUpdated(ctx context.Context, c *domain.Campaign) error
	PublishPromotionActivated(ctx context.Context, c *domain.Campaign, supersededIDs []string) error
	PublishPromotionDeactivated(ctx context.Context, c *domain.Campaign, reason string) error
	PublishPromotionDeleted(ctx context.Context, c *domain.Campaign) error
}

// CreatePromotionRequest carries the input for creating a campaign.
type CreatePromotionRequest struct {
	Name         string
	Note         string
	DiscountType string
	Value        float64
	CategoryID   *string
	ProductIDs   []string
	StartDate    *time.Time
	EndDate      *time.Time
}

// UpdatePromotionRequest carries the input for updating a draft campaign.
// Nil pointer fields leave the current value unchanged; ProductIDs and
// CategoryID always replace the current scope.
type UpdatePromotionRequest struct {
	Name         *string
	Note         *string
	DiscountType *string
	Value        *float64
	CategoryID   *string
	ProductIDs   []string
	StartDate    *time.Time
	EndDate      *time.Time
	ClearWindow  bool
}

// PromotionService orchestrates the campaign lifecycle: scope resolution,
// conflict supersession, pricing mutation, and index refresh.
type PromotionService struct {
	campaigns repository.CampaignRepository
	products  repository.ProductRepository
	variants  repository.VariantRepository
	tree      DescendantResolver
	index     IndexSyncer
	producer  EventProducer
	clock     clock.Clock
	logger    *slog.Logger
}

// NewPromotionService creates the promotion orchestrator.
func NewPromotionService(
	campaigns repository.CampaignRepository,
	products repository.ProductRepository,
	variants repository.VariantRepository,
	tree DescendantResolver,
	index IndexSyncer,
	producer EventProducer,
	clk clock.Clock,
	logger *slog.Logger,
) *PromotionService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &PromotionService{
		campaigns: campaigns,
		products:  products,
		variants:  variants,
		tree:      tree,
		index:     index,
		producer:  producer,
		clock:     clk,
		logger:    logger,
	}
}

// CreatePromotion validates the request, resolves its scope, and persists
// the campaign as an inactive draft. Pricing is not touched until the
// campaign is submitted and activated.
func (s *PromotionService) CreatePromotion(ctx context.Context, req CreatePromotionRequest) (*domain.Campaign, error) {
	if err := validateDiscount(req.DiscountType, req.Value); err != nil {
		return nil, err
	}
	if err := validateWindow(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	scope, err := s.resolveScope(ctx, req.ProductIDs, req.CategoryID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	campaign := &domain.Campaign{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Note:         req.Note,
		DiscountType: req.DiscountType,
		Value:        req.Value,
		Active:       false,
		Status:       domain.CampaignStatusDraft,
		CategoryID:   req.CategoryID,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		ProductIDs:   scope,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	s.logger.InfoContext(ctx, "campaign created",
		slog.String("campaign_id", campaign.ID),
		slog.Int("scope_size", len(scope)),
	)

	s.publish(ctx, "promotion.created", func() error {
		return s.producer.PublishPromotionCreated(ctx, campaign)
	})

	return campaign, nil
}

// GetPromotion retrieves one campaign.
func (s *PromotionService) GetPromotion(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.GetByID(ctx, id)
}

// ListPromotions returns campaigns matching the filter with a total count.
func (s *PromotionService) ListPromotions(ctx context.Context, filter repository.CampaignFilter) ([]domain.Campaign, int, error) {
	return s.campaigns.List(ctx, filter)
}

// UpdatePromotion modifies a draft campaign. Campaigns that have been
// submitted are immutable.
func (s *PromotionService) UpdatePromotion(ctx context.Context, id string, req UpdatePromotionRequest) (*domain.Campaign, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignStatusDraft {
		return nil, apperrors.Conflict("only draft campaigns can be updated")
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Note != nil {
		campaign.Note = *req.Note
	}
	if req.DiscountType != nil {
		campaign.DiscountType = *req.DiscountType
	}
	if req.Value != nil {
		campaign.Value = *req.Value
	}
	if req.ClearWindow {
		campaign.StartDate = nil
		campaign.EndDate = nil
	}
	if req.StartDate != nil {
		campaign.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		campaign.EndDate = req.EndDate
	}

	if err := validateDiscount(campaign.DiscountType, campaign.Value); err != nil {
		return nil, err
	}
	if err := validateWindow(campaign.StartDate, campaign.EndDate); err != nil {
		return nil, err
	}

	// Scope is always recomputed: product and category membership may have
	// changed since the draft was created.
	if req.ProductIDs != nil || req.CategoryID != nil {
		campaign.CategoryID = req.CategoryID
		scope, err := s.resolveScope(ctx, req.ProductIDs, req.CategoryID)
		if err != nil {
			return nil, err
		}
		campaign.ProductIDs = scope
	}

	campaign.UpdatedAt = s.clock.Now()

	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}

	s.publish(ctx, "promotion.updated", func() error {
		return s.producer.PublishPromotionUpdated(ctx, campaign)
	})

	return campaign, nil
}

// SubmitPromotion moves a draft campaign to submitted and immediately
// activates it. It returns the campaign and the ids of any campaigns that
// were deactivated to resolve conflicts.
func (s *PromotionService) SubmitPromotion(ctx context.Context, id string) (*domain.Campaign, []string, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if campaign.Status != domain.CampaignStatusDraft {
		return nil, nil, apperrors.Conflict("only draft campaigns can be submitted")
	}

	if err := s.campaigns.SetStatus(ctx, id, domain.CampaignStatusSubmitted); err != nil {
		return nil, nil, fmt.Errorf("submit campaign: %w", err)
	}
	campaign.Status = domain.CampaignStatusSubmitted

	superseded, err := s.ActivatePromotion(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	campaign.Active = true

	return campaign, superseded, nil
}

// ActivatePromotion makes a submitted campaign the effective pricing
// source for its scope. Conflicting active campaigns are deactivated
// first; the newest activation wins. Pricing is applied only when the
// campaign's window currently contains now, otherwise the scheduler
// applies it once the window opens. Returns the ids of superseded
// campaigns. Safe to call repeatedly.
func (s *PromotionService) ActivatePromotion(ctx context.Context, id string) ([]string, error) {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignStatusSubmitted {
		return nil, apperrors.Conflict("only submitted campaigns can be activated")
	}

	superseded, err := s.supersede(ctx, campaign.ProductIDs, campaign.ID)
	if err != nil {
		return nil, err
	}

	if err := s.campaigns.SetActive(ctx, id, true); err != nil {
		return nil, fmt.Errorf("activate campaign: %w", err)
	}
	campaign.Active = true

	if campaign.WindowContains(s.clock.Now()) {
		if err := s.applyPricing(ctx, campaign); err != nil {
			return nil, err
		}
		s.refreshIndex(ctx, campaign.ProductIDs)
	}

	s.logger.InfoContext(ctx, "campaign activated",
		slog.String("campaign_id", id),
		slog.Int("superseded", len(superseded)),
	)

	s.publish(ctx, "promotion.activated", func() error {
		return s.producer.PublishPromotionActivated(ctx, campaign, superseded)
	})

	return superseded, nil
}

// DeactivatePromotion withdraws a campaign's pricing: the campaign is
// flagged inactive, every in-scope variant is reverted, and the index is
// refreshed. Safe to call repeatedly.
func (s *PromotionService) DeactivatePromotion(ctx context.Context, id string) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return s.deactivate(ctx, campaign, event.ReasonManual)
}

// DeletePromotion reverts the campaign's pricing and removes the campaign
// with its product links.
func (s *PromotionService) DeletePromotion(ctx context.Context, id string) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.revertPricing(ctx, campaign.ProductIDs); err != nil {
		return err
	}

	if err := s.campaigns.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}

	s.refreshIndex(ctx, campaign.ProductIDs)

	s.logger.InfoContext(ctx, "campaign deleted", slog.String("campaign_id", id))

	s.publish(ctx, "promotion.deleted", func() error {
		return s.producer.PublishPromotionDeleted(ctx, campaign)
	})

	return nil
}

// ReindexAll rebuilds the whole denormalized index from the authoritative
// store and returns the number of indexed products.
func (s *PromotionService) ReindexAll(ctx context.Context) (int, error) {
	return s.index.ReindexAll(ctx)
}

// DeactivateExpired deactivates one expired campaign on behalf of the
// scheduler.
func (s *PromotionService) DeactivateExpired(ctx context.Context, id string) error {
	campaign, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.deactivate(ctx, campaign, event.ReasonExpired)
}

// supersede deactivates every active campaign touching any of the given
// products, except the campaign being activated. Returns the ids it
// deactivated, sorted.
func (s *PromotionService) supersede(ctx context.Context, productIDs []string, excludeID string) ([]string, error) {
	conflicts, err := s.campaigns.FindActiveByProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("find conflicting campaigns: %w", err)
	}

	superseded := []string{}
	for i := range conflicts {
		c := &conflicts[i]
		if c.ID == excludeID {
			continue
		}
		if err := s.deactivate(ctx, c, event.ReasonSuperseded); err != nil {
			return nil, fmt.Errorf("supersede campaign %s: %w", c.ID, err)
		}
		superseded = append(superseded, c.ID)
	}

	sort.Strings(superseded)
	return superseded, nil
}

func (s *PromotionService) deactivate(ctx context.Context, campaign *domain.Campaign, reason string) error {
	if err := s.campaigns.SetActive(ctx, campaign.ID, false); err != nil {
		return fmt.Errorf("deactivate campaign: %w", err)
	}
	campaign.Active = false

	if err := s.revertPricing(ctx, campaign.ProductIDs); err != nil {
		return err
	}

	s.refreshIndex(ctx, campaign.ProductIDs)

	s.logger.InfoContext(ctx, "campaign deactivated",
		slog.String("campaign_id", campaign.ID),
		slog.String("reason", reason),
	)

	s.publish(ctx, "promotion.deactivated", func() error {
		return s.producer.PublishPromotionDeactivated(ctx, campaign, reason)
	})

	return nil
}

func (s *PromotionService) applyPricing(ctx context.Context, campaign *domain.Campaign) error {
	variants, err := s.variants.ListByProducts(ctx, campaign.ProductIDs)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}

	for i := range variants {
		variants[i] = pricing.Apply(variants[i], campaign.DiscountType, campaign.Value, campaign.Note)
	}

	if err := s.variants.BulkSave(ctx, variants); err != nil {
		return fmt.Errorf("save variant pricing: %w", err)
	}

	return nil
}

func (s *PromotionService) revertPricing(ctx context.Context, productIDs []string) error {
	variants, err := s.variants.ListByProducts(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}

	for i := range variants {
		variants[i] = pricing.Revert(variants[i])
	}

	if err := s.variants.BulkSave(ctx, variants); err != nil {
		return fmt.Errorf("save variant pricing: %w", err)
	}

	return nil
}

// refreshIndex pushes fresh entries for the given products. The relational
// store is the source of truth, so index failures are logged and never
// surfaced; a full reindex recovers.
func (s *PromotionService) refreshIndex(ctx context.Context, productIDs []string) {
	if err := s.index.IndexProducts(ctx, productIDs); err != nil {
		s.logger.WarnContext(ctx, "index refresh failed, run reindex to recover",
			slog.String("error", err.Error()),
		)
	}
}

// publish emits an event best-effort: a broker outage must not fail an
// already-committed domain operation.
func (s *PromotionService) publish(ctx context.Context, eventType string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// resolveScope unions explicit product ids with the products of the given
// category and all its descendants. The result is deduplicated and sorted.
func (s *PromotionService) resolveScope(ctx context.Context, productIDs []string, categoryID *string) ([]string, error) {
	seen := make(map[string]bool)
	scope := []string{}

	if len(productIDs) > 0 {
		existing, err := s.products.FilterExisting(ctx, productIDs)
		if err != nil {
			return nil, fmt.Errorf("check products: %w", err)
		}
		if len(existing) != len(dedupe(productIDs)) {
			return nil, apperrors.InvalidInput("one or more product ids do not exist")
		}
		for _, id := range existing {
			if !seen[id] {
				seen[id] = true
				scope = append(scope, id)
			}
		}
	}

	if categoryID != nil {
		categoryIDs, err := s.tree.ResolveDescendants(ctx, *categoryID)
		if err != nil {
			return nil, err
		}
		ids, err := s.products.ListIDsByCategories(ctx, categoryIDs)
		if err != nil {
			return nil, fmt.Errorf("list category products: %w", err)
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				scope = append(scope, id)
			}
		}
	}

	if len(scope) == 0 {
		return nil, apperrors.InvalidInput("campaign scope resolves to no products")
	}

	sort.Strings(scope)
	return scope, nil
}

func validateDiscount(discountType string, value float64) error {
	if !domain.IsValidDiscountType(discountType) {
		return apperrors.InvalidInput(fmt.Sprintf("discount type must be one of %v", domain.ValidDiscountTypes()))
	}
	if value < 0 {
		return apperrors.InvalidInput("discount value must be non-negative")
	}
	if discountType == domain.DiscountTypePercentage && value > 100 {
		return apperrors.InvalidInput("percentage discount cannot exceed 100")
	}
	return nil
}

func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return apperrors.InvalidInput("end date must not precede start date")
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
