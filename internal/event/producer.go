package event

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/promotion-service/internal/domain"
	pkgkafka "github.com/utafrali/promotion-service/pkg/kafka"
)

// Promotion lifecycle topics.
const (
	TopicPromotionCreated     = "ecommerce.promotion.created"
	TopicPromotionUpdated     = "ecommerce.promotion.updated"
	TopicPromotionActivated   = "ecommerce.promotion.activated"
	TopicPromotionDeactivated = "ecommerce.promotion.deactivated"
	TopicPromotionDeleted     = "ecommerce.promotion.deleted"
)

const (
	aggregateType = "promotion"
	source        = "promotion-service"
)

// Publisher is the transport used to emit domain events. It is satisfied
// by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer emits promotion lifecycle events.
type Producer struct {
	publisher Publisher
}

// NewProducer creates a promotion event producer.
func NewProducer(publisher Publisher) *Producer {
	return &Producer{publisher: publisher}
}

// PromotionEvent is the payload carried by created and updated events.
type PromotionEvent struct {
	CampaignID   string     `json:"campaign_id"`
	Name         string     `json:"name"`
	DiscountType string     `json:"discount_type"`
	Value        float64    `json:"value"`
	Status       string     `json:"status"`
	Active       bool       `json:"active"`
	CategoryID   *string    `json:"category_id,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	ProductIDs   []string   `json:"product_ids"`
}

// PromotionActivatedEvent is the payload for activation, including any
// campaigns that were deactivated to resolve conflicts.
type PromotionActivatedEvent struct {
	CampaignID    string   `json:"campaign_id"`
	ProductIDs    []string `json:"product_ids"`
	SupersededIDs []string `json:"superseded_ids"`
}

// PromotionDeactivatedEvent is the payload for deactivation and deletion.
type PromotionDeactivatedEvent struct {
	CampaignID string   `json:"campaign_id"`
	ProductIDs []string `json:"product_ids"`
	Reason     string   `json:"reason"`
}

// Deactivation reasons.
const (
	ReasonManual     = "manual"
	ReasonExpired    = "expired"
	ReasonSuperseded = "superseded"
	ReasonDeleted    = "deleted"
)

func promotionPayload(c *domain.Campaign) PromotionEvent {
	return PromotionEvent{
		CampaignID:   c.ID,
		Name:         c.Name,
		DiscountType: c.DiscountType,
		Value:        c.Value,
		Status:       c.Status,
		Active:       c.Active,
		CategoryID:   c.CategoryID,
		StartDate:    c.StartDate,
		EndDate:      c.EndDate,
		ProductIDs:   c.ProductIDs,
	}
}

// PublishPromotionCreated emits a promotion.created event.
func (p *Producer) PublishPromotionCreated(ctx context.Context, c *domain.Campaign) error {
	return p.publish(ctx, TopicPromotionCreated, "promotion.created", c.ID, promotionPayload(c))
}

// PublishPromotionUpdated emits a promotion.updated event.
func (p *Producer) PublishPromotionUpdated(ctx context.Context, c *domain.Campaign) error {
	return p.publish(ctx, TopicPromotionUpdated, "promotion.updated", c.ID, promotionPayload(c))
}

// PublishPromotionActivated emits a promotion.activated event.
func (p *Producer) PublishPromotionActivated(ctx context.Context, c *domain.Campaign, supersededIDs []string) error {
	payload := PromotionActivatedEvent{
		CampaignID:    c.ID,
		ProductIDs:    c.ProductIDs,
		SupersededIDs: supersededIDs,
	}
	return p.publish(ctx, TopicPromotionActivated, "promotion.activated", c.ID, payload)
}

// PublishPromotionDeactivated emits a promotion.deactivated event.
func (p *Producer) PublishPromotionDeactivated(ctx context.Context, c *domain.Campaign, reason string) error {
	payload := PromotionDeactivatedEvent{
		CampaignID: c.ID,
		ProductIDs: c.ProductIDs,
		Reason:     reason,
	}
	return p.publish(ctx, TopicPromotionDeactivated, "promotion.deactivated", c.ID, payload)
}

// PublishPromotionDeleted emits a promotion.deleted event.
func (p *Producer) PublishPromotionDeleted(ctx context.Context, c *domain.Campaign) error {
	payload := PromotionDeactivatedEvent{
		CampaignID: c.ID,
		ProductIDs: c.ProductIDs,
		Reason:     ReasonDeleted,
	}
	return p.publish(ctx, TopicPromotionDeleted, "promotion.deleted", c.ID, payload)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID string, payload any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, source, payload)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	return p.publisher.Publish(ctx, topic, evt)
}
