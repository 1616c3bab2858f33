package domain

import (
	"time"
)

// Discount type constants.
const (
	DiscountTypePercentage  = "percentage"
	DiscountTypeFixedAmount = "fixed_amount"
)

// Campaign lifecycle status constants. A campaign starts in draft, moves to
// submitted on submit, and is deleted from any status. The active flag is
// tracked separately: only submitted campaigns can be active.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusSubmitted = "submitted"
)

// Campaign represents a discount campaign targeting a set of products.
type Campaign struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Note         string     `json:"note"`
	DiscountType string     `json:"discount_type"`
	Value        float64    `json:"value"`
	Active       bool       `json:"active"`
	Status       string     `json:"status"`
	CategoryID   *string    `json:"category_id,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	// ProductIDs is the resolved scope, persisted through the
	// campaign_products join table.
	ProductIDs []string  `json:"product_ids"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WindowContains reports whether t falls inside the campaign's effective
// window. Nil bounds are unbounded; both bounds are inclusive.
func (c *Campaign) WindowContains(t time.Time) bool {
	if c.StartDate != nil && t.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && t.After(*c.EndDate) {
		return false
	}
	return true
}

// Expired reports whether the campaign's window has closed at time t.
func (c *Campaign) Expired(t time.Time) bool {
	return c.EndDate != nil && t.After(*c.EndDate)
}

// ValidDiscountTypes returns the set of valid discount types.
func ValidDiscountTypes() []string {
	return []string{DiscountTypePercentage, DiscountTypeFixedAmount}
}

// IsValidDiscountType checks whether t is a valid discount type.
func IsValidDiscountType(t string) bool {
	for _, v := range ValidDiscountTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ValidStatuses returns the set of valid campaign statuses.
func ValidStatuses() []string {
	return []string{CampaignStatusDraft, CampaignStatusSubmitted}
}

// IsValidStatus checks whether status is a valid campaign status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
