package domain

import (
	"time"
)

// IndexedVariant is the flattened variant pricing stored in the product
// index entry.
type IndexedVariant struct {
	ID              string  `json:"id"`
	SKU             string  `json:"sku"`
	BasePrice       float64 `json:"base_price"`
	DiscountPrice   float64 `json:"discount_price"`
	DiscountPercent float64 `json:"discount_percent"`
	OnSales         bool    `json:"on_sales"`
}

// ProductIndexEntry is the denormalized, read-optimized view of a product's
// pricing. It is derived from the authoritative variant rows and rebuilt
// whenever they change; it is never a source of truth.
type ProductIndexEntry struct {
	ProductID string           `json:"product_id"`
	Variants  []IndexedVariant `json:"variants"`
	MinPrice  float64          `json:"min_price"`
	MaxPrice  float64          `json:"max_price"`
	OnSales   bool             `json:"on_sales"`
	UpdatedAt time.Time        `json:"updated_at"`
}
