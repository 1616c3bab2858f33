package domain

import (
	"time"
)

// Product represents a catalog product. The promotion service only reads
// products; the catalog service owns their lifecycle.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CategoryID *string   `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Variant represents a sellable variant of a product. DiscountPrice,
// DiscountPercent, OnSales, and SaleNote are owned by the pricing mutation:
// they are set when a campaign applies and zeroed when it is reverted.
type Variant struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	SKU             string    `json:"sku"`
	BasePrice       float64   `json:"base_price"`
	DiscountPrice   float64   `json:"discount_price"`
	DiscountPercent float64   `json:"discount_percent"`
	OnSales         bool      `json:"on_sales"`
	SaleNote        string    `json:"sale_note"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectivePrice returns the price a buyer currently pays for the variant.
func (v *Variant) EffectivePrice() float64 {
	if v.OnSales {
		return v.DiscountPrice
	}
	return v.BasePrice
}
